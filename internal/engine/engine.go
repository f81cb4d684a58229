// Package engine is the facade that wires the store and every subsystem
// package (taskengine, capability, escalation, review, retro, worker,
// worktree) into the orchestration engine's external surface, for
// cmd/ralph to call into.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcusdietz/ralph/internal/escalation"
	"github.com/marcusdietz/ralph/internal/intent"
	"github.com/marcusdietz/ralph/internal/llmrunner"
	"github.com/marcusdietz/ralph/internal/retro"
	"github.com/marcusdietz/ralph/internal/review"
	"github.com/marcusdietz/ralph/internal/store"
	"github.com/marcusdietz/ralph/internal/taskengine"
	"github.com/marcusdietz/ralph/internal/worktree"
	"github.com/marcusdietz/ralph/pkg/models"
)

// Config bundles the tunables an Engine needs beyond its store and pool.
type Config struct {
	IterationTimeout    time.Duration
	WorkDir             string
	WorktreeBaseDir     string
	EscalationThreshold float64
}

// Engine is the single entry point cmd/ralph drives: it owns the store,
// the subsystem collaborators, and the live worker/merge-coordinator
// registries that must outlive any single call.
type Engine struct {
	store    *store.DB
	tasks    *taskengine.Engine
	resolver *escalation.Resolver
	reviewer *review.Reviewer
	retro    *retro.Engine
	pool     *llmrunner.Pool
	cfg      Config

	mu           sync.Mutex
	workers      map[string]*workerHandle
	coordinators map[string]*worktree.Coordinator
}

// New wires up an Engine against db, invoking LLM runners through pool.
func New(db *store.DB, pool *llmrunner.Pool, cfg Config) *Engine {
	tasks := taskengine.New(db)
	return &Engine{
		store:        db,
		tasks:        tasks,
		resolver:     escalation.NewResolver(db, cfg.EscalationThreshold),
		reviewer:     review.NewReviewer(db, tasks, pool),
		retro:        retro.New(db, pool),
		pool:         pool,
		cfg:          cfg,
		workers:      make(map[string]*workerHandle),
		coordinators: make(map[string]*worktree.Coordinator),
	}
}

// Store exposes the underlying store for callers (e.g. cmd/ralph) that
// need read-only access the facade doesn't wrap.
func (e *Engine) Store() *store.DB { return e.store }

// Tasks exposes the task engine directly; task ops are a thin pass-through
// (see task.go) but some callers need the richer Filter type.
func (e *Engine) Tasks() *taskengine.Engine { return e.tasks }

// --- Outcome ops ---

// CreateOutcome creates a new root or child outcome.
func (e *Engine) CreateOutcome(name, brief, parentID string) (*models.Outcome, error) {
	now := time.Now()
	o := &models.Outcome{
		ID:              uuid.NewString(),
		Name:            name,
		Brief:           brief,
		ParentID:        parentID,
		Status:          models.OutcomeStatusActive,
		CapabilityReady: models.CapabilityNotStarted,
		GitMode:         models.GitModeNone,
		CreatedAt:       now,
		ModifiedAt:      now,
	}
	if err := e.store.CreateOutcome(o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOutcome fetches an outcome by id.
func (e *Engine) GetOutcome(id string) (*models.Outcome, error) {
	return e.store.GetOutcome(id)
}

// ListOutcomes returns every outcome.
func (e *Engine) ListOutcomes() ([]*models.Outcome, error) {
	return e.store.ListOutcomes()
}

// UpdateIntent replaces an outcome's intent. If the new intent (together
// with the existing design) changes the outcome's capability fingerprint,
// CapabilityReady resets to not_started so capability planning reruns
// (spec §3 Outcome invariant).
func (e *Engine) UpdateIntent(outcomeID string, intent models.Intent) (*models.Outcome, error) {
	o, err := e.store.GetOutcome(outcomeID)
	if err != nil {
		return nil, err
	}
	before := o.IntentFingerprint()
	o.Intent = intent
	if o.IntentFingerprint() != before {
		o.CapabilityReady = models.CapabilityNotStarted
	}
	o.ModifiedAt = time.Now()
	if err := e.store.UpdateOutcome(o); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateDesign replaces an outcome's design doc, resetting
// CapabilityReady under the same fingerprint rule as UpdateIntent.
func (e *Engine) UpdateDesign(outcomeID string, design models.DesignDoc) (*models.Outcome, error) {
	o, err := e.store.GetOutcome(outcomeID)
	if err != nil {
		return nil, err
	}
	before := o.IntentFingerprint()
	o.Design = design
	if o.IntentFingerprint() != before {
		o.CapabilityReady = models.CapabilityNotStarted
	}
	o.ModifiedAt = time.Now()
	if err := e.store.UpdateOutcome(o); err != nil {
		return nil, err
	}
	return o, nil
}

// IntentOptimize replaces an outcome's structured intent with one derived
// from free text (spec §6 outcome op "intent-optimize").
func (e *Engine) IntentOptimize(outcomeID, freeText string) (*models.Outcome, error) {
	return e.UpdateIntent(outcomeID, intent.FromText(freeText))
}

// ApproachOptimize appends a new design-doc version built from free text
// (spec §6 outcome op "approach-optimize"). The design doc is versioned
// monotonically (spec §3 Outcome: "latest design doc ... monotonic
// version"), so this always increments rather than overwrites in place.
func (e *Engine) ApproachOptimize(outcomeID, freeText string) (*models.Outcome, error) {
	o, err := e.store.GetOutcome(outcomeID)
	if err != nil {
		return nil, err
	}
	return e.UpdateDesign(outcomeID, models.DesignDoc{
		Version: o.Design.Version + 1,
		Text:    freeText,
	})
}

// OutcomeNode is one outcome plus its children, forming the forest Tree
// walks (spec §6 outcome op "tree").
type OutcomeNode struct {
	Outcome  *models.Outcome
	Children []*OutcomeNode
}

// Tree returns the forest rooted at rootID, or the entire forest (every
// root-level outcome and its descendants) when rootID is empty.
func (e *Engine) Tree(rootID string) ([]*OutcomeNode, error) {
	outcomes, err := e.store.ListOutcomes()
	if err != nil {
		return nil, err
	}

	byParent := make(map[string][]*models.Outcome)
	byID := make(map[string]*models.Outcome, len(outcomes))
	for _, o := range outcomes {
		byParent[o.ParentID] = append(byParent[o.ParentID], o)
		byID[o.ID] = o
	}

	var build func(parentID string) []*OutcomeNode
	build = func(parentID string) []*OutcomeNode {
		children := byParent[parentID]
		if len(children) == 0 {
			return nil
		}
		nodes := make([]*OutcomeNode, 0, len(children))
		for _, o := range children {
			nodes = append(nodes, &OutcomeNode{Outcome: o, Children: build(o.ID)})
		}
		return nodes
	}

	if rootID == "" {
		return build(""), nil
	}
	root, ok := byID[rootID]
	if !ok {
		return nil, notFoundOutcomeError(rootID)
	}
	return []*OutcomeNode{{Outcome: root, Children: build(rootID)}}, nil
}

// Archive marks an outcome archived and immutable. It refuses outcomes
// that still have children or any worker that is not completed or failed
// (idle, running, waiting or paused), mirroring the
// leaf-and-quiescent requirement spec §3 places on archival.
func (e *Engine) Archive(outcomeID string) error {
	o, err := e.store.GetOutcome(outcomeID)
	if err != nil {
		return err
	}
	children, err := e.store.ChildOutcomeIDs(outcomeID)
	if err != nil {
		return err
	}
	if !models.IsLeaf(len(children) > 0) {
		return notLeafError(outcomeID)
	}
	active, err := e.store.ActiveWorkerCount(outcomeID)
	if err != nil {
		return err
	}
	if active > 0 {
		return activeWorkersError(outcomeID)
	}
	o.Status = models.OutcomeStatusArchived
	o.ModifiedAt = time.Now()
	return e.store.UpdateOutcome(o)
}
