package capability

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/internal/store"
	"github.com/marcusdietz/ralph/internal/workspace"
	"github.com/marcusdietz/ralph/pkg/models"
)

// Scanner discovers skill and tool artifacts that have appeared in an
// outcome's workspace and records them in the store as capabilities (spec
// §3 Capability: "discovered by scanning the outcome's workspace").
type Scanner struct {
	store *store.DB
	ws    *workspace.Workspace
}

// NewScanner returns a Scanner over ws, recording discoveries in db.
func NewScanner(db *store.DB, ws *workspace.Workspace) *Scanner {
	return &Scanner{store: db, ws: ws}
}

// ScanSkills reads every markdown file in the workspace's skills directory,
// parses its frontmatter, and upserts a Capability row per file. A file
// whose frontmatter fails to parse is skipped rather than failing the scan.
func (s *Scanner) ScanSkills(outcomeID string) ([]*models.Capability, error) {
	files, err := s.ws.ListSkillFiles()
	if err != nil {
		return nil, err
	}
	return s.upsertAll(outcomeID, models.CapabilitySkill, files, s.loadSkill)
}

// ScanTools reads every executable script in the workspace's tools
// directory and upserts a Capability row per file.
func (s *Scanner) ScanTools(outcomeID string) ([]*models.Capability, error) {
	files, err := s.ws.ListToolFiles()
	if err != nil {
		return nil, err
	}
	return s.upsertAll(outcomeID, models.CapabilityTool, files, s.loadTool)
}

type loadedArtifact struct {
	name            string
	kind            models.CapabilityArtifactKind
	description     string
	triggers        []string
	requiredEnvKeys []string
}

func (s *Scanner) upsertAll(outcomeID string, capType models.CapabilityType, files []string, load func(path string) (*loadedArtifact, error)) ([]*models.Capability, error) {
	var out []*models.Capability
	for _, path := range files {
		artifact, err := load(path)
		if err != nil {
			continue
		}
		c, err := s.upsertOne(outcomeID, capType, path, artifact)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Scanner) upsertOne(outcomeID string, capType models.CapabilityType, path string, artifact *loadedArtifact) (*models.Capability, error) {
	relPath, err := filepath.Rel(s.ws.Root(), path)
	if err != nil {
		relPath = path
	}

	existing, err := s.store.GetCapabilityByRef(outcomeID, capType, artifact.name)
	switch {
	case corerr.Is(err, corerr.NotFound):
		c := &models.Capability{
			ID:              uuid.NewString(),
			OutcomeID:       outcomeID,
			Name:            artifact.name,
			Type:            capType,
			Kind:            artifact.kind,
			Description:     artifact.description,
			Triggers:        artifact.triggers,
			Path:            relPath,
			RequiredEnvKeys: artifact.requiredEnvKeys,
			Status:          models.CapabilityStatusReady,
			CreatedAt:       time.Now(),
			ModifiedAt:      time.Now(),
		}
		if err := s.store.CreateCapability(c); err != nil {
			return nil, err
		}
		return c, nil
	case err == nil:
		existing.Description = artifact.description
		existing.Triggers = artifact.triggers
		existing.RequiredEnvKeys = artifact.requiredEnvKeys
		existing.Path = relPath
		existing.ModifiedAt = time.Now()
		if err := s.store.UpdateCapability(existing); err != nil {
			return nil, err
		}
		return existing, nil
	default:
		return nil, err
	}
}

// CreateFile writes content as a new skill or tool artifact directly into
// the outcome's workspace and records it as a ready capability (spec §6
// capability op "create-file" — distinct from create-task, whose artifact
// is produced later by a worker).
func (s *Scanner) CreateFile(outcomeID string, capType models.CapabilityType, name string, content []byte) (*models.Capability, error) {
	slug := slugify(name)
	if slug == "" {
		return nil, corerr.Validationf("capability file name %q has no usable slug", name)
	}
	if err := s.ws.EnsureLayout(); err != nil {
		return nil, err
	}

	var path string
	var mode os.FileMode
	var load func(path string) (*loadedArtifact, error)
	switch capType {
	case models.CapabilitySkill:
		path = filepath.Join(s.ws.SkillsDir(), slug+".md")
		mode = 0o644
		load = s.loadSkill
	case models.CapabilityTool:
		path = filepath.Join(s.ws.ToolsDir(), slug)
		mode = 0o755
		load = s.loadTool
	default:
		return nil, corerr.Validationf("unknown capability type %q", capType)
	}

	if err := os.WriteFile(path, content, mode); err != nil {
		return nil, corerr.Wrap(corerr.Internal, "write capability file "+path, err)
	}

	artifact, err := load(path)
	if err != nil {
		return nil, err
	}
	return s.upsertOne(outcomeID, capType, path, artifact)
}

func (s *Scanner) loadSkill(path string) (*loadedArtifact, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fm, err := ParseSkillFrontmatter(content)
	if err != nil {
		return nil, err
	}
	return &loadedArtifact{
		name:            slugify(fm.Name),
		kind:            models.ArtifactKindMarkdown,
		description:     fm.Description,
		triggers:        fm.Triggers,
		requiredEnvKeys: fm.Requires,
	}, nil
}

func (s *Scanner) loadTool(path string) (*loadedArtifact, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := slugify(trimExt(filepath.Base(path)))
	if name == "" {
		return nil, corerr.Validationf("tool file %s has no usable name", path)
	}
	return &loadedArtifact{
		name:            name,
		kind:            models.ArtifactKindExecutable,
		requiredEnvKeys: ToolRequiredEnvKeys(content),
	}, nil
}

func trimExt(base string) string {
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
