// Package statusview renders a worker's status as a bordered terminal
// card, grounded on the teacher's internal/tui AgentCard styling but
// stripped down to a single Render call: this is a one-shot CLI print for
// "worker live-status", not a bubbletea program with its own event loop.
package statusview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcusdietz/ralph/pkg/models"
)

// WorkerStatus bundles everything one live-status print needs.
type WorkerStatus struct {
	Worker          *models.Worker
	TaskTitle       string
	LastObservation *models.Observation
}

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)

	statusStyles = map[models.WorkerStatus]lipgloss.Style{
		models.WorkerStatusRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("34")),  // green
		models.WorkerStatusIdle:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")), // gray
		models.WorkerStatusWaiting:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // orange
		models.WorkerStatusPaused:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // orange
		models.WorkerStatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("28")),  // dark green
		models.WorkerStatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // red
	}
)

func row(label, value string) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

// Render renders one worker's status as a bordered card, covering the
// fields spec §6's "live-status" op calls out: iteration, current task,
// last observation.
func Render(s WorkerStatus) string {
	w := s.Worker
	statusStyle, ok := statusStyles[w.Status]
	if !ok {
		statusStyle = valueStyle
	}

	lines := []string{
		valueStyle.Render(w.Name) + "  " + statusStyle.Render(string(w.Status)),
		row("iteration", fmt.Sprintf("%d", w.Iteration)),
	}
	if s.TaskTitle != "" {
		lines = append(lines, row("task", s.TaskTitle))
	}
	if s.LastObservation != nil {
		lines = append(lines, row("quality", fmt.Sprintf("%s (%d)", s.LastObservation.Quality, s.LastObservation.AlignmentScore)))
	}
	if w.ProgressSummary != "" {
		lines = append(lines, row("progress", w.ProgressSummary))
	}

	return borderStyle.Render(strings.Join(lines, "\n"))
}
