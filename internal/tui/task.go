package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/spiffcs/staticmap/internal/task"
)

// fetchRow is the display state of the most recent fetch.
type fetchRow struct {
	ID      string
	Name    string
	State   task.State
	Message string
	Percent int
	Started time.Time
}

// newFetchRow creates a pending row for a fetch that has been requested.
func newFetchRow(id, name, message string) fetchRow {
	return fetchRow{
		ID:      id,
		Name:    name,
		State:   task.Created,
		Message: message,
	}
}

// View renders the row as a single line.
func (r fetchRow) View(spinnerFrame string, prog progress.Model, now time.Time) string {
	icon := StatusIcon(r.State, spinnerFrame)

	var name string
	if r.State == task.Created {
		name = taskDimStyle.Render(r.Name)
	} else {
		name = taskNameStyle.Render(r.Name)
	}

	line := fmt.Sprintf("  %s %s", icon, name)

	if r.State == task.Running {
		line += fmt.Sprintf(" %s %3d%%", prog.ViewAs(float64(r.Percent)/100), r.Percent)
		if r.Message != "" {
			line += " " + messageStyle.Render(r.Message)
		}
		if !r.Started.IsZero() {
			line += " " + taskDimStyle.Render(now.Sub(r.Started).Round(100*time.Millisecond).String())
		}
	} else if r.State != task.Created {
		line += " " + messageStyle.Render(r.State.String())
	}

	return line
}
