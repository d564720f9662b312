package tui

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/spiffcs/staticmap/internal/log"
	"github.com/spiffcs/staticmap/internal/viewport"
)

// Options configures the browser started by Run.
type Options struct {
	Viewport     *viewport.Viewport
	Fetcher      Fetcher
	Manager      Shutdowner
	Waypoints    WaypointStore
	WaypointName string
	SavePath     string
	Countries    viewport.CountryTable
}

// Run starts the map browser and blocks until the user quits. Outstanding
// fetches are shut down before Run returns.
func Run(ctx context.Context, o Options) error {
	model := NewModel(o.Viewport, o.Fetcher, o.Manager,
		WithWaypoints(o.Waypoints),
		WithWaypointName(o.WaypointName),
		WithSavePath(o.SavePath),
		WithCountries(o.Countries),
	)

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	d := NewProgramDispatcher(p)
	model.dispatcher = d

	_, runErr := p.Run()
	d.Close()

	// Killed or ctx cancelled: the quit path never ran.
	if model.shutdown == nil && o.Manager != nil {
		if report, err := o.Manager.Shutdown(context.Background()); err != nil {
			log.Warn("shutdown incomplete", "abandoned", len(report.Abandoned), "error", err)
		}
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return runErr
	}
	return model.ShutdownErr()
}

// ShouldUseTUI returns true if the TUI should be used based on environment.
func ShouldUseTUI() bool {
	// Check if stdout is a TTY
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}

	// Check for CI environment variables
	ciVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"JENKINS_URL",
		"TRAVIS",
		"CIRCLECI",
		"GITLAB_CI",
		"BUILDKITE",
	}

	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return false
		}
	}

	return true
}
