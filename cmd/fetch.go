package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/spiffcs/staticmap/internal/dispatch"
	"github.com/spiffcs/staticmap/internal/format"
	"github.com/spiffcs/staticmap/internal/log"
	"github.com/spiffcs/staticmap/internal/notify"
	"github.com/spiffcs/staticmap/internal/staticmap"
	"github.com/spiffcs/staticmap/internal/task"
	"github.com/spiffcs/staticmap/internal/viewport"
)

// fetchOutcome is what the lifecycle callbacks observed.
type fetchOutcome struct {
	state   task.State
	result  *staticmap.Result
	err     error
	elapsed time.Duration
}

// NewCmdFetch creates the fetch command.
func NewCmdFetch() *cobra.Command {
	opts := NewOptions()

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a single map and print the outcome",
		Long: `Fetches one map image for the configured viewport, logging download
progress with -v. Use --pan to move before fetching and -o to save the image.

Ctrl+C cancels the request.`,
		Example: `  staticmap fetch --country France -z 5 -o france.png
  staticmap fetch --pan up,up,left -v`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log.Initialize(opts.Verbosity, os.Stderr)
			return runFetch(cmd, opts)
		},
	}

	addViewportFlags(cmd, opts)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Save the map as PNG to this path")
	cmd.Flags().StringSliceVar(&opts.Pan, "pan", nil, "Moves to apply before fetching (up, down, left, right)")

	return cmd
}

func runFetch(cmd *cobra.Command, opts *Options) error {
	moves, err := parsePan(opts.Pan)
	if err != nil {
		return err
	}

	stop, err := startProfiling(opts)
	if err != nil {
		return err
	}
	defer stop()

	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	for _, d := range moves {
		s.viewport.Move(d)
	}

	out, err := fetchOnce(cmd.Context(), s)
	if err != nil {
		return err
	}
	return reportOutcome(cmd.OutOrStdout(), out, opts.Output)
}

// fetchOnce runs one fetch under a run group with a signal actor. A signal
// shuts the manager down, which cancels the fetch.
func fetchOnce(ctx context.Context, s *session) (fetchOutcome, error) {
	q := dispatch.NewQueue()
	var out fetchOutcome

	h := task.Handler[*staticmap.Result]{
		Started: func(t *task.Task[*staticmap.Result]) {
			log.Debug("fetch started", "id", t.ID())
		},
		OK: func(_ *task.Task[*staticmap.Result], r *staticmap.Result, elapsed time.Duration) {
			out = fetchOutcome{state: task.OK, result: r, elapsed: elapsed}
		},
		Error: func(_ *task.Task[*staticmap.Result], err error, elapsed time.Duration) {
			out = fetchOutcome{state: task.Error, err: err, elapsed: elapsed}
		},
		Cancelled: func(_ *task.Task[*staticmap.Result], elapsed time.Duration) {
			out = fetchOutcome{state: task.Cancelled, elapsed: elapsed}
		},
	}

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				log.Debug("termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Fetch.
	{
		t, err := s.service.RequestFetch(s.viewport.Snapshot(), progressListener(s.settings.ProgressMessage), h, q)
		if err != nil {
			q.Close()
			return out, err
		}

		g.Add(
			func() error {
				<-t.Done()
				return nil
			},
			func(_ error) {
				report, err := s.manager.Shutdown(context.Background())
				if err != nil {
					log.Warn("shutdown incomplete", "abandoned", len(report.Abandoned), "error", err)
				}
			},
		)
	}

	err := g.Run()
	// Drain so every callback has run before out is read.
	q.Close()
	log.ProgressDone()
	return out, err
}

// progressListener logs a fetch's notifications. Receive progress becomes a
// throttled progress line.
func progressListener(label string) notify.Listener {
	if label == "" {
		label = "Loading map"
	}
	return func(e notify.Event) {
		switch {
		case e.Category == notify.Progress && e.Direction == notify.Receive:
			log.ProgressPercent(label, e.Percent)
		case e.Category == notify.Progress:
			log.Debug("progress", "direction", e.Direction.String(), "percent", e.Percent)
		case e.Category == notify.StreamClosed:
			log.Debug("stream closed", "direction", e.Direction.String())
		default:
			log.Info(e.Message, "direction", e.Direction.String())
		}
	}
}

// reportOutcome prints the outcome line and saves the image when asked.
func reportOutcome(w io.Writer, out fetchOutcome, savePath string) error {
	line := staticmap.OutcomeLine(out.state, out.result, out.err, out.elapsed)

	switch out.state {
	case task.OK:
		if out.result.HasImage() {
			fmt.Fprintln(w, color.GreenString("✓ %s", line))
		} else {
			fmt.Fprintln(w, color.YellowString("△ %s", line))
		}
	case task.Cancelled:
		fmt.Fprintln(w, color.YellowString("○ %s", line))
		return nil
	default:
		fmt.Fprintln(w, color.RedString("✗ %s", line))
		return out.err
	}

	if savePath == "" {
		return nil
	}
	if err := out.result.SavePNG(savePath); err != nil {
		if errors.Is(err, staticmap.ErrNoImage) {
			return fmt.Errorf("nothing saved to %s: %w", savePath, err)
		}
		return err
	}
	size := ""
	if info, err := os.Stat(savePath); err == nil {
		size = " (" + format.Bytes(info.Size()) + ")"
	}
	fmt.Fprintf(w, "Saved map to %s%s\n", savePath, size)
	return nil
}

// parsePan turns --pan values into directions.
func parsePan(moves []string) ([]viewport.Direction, error) {
	dirs := make([]viewport.Direction, 0, len(moves))
	for _, m := range moves {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		d, err := viewport.ParseDirection(m)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, d)
	}
	return dirs, nil
}
