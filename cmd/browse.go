package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/spiffcs/staticmap/internal/log"
	"github.com/spiffcs/staticmap/internal/tui"
)

// NewCmdBrowse creates the browse command.
func NewCmdBrowse(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the map interactively (same as root staticmap)",
		Long: `Opens the interactive map browser. Arrow keys or hjkl pan, +/- or the
mouse wheel zoom, g reloads, s saves the current image, w saves the current
position as a waypoint, tab cycles saved waypoints, c cycles the country
table and q quits.

When stdout is not a terminal a single map is fetched instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrowse(cmd, opts)
		},
	}

	addBrowseFlags(cmd, opts)
	return cmd
}

// addBrowseFlags adds the browse-specific flags to a command.
func addBrowseFlags(cmd *cobra.Command, opts *Options) {
	addViewportFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.Name, "name", "", "Name for waypoints saved with w (default: timestamp)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Where s saves the map (default: map.png)")

	// TUI flag with tri-state: nil = auto, true = force, false = disable
	cmd.Flags().Var(newTUIFlag(opts), "tui", "Enable/disable the interactive browser (default: auto-detect)")
}

func runBrowse(cmd *cobra.Command, opts *Options) error {
	if !shouldUseTUI(opts) {
		log.Initialize(opts.Verbosity, os.Stderr)
		return runFetch(cmd, opts)
	}

	stop, err := startProfiling(opts)
	if err != nil {
		return err
	}
	defer stop()

	// Suppress logs while the browser owns the terminal
	log.Initialize(opts.Verbosity, io.Discard)

	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}

	o := tui.Options{
		Viewport:     s.viewport,
		Fetcher:      s.service,
		Manager:      s.manager,
		WaypointName: opts.Name,
		SavePath:     opts.Output,
		Countries:    s.countries,
	}
	if s.waypoints != nil {
		o.Waypoints = s.waypoints
	}
	return tui.Run(cmd.Context(), o)
}
