package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spiffcs/staticmap/config"
	"github.com/spiffcs/staticmap/internal/output"
	"github.com/spiffcs/staticmap/internal/viewport"
	"github.com/spiffcs/staticmap/internal/waypoint"
)

// NewCmdWaypoint creates the waypoint command with subcommands.
func NewCmdWaypoint() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "waypoint",
		Aliases: []string{"waypoints", "wp"},
		Short:   "Manage saved waypoints",
	}

	cmd.AddCommand(newCmdWaypointAdd())
	cmd.AddCommand(newCmdWaypointList())
	cmd.AddCommand(newCmdWaypointRemove())

	return cmd
}

func newCmdWaypointAdd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <lat> <lon>",
		Short: "Save a waypoint (an existing one with the same name is replaced)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openWaypoints()
			if err != nil {
				return err
			}
			w := viewport.Waypoint{Name: args[0], Lat: args[1], Lon: args[2]}
			if err := store.Add(w); err != nil {
				return fmt.Errorf("failed to save waypoint: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved waypoint %q to %s\n", w.Name, store.Path())
			return nil
		},
	}
}

func newCmdWaypointList() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved waypoints",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			store, err := openWaypoints()
			if err != nil {
				return err
			}
			return output.NewFormatter(f).FormatWaypoints(store.List(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Output format (table, json, markdown)")
	return cmd
}

func newCmdWaypointRemove() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Remove a saved waypoint",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openWaypoints()
			if err != nil {
				return err
			}
			if err := store.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed waypoint %q\n", args[0])
			return nil
		},
	}
}

func openWaypoints() (*waypoint.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	store, err := waypoint.NewStore(cfg.GetSettings().WaypointsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open waypoints: %w", err)
	}
	return store, nil
}
