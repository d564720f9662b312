package cmd

import (
	"github.com/spf13/cobra"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := NewOptions()

	rootCmd := &cobra.Command{
		Use:   "staticmap",
		Short: "Browse static map images from the terminal",
		Long: `A terminal map browser backed by a static maps HTTP API. Pan and zoom
with the keyboard; every move fetches a new image in the background and
reports its progress as it downloads.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrowse(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	// Browse flags on the root command so `staticmap` and `staticmap browse` work identically
	addBrowseFlags(rootCmd, opts)

	// Register subcommands
	rootCmd.AddCommand(NewCmdBrowse(opts))
	rootCmd.AddCommand(NewCmdFetch())
	rootCmd.AddCommand(NewCmdWaypoint())
	rootCmd.AddCommand(NewCmdCountries())
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdCache())
	rootCmd.AddCommand(NewCmdVersion())

	return rootCmd
}
