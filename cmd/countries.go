package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spiffcs/staticmap/config"
	"github.com/spiffcs/staticmap/internal/countries"
	"github.com/spiffcs/staticmap/internal/output"
)

// NewCmdCountries creates the countries command.
func NewCmdCountries() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "countries [filter]",
		Short: "List the countries --country can jump to",
		Long: `Lists the country table, optionally filtered by a case-insensitive
substring. The table is built in unless countries_file is configured.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			table, err := countries.Resolve(cfg.GetSettings().CountriesFile)
			if err != nil {
				return fmt.Errorf("failed to load country table: %w", err)
			}
			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}
			return output.NewFormatter(f).FormatCountries(table.Filter(filter), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Output format (table, json, markdown)")
	return cmd
}
