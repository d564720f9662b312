package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spiffcs/staticmap/config"
	"github.com/spiffcs/staticmap/internal/cache"
	"github.com/spiffcs/staticmap/internal/format"
)

// NewCmdCache creates the cache command with subcommands.
func NewCmdCache() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the map image cache",
	}

	cmd.AddCommand(newCmdCacheClear())
	cmd.AddCommand(newCmdCacheStats())

	return cmd
}

// newCmdCacheClear creates the cache clear subcommand.
func newCmdCacheClear() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the map image cache",
		RunE:  runCacheClear,
	}
}

// newCmdCacheStats creates the cache stats subcommand.
func newCmdCacheStats() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE:  runCacheStats,
	}
}

func openCache() (*cache.Cache, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c, err := cache.NewCache(cache.WithTTL(cfg.GetSettings().CacheTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to access cache: %w", err)
	}
	return c, nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}

	if err := c.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
	return nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}

	stats, err := c.Stats()
	if err != nil {
		return fmt.Errorf("failed to get cache stats: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Cache statistics (%s):\n", c.Dir())
	fmt.Fprintf(w, "  Maps (TTL: %s):\n", c.TTL())
	fmt.Fprintf(w, "    Total: %d\n", stats.Total)
	fmt.Fprintf(w, "    Valid: %d\n", stats.Valid)
	fmt.Fprintf(w, "    Expired: %d\n", stats.Total-stats.Valid)
	fmt.Fprintf(w, "  Size: %s\n", format.Bytes(stats.Bytes))
	return nil
}
