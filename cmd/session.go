package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spiffcs/staticmap/config"
	"github.com/spiffcs/staticmap/internal/cache"
	"github.com/spiffcs/staticmap/internal/constants"
	"github.com/spiffcs/staticmap/internal/countries"
	"github.com/spiffcs/staticmap/internal/log"
	"github.com/spiffcs/staticmap/internal/staticmap"
	"github.com/spiffcs/staticmap/internal/task"
	"github.com/spiffcs/staticmap/internal/viewport"
	"github.com/spiffcs/staticmap/internal/waypoint"
)

// session bundles everything a browse or fetch run needs.
type session struct {
	settings  config.Settings
	manager   *task.Manager
	service   *staticmap.Service
	viewport  *viewport.Viewport
	waypoints *waypoint.Store
	countries viewport.CountryTable
}

// newSession loads configuration, applies flag overrides and positions the
// viewport. Missing waypoint storage or cache is logged, not fatal.
func newSession(cmd *cobra.Command, opts *Options) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	settings := cfg.GetSettings()
	settings.Viewport = applyViewportFlags(cmd, opts, settings.Viewport)
	if opts.NoCache {
		settings.CacheEnabled = false
	}
	if settings.APIKey == "" {
		log.Warn("no API key configured; requests will likely be rejected", "env", constants.APIKeyEnv)
	}

	table, err := countries.Resolve(settings.CountriesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load country table: %w", err)
	}

	store, err := waypoint.NewStore(settings.WaypointsFile)
	if err != nil {
		log.Warn("could not load waypoints", "error", err)
		store = nil
	}

	v := viewport.New(settings.Viewport)
	if opts.Country != "" {
		if err := v.JumpToCountry(table, opts.Country); err != nil {
			return nil, err
		}
	}
	if opts.Waypoint != "" {
		if store == nil {
			return nil, fmt.Errorf("waypoint %q requested but waypoints are unavailable", opts.Waypoint)
		}
		w, err := store.Get(opts.Waypoint)
		if err != nil {
			return nil, err
		}
		if err := v.JumpToWaypoint(w); err != nil {
			return nil, err
		}
	}

	var c cache.Cacher
	if settings.CacheEnabled {
		mc, err := cache.NewCache(cache.WithTTL(settings.CacheTTL))
		if err != nil {
			log.Warn("failed to initialize cache", "error", err)
		} else {
			c = mc
		}
	}

	manager := task.NewManager(task.WithShutdownTimeout(settings.ShutdownTimeout))
	return &session{
		settings:  settings,
		manager:   manager,
		service:   staticmap.NewService(settings, manager, c),
		viewport:  v,
		waypoints: store,
		countries: table,
	}, nil
}

// applyViewportFlags overrides p with the viewport flags that were set.
func applyViewportFlags(cmd *cobra.Command, opts *Options, p viewport.Params) viewport.Params {
	flags := cmd.Flags()
	if flags.Changed("lat") {
		p.Lat = opts.Lat
	}
	if flags.Changed("lon") {
		p.Lon = opts.Lon
	}
	if flags.Changed("zoom") {
		p.Zoom = viewport.ClampZoom(opts.Zoom)
	}
	if flags.Changed("width") {
		p.Width = opts.Width
	}
	if flags.Changed("height") {
		p.Height = opts.Height
	}
	return p
}

// addViewportFlags adds the flags that position the first map.
func addViewportFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "Center latitude (default from config)")
	cmd.Flags().Float64Var(&opts.Lon, "lon", 0, "Center longitude (default from config)")
	cmd.Flags().IntVarP(&opts.Zoom, "zoom", "z", 0, "Zoom level 0-19 (default from config)")
	cmd.Flags().IntVar(&opts.Width, "width", 0, "Map width in pixels (default from config)")
	cmd.Flags().IntVar(&opts.Height, "height", 0, "Map height in pixels (default from config)")
	cmd.Flags().StringVar(&opts.Country, "country", "", "Start at a country center")
	cmd.Flags().StringVar(&opts.Waypoint, "waypoint", "", "Start at a saved waypoint")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "Bypass the map cache")
	cmd.Flags().CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")

	// Profiling flags
	cmd.Flags().StringVar(&opts.CPUProfile, "cpuprofile", "", "Write CPU profile to file")
	cmd.Flags().StringVar(&opts.MemProfile, "memprofile", "", "Write memory profile to file")
	cmd.Flags().StringVar(&opts.Trace, "trace", "", "Write execution trace to file")
}
