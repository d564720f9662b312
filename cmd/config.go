package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/spiffcs/staticmap/config"
	"github.com/spiffcs/staticmap/internal/cache"
	"github.com/spiffcs/staticmap/internal/constants"
	"github.com/spiffcs/staticmap/internal/format"
	"github.com/spiffcs/staticmap/internal/waypoint"
)

// NewCmdConfig creates the config command with subcommands.
func NewCmdConfig() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or manage configuration",
		Long: `Show or manage configuration.

When run without arguments, shows the resolved settings a fetch would use.

Subcommands:
  init      Create a starter config file
  path      Show config, waypoint and cache locations
  defaults  Show the built-in defaults as a config file
  show      Show resolved settings (same as bare 'staticmap config')
  set       Set a configuration value`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, yaml, json)")

	cmd.AddCommand(NewCmdConfigInit())
	cmd.AddCommand(NewCmdConfigPath())
	cmd.AddCommand(NewCmdConfigDefaults())
	cmd.AddCommand(NewCmdConfigShow())
	cmd.AddCommand(NewCmdConfigSet())

	return cmd
}

// NewCmdConfigInit creates the config init subcommand.
func NewCmdConfigInit() *cobra.Command {
	var global, local bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter config file",
		Long: `Create a starter config file with the notification legs and a commented
viewport and API section.

--global writes ` + config.ConfigPath() + `
--local writes ` + config.LocalConfigPath() + ` in the current directory
Without either flag you are asked which one to create.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, global, local)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Create the global config file")
	cmd.Flags().BoolVar(&local, "local", false, "Create "+config.LocalConfigPath()+" in the current directory")

	return cmd
}

// NewCmdConfigPath creates the config path subcommand.
func NewCmdConfigPath() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config, waypoint and cache locations",
		Long: `Show every file staticmap reads or writes: the global and local config
files, the waypoints file, the countries table and the map image cache.`,
		Args: cobra.NoArgs,
		RunE: runConfigPath,
	}
}

// NewCmdConfigDefaults creates the config defaults subcommand.
func NewCmdConfigDefaults() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Show the built-in defaults as a config file",
		Long: `Print a config file holding every built-in default.

Redirect it to start from a complete file:
  staticmap config defaults > ` + config.ConfigPath(),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeConfig(cmd.OutOrStdout(), config.DefaultConfig(), outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", "Output format (yaml, json)")

	return cmd
}

// NewCmdConfigShow creates the config show subcommand.
func NewCmdConfigShow() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show resolved settings",
		Long: `Show the settings after merging defaults, the global config, the local
config and ` + constants.APIKeyEnv + `. The API key is masked and its source
is reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, yaml, json)")

	return cmd
}

// NewCmdConfigSet creates the config set subcommand.
func NewCmdConfigSet() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the global config file. Available keys:
  ` + strings.Join(config.SettableKeys, "\n  ") + `

The API key is never written here; use the ` + constants.APIKeyEnv + ` environment variable.`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	}
}

// resolvedSettings is the printable form of config.Settings.
type resolvedSettings struct {
	API struct {
		BaseURL   string `yaml:"base_url" json:"base_url"`
		Key       string `yaml:"key" json:"key"`
		KeySource string `yaml:"key_source" json:"key_source"`
		MapType   string `yaml:"map_type" json:"map_type"`
		Timeout   string `yaml:"timeout" json:"timeout"`
	} `yaml:"api" json:"api"`
	Viewport struct {
		Lat    float64 `yaml:"lat" json:"lat"`
		Lon    float64 `yaml:"lon" json:"lon"`
		Zoom   int     `yaml:"zoom" json:"zoom"`
		Width  int     `yaml:"width" json:"width"`
		Height int     `yaml:"height" json:"height"`
	} `yaml:"viewport" json:"viewport"`
	Notifications struct {
		Send            bool   `yaml:"send" json:"send"`
		Receive         bool   `yaml:"receive" json:"receive"`
		ProgressMessage string `yaml:"progress_message" json:"progress_message"`
	} `yaml:"notifications" json:"notifications"`
	Fetch struct {
		CancelSuperseded bool   `yaml:"cancel_superseded" json:"cancel_superseded"`
		ShutdownTimeout  string `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	} `yaml:"fetch" json:"fetch"`
	Cache struct {
		Enabled bool   `yaml:"enabled" json:"enabled"`
		TTL     string `yaml:"ttl" json:"ttl"`
	} `yaml:"cache" json:"cache"`
	WaypointsFile string `yaml:"waypoints_file" json:"waypoints_file"`
	CountriesFile string `yaml:"countries_file" json:"countries_file"`
}

func resolve(cfg *config.Config) resolvedSettings {
	s := cfg.GetSettings()

	var r resolvedSettings
	r.API.BaseURL = s.BaseURL
	r.API.Key = config.MaskKey(s.APIKey)
	r.API.KeySource = cfg.APIKeySource()
	r.API.MapType = s.MapType
	r.API.Timeout = s.Timeout.String()

	r.Viewport.Lat = s.Viewport.Lat
	r.Viewport.Lon = s.Viewport.Lon
	r.Viewport.Zoom = s.Viewport.Zoom
	r.Viewport.Width = s.Viewport.Width
	r.Viewport.Height = s.Viewport.Height

	r.Notifications.Send = s.NotifySend
	r.Notifications.Receive = s.NotifyReceive
	r.Notifications.ProgressMessage = s.ProgressMessage

	r.Fetch.CancelSuperseded = s.CancelSuperseded
	r.Fetch.ShutdownTimeout = s.ShutdownTimeout.String()

	r.Cache.Enabled = s.CacheEnabled
	r.Cache.TTL = s.CacheTTL.String()

	r.WaypointsFile = s.WaypointsFile
	if r.WaypointsFile == "" {
		if p, err := waypoint.DefaultPath(); err == nil {
			r.WaypointsFile = p
		}
	}
	r.CountriesFile = s.CountriesFile
	if r.CountriesFile == "" {
		r.CountriesFile = "built in"
	}
	return r
}

func runConfigShow(cmd *cobra.Command, format string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	r := resolve(cfg)
	w := cmd.OutOrStdout()

	switch format {
	case "text":
		return writeSettings(w, r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to marshal settings to YAML: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		return fmt.Errorf("invalid format: %s (must be text, yaml or json)", format)
	}
}

func writeSettings(w io.Writer, r resolvedSettings) error {
	key := r.API.Key
	if key == "" {
		key = "(not set, export " + constants.APIKeyEnv + ")"
	}
	legs := func(on bool) string {
		if on {
			return "on"
		}
		return "off"
	}

	lines := []string{
		"API",
		fmt.Sprintf("  Base URL:          %s", r.API.BaseURL),
		fmt.Sprintf("  Key:               %s [%s]", key, r.API.KeySource),
		fmt.Sprintf("  Map type:          %s", r.API.MapType),
		fmt.Sprintf("  Timeout:           %s", r.API.Timeout),
		"",
		"Viewport",
		fmt.Sprintf("  Center:            %s", format.Coordinates(r.Viewport.Lat, r.Viewport.Lon)),
		fmt.Sprintf("  Zoom:              %d", r.Viewport.Zoom),
		fmt.Sprintf("  Size:              %dx%d", r.Viewport.Width, r.Viewport.Height),
		"",
		"Notifications",
		fmt.Sprintf("  Send leg:          %s", legs(r.Notifications.Send)),
		fmt.Sprintf("  Receive leg:       %s", legs(r.Notifications.Receive)),
		fmt.Sprintf("  Progress message:  %s", r.Notifications.ProgressMessage),
		"",
		"Fetch",
		fmt.Sprintf("  Cancel superseded: %t", r.Fetch.CancelSuperseded),
		fmt.Sprintf("  Shutdown timeout:  %s", r.Fetch.ShutdownTimeout),
		"",
		"Cache",
		fmt.Sprintf("  Enabled:           %t", r.Cache.Enabled),
		fmt.Sprintf("  TTL:               %s", r.Cache.TTL),
		"",
		"Files",
		fmt.Sprintf("  Waypoints:         %s", r.WaypointsFile),
		fmt.Sprintf("  Countries:         %s", r.CountriesFile),
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "yaml":
		out, err := cfg.ToYAML()
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("invalid format: %s (must be yaml or json)", format)
	}
}

func runConfigInit(cmd *cobra.Command, global, local bool) error {
	if global && local {
		return fmt.Errorf("cannot specify both --global and --local")
	}

	paths := config.GetConfigPaths()
	out := cmd.OutOrStdout()

	var target, location string
	switch {
	case global:
		target, location = paths.GlobalPath, "global"
	case local:
		target, location = paths.LocalPath, "local"
	default:
		fmt.Fprintln(out, "Which config file should be created?")
		fmt.Fprintf(out, "  [1] Global (%s)\n", paths.GlobalPath)
		fmt.Fprintf(out, "  [2] Local  (%s)\n", paths.LocalPath)
		fmt.Fprint(out, "Choose [1/2]: ")

		choice, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && choice == "" {
			return fmt.Errorf("failed to read choice: %w", err)
		}
		switch strings.TrimSpace(choice) {
		case "1":
			target, location = paths.GlobalPath, "global"
		case "2":
			target, location = paths.LocalPath, "local"
		default:
			return fmt.Errorf("invalid choice: %q (must be 1 or 2)", strings.TrimSpace(choice))
		}
		fmt.Fprintln(out)
	}

	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'staticmap config show' to see the resolved settings", target)
	}

	if err := config.SaveTo(target, config.MinimalConfig()); err != nil {
		return err
	}

	fmt.Fprintf(out, "Created %s config file: %s\n", location, target)
	fmt.Fprintf(out, "Set the API key with %s; see 'staticmap config defaults' for every option.\n", constants.APIKeyEnv)
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	settings := cfg.GetSettings()
	paths := config.GetConfigPaths()
	out := cmd.OutOrStdout()

	waypoints := settings.WaypointsFile
	if waypoints == "" {
		if waypoints, err = waypoint.DefaultPath(); err != nil {
			return err
		}
	}
	cacheDir, err := cache.DefaultDir()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Global:    %s (%s)\n", paths.GlobalPath, existence(paths.GlobalPath))
	fmt.Fprintf(out, "  Local:     %s (%s)\n", paths.LocalPath, existence(paths.LocalPath))
	fmt.Fprintln(out, "  Load order: defaults -> global -> local -> "+constants.APIKeyEnv)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Data:")
	fmt.Fprintf(out, "  Waypoints: %s (%s)\n", waypoints, existence(waypoints))
	if settings.CountriesFile == "" {
		fmt.Fprintln(out, "  Countries: built in")
	} else {
		fmt.Fprintf(out, "  Countries: %s (%s)\n", settings.CountriesFile, existence(settings.CountriesFile))
	}
	cacheState := existence(cacheDir)
	if !settings.CacheEnabled {
		cacheState += ", disabled"
	}
	fmt.Fprintf(out, "  Cache:     %s (%s)\n", cacheDir, cacheState)
	return nil
}

func existence(path string) string {
	if _, err := os.Stat(path); err == nil {
		return "exists"
	}
	return "not found"
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFrom(config.ConfigPath(), "")
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s to %s in %s.\n", key, value, config.ConfigPath())
	return nil
}
