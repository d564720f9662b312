package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spiffcs/staticmap/internal/constants"
	"github.com/spiffcs/staticmap/internal/duration"
	"github.com/spiffcs/staticmap/internal/viewport"
)

// Config represents the application configuration
type Config struct {
	WaypointsFile string `yaml:"waypoints_file,omitempty"`
	CountriesFile string `yaml:"countries_file,omitempty"`

	// Top-level config sections
	API           *APIOverrides          `yaml:"api,omitempty"`
	Viewport      *ViewportOverrides     `yaml:"viewport,omitempty"`
	Notifications *NotificationOverrides `yaml:"notifications,omitempty"`
	Fetch         *FetchOverrides        `yaml:"fetch,omitempty"`
	Cache         *CacheOverrides        `yaml:"cache,omitempty"`
}

// APIOverrides configures the static maps endpoint
type APIOverrides struct {
	BaseURL *string `yaml:"base_url,omitempty"`
	Key     *string `yaml:"key,omitempty"`
	MapType *string `yaml:"map_type,omitempty"`
	Timeout *string `yaml:"timeout,omitempty"`
}

// ViewportOverrides sets the initial map position
type ViewportOverrides struct {
	Lat    *float64 `yaml:"lat,omitempty"`
	Lon    *float64 `yaml:"lon,omitempty"`
	Zoom   *int     `yaml:"zoom,omitempty"`
	Width  *int     `yaml:"width,omitempty"`
	Height *int     `yaml:"height,omitempty"`
}

// NotificationOverrides toggles the progress legs of a fetch
type NotificationOverrides struct {
	Send            *bool   `yaml:"send,omitempty"`
	Receive         *bool   `yaml:"receive,omitempty"`
	ProgressMessage *string `yaml:"progress_message,omitempty"`
}

// FetchOverrides - fetch scheduling settings
type FetchOverrides struct {
	CancelSuperseded *bool   `yaml:"cancel_superseded,omitempty"`
	ShutdownTimeout  *string `yaml:"shutdown_timeout,omitempty"`
}

// CacheOverrides - response cache settings
type CacheOverrides struct {
	Enabled *bool   `yaml:"enabled,omitempty"`
	TTL     *string `yaml:"ttl,omitempty"`
}

// Settings is the fully resolved configuration
type Settings struct {
	BaseURL string
	APIKey  string
	MapType string
	Timeout time.Duration

	Viewport viewport.Params

	NotifySend      bool
	NotifyReceive   bool
	ProgressMessage string

	CancelSuperseded bool
	ShutdownTimeout  time.Duration

	CacheEnabled bool
	CacheTTL     time.Duration

	WaypointsFile string
	CountriesFile string
}

// DefaultSettings returns the built-in settings
func DefaultSettings() Settings {
	return Settings{
		BaseURL: constants.DefaultBaseURL,
		MapType: constants.DefaultMapType,
		Timeout: constants.DefaultHTTPTimeout,

		Viewport: viewport.Params{
			Lat:    constants.DefaultLatitude,
			Lon:    constants.DefaultLongitude,
			Zoom:   constants.DefaultZoom,
			Width:  constants.DefaultWidth,
			Height: constants.DefaultHeight,
		},

		NotifySend:      false,
		NotifyReceive:   true,
		ProgressMessage: constants.DefaultProgressMessage,

		CancelSuperseded: true,
		ShutdownTimeout:  constants.DefaultShutdownTimeout,

		CacheEnabled: true,
		CacheTTL:     constants.MapCacheTTL,
	}
}

// GetSettings returns settings with user overrides merged with defaults.
// The API key falls back to the STATICMAP_API_KEY environment variable.
func (c *Config) GetSettings() Settings {
	s := DefaultSettings()
	s.WaypointsFile = c.WaypointsFile
	s.CountriesFile = c.CountriesFile

	if c.API != nil {
		a := c.API
		if a.BaseURL != nil {
			s.BaseURL = *a.BaseURL
		}
		if a.Key != nil {
			s.APIKey = *a.Key
		}
		if a.MapType != nil {
			s.MapType = *a.MapType
		}
		if a.Timeout != nil {
			s.Timeout = duration.OrDefault(*a.Timeout, s.Timeout)
		}
	}
	if s.APIKey == "" {
		s.APIKey = c.GetAPIKey()
	}

	if c.Viewport != nil {
		v := c.Viewport
		if v.Lat != nil {
			s.Viewport.Lat = *v.Lat
		}
		if v.Lon != nil {
			s.Viewport.Lon = *v.Lon
		}
		if v.Zoom != nil {
			s.Viewport.Zoom = viewport.ClampZoom(*v.Zoom)
		}
		if v.Width != nil {
			s.Viewport.Width = *v.Width
		}
		if v.Height != nil {
			s.Viewport.Height = *v.Height
		}
	}

	if c.Notifications != nil {
		n := c.Notifications
		if n.Send != nil {
			s.NotifySend = *n.Send
		}
		if n.Receive != nil {
			s.NotifyReceive = *n.Receive
		}
		if n.ProgressMessage != nil {
			s.ProgressMessage = *n.ProgressMessage
		}
	}

	if c.Fetch != nil {
		f := c.Fetch
		if f.CancelSuperseded != nil {
			s.CancelSuperseded = *f.CancelSuperseded
		}
		if f.ShutdownTimeout != nil {
			s.ShutdownTimeout = duration.OrDefault(*f.ShutdownTimeout, s.ShutdownTimeout)
		}
	}

	if c.Cache != nil {
		ca := c.Cache
		if ca.Enabled != nil {
			s.CacheEnabled = *ca.Enabled
		}
		if ca.TTL != nil {
			s.CacheTTL = duration.OrDefault(*ca.TTL, s.CacheTTL)
		}
	}

	return s
}

// GetAPIKey returns the API key from the STATICMAP_API_KEY environment variable.
func (c *Config) GetAPIKey() string {
	return os.Getenv(constants.APIKeyEnv)
}

// APIKeySource names where GetSettings found the API key: "config" for an
// api.key entry, "env" for STATICMAP_API_KEY, or "none".
func (c *Config) APIKeySource() string {
	if c.API != nil && c.API.Key != nil && *c.API.Key != "" {
		return "config"
	}
	if c.GetAPIKey() != "" {
		return "env"
	}
	return "none"
}

// MaskKey hides all but the last four characters of key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// DefaultConfigDir returns the default config directory
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".staticmap"
	}
	return filepath.Join(configDir, "staticmap")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LocalConfigPath returns the path to the local config file in the current directory
func LocalConfigPath() string {
	return ".staticmap.yaml"
}

// ConfigFileExists returns true if the config file exists on disk
func ConfigFileExists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// Load loads the configuration from disk.
// It first loads the global config from XDG config directory, then merges
// any local .staticmap.yaml config on top (local values take precedence).
func Load() (*Config, error) {
	return LoadFrom(ConfigPath(), LocalConfigPath())
}

// LoadFrom loads the global config at globalPath and merges the local config
// at localPath on top. Missing files are skipped.
func LoadFrom(globalPath, localPath string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(globalPath); err == nil {
		data, err := os.ReadFile(globalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read global config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse global config file: %w", err)
		}
	}

	if localPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(localPath); err == nil {
		data, err := os.ReadFile(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read local config file: %w", err)
		}

		var localCfg Config
		if err := yaml.Unmarshal(data, &localCfg); err != nil {
			return nil, fmt.Errorf("failed to parse local config file: %w", err)
		}

		cfg = mergeConfig(cfg, &localCfg)
	}

	return cfg, nil
}

// mergeConfig merges local config on top of global config.
// Local values take precedence; unset local values preserve global values.
func mergeConfig(global, local *Config) *Config {
	result := &Config{
		WaypointsFile: pick(local.WaypointsFile, global.WaypointsFile),
		CountriesFile: pick(local.CountriesFile, global.CountriesFile),
	}

	result.API = mergeAPI(global.API, local.API)
	result.Viewport = mergeViewport(global.Viewport, local.Viewport)
	result.Notifications = mergeNotifications(global.Notifications, local.Notifications)
	result.Fetch = mergeFetch(global.Fetch, local.Fetch)
	result.Cache = mergeCache(global.Cache, local.Cache)

	return result
}

func pick(local, global string) string {
	if local != "" {
		return local
	}
	return global
}

// override returns local when set, otherwise global.
func override[T any](global, local *T) *T {
	if local != nil {
		return local
	}
	return global
}

func mergeAPI(global, local *APIOverrides) *APIOverrides {
	if global == nil && local == nil {
		return nil
	}
	if global == nil {
		global = &APIOverrides{}
	}
	if local == nil {
		local = &APIOverrides{}
	}
	return &APIOverrides{
		BaseURL: override(global.BaseURL, local.BaseURL),
		Key:     override(global.Key, local.Key),
		MapType: override(global.MapType, local.MapType),
		Timeout: override(global.Timeout, local.Timeout),
	}
}

func mergeViewport(global, local *ViewportOverrides) *ViewportOverrides {
	if global == nil && local == nil {
		return nil
	}
	if global == nil {
		global = &ViewportOverrides{}
	}
	if local == nil {
		local = &ViewportOverrides{}
	}
	return &ViewportOverrides{
		Lat:    override(global.Lat, local.Lat),
		Lon:    override(global.Lon, local.Lon),
		Zoom:   override(global.Zoom, local.Zoom),
		Width:  override(global.Width, local.Width),
		Height: override(global.Height, local.Height),
	}
}

func mergeNotifications(global, local *NotificationOverrides) *NotificationOverrides {
	if global == nil && local == nil {
		return nil
	}
	if global == nil {
		global = &NotificationOverrides{}
	}
	if local == nil {
		local = &NotificationOverrides{}
	}
	return &NotificationOverrides{
		Send:            override(global.Send, local.Send),
		Receive:         override(global.Receive, local.Receive),
		ProgressMessage: override(global.ProgressMessage, local.ProgressMessage),
	}
}

func mergeFetch(global, local *FetchOverrides) *FetchOverrides {
	if global == nil && local == nil {
		return nil
	}
	if global == nil {
		global = &FetchOverrides{}
	}
	if local == nil {
		local = &FetchOverrides{}
	}
	return &FetchOverrides{
		CancelSuperseded: override(global.CancelSuperseded, local.CancelSuperseded),
		ShutdownTimeout:  override(global.ShutdownTimeout, local.ShutdownTimeout),
	}
}

func mergeCache(global, local *CacheOverrides) *CacheOverrides {
	if global == nil && local == nil {
		return nil
	}
	if global == nil {
		global = &CacheOverrides{}
	}
	if local == nil {
		local = &CacheOverrides{}
	}
	return &CacheOverrides{
		Enabled: override(global.Enabled, local.Enabled),
		TTL:     override(global.TTL, local.TTL),
	}
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	configDir := DefaultConfigDir()

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := ConfigPath()
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a fully populated config with all default values.
// This is useful for generating a complete config file template.
func DefaultConfig() *Config {
	s := DefaultSettings()
	timeout := s.Timeout.String()
	shutdown := s.ShutdownTimeout.String()
	ttl := "24h"
	empty := ""

	return &Config{
		API: &APIOverrides{
			BaseURL: &s.BaseURL,
			Key:     &empty,
			MapType: &s.MapType,
			Timeout: &timeout,
		},
		Viewport: &ViewportOverrides{
			Lat:    &s.Viewport.Lat,
			Lon:    &s.Viewport.Lon,
			Zoom:   &s.Viewport.Zoom,
			Width:  &s.Viewport.Width,
			Height: &s.Viewport.Height,
		},
		Notifications: &NotificationOverrides{
			Send:            &s.NotifySend,
			Receive:         &s.NotifyReceive,
			ProgressMessage: &s.ProgressMessage,
		},
		Fetch: &FetchOverrides{
			CancelSuperseded: &s.CancelSuperseded,
			ShutdownTimeout:  &shutdown,
		},
		Cache: &CacheOverrides{
			Enabled: &s.CacheEnabled,
			TTL:     &ttl,
		},
	}
}

// ToYAML returns the config as a YAML string
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// ConfigPathInfo contains information about config file paths
type ConfigPathInfo struct {
	GlobalPath   string
	GlobalExists bool
	LocalPath    string
	LocalExists  bool
}

// GetConfigPaths returns path info for both global and local configs
func GetConfigPaths() ConfigPathInfo {
	globalPath := ConfigPath()
	localPath := LocalConfigPath()

	// Get absolute path for local config
	absLocalPath, err := filepath.Abs(localPath)
	if err != nil {
		absLocalPath = localPath
	}

	_, globalErr := os.Stat(globalPath)
	_, localErr := os.Stat(localPath)

	return ConfigPathInfo{
		GlobalPath:   globalPath,
		GlobalExists: globalErr == nil,
		LocalPath:    absLocalPath,
		LocalExists:  localErr == nil,
	}
}

// MinimalConfig returns a minimal config template with comments
func MinimalConfig() string {
	return `# staticmap configuration file
# See: staticmap config defaults  (for all available options)

# Static maps API (the key can also come from STATICMAP_API_KEY)
# api:
#   key: your-api-key
#   map_type: roadmap

# Initial map position
# viewport:
#   lat: 38.931099
#   lon: -77.3489
#   zoom: 14

# Progress reporting for each leg of a fetch
notifications:
  send: false
  receive: true

# Cancel an in-flight fetch when a newer one is requested
# fetch:
#   cancel_superseded: true
`
}

// SaveTo writes content to a specific path, creating directories as needed
func SaveTo(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

// SettableKeys lists the keys accepted by Set.
var SettableKeys = []string{
	"api.base_url",
	"api.map_type",
	"api.timeout",
	"viewport.zoom",
	"notifications.send",
	"notifications.receive",
	"notifications.progress_message",
	"fetch.cancel_superseded",
	"fetch.shutdown_timeout",
	"cache.enabled",
	"cache.ttl",
}

// Set assigns a single dotted key. Values are validated before they are
// stored; the config is not saved.
func (c *Config) Set(key, value string) error {
	switch key {
	case "api.key":
		return fmt.Errorf("API keys are not written by 'config set'. Set the %s environment variable or edit the config file", constants.APIKeyEnv)
	case "api.base_url":
		c.api().BaseURL = &value
	case "api.map_type":
		c.api().MapType = &value
	case "api.timeout":
		if _, err := duration.Parse(value); err != nil {
			return err
		}
		c.api().Timeout = &value
	case "viewport.zoom":
		z, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid zoom %q: %w", value, err)
		}
		z = viewport.ClampZoom(z)
		if c.Viewport == nil {
			c.Viewport = &ViewportOverrides{}
		}
		c.Viewport.Zoom = &z
	case "notifications.send", "notifications.receive":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
		}
		if c.Notifications == nil {
			c.Notifications = &NotificationOverrides{}
		}
		if key == "notifications.send" {
			c.Notifications.Send = &b
		} else {
			c.Notifications.Receive = &b
		}
	case "notifications.progress_message":
		if c.Notifications == nil {
			c.Notifications = &NotificationOverrides{}
		}
		c.Notifications.ProgressMessage = &value
	case "fetch.cancel_superseded":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
		}
		c.fetch().CancelSuperseded = &b
	case "fetch.shutdown_timeout":
		if _, err := duration.Parse(value); err != nil {
			return err
		}
		c.fetch().ShutdownTimeout = &value
	case "cache.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
		}
		c.cache().Enabled = &b
	case "cache.ttl":
		if _, err := duration.Parse(value); err != nil {
			return err
		}
		c.cache().TTL = &value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func (c *Config) api() *APIOverrides {
	if c.API == nil {
		c.API = &APIOverrides{}
	}
	return c.API
}

func (c *Config) fetch() *FetchOverrides {
	if c.Fetch == nil {
		c.Fetch = &FetchOverrides{}
	}
	return c.Fetch
}

func (c *Config) cache() *CacheOverrides {
	if c.Cache == nil {
		c.Cache = &CacheOverrides{}
	}
	return c.Cache
}
