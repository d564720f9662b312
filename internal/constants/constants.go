// Package constants provides a centralized location for all configuration
// values and magic numbers used throughout the staticmap application.
package constants

import "time"

// Viewport defaults
const (
	// DefaultLatitude and DefaultLongitude are the initial map center.
	DefaultLatitude  = 38.931099
	DefaultLongitude = -77.3489

	// DefaultZoom is the initial zoom level.
	DefaultZoom = 14

	// DefaultWidth and DefaultHeight are the requested image size in pixels.
	DefaultWidth  = 512
	DefaultHeight = 512
)

// Static maps API constants
const (
	// DefaultBaseURL is the static maps endpoint.
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/staticmap"

	// DefaultMapType is the map style requested from the API.
	DefaultMapType = "roadmap"

	// APIKeyEnv is the environment variable consulted for the API key.
	APIKeyEnv = "STATICMAP_API_KEY"

	// FetchTaskName is the name given to every map fetch task.
	FetchTaskName = "HTTP GET Task"

	// DefaultProgressMessage labels progress events of a map download.
	DefaultProgressMessage = "Loading map from Google Static Maps"

	// DefaultHTTPTimeout bounds a single map request.
	DefaultHTTPTimeout = 30 * time.Second

	// ErrorBodyExcerpt is how many bytes of an error response are kept.
	ErrorBodyExcerpt = 512
)

// Task lifecycle constants
const (
	// DefaultShutdownTimeout bounds how long shutdown waits for
	// non-daemon tasks before abandoning them.
	DefaultShutdownTimeout = 5 * time.Second
)

// TUI update and display constants
const (
	// TUIUpdateInterval is the spinner tick used while a fetch is running.
	TUIUpdateInterval = 100 * time.Millisecond

	// LogThrottlePercent is the interval (in percent) at which progress
	// logs are emitted when not using the TUI.
	LogThrottlePercent = 5

	// StatusLogLines is how many status lines the TUI keeps on screen.
	StatusLogLines = 8

	// TruncationSuffixWidth is the width of the "..." suffix when truncating strings.
	TruncationSuffixWidth = 3
)

// Cache TTL constants
const (
	// MapCacheTTL is the maximum age of a cached map response.
	MapCacheTTL = 24 * time.Hour
)
