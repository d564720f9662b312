package cmd

// Options holds the shared command-line options for the staticmap CLI.
type Options struct {
	// Viewport overrides. Only flags that were set on the command line are
	// applied on top of the configured viewport.
	Lat    float64
	Lon    float64
	Zoom   int
	Width  int
	Height int

	Country  string // Jump to a country center before the first fetch
	Waypoint string // Jump to a saved waypoint before the first fetch

	Name    string   // Waypoint name used by the browser's "w" key
	Output  string   // Where to write the PNG
	Pan     []string // Moves applied before fetching (fetch command)
	NoCache bool

	Verbosity int
	TUI       *bool // nil = auto-detect, true = force TUI, false = disable TUI

	// Profiling options
	CPUProfile string // Write CPU profile to file
	MemProfile string // Write memory profile to file
	Trace      string // Write execution trace to file
}

// Option is a functional option for configuring Options.
type Option func(*Options)

// NewOptions creates a new Options with defaults and applies any provided options.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCountry jumps to a country before fetching.
func WithCountry(name string) Option {
	return func(o *Options) {
		o.Country = name
	}
}

// WithWaypoint jumps to a saved waypoint before fetching.
func WithWaypoint(name string) Option {
	return func(o *Options) {
		o.Waypoint = name
	}
}

// WithOutput sets the PNG output path.
func WithOutput(path string) Option {
	return func(o *Options) {
		o.Output = path
	}
}

// WithPan sets the moves applied before fetching.
func WithPan(moves ...string) Option {
	return func(o *Options) {
		o.Pan = moves
	}
}

// WithVerbosity sets the verbosity level.
func WithVerbosity(v int) Option {
	return func(o *Options) {
		o.Verbosity = v
	}
}

// WithTUI controls TUI mode (nil = auto-detect, true = force, false = disable).
func WithTUI(tui *bool) Option {
	return func(o *Options) {
		o.TUI = tui
	}
}

// WithNoCache disables the map cache.
func WithNoCache(noCache bool) Option {
	return func(o *Options) {
		o.NoCache = noCache
	}
}
