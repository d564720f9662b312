package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/spiffcs/staticmap/internal/constants"
	"github.com/spiffcs/staticmap/internal/dispatch"
	"github.com/spiffcs/staticmap/internal/format"
	"github.com/spiffcs/staticmap/internal/notify"
	"github.com/spiffcs/staticmap/internal/staticmap"
	"github.com/spiffcs/staticmap/internal/task"
	"github.com/spiffcs/staticmap/internal/viewport"
)

// Fetcher starts map fetches. *staticmap.Service implements it.
type Fetcher interface {
	RequestFetch(p viewport.Params, l notify.Listener, h task.Handler[*staticmap.Result], d dispatch.Dispatcher) (*task.Task[*staticmap.Result], error)
}

// WaypointStore is the part of *waypoint.Store the browser uses.
type WaypointStore interface {
	Add(w viewport.Waypoint) error
	List() []viewport.Waypoint
}

// Shutdowner stops outstanding tasks. *task.Manager implements it.
type Shutdowner interface {
	Shutdown(ctx context.Context) (task.ShutdownReport, error)
}

// Model is the Bubble Tea model for the map browser. All of its state is
// owned by the event loop; task callbacks reach it as callbackMsg values.
type Model struct {
	viewport   *viewport.Viewport
	fetcher    Fetcher
	manager    Shutdowner
	waypoints  WaypointStore
	dispatcher dispatch.Dispatcher

	spinner  spinner.Model
	progress progress.Model

	current  *task.Task[*staticmap.Result]
	row      *fetchRow
	outcome  string
	state    task.State
	result   *staticmap.Result
	status   []string
	requests int

	waypointIndex int
	waypointName  string
	savePath      string

	countries    viewport.CountryTable
	countryIndex int

	now          func() time.Time
	windowWidth  int
	windowHeight int
	ticking      bool
	quitting     bool
	shutdown     *shutdownMsg
}

// ModelOption is a functional option for configuring a Model.
type ModelOption func(*Model)

// WithWaypoints enables saving and cycling waypoints.
func WithWaypoints(s WaypointStore) ModelOption {
	return func(m *Model) {
		m.waypoints = s
	}
}

// WithCountries enables cycling through the country table with "c".
func WithCountries(table viewport.CountryTable) ModelOption {
	return func(m *Model) {
		m.countries = table
	}
}

// WithWaypointName fixes the name used when saving a waypoint. Without it a
// timestamp is used.
func WithWaypointName(name string) ModelOption {
	return func(m *Model) {
		m.waypointName = name
	}
}

// WithSavePath sets where "s" writes the current map.
func WithSavePath(path string) ModelOption {
	return func(m *Model) {
		if path != "" {
			m.savePath = path
		}
	}
}

// WithDispatcher sets the delivery context for task callbacks.
func WithDispatcher(d dispatch.Dispatcher) ModelOption {
	return func(m *Model) {
		m.dispatcher = d
	}
}

// WithModelClock replaces time.Now.
func WithModelClock(now func() time.Time) ModelOption {
	return func(m *Model) {
		m.now = now
	}
}

// NewModel creates a browser over v. Fetches go through f and quitting
// calls mgr.Shutdown.
func NewModel(v *viewport.Viewport, f Fetcher, mgr Shutdowner, opts ...ModelOption) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	p := progress.New(
		progress.WithScaledGradient("#60a5fa", "#1e3a8a"),
		progress.WithWidth(25),
		progress.WithoutPercentage(),
	)

	m := &Model{
		viewport: v,
		fetcher:  f,
		manager:  mgr,
		spinner:  s,
		progress: p,
		savePath: "map.png",
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Init fetches the starting position.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return fetchMsg{} },
	)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			return m, nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.viewport.ZoomIn()
			return m, m.fetch()
		case tea.MouseButtonWheelDown:
			m.viewport.ZoomOut()
			return m, m.fetch()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case callbackMsg:
		msg()
		return m, nil

	case fetchMsg:
		return m, m.fetch()

	case tickMsg:
		if m.loading() {
			return m, tick()
		}
		m.ticking = false
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.logf("Save failed: %v", msg.err)
		} else {
			m.logf("Saved map to %s", msg.path)
		}
		return m, nil

	case waypointMsg:
		if msg.err != nil {
			m.logf("Waypoint not saved: %v", msg.err)
		} else {
			m.logf("Saved waypoint %q", msg.name)
		}
		return m, nil

	case shutdownMsg:
		m.shutdown = &msg
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.quitting {
		return nil
	}
	switch msg.String() {
	case "ctrl+c", "q":
		return m.quit()
	case "up", "k":
		m.viewport.Up()
	case "down", "j":
		m.viewport.Down()
	case "left", "h":
		m.viewport.Left()
	case "right", "l":
		m.viewport.Right()
	case "+", "=":
		m.viewport.ZoomIn()
	case "-", "_":
		m.viewport.ZoomOut()
	case "g":
	case "tab":
		if !m.nextWaypoint() {
			return nil
		}
	case "c":
		if !m.nextCountry() {
			return nil
		}
	case "s":
		return m.save()
	case "w":
		return m.saveWaypoint()
	default:
		return nil
	}
	return m.fetch()
}

// fetch requests the current viewport. It is the only place RequestFetch is
// called, once per movement.
func (m *Model) fetch() tea.Cmd {
	p := m.viewport.Snapshot()
	m.requests++

	h := task.Handler[*staticmap.Result]{
		Started: func(t *task.Task[*staticmap.Result]) {
			if m.isCurrent(t) && m.row != nil {
				m.row.State = task.Running
				m.row.Started = m.now()
			}
		},
		OK: func(t *task.Task[*staticmap.Result], r *staticmap.Result, elapsed time.Duration) {
			m.finish(t, task.OK, r, nil, elapsed)
		},
		Error: func(t *task.Task[*staticmap.Result], err error, elapsed time.Duration) {
			m.finish(t, task.Error, nil, err, elapsed)
		},
		Cancelled: func(t *task.Task[*staticmap.Result], elapsed time.Duration) {
			m.finish(t, task.Cancelled, nil, nil, elapsed)
		},
	}

	t, err := m.fetcher.RequestFetch(p, m.onEvent, h, m.dispatcher)
	if err != nil {
		m.logf("Map request refused: %v", err)
		return nil
	}
	m.current = t
	row := newFetchRow(t.ID(), t.Name(), t.Channel().ProgressMessage())
	m.row = &row
	m.logf("Requested %s", format.Coordinates(p.Lat, p.Lon))
	if m.ticking {
		return nil
	}
	m.ticking = true
	return tick()
}

func (m *Model) isCurrent(t *task.Task[*staticmap.Result]) bool {
	return m.current != nil && t != nil && t.ID() == m.current.ID()
}

func (m *Model) loading() bool {
	return m.row != nil && !m.row.State.Terminal()
}

// finish records an outcome. Superseded fetches still get their line in the
// status log but do not replace the current result.
func (m *Model) finish(t *task.Task[*staticmap.Result], state task.State, r *staticmap.Result, err error, elapsed time.Duration) {
	line := staticmap.OutcomeLine(state, r, err, elapsed)
	m.logf("%s", line)
	if !m.isCurrent(t) {
		return
	}
	if m.row != nil {
		m.row.State = state
	}
	m.state = state
	m.outcome = line
	if state == task.OK {
		m.result = r
	}
}

func (m *Model) onEvent(e notify.Event) {
	if e.Category == notify.Progress && e.Direction == notify.Receive {
		if m.row != nil && !m.row.State.Terminal() {
			m.row.Percent = e.Percent
		}
		return
	}
	if e.Category == notify.Progress {
		return
	}
	m.logf("%s", e.String())
}

func (m *Model) nextWaypoint() bool {
	if m.waypoints == nil {
		return false
	}
	list := m.waypoints.List()
	if len(list) == 0 {
		m.logf("No saved waypoints")
		return false
	}
	w := list[m.waypointIndex%len(list)]
	m.waypointIndex = (m.waypointIndex + 1) % len(list)
	if err := m.viewport.JumpToWaypoint(w); err != nil {
		m.logf("%v", err)
		return false
	}
	m.logf("Jumped to waypoint %q", w.Name)
	return true
}

// nextCountry jumps to the next country in alphabetical order.
func (m *Model) nextCountry() bool {
	names := m.countries.Names()
	if len(names) == 0 {
		m.logf("No countries loaded")
		return false
	}
	name := names[m.countryIndex%len(names)]
	m.countryIndex = (m.countryIndex + 1) % len(names)
	if err := m.viewport.JumpToCountry(m.countries, name); err != nil {
		m.logf("%v", err)
		return false
	}
	m.logf("Jumped to %s", name)
	return true
}

func (m *Model) save() tea.Cmd {
	if !m.result.HasImage() {
		m.logf("No map image to save")
		return nil
	}
	r, path := m.result, m.savePath
	return func() tea.Msg {
		return savedMsg{path: path, err: r.SavePNG(path)}
	}
}

func (m *Model) saveWaypoint() tea.Cmd {
	if m.waypoints == nil {
		m.logf("Waypoints are not available")
		return nil
	}
	name := m.waypointName
	if name == "" {
		name = m.now().Format("2006-01-02 15:04:05")
	}
	p := m.viewport.Snapshot()
	store := m.waypoints
	return func() tea.Msg {
		return waypointMsg{name: name, err: store.Add(viewport.NewWaypoint(name, p.Lat, p.Lon))}
	}
}

func (m *Model) quit() tea.Cmd {
	m.quitting = true
	mgr := m.manager
	if mgr == nil {
		return tea.Quit
	}
	return func() tea.Msg {
		report, err := mgr.Shutdown(context.Background())
		return shutdownMsg{report: report, err: err}
	}
}

func (m *Model) logf(msg string, args ...any) {
	m.status = append(m.status, fmt.Sprintf(msg, args...))
	if over := len(m.status) - 4*constants.StatusLogLines; over > 0 {
		m.status = m.status[over:]
	}
}

// Result returns the last map loaded by the current fetch.
func (m *Model) Result() *staticmap.Result {
	return m.result
}

// Outcome returns the last outcome line of the current fetch and its state.
func (m *Model) Outcome() (string, task.State) {
	return m.outcome, m.state
}

// Requests returns how many fetches have been requested.
func (m *Model) Requests() int {
	return m.requests
}

// ShutdownErr returns the error from the Shutdown that ended the program.
func (m *Model) ShutdownErr() error {
	if m.shutdown == nil {
		return nil
	}
	return m.shutdown.err
}

// View renders the model.
func (m *Model) View() string {
	width := m.windowWidth
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	p := m.viewport.Snapshot()
	b.WriteString(fmt.Sprintf("  %s %s %s\n",
		titleStyle.Render("staticmap"),
		coordStyle.Render(format.Coordinates(p.Lat, p.Lon)),
		messageStyle.Render(fmt.Sprintf("zoom %d  %dx%d", p.Zoom, p.Width, p.Height)),
	))

	if m.row != nil {
		b.WriteString(format.Truncate(m.row.View(m.spinner.View(), m.progress, m.now()), width))
		b.WriteString("\n")
	}

	if m.outcome != "" {
		b.WriteString("  " + outcomeStyle(m.state).Render(format.Truncate(m.outcome, width-2)))
		b.WriteString("\n")
	}

	if len(m.status) > 0 {
		b.WriteString("\n")
		for _, line := range format.FitLines(m.status, width-2, constants.StatusLogLines) {
			b.WriteString(logStyle.Render(line))
			b.WriteString("\n")
		}
	}

	if m.quitting {
		b.WriteString(footerStyle.Render("  Shutting down..."))
	} else {
		b.WriteString(footerStyle.Render("  ←↑↓→/hjkl pan  +/- zoom  g reload  s save  w waypoint  tab next waypoint  c next country  q quit"))
	}
	b.WriteString("\n")

	return b.String()
}
