// Package notify implements the progress notification channel attached to a
// running task. A channel has two independent legs, one for the outbound
// request and one for the inbound response.
package notify

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spiffcs/staticmap/internal/dispatch"
)

// ErrInterrupted marks a failure caused by the underlying I/O stream being
// closed or broken before it finished.
var ErrInterrupted = errors.New("underlying I/O stream interrupted")

// Direction identifies a leg of the channel.
type Direction int

const (
	Send Direction = iota
	Receive
)

func (d Direction) String() string {
	switch d {
	case Send:
		return "send"
	case Receive:
		return "receive"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

func (d Direction) valid() bool {
	return d == Send || d == Receive
}

// Category is the kind of a notification event.
type Category int

const (
	Progress Category = iota
	Status
	StreamClosed
)

func (c Category) String() string {
	switch c {
	case Progress:
		return "progress"
	case Status:
		return "status"
	case StreamClosed:
		return "stream closed"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Event is a single notification. Percent is only meaningful for Progress.
type Event struct {
	Category  Category
	Percent   int
	Message   string
	Direction Direction
}

// String formats the event as a status line.
func (e Event) String() string {
	switch e.Category {
	case Progress:
		if e.Message == "" {
			return fmt.Sprintf("[%s] %d%%", e.Direction, e.Percent)
		}
		return fmt.Sprintf("[%s] %s %d%%", e.Direction, e.Message, e.Percent)
	case StreamClosed:
		return fmt.Sprintf("[%s] stream closed", e.Direction)
	default:
		return fmt.Sprintf("[%s] %s", e.Direction, e.Message)
	}
}

// Listener receives events.
type Listener func(Event)

// Via wraps l so every event is delivered through d instead of on the
// publishing goroutine.
func Via(d dispatch.Dispatcher, l Listener) Listener {
	if d == nil {
		return l
	}
	return func(e Event) {
		d.Dispatch(func() { l(e) })
	}
}

// Subscription identifies a subscribed listener.
type Subscription struct {
	id  uint64
	dir Direction
}

type subscriber struct {
	id       uint64
	listener Listener
}

// Channel fans events out to subscribers, separately per leg. The zero value
// is not usable; use New.
type Channel struct {
	mu     sync.Mutex
	nextID uint64
	subs   [2][]subscriber

	enabled     [2]atomic.Bool
	closeOnce   [2]sync.Once
	detached    atomic.Bool
	progressMsg atomic.Value
}

// New creates a channel with both legs enabled.
func New() *Channel {
	c := &Channel{}
	c.enabled[Send].Store(true)
	c.enabled[Receive].Store(true)
	c.progressMsg.Store("")
	return c
}

// Subscribe adds l to the given leg. Listeners are called in subscription
// order.
func (c *Channel) Subscribe(dir Direction, l Listener) Subscription {
	if !dir.valid() || l == nil {
		return Subscription{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.subs[dir] = append(c.subs[dir], subscriber{id: c.nextID, listener: l})
	return Subscription{id: c.nextID, dir: dir}
}

// Unsubscribe removes a listener. Unknown subscriptions are ignored.
func (c *Channel) Unsubscribe(s Subscription) {
	if s.id == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.subs[s.dir]
	for i, sub := range subs {
		if sub.id == s.id {
			// copy so publishers holding the old slice are unaffected
			next := make([]subscriber, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			c.subs[s.dir] = append(next, subs[i+1:]...)
			return
		}
	}
}

// UnsubscribeAll removes every listener from both legs.
func (c *Channel) UnsubscribeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[Send] = nil
	c.subs[Receive] = nil
}

// Subscribers returns the number of listeners on a leg.
func (c *Channel) Subscribers(dir Direction) int {
	if !dir.valid() {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[dir])
}

// Enable turns a leg on or off. Events already past the check in a
// concurrent Publish may still be delivered.
func (c *Channel) Enable(dir Direction, on bool) {
	if dir.valid() {
		c.enabled[dir].Store(on)
	}
}

// Enabled reports whether a leg is on.
func (c *Channel) Enabled(dir Direction) bool {
	return dir.valid() && c.enabled[dir].Load()
}

// SetProgressMessage sets the text attached to progress events produced by
// monitored streams.
func (c *Channel) SetProgressMessage(msg string) {
	c.progressMsg.Store(msg)
}

// ProgressMessage returns the text set by SetProgressMessage.
func (c *Channel) ProgressMessage() string {
	return c.progressMsg.Load().(string)
}

// Publish delivers e to every subscriber of the leg, synchronously, on the
// calling goroutine. It is a no-op for a disabled leg. StreamClosed events
// must go through CloseStream instead.
func (c *Channel) Publish(dir Direction, e Event) {
	if !dir.valid() || e.Category == StreamClosed {
		return
	}
	if !c.enabled[dir].Load() {
		return
	}
	e.Direction = dir
	c.deliver(dir, e)
}

// Progress publishes a Progress event with the channel's progress message.
func (c *Channel) Progress(dir Direction, percent int) {
	c.Publish(dir, Event{Category: Progress, Percent: clampPercent(percent), Message: c.ProgressMessage()})
}

// Status publishes a Status event.
func (c *Channel) Status(dir Direction, msg string) {
	c.Publish(dir, Event{Category: Status, Message: msg})
}

// CloseStream publishes the StreamClosed event for a leg. Only the first call
// per leg has an effect. StreamClosed is delivered even when the leg is
// disabled, so listeners always learn that no more events are coming.
func (c *Channel) CloseStream(dir Direction) {
	if !dir.valid() {
		return
	}
	c.closeOnce[dir].Do(func() {
		c.deliver(dir, Event{Category: StreamClosed, Direction: dir, Percent: 100})
	})
}

// Detach closes both streams and drops every subscriber. After Detach the
// channel delivers nothing.
func (c *Channel) Detach() {
	c.CloseStream(Send)
	c.CloseStream(Receive)
	c.detached.Store(true)
	c.UnsubscribeAll()
}

func (c *Channel) deliver(dir Direction, e Event) {
	if c.detached.Load() {
		return
	}
	c.mu.Lock()
	subs := c.subs[dir]
	c.mu.Unlock()

	for _, s := range subs {
		s.listener(e)
	}
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
