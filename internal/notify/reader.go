package notify

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// unknownSizeStep is how many bytes pass between status events when the
// stream length is unknown.
const unknownSizeStep = 64 << 10

// Reader wraps an io.Reader and reports how much of it has been consumed on
// one leg of a channel. It publishes StreamClosed when the stream ends, fails
// or is closed.
type Reader struct {
	ch    *Channel
	dir   Direction
	r     io.Reader
	total int64

	mu       sync.Mutex
	read     int64
	lastPct  int
	lastStep int64
	finished bool
}

// NewReader monitors r on the receive leg of ch. total is the expected length
// in bytes; zero or negative means unknown.
func NewReader(ch *Channel, r io.Reader, total int64) *Reader {
	return newReader(ch, Receive, r, total)
}

// NewSendReader monitors r on the send leg, for request bodies.
func NewSendReader(ch *Channel, r io.Reader, total int64) *Reader {
	return newReader(ch, Send, r, total)
}

func newReader(ch *Channel, dir Direction, r io.Reader, total int64) *Reader {
	return &Reader{
		ch:      ch,
		dir:     dir,
		r:       r,
		total:   total,
		lastPct: -1,
	}
}

// Read implements io.Reader. A read error other than io.EOF is returned
// wrapped with ErrInterrupted.
func (m *Reader) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)

	m.mu.Lock()
	m.read += int64(n)
	m.report()
	m.mu.Unlock()

	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		m.finish(true)
		return n, err
	default:
		m.finish(false)
		return n, fmt.Errorf("%w after %d bytes: %w", ErrInterrupted, m.BytesRead(), err)
	}
}

// Close closes the underlying reader if it is an io.Closer and ends the
// stream. Closing before EOF counts as an interruption for listeners, but
// Close itself only returns the underlying close error.
func (m *Reader) Close() error {
	m.finish(false)
	if c, ok := m.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// BytesRead returns the number of bytes consumed so far.
func (m *Reader) BytesRead() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read
}

// report must be called with m.mu held.
func (m *Reader) report() {
	if m.ch == nil || m.finished {
		return
	}
	if m.total > 0 {
		pct := int(m.read * 100 / m.total)
		if pct > 100 {
			pct = 100
		}
		if pct != m.lastPct {
			m.lastPct = pct
			m.ch.Progress(m.dir, pct)
		}
		return
	}
	if step := m.read / unknownSizeStep; step != m.lastStep {
		m.lastStep = step
		m.ch.Status(m.dir, fmt.Sprintf("%s %d bytes", verb(m.dir), m.read))
	}
}

func (m *Reader) finish(complete bool) {
	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return
	}
	m.finished = true
	read, lastPct := m.read, m.lastPct
	m.mu.Unlock()

	if m.ch == nil {
		return
	}
	if complete {
		if lastPct != 100 {
			m.ch.Progress(m.dir, 100)
		}
		m.ch.Status(m.dir, fmt.Sprintf("%s %d bytes", verb(m.dir), read))
	}
	m.ch.CloseStream(m.dir)
}

func verb(dir Direction) string {
	if dir == Send {
		return "sent"
	}
	return "received"
}
