// Package staticmap fetches static map images as background tasks.
package staticmap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync"

	"github.com/spiffcs/staticmap/config"
	"github.com/spiffcs/staticmap/internal/cache"
	"github.com/spiffcs/staticmap/internal/constants"
	"github.com/spiffcs/staticmap/internal/dispatch"
	"github.com/spiffcs/staticmap/internal/log"
	"github.com/spiffcs/staticmap/internal/notify"
	"github.com/spiffcs/staticmap/internal/task"
	"github.com/spiffcs/staticmap/internal/viewport"
)

// Service turns viewport snapshots into fetch tasks.
type Service struct {
	settings config.Settings
	manager  *task.Manager
	cache    cache.Cacher
	client   *http.Client

	mu      sync.Mutex
	current *task.Task[*Result]
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

// NewService creates a fetch service. c may be nil to disable caching.
func NewService(settings config.Settings, m *task.Manager, c cache.Cacher, opts ...Option) *Service {
	s := &Service{
		settings: settings,
		manager:  m,
		cache:    c,
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the settings the service was built with.
func (s *Service) Settings() config.Settings {
	return s.settings
}

// Current returns the most recently requested fetch, if any.
func (s *Service) Current() *task.Task[*Result] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// RequestFetch starts a fetch of the map at p. l receives the task's
// notifications on both legs and h its lifecycle callbacks; both are
// delivered through d. With cancel_superseded enabled the previous fetch is
// cancelled. Errors are returned only for requests that could not start.
func (s *Service) RequestFetch(p viewport.Params, l notify.Listener, h task.Handler[*Result], d dispatch.Dispatcher) (*task.Task[*Result], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	url := BuildURL(s.settings, p)

	t, err := task.New(s.manager, constants.FetchTaskName, task.Daemon, func(ctx context.Context, c *task.Control) (*Result, error) {
		return s.fetch(ctx, c, p, url)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch task: %w", err)
	}

	ch := t.Channel()
	ch.Enable(notify.Send, s.settings.NotifySend)
	ch.Enable(notify.Receive, s.settings.NotifyReceive)
	ch.SetProgressMessage(s.settings.ProgressMessage)
	if l != nil {
		if d == nil {
			d = dispatch.Immediate
		}
		ch.Subscribe(notify.Send, notify.Via(d, l))
		ch.Subscribe(notify.Receive, notify.Via(d, l))
	}

	s.mu.Lock()
	prev := s.current
	s.current = t
	s.mu.Unlock()
	if prev != nil && s.settings.CancelSuperseded {
		if err := prev.Cancel(); err == nil && !prev.State().Terminal() {
			log.Debug("cancelled superseded fetch", "id", prev.ID())
		}
	}

	log.Debug("requesting map", "id", t.ID(), "params", p.String(), "url", cache.StripKey(url))
	if err := t.Start(h, d); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) fetch(ctx context.Context, c *task.Control, p viewport.Params, url string) (*Result, error) {
	ch := c.Channel()
	ch.Status(notify.Send, "fetching "+cache.StripKey(url))

	if s.cache != nil {
		if entry, ok := s.cache.Get(url); ok {
			ch.Status(notify.Receive, "cached")
			ch.Progress(notify.Receive, 100)
			return newResult(p, url, entry.ContentType, entry.Data, true), nil
		}
	}

	if s.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.Timeout)
		defer cancel()
	}

	trace := &httptrace.ClientTrace{
		GetConn: func(string) {
			ch.Progress(notify.Send, 0)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				ch.Progress(notify.Send, 100)
			}
			ch.CloseStream(notify.Send)
		},
	}
	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build map request: %w", err)
	}

	resp, err := s.client.Do(req)
	ch.CloseStream(notify.Send)
	if err != nil {
		return nil, fmt.Errorf("failed to request map: %w", err)
	}

	body := notify.NewReader(ch, resp.Body, resp.ContentLength)
	defer body.Close()

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(body, constants.ErrorBodyExcerpt))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(excerpt)),
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read map response: %w", err)
	}

	result := newResult(p, url, contentType, data, false)
	if result.HasImage() && s.cache != nil {
		if err := s.cache.Set(&cache.MapEntry{URL: url, ContentType: contentType, Data: data}); err != nil {
			log.Debug("failed to cache map response", "error", err)
		}
	}
	return result, nil
}
