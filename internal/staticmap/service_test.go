package staticmap_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiffcs/staticmap/config"
	"github.com/spiffcs/staticmap/internal/cache"
	"github.com/spiffcs/staticmap/internal/dispatch"
	"github.com/spiffcs/staticmap/internal/notify"
	"github.com/spiffcs/staticmap/internal/staticmap"
	"github.com/spiffcs/staticmap/internal/task"
	"github.com/spiffcs/staticmap/internal/viewport"
)

var testParams = viewport.Params{Lat: 38.931099, Lon: -77.3489, Zoom: 14, Width: 4, Height: 4}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, x, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fetchRecord struct {
	mu      sync.Mutex
	calls   []string
	events  []notify.Event
	result  *staticmap.Result
	err     error
	elapsed time.Duration
}

func (r *fetchRecord) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *fetchRecord) listen(e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *fetchRecord) eventsFor(dir notify.Direction, cat notify.Category) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, e := range r.events {
		if e.Direction == dir && e.Category == cat {
			out = append(out, e)
		}
	}
	return out
}

func (r *fetchRecord) handler() task.Handler[*staticmap.Result] {
	return task.Handler[*staticmap.Result]{
		BeforeStart: func(*task.Task[*staticmap.Result]) { r.add("beforeStart") },
		Started:     func(*task.Task[*staticmap.Result]) { r.add("started") },
		OK: func(_ *task.Task[*staticmap.Result], v *staticmap.Result, elapsed time.Duration) {
			r.mu.Lock()
			r.result, r.elapsed = v, elapsed
			r.mu.Unlock()
			r.add("ok")
		},
		Error: func(_ *task.Task[*staticmap.Result], err error, elapsed time.Duration) {
			r.mu.Lock()
			r.err, r.elapsed = err, elapsed
			r.mu.Unlock()
			r.add("error")
		},
		Cancelled: func(*task.Task[*staticmap.Result], time.Duration) { r.add("cancelled") },
		Stopped:   func(*task.Task[*staticmap.Result], time.Duration) { r.add("stopped") },
	}
}

func testSettings(baseURL string) config.Settings {
	s := config.DefaultSettings()
	s.BaseURL = baseURL
	s.APIKey = ""
	s.Timeout = 5 * time.Second
	return s
}

func waitTask(t *testing.T, tk *task.Task[*staticmap.Result]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tk.Wait(ctx))
}

func TestBuildURL(t *testing.T) {
	tests := map[string]struct {
		settings config.Settings
		params   viewport.Params
		exp      string
	}{
		"Default request without key": {
			settings: config.Settings{BaseURL: "https://maps.example.com/staticmap", MapType: "roadmap"},
			params:   viewport.Params{Lat: 38.931099, Lon: -77.3489, Zoom: 14, Width: 512, Height: 512},
			exp:      "https://maps.example.com/staticmap?center=38.931099,-77.3489&zoom=14&size=512x512&maptype=roadmap&sensor=false",
		},
		"Key is appended and escaped": {
			settings: config.Settings{BaseURL: "https://maps.example.com/staticmap", MapType: "satellite", APIKey: "a b"},
			params:   viewport.Params{Lat: -10, Lon: 20.5, Zoom: 3, Width: 100, Height: 50},
			exp:      "https://maps.example.com/staticmap?center=-10,20.5&zoom=3&size=100x50&maptype=satellite&sensor=false&key=a+b",
		},
		"Base URL with a query string": {
			settings: config.Settings{BaseURL: "https://maps.example.com/map?v=2"},
			params:   viewport.Params{Zoom: 0, Width: 1, Height: 1},
			exp:      "https://maps.example.com/map?v=2&center=0,0&zoom=0&size=1x1&sensor=false",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, staticmap.BuildURL(test.settings, test.params))
		})
	}
}

func TestRequestFetchImage(t *testing.T) {
	body := pngBytes(t)
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	settings := testSettings(srv.URL)
	settings.NotifySend = true
	svc := staticmap.NewService(settings, task.NewManager(), nil)

	var rec fetchRecord
	tk, err := svc.RequestFetch(testParams, rec.listen, rec.handler(), dispatch.Immediate)
	require.NoError(t, err)
	waitTask(t, tk)

	assert.Equal(t, []string{"beforeStart", "started", "ok", "stopped"}, rec.calls)
	assert.Equal(t, "HTTP GET Task", tk.Name())
	assert.Contains(t, gotQuery, "center=38.931099,-77.3489")

	require.NotNil(t, rec.result)
	assert.True(t, rec.result.HasImage())
	assert.Equal(t, "png", rec.result.Format)
	assert.Equal(t, 4, rec.result.Image.Bounds().Dx())
	assert.False(t, rec.result.FromCache)
	assert.Equal(t, testParams, rec.result.Params)

	progress := rec.eventsFor(notify.Receive, notify.Progress)
	require.NotEmpty(t, progress)
	last := progress[len(progress)-1]
	assert.Equal(t, 100, last.Percent)
	assert.Equal(t, "Loading map from Google Static Maps", last.Message)

	assert.Len(t, rec.eventsFor(notify.Receive, notify.StreamClosed), 1)
	assert.Len(t, rec.eventsFor(notify.Send, notify.StreamClosed), 1)
	sendProgress := rec.eventsFor(notify.Send, notify.Progress)
	require.NotEmpty(t, sendProgress)
	assert.Equal(t, 100, sendProgress[len(sendProgress)-1].Percent)
}

func TestRequestFetchSendLegDisabledByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pngBytes(t))
	}))
	defer srv.Close()

	svc := staticmap.NewService(testSettings(srv.URL), task.NewManager(), nil)
	var rec fetchRecord
	tk, err := svc.RequestFetch(testParams, rec.listen, rec.handler(), nil)
	require.NoError(t, err)
	waitTask(t, tk)

	assert.Empty(t, rec.eventsFor(notify.Send, notify.Progress))
	assert.Empty(t, rec.eventsFor(notify.Send, notify.Status))
	// the closing event is still delivered on a disabled leg
	assert.Len(t, rec.eventsFor(notify.Send, notify.StreamClosed), 1)
}

func TestRequestFetchNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>The Google Maps API server rejected your request.</body></html>"))
	}))
	defer srv.Close()

	svc := staticmap.NewService(testSettings(srv.URL), task.NewManager(), nil)
	var rec fetchRecord
	tk, err := svc.RequestFetch(testParams, rec.listen, rec.handler(), nil)
	require.NoError(t, err)
	waitTask(t, tk)

	assert.Equal(t, []string{"beforeStart", "started", "ok", "stopped"}, rec.calls)
	require.NotNil(t, rec.result)
	assert.False(t, rec.result.HasImage())
	assert.Contains(t, rec.result.Text, "rejected your request")
	assert.Contains(t, rec.result.Reason, "text/html")
	assert.ErrorIs(t, rec.result.SavePNG(filepath.Join(t.TempDir(), "x.png")), staticmap.ErrNoImage)

	line := staticmap.OutcomeLine(task.OK, rec.result, nil, rec.elapsed)
	assert.Contains(t, line, "not an image")
}

func TestRequestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := staticmap.NewService(testSettings(srv.URL), task.NewManager(), nil)
	var rec fetchRecord
	tk, err := svc.RequestFetch(testParams, rec.listen, rec.handler(), nil)
	require.NoError(t, err)
	waitTask(t, tk)

	assert.Equal(t, []string{"beforeStart", "started", "error", "stopped"}, rec.calls)
	var se *staticmap.StatusError
	require.ErrorAs(t, rec.err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "quota exceeded", se.Body)
	var we *task.WorkError
	assert.ErrorAs(t, rec.err, &we)

	line := staticmap.OutcomeLine(task.Error, nil, rec.err, rec.elapsed)
	assert.Contains(t, line, "500")
}

func TestRequestFetchCancelMidDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		_, _ = w.Write(bytes.Repeat([]byte{0}, 1000))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	svc := staticmap.NewService(testSettings(srv.URL), task.NewManager(), nil)

	receiving := make(chan struct{})
	var once sync.Once
	var rec fetchRecord
	listener := func(e notify.Event) {
		rec.listen(e)
		if e.Direction == notify.Receive && e.Category == notify.Progress {
			once.Do(func() { close(receiving) })
		}
	}

	tk, err := svc.RequestFetch(testParams, listener, rec.handler(), nil)
	require.NoError(t, err)

	select {
	case <-receiving:
	case <-time.After(5 * time.Second):
		t.Fatal("no receive progress before timeout")
	}
	require.NoError(t, tk.Cancel())
	waitTask(t, tk)

	assert.Equal(t, []string{"beforeStart", "started", "cancelled", "stopped"}, rec.calls)
	assert.Equal(t, task.Cancelled, tk.State())
	assert.Len(t, rec.eventsFor(notify.Receive, notify.StreamClosed), 1)
}

func TestRequestFetchConnectionCut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: image/png\r\nContent-Length: 5000\r\n\r\n")
		_, _ = buf.Write(bytes.Repeat([]byte{1}, 100))
		_ = buf.Flush()
	}))
	defer srv.Close()

	svc := staticmap.NewService(testSettings(srv.URL), task.NewManager(), nil)
	var rec fetchRecord
	tk, err := svc.RequestFetch(testParams, rec.listen, rec.handler(), nil)
	require.NoError(t, err)
	waitTask(t, tk)

	assert.Equal(t, []string{"beforeStart", "started", "error", "stopped"}, rec.calls)
	var ie *task.InterruptedError
	require.ErrorAs(t, rec.err, &ie)
	assert.ErrorIs(t, rec.err, notify.ErrInterrupted)
	assert.Contains(t, tk.History(), task.Interrupted)
	assert.Len(t, rec.eventsFor(notify.Receive, notify.StreamClosed), 1)

	line := staticmap.OutcomeLine(task.Error, nil, rec.err, rec.elapsed)
	assert.Contains(t, line, "interrupted")
}

func TestRequestFetchUsesCache(t *testing.T) {
	var hits atomic.Int32
	body := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c, err := cache.New(t.TempDir())
	require.NoError(t, err)
	svc := staticmap.NewService(testSettings(srv.URL), task.NewManager(), c)

	for i := 0; i < 2; i++ {
		var rec fetchRecord
		tk, err := svc.RequestFetch(testParams, rec.listen, rec.handler(), nil)
		require.NoError(t, err)
		waitTask(t, tk)
		require.NotNil(t, rec.result)
		assert.True(t, rec.result.HasImage())
		assert.Equal(t, i == 1, rec.result.FromCache, "fetch %d", i)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestRequestFetchCancelsSuperseded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("zoom") == "14" {
			select {
			case <-r.Context().Done():
			case <-release:
			}
			return
		}
		_, _ = w.Write(pngBytes(t))
	}))
	defer srv.Close()
	defer close(release)

	svc := staticmap.NewService(testSettings(srv.URL), task.NewManager(), nil)

	var first, second fetchRecord
	slow, err := svc.RequestFetch(testParams, first.listen, first.handler(), nil)
	require.NoError(t, err)

	next := testParams
	next.Zoom = 15
	fast, err := svc.RequestFetch(next, second.listen, second.handler(), nil)
	require.NoError(t, err)
	assert.Same(t, fast, svc.Current())

	waitTask(t, slow)
	waitTask(t, fast)
	assert.Equal(t, task.Cancelled, slow.State())
	assert.Equal(t, task.OK, fast.State())
}

func TestRequestFetchInvalidParams(t *testing.T) {
	svc := staticmap.NewService(testSettings("http://127.0.0.1:0"), task.NewManager(), nil)
	_, err := svc.RequestFetch(viewport.Params{Width: 0, Height: 10}, nil, task.Handler[*staticmap.Result]{}, nil)
	assert.Error(t, err)
}

func TestRequestFetchAfterShutdown(t *testing.T) {
	m := task.NewManager()
	_, err := m.Shutdown(context.Background())
	require.NoError(t, err)

	svc := staticmap.NewService(testSettings("http://127.0.0.1:0"), m, nil)
	_, err = svc.RequestFetch(testParams, nil, task.Handler[*staticmap.Result]{}, nil)
	assert.True(t, errors.Is(err, task.ErrShutdown))
}
