package staticmap

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	// decoders registered with image.Decode
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/webp"

	"github.com/spiffcs/staticmap/internal/task"
	"github.com/spiffcs/staticmap/internal/viewport"
)

// ErrNoImage is returned when saving a result that did not decode.
var ErrNoImage = errors.New("result has no decoded image")

// StatusError is a non-2xx response from the map server.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %s", e.Status)
	}
	return fmt.Sprintf("unexpected status %s: %s", e.Status, e.Body)
}

// Result is the outcome of a successful fetch. When the body is not an image
// Image is nil and Text and Reason describe what came back. A Result is not
// modified after it is delivered.
type Result struct {
	Params      viewport.Params
	URL         string
	ContentType string
	Bytes       []byte
	Image       image.Image
	Format      string
	Text        string
	Reason      string
	FromCache   bool
}

// newResult decodes data. A decode failure is not an error.
func newResult(p viewport.Params, url, contentType string, data []byte, fromCache bool) *Result {
	r := &Result{
		Params:      p,
		URL:         url,
		ContentType: contentType,
		Bytes:       data,
		FromCache:   fromCache,
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		r.Text = string(data)
		r.Reason = fmt.Sprintf("could not decode %q response as an image: %v", contentType, err)
		return r
	}
	r.Image = img
	r.Format = format
	return r
}

// HasImage reports whether the body decoded as an image.
func (r *Result) HasImage() bool {
	return r != nil && r.Image != nil
}

// SavePNG encodes the decoded image to path as PNG.
func (r *Result) SavePNG(path string) error {
	if !r.HasImage() {
		return ErrNoImage
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, r.Image); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return f.Close()
}

// OutcomeLine renders one status line for a terminal fetch outcome.
func OutcomeLine(state task.State, r *Result, err error, elapsed time.Duration) string {
	elapsed = elapsed.Round(time.Millisecond)
	switch state {
	case task.OK:
		if r == nil {
			return fmt.Sprintf("Fetch finished in %s with no result", elapsed)
		}
		source := ""
		if r.FromCache {
			source = " (cached)"
		}
		if r.HasImage() {
			b := r.Image.Bounds()
			return fmt.Sprintf("Map loaded%s: %dx%d %s at %s in %s", source, b.Dx(), b.Dy(), r.Format, r.Params, elapsed)
		}
		return fmt.Sprintf("Map response not an image%s (%s) in %s: %s", source, r.Reason, elapsed, excerpt(r.Text, 120))
	case task.Cancelled:
		return fmt.Sprintf("Map request cancelled after %s", elapsed)
	default:
		if err == nil {
			return fmt.Sprintf("Map request failed after %s", elapsed)
		}
		var ie *task.InterruptedError
		if errors.As(err, &ie) {
			return fmt.Sprintf("Map download interrupted after %s: %v", elapsed, ie.Err)
		}
		return fmt.Sprintf("Map request failed after %s: %v", elapsed, err)
	}
}

func excerpt(s string, n int) string {
	s = string(bytes.Join(bytes.Fields([]byte(s)), []byte(" ")))
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
