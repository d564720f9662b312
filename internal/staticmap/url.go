package staticmap

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spiffcs/staticmap/config"
	"github.com/spiffcs/staticmap/internal/viewport"
)

// BuildURL returns the static maps request URL for a viewport snapshot.
// The center is formatted as "lat,lon" without escaping the comma, which
// the API expects literally.
func BuildURL(s config.Settings, p viewport.Params) string {
	var b strings.Builder
	b.WriteString(s.BaseURL)
	if strings.Contains(s.BaseURL, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}

	fmt.Fprintf(&b, "center=%s,%s", viewport.FormatCoordinate(p.Lat), viewport.FormatCoordinate(p.Lon))
	fmt.Fprintf(&b, "&zoom=%d", p.Zoom)
	fmt.Fprintf(&b, "&size=%dx%d", p.Width, p.Height)
	if s.MapType != "" {
		b.WriteString("&maptype=" + url.QueryEscape(s.MapType))
	}
	b.WriteString("&sensor=false")
	if s.APIKey != "" {
		b.WriteString("&key=" + url.QueryEscape(s.APIKey))
	}
	return b.String()
}
