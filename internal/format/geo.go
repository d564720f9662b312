package format

import (
	"fmt"
	"math"
)

// Coordinates formats a position with hemisphere letters, e.g.
// "38.931099°N 77.348900°W".
func Coordinates(lat, lon float64) string {
	ns, ew := "N", "E"
	if lat < 0 {
		ns = "S"
	}
	if lon < 0 {
		ew = "W"
	}
	return fmt.Sprintf("%.6f°%s %.6f°%s", math.Abs(lat), ns, math.Abs(lon), ew)
}

// Bytes formats a byte count, e.g. "512 B", "1.5 KB", "2.0 MB".
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
