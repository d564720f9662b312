package cache

import (
	"time"
)

// Version should be incremented when the cache format changes to invalidate
// old entries.
const Version = 1

// MapEntry is a cached map response.
type MapEntry struct {
	URL         string    `json:"url"`
	ContentType string    `json:"contentType"`
	Data        []byte    `json:"data"`
	CachedAt    time.Time `json:"cachedAt"`
	Version     int       `json:"version"`
}

// Stats summarizes the cache directory.
type Stats struct {
	Total int
	Valid int
	Bytes int64
}
