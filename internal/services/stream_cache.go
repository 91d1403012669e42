package services

import (
	"github.com/desertthunder/polychrome/internal/cache"
)

// DefaultStreamEntries bounds the stream URL cache.
const DefaultStreamEntries = 50

// StreamCache remembers resolved stream URLs per track and quality. Entries never expire; the oldest is evicted once full.
type StreamCache struct {
	entries *cache.MemoryCache
	max     int
}

// NewStreamCache creates a [StreamCache] holding at most maxEntries URLs.
func NewStreamCache(maxEntries int) *StreamCache {
	if maxEntries <= 0 {
		maxEntries = DefaultStreamEntries
	}
	return &StreamCache{entries: cache.NewMemoryCache(maxEntries), max: maxEntries}
}

func streamKey(id, quality string) string {
	return "stream_" + id + "_" + quality
}

func (s *StreamCache) Get(id, quality string) (string, bool) {
	e, ok := s.entries.Get(streamKey(id, quality))
	if !ok {
		return "", false
	}
	return string(e.Value), true
}

func (s *StreamCache) Set(id, quality, url string) {
	s.entries.Set(cache.Entry{Key: streamKey(id, quality), Value: []byte(url)})
}

// Prune drops the oldest entries beyond the bound and returns how many went.
func (s *StreamCache) Prune() int {
	return s.entries.Trim(s.max)
}

func (s *StreamCache) Len() int { return s.entries.Len() }

func (s *StreamCache) Clear() { s.entries.Clear() }
