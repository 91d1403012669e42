package models

import "time"

// StreamEntry is one exported track with its resolved stream URL, or the reason it could not be resolved.
type StreamEntry struct {
	Track Track  `json:"track"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// Resolved reports whether the entry has a playable URL.
func (e StreamEntry) Resolved() bool {
	return e.URL != "" && e.Error == ""
}

// StreamExport is the result of resolving every track of an album or playlist.
type StreamExport struct {
	Kind      string        `json:"kind"` // album or playlist
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Quality   string        `json:"quality"`
	Entries   []StreamEntry `json:"entries"`
	Resolved  int           `json:"resolved"`
	Failed    int           `json:"failed"`
	CreatedAt time.Time     `json:"createdAt"`
}
