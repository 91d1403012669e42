package models

import (
	"fmt"
	"strings"
	"time"
)

// UserPlaylist is a playlist in the local library.
//
// Tracks are stored as an opaque JSON blob; SyncedToGoogle records whether the cloud copy is current.
type UserPlaylist struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Tracks         []Track   `json:"tracks"`
	SyncedToGoogle bool      `json:"syncedToGoogle"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewUserPlaylist creates an empty playlist named name.
func NewUserPlaylist(name string) *UserPlaylist {
	now := time.Now()
	return &UserPlaylist{
		Name:      strings.TrimSpace(name),
		Tracks:    []Track{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the playlist can be persisted.
func (p *UserPlaylist) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("playlist ID is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("playlist name is required")
	}
	return nil
}

// HasTrack reports whether a track with id is already in the playlist.
func (p *UserPlaylist) HasTrack(id ID) bool {
	for _, t := range p.Tracks {
		if t.ID == id {
			return true
		}
	}
	return false
}
