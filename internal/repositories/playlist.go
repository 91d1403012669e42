package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/polychrome/internal/models"
	"github.com/desertthunder/polychrome/internal/shared"
)

const (
	LikedSongsID   = "liked-songs"
	LikedSongsName = "Liked Songs"
)

const playlistColumns = `id, name, tracks, synced_to_google, created_at, updated_at`

// PlaylistRepository persists the local playlist library.
type PlaylistRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a new playlist named name with a generated ID and optional initial tracks.
func (r *PlaylistRepository) Create(ctx context.Context, name string, tracks ...models.Track) (*models.UserPlaylist, error) {
	playlist := models.NewUserPlaylist(name)
	playlist.ID = shared.GenerateID()
	playlist.CreatedAt = r.now()
	playlist.UpdatedAt = playlist.CreatedAt
	for _, t := range tracks {
		if !playlist.HasTrack(t.ID) {
			playlist.Tracks = append(playlist.Tracks, t)
		}
	}

	if err := r.insert(ctx, r.db, playlist); err != nil {
		return nil, err
	}
	return playlist, nil
}

// EnsureLikedSongs creates the default "Liked Songs" playlist when it does not exist yet.
func (r *PlaylistRepository) EnsureLikedSongs(ctx context.Context) (*models.UserPlaylist, error) {
	playlist, err := r.Get(ctx, LikedSongsID)
	if err == nil {
		return playlist, nil
	}
	if !errors.Is(err, shared.ErrPlaylistNotFound) {
		return nil, err
	}

	playlist = models.NewUserPlaylist(LikedSongsName)
	playlist.ID = LikedSongsID
	playlist.CreatedAt = r.now()
	playlist.UpdatedAt = playlist.CreatedAt
	if err := r.insert(ctx, r.db, playlist); err != nil {
		return nil, err
	}
	return playlist, nil
}

func (r *PlaylistRepository) insert(ctx context.Context, db execer, playlist *models.UserPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	blob, err := encodeTracks(playlist.Tracks)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO user_playlists (id, name, tracks, synced_to_google, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		playlist.ID,
		playlist.Name,
		blob,
		playlist.SyncedToGoogle,
		playlist.CreatedAt,
		playlist.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}
	return nil
}

// Get retrieves a playlist by ID
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.UserPlaylist, error) {
	query := `SELECT ` + playlistColumns + ` FROM user_playlists WHERE id = ?`
	return scanPlaylist(r.db.QueryRowContext(ctx, query, id), id)
}

// List retrieves every playlist, most recently updated first.
func (r *PlaylistRepository) List(ctx context.Context) ([]models.UserPlaylist, error) {
	query := `SELECT ` + playlistColumns + ` FROM user_playlists ORDER BY updated_at DESC, name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	playlists := []models.UserPlaylist{}
	for rows.Next() {
		playlist, err := scanPlaylist(rows, "")
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, *playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

// AddTrack appends track to the playlist. Adding a track that is already present is a no-op reported as false.
func (r *PlaylistRepository) AddTrack(ctx context.Context, id string, track models.Track) (bool, error) {
	if track.ID == "" {
		return false, fmt.Errorf("%w: track ID is required", shared.ErrInvalidInput)
	}

	added := false
	err := r.modifyTracks(ctx, id, func(p *models.UserPlaylist) bool {
		if p.HasTrack(track.ID) {
			return false
		}
		p.Tracks = append(p.Tracks, track)
		added = true
		return true
	})
	return added, err
}

// RemoveTrack drops the track with trackID from the playlist, reporting whether it was present.
func (r *PlaylistRepository) RemoveTrack(ctx context.Context, id string, trackID models.ID) (bool, error) {
	removed := false
	err := r.modifyTracks(ctx, id, func(p *models.UserPlaylist) bool {
		kept := p.Tracks[:0]
		for _, t := range p.Tracks {
			if t.ID == trackID {
				removed = true
				continue
			}
			kept = append(kept, t)
		}
		p.Tracks = kept
		return removed
	})
	return removed, err
}

// modifyTracks loads, edits and stores a playlist's tracks in one transaction. fn reports whether anything changed.
func (r *PlaylistRepository) modifyTracks(ctx context.Context, id string, fn func(*models.UserPlaylist) bool) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `SELECT ` + playlistColumns + ` FROM user_playlists WHERE id = ?`
		playlist, err := scanPlaylist(tx.QueryRowContext(ctx, query, id), id)
		if err != nil {
			return err
		}

		if !fn(playlist) {
			return nil
		}

		blob, err := encodeTracks(playlist.Tracks)
		if err != nil {
			return err
		}

		update := `
			UPDATE user_playlists
			SET tracks = ?, synced_to_google = 0, updated_at = ?
			WHERE id = ?
		`
		if _, err := tx.ExecContext(ctx, update, blob, r.now(), id); err != nil {
			return fmt.Errorf("failed to update playlist tracks: %w", err)
		}
		return nil
	})
}

// Rename changes a playlist's name.
func (r *PlaylistRepository) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}

	query := `
		UPDATE user_playlists
		SET name = ?, synced_to_google = 0, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, name, r.now(), id)
	if err != nil {
		return fmt.Errorf("failed to rename playlist: %w", err)
	}
	return expectRow(result, notFound(id))
}

// MarkSynced records whether the cloud copy of the playlist is current.
func (r *PlaylistRepository) MarkSynced(ctx context.Context, id string, synced bool) error {
	query := `UPDATE user_playlists SET synced_to_google = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, synced, id)
	if err != nil {
		return fmt.Errorf("failed to mark playlist synced: %w", err)
	}
	return expectRow(result, notFound(id))
}

// Delete removes a playlist. The liked songs playlist is protected.
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	if id == LikedSongsID {
		return fmt.Errorf("%w: %s", shared.ErrProtectedPlaylist, id)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM user_playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return expectRow(result, notFound(id))
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanPlaylist scans a single row into a [models.UserPlaylist]
func scanPlaylist(row scanner, id string) (*models.UserPlaylist, error) {
	var (
		playlist models.UserPlaylist
		blob     string
	)

	err := row.Scan(&playlist.ID, &playlist.Name, &blob, &playlist.SyncedToGoogle, &playlist.CreatedAt, &playlist.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	if err := json.Unmarshal([]byte(blob), &playlist.Tracks); err != nil {
		return nil, fmt.Errorf("failed to decode tracks of playlist %s: %w", playlist.ID, err)
	}
	if playlist.Tracks == nil {
		playlist.Tracks = []models.Track{}
	}
	return &playlist, nil
}

func encodeTracks(tracks []models.Track) (string, error) {
	if tracks == nil {
		tracks = []models.Track{}
	}
	data, err := json.Marshal(tracks)
	if err != nil {
		return "", fmt.Errorf("failed to encode tracks: %w", err)
	}
	return string(data), nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
}
