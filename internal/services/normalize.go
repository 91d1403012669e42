package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/desertthunder/polychrome/internal/models"
	"github.com/desertthunder/polychrome/internal/shared"
)

// Upstream endpoints answer with either a single object or an array of loosely typed
// fragments. The helpers here decode bodies into generic trees, pick the fragments
// each endpoint needs and convert them into models.

func decodeTree(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}
	return v, nil
}

// fragments returns the top-level objects of a response body.
func fragments(tree any) []map[string]any {
	var list []any
	if arr, ok := tree.([]any); ok {
		list = arr
	} else {
		list = []any{tree}
	}

	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if obj, ok := v.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// convert re-encodes a generic fragment into T.
func convert[T any](v any) (T, error) {
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}
	return out, nil
}

// findSection returns the first object holding an "items" array.
//
// Search is depth-first: arrays in element order; for objects the value under key is
// searched before the remaining values, which are visited in sorted key order.
func findSection(source any, key string) map[string]any {
	switch v := source.(type) {
	case []any:
		for _, e := range v {
			if found := findSection(e, key); found != nil {
				return found
			}
		}
	case map[string]any:
		if _, ok := v["items"].([]any); ok {
			return v
		}
		if child, ok := v[key]; ok {
			if found := findSection(child, key); found != nil {
				return found
			}
		}
		for _, k := range sortedKeys(v) {
			if k == key {
				continue
			}
			if found := findSection(v[k], key); found != nil {
				return found
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// searchPage builds a result page from a section, defaulting counts to the item count.
func searchPage[T any](section map[string]any, convertItem func(any) (T, bool)) models.SearchResult[T] {
	var raw []any
	if section != nil {
		raw, _ = section["items"].([]any)
	}

	items := make([]T, 0, len(raw))
	for _, r := range raw {
		if item, ok := convertItem(r); ok {
			items = append(items, item)
		}
	}

	return models.SearchResult[T]{
		Items:              items,
		Limit:              intField(section, "limit", len(raw)),
		Offset:             intField(section, "offset", 0),
		TotalNumberOfItems: intField(section, "totalNumberOfItems", len(raw)),
	}
}

func intField(obj map[string]any, key string, fallback int) int {
	if obj == nil {
		return fallback
	}
	switch n := obj[key].(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(n)
	}
	return fallback
}

// unwrapItem returns v["item"] when present, since listing endpoints nest entries that way.
func unwrapItem(v any) any {
	if obj, ok := v.(map[string]any); ok {
		if inner, ok := obj["item"].(map[string]any); ok {
			return inner
		}
	}
	return v
}

func has(obj map[string]any, key string) bool {
	_, ok := obj[key]
	return ok
}

// truthy mirrors loose presence checks on upstream fields: null, "", 0 and false count as absent.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case float64:
		return x != 0
	default:
		return true
	}
}

func prepareTrack(t models.Track) models.Track {
	if t.Artist == nil && len(t.Artists) > 0 {
		primary := t.Artists[0]
		t.Artist = &primary
	}
	if q := TrackQuality(t); q != "" {
		t.AudioQuality = q
	}
	return t
}

func prepareAlbum(a models.Album) models.Album {
	if a.Artist == nil && len(a.Artists) > 0 {
		primary := a.Artists[0]
		a.Artist = &primary
	}
	return a
}

func prepareArtist(a models.Artist) models.Artist {
	if a.Type == "" && len(a.ArtistTypes) > 0 {
		a.Type = a.ArtistTypes[0]
	}
	return a
}

func trackItem(v any) (models.Track, bool) {
	t, err := convert[models.Track](unwrapItem(v))
	if err != nil {
		return t, false
	}
	return prepareTrack(t), true
}

func albumItem(v any) (models.Album, bool) {
	a, err := convert[models.Album](unwrapItem(v))
	if err != nil {
		return a, false
	}
	return prepareAlbum(a), true
}

func artistItem(v any) (models.Artist, bool) {
	a, err := convert[models.Artist](unwrapItem(v))
	if err != nil {
		return a, false
	}
	return prepareArtist(a), true
}

func trackList(section map[string]any) []models.Track {
	return searchPage(section, trackItem).Items
}

// parseAlbum takes the first fragment with numberOfTracks as the album and the first with items as its tracks.
func parseAlbum(tree any) (models.AlbumDetails, error) {
	var (
		album   *models.Album
		section map[string]any
	)

	for _, entry := range fragments(tree) {
		if album == nil && has(entry, "numberOfTracks") {
			a, err := convert[models.Album](entry)
			if err != nil {
				return models.AlbumDetails{}, err
			}
			a = prepareAlbum(a)
			album = &a
		}
		if section == nil && has(entry, "items") {
			section = entry
		}
	}

	if album == nil {
		return models.AlbumDetails{}, shared.ErrAlbumNotFound
	}
	return models.AlbumDetails{Album: *album, Tracks: trackList(section)}, nil
}

// parsePlaylist takes the first fragment with uuid or numberOfTracks as the playlist.
func parsePlaylist(tree any) (models.PlaylistDetails, error) {
	var (
		playlist map[string]any
		section  map[string]any
	)

	for _, entry := range fragments(tree) {
		if playlist == nil && (has(entry, "uuid") || has(entry, "numberOfTracks")) {
			playlist = entry
		}
		if section == nil && has(entry, "items") {
			section = entry
		}
	}

	if playlist == nil {
		return models.PlaylistDetails{}, shared.ErrPlaylistNotFound
	}

	raw, err := convert[struct {
		UUID           models.ID       `json:"uuid"`
		ID             models.ID       `json:"id"`
		Title          string          `json:"title"`
		NumberOfTracks int             `json:"numberOfTracks"`
		Image          string          `json:"image"`
		Creator        *models.Creator `json:"creator"`
	}](playlist)
	if err != nil {
		return models.PlaylistDetails{}, err
	}

	p := models.Playlist{
		UUID:           raw.UUID.String(),
		Title:          raw.Title,
		NumberOfTracks: raw.NumberOfTracks,
		Image:          raw.Image,
		Creator:        raw.Creator,
	}
	if p.UUID == "" {
		p.UUID = raw.ID.String()
	}
	if p.Image == "" {
		p.Image = raw.UUID.String()
	}

	return models.PlaylistDetails{Playlist: p, Tracks: trackList(section)}, nil
}

// parseTrackLookup picks the track (has duration), the playback info (has manifest) and an optional OriginalTrackUrl.
func parseTrackLookup(tree any) (models.TrackLookup, error) {
	var (
		track       map[string]any
		info        map[string]any
		originalURL string
	)

	for _, entry := range fragments(tree) {
		if track == nil && has(entry, "duration") {
			track = entry
			continue
		}
		if info == nil && has(entry, "manifest") {
			info = entry
			continue
		}
		if originalURL == "" {
			if s, ok := entry["OriginalTrackUrl"].(string); ok {
				originalURL = s
			}
		}
	}

	if track == nil {
		return models.TrackLookup{}, fmt.Errorf("%w: track missing from lookup", shared.ErrMalformedResponse)
	}

	t, err := convert[models.Track](track)
	if err != nil {
		return models.TrackLookup{}, err
	}

	lookup := models.TrackLookup{Track: prepareTrack(t), OriginalTrackURL: originalURL}
	if info != nil {
		if lookup.Info, err = convert[models.TrackInfo](info); err != nil {
			return models.TrackLookup{}, err
		}
	}
	return lookup, nil
}

// parseArtistPrimary reads the artist record from /artist/?id=.
func parseArtistPrimary(tree any) (models.Artist, error) {
	raw := tree
	if arr, ok := tree.([]any); ok {
		if len(arr) == 0 {
			return models.Artist{}, shared.ErrArtistNotFound
		}
		raw = arr[0]
	}
	if _, ok := raw.(map[string]any); !ok {
		return models.Artist{}, shared.ErrArtistNotFound
	}

	a, err := convert[models.Artist](raw)
	if err != nil {
		return models.Artist{}, err
	}
	a = prepareArtist(a)
	if a.Name == "" {
		a.Name = "Unknown Artist"
	}
	return a, nil
}

// discography collects albums and tracks found anywhere in the /artist/?f= content.
type discography struct {
	albums     []models.Album
	albumIndex map[models.ID]int
	tracks     []models.Track
	trackIndex map[models.ID]int
}

func newDiscography() *discography {
	return &discography{albumIndex: map[models.ID]int{}, trackIndex: map[models.ID]int{}}
}

// scan walks the tree depth-first. Later duplicates replace earlier ones in place.
func (d *discography) scan(v any) {
	switch node := v.(type) {
	case []any:
		for _, e := range node {
			d.scan(e)
		}
	case map[string]any:
		item, _ := unwrapItem(node).(map[string]any)
		if item != nil && truthy(item["id"]) {
			if has(item, "numberOfTracks") {
				if a, ok := albumItem(item); ok {
					d.addAlbum(a)
				}
			}
			if truthy(item["duration"]) && truthy(item["album"]) {
				if t, ok := trackItem(item); ok {
					d.addTrack(t)
				}
			}
		}
		for _, k := range sortedKeys(node) {
			d.scan(node[k])
		}
	}
}

func (d *discography) addAlbum(a models.Album) {
	if i, ok := d.albumIndex[a.ID]; ok {
		d.albums[i] = a
		return
	}
	d.albumIndex[a.ID] = len(d.albums)
	d.albums = append(d.albums, a)
}

func (d *discography) addTrack(t models.Track) {
	if i, ok := d.trackIndex[t.ID]; ok {
		d.tracks[i] = t
		return
	}
	d.trackIndex[t.ID] = len(d.tracks)
	d.tracks = append(d.tracks, t)
}

// result sorts albums newest first and keeps the ten most popular tracks.
func (d *discography) result(limit int) ([]models.Album, []models.Track) {
	albums := append([]models.Album(nil), d.albums...)
	sort.SliceStable(albums, func(i, j int) bool {
		return releaseTime(albums[i].ReleaseDate).After(releaseTime(albums[j].ReleaseDate))
	})

	tracks := append([]models.Track(nil), d.tracks...)
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].Popularity > tracks[j].Popularity
	})
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}

	if albums == nil {
		albums = []models.Album{}
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	return albums, tracks
}

func releaseTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
