package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/polychrome/internal/mirrors"
	"github.com/desertthunder/polychrome/internal/models"
	"github.com/desertthunder/polychrome/internal/shared"
	th "github.com/desertthunder/polychrome/internal/testing"
)

func newExport() *models.StreamExport {
	return &models.StreamExport{
		Kind:    "album",
		ID:      "42",
		Title:   "Kind of Blue",
		Quality: "LOSSLESS",
		Entries: []models.StreamEntry{
			{
				Track: models.Track{
					ID:       "1",
					Title:    "So What",
					Duration: 562,
					Artist:   &models.Artist{Name: "Miles Davis"},
					Album:    &models.Album{Title: "Kind of Blue"},
				},
				URL: "https://cdn.example/so-what.flac",
			},
			{
				Track: models.Track{
					ID:       "2",
					Title:    "Freddie Freeloader",
					Duration: 589,
					Artist:   &models.Artist{Name: "Miles Davis"},
				},
				Error: "stream unavailable",
			},
			{
				Track: models.Track{
					ID:       "3",
					Title:    "Blue in Green",
					Version:  "Take 1",
					Duration: 337,
					Artists:  []models.Artist{{Name: "Miles Davis"}, {Name: "Bill Evans"}},
				},
				URL: "https://cdn.example/blue-in-green.flac",
			},
		},
		Resolved:  2,
		Failed:    1,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToM3U", func(t *testing.T) {
		output := string(ExportToM3U(newExport()))

		if !strings.HasPrefix(output, "#EXTM3U\n") {
			t.Errorf("M3U missing header, got: %s", output)
		}
		if !strings.Contains(output, "#EXTINF:562,Miles Davis - So What\nhttps://cdn.example/so-what.flac\n") {
			t.Errorf("M3U missing first entry, got: %s", output)
		}
		if !strings.Contains(output, "#EXTINF:337,Miles Davis, Bill Evans - Blue in Green (Take 1)\n") {
			t.Errorf("M3U missing credited artists or version, got: %s", output)
		}
		if strings.Contains(output, "Freddie Freeloader") {
			t.Error("M3U should skip unresolved entries")
		}
		if got := strings.Count(output, "#EXTINF"); got != 2 {
			t.Errorf("expected 2 entries, got %d", got)
		}
	})

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(newExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected header + 3 rows, got %d lines", len(lines))
		}
		if lines[0] != "ID,Title,Artist,Album,Duration,Quality,URL,Error" {
			t.Errorf("CSV missing headers, got: %s", lines[0])
		}
		if lines[1] != "1,So What,Miles Davis,Kind of Blue,562,LOSSLESS,https://cdn.example/so-what.flac," {
			t.Errorf("unexpected first row: %s", lines[1])
		}
		if !strings.HasSuffix(lines[2], ",stream unavailable") {
			t.Errorf("CSV should keep the failure reason, got: %s", lines[2])
		}
		if !strings.Contains(lines[3], `"Miles Davis, Bill Evans"`) {
			t.Errorf("CSV should quote fields with commas, got: %s", lines[3])
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		output := string(ExportToText(newExport()))

		for _, want := range []string{
			"Album: Kind of Blue",
			"Tracks: 3 (2 resolved, 1 failed)",
			"1. Miles Davis - So What [9:22]",
			"unavailable: stream unavailable",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("text export missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("Render JSON", func(t *testing.T) {
		data, err := Render(newExport(), FormatJSON)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}

		var decoded models.StreamExport
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Title != "Kind of Blue" || len(decoded.Entries) != 3 {
			t.Errorf("unexpected decoded export: %+v", decoded)
		}
		if decoded.Entries[0].Track.ID != "1" {
			t.Errorf("expected track ID 1, got %q", decoded.Entries[0].Track.ID)
		}
	})

	t.Run("Render Unknown Format", func(t *testing.T) {
		if _, err := Render(newExport(), "xspf"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", FormatM3U, false},
		{"M3U8", FormatM3U, false},
		{"json", FormatJSON, false},
		{" csv ", FormatCSV, false},
		{"text", FormatText, false},
		{"xspf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriters(t *testing.T) {
	t.Run("WriteStreamExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			t.Chdir(t.TempDir())

			path, err := WriteStreamExport(newExport(), FormatM3U, "")
			if err != nil {
				t.Fatalf("WriteStreamExport failed: %v", err)
			}
			if path != "album_42.m3u" {
				t.Errorf("expected 'album_42.m3u', got '%s'", path)
			}
			th.AssertFileExists(t, path)
		})

		t.Run("WithNestedPath", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "exports", "blue.csv")

			written, err := WriteStreamExport(newExport(), FormatCSV, path)
			if err != nil {
				t.Fatalf("WriteStreamExport failed: %v", err)
			}
			if written != path {
				t.Errorf("expected %s, got %s", path, written)
			}
			if content := th.MustReadFile(t, path); !strings.HasPrefix(content, "ID,Title") {
				t.Errorf("unexpected file content: %s", content)
			}
		})

		t.Run("SanitizesPlaylistIDs", func(t *testing.T) {
			export := newExport()
			export.Kind = "playlist"
			export.ID = "a/b:c"
			if got := DefaultExportPath(export, FormatJSON); got != "playlist_a_b_c.json" {
				t.Errorf("unexpected default path %q", got)
			}
		})
	})
}

func TestListings(t *testing.T) {
	t.Run("TrackListing", func(t *testing.T) {
		output := string(TrackListing([]models.Track{
			{ID: "1", Title: "So What", Duration: 562, AudioQuality: "LOSSLESS", Artist: &models.Artist{Name: "Miles Davis"}},
		}))
		if !strings.HasPrefix(output, "#") || !strings.Contains(output, "QUALITY") {
			t.Errorf("missing header, got: %s", output)
		}
		if !strings.Contains(output, "Miles Davis") || !strings.Contains(output, "9:22") {
			t.Errorf("missing row, got: %s", output)
		}
	})

	t.Run("AlbumListing", func(t *testing.T) {
		output := string(AlbumListing([]models.Album{{ID: "42", Title: "Kind of Blue", NumberOfTracks: 5}}))
		if !strings.Contains(output, "Unknown Artist") || !strings.Contains(output, "Kind of Blue") {
			t.Errorf("unexpected listing: %s", output)
		}
	})

	t.Run("ArtistListing", func(t *testing.T) {
		output := string(ArtistListing([]models.Artist{{ID: "7", Name: "Miles Davis", Type: "MAIN", Popularity: 90}}))
		if !strings.Contains(output, "Miles Davis") || !strings.Contains(output, "90") {
			t.Errorf("unexpected listing: %s", output)
		}
	})

	t.Run("MirrorListing", func(t *testing.T) {
		output := string(MirrorListing([]mirrors.HostRecord{
			{URL: "https://a.example", Latency: 12 * time.Millisecond},
			{URL: "https://b.example", Latency: 40 * time.Millisecond, Relayed: true},
			{URL: "https://c.example", Latency: mirrors.Unreachable, Relayed: true},
		}))
		for _, want := range []string{"12ms", "direct", "40ms", "relay", "unreachable"} {
			if !strings.Contains(output, want) {
				t.Errorf("mirror listing missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("LibraryListing", func(t *testing.T) {
		output := string(LibraryListing([]models.UserPlaylist{{
			ID:        "p1",
			Name:      "Road Trip",
			Tracks:    []models.Track{{ID: "1"}},
			UpdatedAt: time.Date(2024, 5, 6, 7, 8, 0, 0, time.UTC),
		}}))
		if !strings.Contains(output, "Road Trip") || !strings.Contains(output, "2024-05-06 07:08") {
			t.Errorf("unexpected listing: %s", output)
		}
	})
}
