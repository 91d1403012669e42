// package formatter renders catalog data and stream exports (M3U, CSV, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/polychrome/internal/models"
	"github.com/desertthunder/polychrome/internal/shared"
)

// Supported export formats.
const (
	FormatM3U  = "m3u"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatText = "txt"
)

// ParseFormat normalizes a --format value, defaulting to M3U.
func ParseFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", FormatM3U, "m3u8":
		return FormatM3U, nil
	case FormatJSON, FormatCSV:
		return f, nil
	case FormatText, "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToM3U converts a StreamExport to an extended M3U playlist.
//
// Entries without a resolved URL are left out.
func ExportToM3U(export *models.StreamExport) []byte {
	var buf bytes.Buffer

	buf.WriteString("#EXTM3U\n")
	if export.Title != "" {
		buf.WriteString(fmt.Sprintf("#PLAYLIST:%s\n", export.Title))
	}

	for _, entry := range export.Entries {
		if !entry.Resolved() {
			continue
		}
		buf.WriteString(fmt.Sprintf("#EXTINF:%d,%s - %s\n", entry.Track.Duration, entry.Track.ArtistNames(), entry.Track.DisplayTitle()))
		buf.WriteString(entry.URL)
		buf.WriteString("\n")
	}

	return buf.Bytes()
}

// ExportToCSV converts a StreamExport to CSV with columns: ID, Title, Artist, Album, Duration, Quality, URL, Error
func ExportToCSV(export *models.StreamExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "Quality", "URL", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range export.Entries {
		track := entry.Track
		album := ""
		if track.Album != nil {
			album = track.Album.Title
		}
		record := []string{
			track.ID.String(),
			track.DisplayTitle(),
			track.ArtistNames(),
			album,
			strconv.Itoa(track.Duration),
			export.Quality,
			entry.URL,
			entry.Error,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a StreamExport to a numbered plain text listing.
func ExportToText(export *models.StreamExport) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s: %s\n", capitalize(export.Kind), export.Title))
	buf.WriteString(fmt.Sprintf("Quality: %s\n", export.Quality))
	buf.WriteString(fmt.Sprintf("Tracks: %d (%d resolved, %d failed)\n\n", len(export.Entries), export.Resolved, export.Failed))

	for i, entry := range export.Entries {
		buf.WriteString(fmt.Sprintf("%d. %s - %s [%s]\n", i+1, entry.Track.ArtistNames(), entry.Track.DisplayTitle(), shared.FormatDuration(entry.Track.Duration)))
		if entry.Resolved() {
			buf.WriteString(fmt.Sprintf("   %s\n", entry.URL))
		} else {
			buf.WriteString(fmt.Sprintf("   unavailable: %s\n", entry.Error))
		}
	}

	return buf.Bytes()
}

// Render encodes export in the given format.
func Render(export *models.StreamExport, format string) ([]byte, error) {
	switch format {
	case FormatM3U:
		return ExportToM3U(export), nil
	case FormatCSV:
		return ExportToCSV(export)
	case FormatText:
		return ExportToText(export), nil
	case FormatJSON:
		return shared.MarshalJSON(export, true)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidArgument, format)
	}
}

// Extension returns the file extension for format.
func Extension(format string) string {
	switch format {
	case FormatM3U:
		return ".m3u"
	case FormatCSV:
		return ".csv"
	case FormatText:
		return ".txt"
	default:
		return ".json"
	}
}

// DefaultExportPath is {kind}_{id}{ext}, e.g. album_42.m3u
func DefaultExportPath(export *models.StreamExport, format string) string {
	return fmt.Sprintf("%s_%s%s", export.Kind, sanitize(export.ID), Extension(format))
}

// WriteStreamExport renders export and writes it to path, creating parent directories as needed.
//
// Defaults to [DefaultExportPath] when path is empty. Returns the path written.
func WriteStreamExport(export *models.StreamExport, format, path string) (string, error) {
	if path == "" {
		path = DefaultExportPath(export, format)
	}

	data, err := Render(export, format)
	if err != nil {
		return "", fmt.Errorf("failed to render export: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}

func capitalize(s string) string {
	if s == "" {
		return "Export"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
