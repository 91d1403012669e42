package formatter

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/desertthunder/polychrome/internal/mirrors"
	"github.com/desertthunder/polychrome/internal/models"
	"github.com/desertthunder/polychrome/internal/shared"
)

// TrackListing renders tracks as an aligned table: #, ID, Artist, Title, Length, Quality
func TrackListing(tracks []models.Track) []byte {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "#\tID\tARTIST\tTITLE\tLENGTH\tQUALITY")
	for i, t := range tracks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, t.ID, t.ArtistNames(), t.DisplayTitle(), shared.FormatDuration(t.Duration), t.AudioQuality)
	}
	w.Flush()
	return buf.Bytes()
}

// AlbumListing renders albums as an aligned table: ID, Artist, Title, Tracks, Released
func AlbumListing(albums []models.Album) []byte {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "ID\tARTIST\tTITLE\tTRACKS\tRELEASED")
	for _, a := range albums {
		artist := "Unknown Artist"
		if a.Artist != nil && a.Artist.Name != "" {
			artist = a.Artist.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", a.ID, artist, a.Title, a.NumberOfTracks, a.ReleaseDate)
	}
	w.Flush()
	return buf.Bytes()
}

// ArtistListing renders artists as an aligned table: ID, Name, Type, Popularity
func ArtistListing(artists []models.Artist) []byte {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "ID\tNAME\tTYPE\tPOPULARITY")
	for _, a := range artists {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", a.ID, a.Name, a.Type, a.Popularity)
	}
	w.Flush()
	return buf.Bytes()
}

// MirrorListing renders ranked host records in order, marking relayed and unreachable hosts.
func MirrorListing(records []mirrors.HostRecord) []byte {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "#\tHOST\tLATENCY\tROUTE")
	for i, r := range records {
		route := "direct"
		if r.Relayed {
			route = "relay"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, r.URL, shared.FormatLatency(r.Latency, r.Reachable()), route)
	}
	w.Flush()
	return buf.Bytes()
}

// LibraryListing renders local playlists: ID, Name, Tracks, Synced, Updated
func LibraryListing(playlists []models.UserPlaylist) []byte {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "ID\tNAME\tTRACKS\tSYNCED\tUPDATED")
	for _, p := range playlists {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n", p.ID, p.Name, len(p.Tracks), p.SyncedToGoogle, p.UpdatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
	return buf.Bytes()
}
