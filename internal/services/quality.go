package services

import (
	"regexp"
	"slices"
	"strings"

	"github.com/desertthunder/polychrome/internal/models"
)

const (
	QualityHiResLossless = "HI_RES_LOSSLESS"
	QualityLossless      = "LOSSLESS"
	QualityHigh          = "HIGH"
	QualityLow           = "LOW"

	DefaultQuality = QualityLossless
)

// QualityPriority lists qualities from best to worst.
var QualityPriority = []string{QualityHiResLossless, QualityLossless, QualityHigh, QualityLow}

var qualityTokens = map[string][]string{
	QualityHiResLossless: {"HI_RES_LOSSLESS", "HIRES_LOSSLESS", "HIRESLOSSLESS", "HIFI_PLUS", "HI_RES_FLAC", "HI_RES", "HIRES", "MASTER", "MASTER_QUALITY", "MQA"},
	QualityLossless:      {"LOSSLESS", "HIFI"},
	QualityHigh:          {"HIGH", "HIGH_QUALITY"},
	QualityLow:           {"LOW", "LOW_QUALITY"},
}

var nonToken = regexp.MustCompile(`[^A-Z0-9]+`)

// NormalizeQuality maps an upstream tag or user input onto a canonical quality, or "" when unrecognized.
func NormalizeQuality(value string) string {
	token := nonToken.ReplaceAllString(strings.ToUpper(strings.TrimSpace(value)), "_")
	if token == "" {
		return ""
	}

	for _, quality := range QualityPriority {
		if slices.Contains(qualityTokens[quality], token) {
			return quality
		}
	}
	return ""
}

// BestQuality picks the highest-priority quality among candidates; unknown values are ignored.
func BestQuality(candidates ...string) string {
	best, bestRank := "", len(QualityPriority)
	for _, c := range candidates {
		if rank := slices.Index(QualityPriority, c); rank >= 0 && rank < bestRank {
			best, bestRank = c, rank
		}
	}
	return best
}

// QualityFromTags derives the best quality named by media tags.
func QualityFromTags(tags []string) string {
	candidates := make([]string, 0, len(tags))
	for _, tag := range tags {
		if q := NormalizeQuality(tag); q != "" {
			candidates = append(candidates, q)
		}
	}
	return BestQuality(candidates...)
}

// TrackQuality derives the best quality from the track tags, its album tags and its declared quality.
func TrackQuality(t models.Track) string {
	var candidates []string
	if t.MediaMetadata != nil {
		candidates = append(candidates, QualityFromTags(t.MediaMetadata.Tags))
	}
	if t.Album != nil && t.Album.MediaMetadata != nil {
		candidates = append(candidates, QualityFromTags(t.Album.MediaMetadata.Tags))
	}
	candidates = append(candidates, NormalizeQuality(t.AudioQuality))
	return BestQuality(candidates...)
}

// ExtensionForQuality returns the file extension a stream of quality is delivered in.
func ExtensionForQuality(quality string) string {
	switch quality {
	case QualityLow, QualityHigh:
		return "m4a"
	default:
		return "flac"
	}
}
