package services

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/desertthunder/polychrome/internal/shared"
)

var manifestURLPattern = regexp.MustCompile(`https?://[\w\-.~:?#\[@!$&'()*+,;=%/]+`)

var manifestEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// ParseManifest extracts the first stream URL from a base64 manifest.
//
// The decoded text is read as JSON {"urls": [...]} first and scanned for a bare URL otherwise.
func ParseManifest(manifest string) (string, error) {
	decoded, err := decodeManifest(manifest)
	if err != nil {
		return "", err
	}

	var parsed struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal(decoded, &parsed); err == nil && len(parsed.URLs) > 0 && parsed.URLs[0] != "" {
		return parsed.URLs[0], nil
	}

	if match := manifestURLPattern.Find(decoded); match != nil {
		return string(match), nil
	}
	return "", fmt.Errorf("%w: no url in manifest", shared.ErrStreamUnavailable)
}

func decodeManifest(manifest string) ([]byte, error) {
	manifest = strings.TrimSpace(manifest)
	if manifest == "" {
		return nil, fmt.Errorf("%w: empty manifest", shared.ErrMalformedResponse)
	}

	var lastErr error
	for _, enc := range manifestEncodings {
		b, err := enc.DecodeString(manifest)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: failed to decode manifest: %v", shared.ErrMalformedResponse, lastErr)
}
