package spotify

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidTrackRef is returned for input that is not a recognizable
// track reference.
var ErrInvalidTrackRef = errors.New("not a recognizable track link or id")

var trackIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)

// ParseTrackRef extracts a track id from any of the accepted forms:
// a spotify:track: URI, an open.spotify.com track URL (query string and
// locale path segments tolerated), or a bare 22-character id.
func ParseTrackRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrInvalidTrackRef
	}

	if id, ok := strings.CutPrefix(ref, "spotify:track:"); ok {
		if trackIDPattern.MatchString(id) {
			return id, nil
		}
		return "", ErrInvalidTrackRef
	}

	if strings.Contains(ref, "open.spotify.com") {
		ref = strings.TrimPrefix(ref, "https://")
		ref = strings.TrimPrefix(ref, "http://")
		if i := strings.IndexByte(ref, '?'); i >= 0 {
			ref = ref[:i]
		}
		parts := strings.Split(ref, "/")
		for i, p := range parts {
			if p == "track" && i+1 < len(parts) {
				id := parts[i+1]
				if trackIDPattern.MatchString(id) {
					return id, nil
				}
			}
		}
		return "", ErrInvalidTrackRef
	}

	if trackIDPattern.MatchString(ref) {
		return ref, nil
	}
	return "", ErrInvalidTrackRef
}
