package spotify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleID = "4cOdK2wGLETKBW3PvgPWqT"

func TestParseTrackRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{"bare id", sampleID, sampleID, false},
		{"uri", "spotify:track:" + sampleID, sampleID, false},
		{"url", "https://open.spotify.com/track/" + sampleID, sampleID, false},
		{"url with query", "https://open.spotify.com/track/" + sampleID + "?si=abc123&utm_source=copy", sampleID, false},
		{"url with locale", "https://open.spotify.com/intl-de/track/" + sampleID, sampleID, false},
		{"url without scheme", "open.spotify.com/track/" + sampleID, sampleID, false},
		{"whitespace", "  " + sampleID + "  ", sampleID, false},
		{"empty", "", "", true},
		{"short id", "abc123", "", true},
		{"album url", "https://open.spotify.com/album/" + sampleID, "", true},
		{"uri with bad id", "spotify:track:nope", "", true},
		{"random text", "never gonna give you up", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTrackRef(tt.ref)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTrackRef)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
