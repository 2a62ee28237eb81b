package model

// TrackMetadata is the provider-side description of a track. URI is the
// provider-native handle used for enqueueing.
type TrackMetadata struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artists    string `json:"artists"`
	Album      string `json:"album"`
	AlbumArt   string `json:"album_art"`
	DurationMS int    `json:"duration_ms"`
	URI        string `json:"uri"`
	Explicit   bool   `json:"explicit"`
}

// NowPlaying extends track metadata with playback progress.
type NowPlaying struct {
	TrackMetadata
	ProgressMS int  `json:"progress_ms"`
	IsPlaying  bool `json:"is_playing"`
}

// QueueSnapshot is the live state of the playback queue.
type QueueSnapshot struct {
	CurrentlyPlaying *TrackMetadata  `json:"currently_playing"`
	Queue            []TrackMetadata `json:"queue"`
}

// Contains reports whether trackID is now playing or already queued.
func (s *QueueSnapshot) Contains(trackID string) bool {
	if s == nil {
		return false
	}
	if s.CurrentlyPlaying != nil && s.CurrentlyPlaying.ID == trackID {
		return true
	}
	for _, t := range s.Queue {
		if t.ID == trackID {
			return true
		}
	}
	return false
}
