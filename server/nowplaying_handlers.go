package server

import (
	"encoding/json"
	"net/http"

	"spotiqueue/cache"
	"spotiqueue/logger"
)

// NowPlayingHandler returns the current playback state, cached briefly
// so a page full of guests doesn't hammer the provider.
func (h *APIHandler) NowPlayingHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if np, err := cache.GetNowPlaying(ctx); err == nil && np != nil {
		writeJSON(w, http.StatusOK, np)
		return
	}

	np, err := h.spotify.GetNowPlaying(ctx)
	if err != nil {
		// Guests poll this constantly; an upstream hiccup reads as
		// "nothing playing" rather than an error page.
		logger.Warn("now playing unavailable", logger.ErrorField(err))
		writeJSON(w, http.StatusOK, json.RawMessage("null"))
		return
	}
	if np == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"is_playing": false})
		return
	}

	if err := cache.SetNowPlaying(ctx, np); err != nil {
		logger.Warn("failed to cache now playing", logger.ErrorField(err))
	}
	writeJSON(w, http.StatusOK, np)
}
