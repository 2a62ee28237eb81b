package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"spotiqueue/cache"
	"spotiqueue/core/admission"
	"spotiqueue/core/guestauth"
	"spotiqueue/logger"
)

// AddToQueueHandler is the main guest entry point: runs the gate chain,
// then the admission pipeline, and queues the track on success.
func (h *APIHandler) AddToQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackRef string `json:"track"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TrackRef == "" {
		writeError(w, http.StatusBadRequest, "track is required")
		return
	}

	s, err := h.settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	fpID := fingerprintID(r)
	fp, err := h.fingerprints.GetByID(fpID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := guestauth.Check(s, h.providers(), guestauth.Identity{
		Fingerprint: fp,
		Username:    req.Username,
		Password:    req.Password,
	}); err != nil {
		writeGateError(w, err)
		return
	}

	// The first named request claims the device's username.
	if fp != nil && req.Username != "" {
		if err := h.fingerprints.SetUsernameIfEmpty(fp.ID, req.Username); err != nil {
			logger.Warn("failed to set username", logger.ErrorField(err))
		}
	}

	track, err := h.controller.Admit(r.Context(), admission.Request{
		FingerprintID: fpID,
		TrackRef:      req.TrackRef,
		Settings:      s,
	})
	if err != nil {
		writeAdmissionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queued": true,
		"track":  track,
	})
}

// SearchHandler proxies track search to the provider.
func (h *APIHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	s, err := h.settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !s.QueueingEnabled {
		writeError(w, http.StatusServiceUnavailable, "queueing is currently disabled")
		return
	}
	if !s.SearchUIEnabled {
		writeError(w, http.StatusServiceUnavailable, "search is currently disabled")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	tracks, err := h.spotify.Search(r.Context(), query, limit)
	if err != nil {
		logger.Warn("search failed", logger.String("query", query), logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "the music service is unavailable")
		return
	}

	// Tracks the explicit filter would reject never show up in results.
	if s.BanExplicit {
		filtered := tracks[:0]
		for _, t := range tracks {
			if !t.Explicit {
				filtered = append(filtered, t)
			}
		}
		tracks = filtered
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": tracks})
}

// GetQueueHandler returns the live queue, served from the snapshot cache
// when it is fresh.
func (h *APIHandler) GetQueueHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if snapshot, err := cache.GetQueueSnapshot(ctx); err == nil && snapshot != nil {
		writeJSON(w, http.StatusOK, snapshot)
		return
	}

	snapshot, err := h.spotify.GetQueue(ctx)
	if err != nil {
		writeAdmissionError(w, err)
		return
	}

	if err := cache.SetQueueSnapshot(ctx, snapshot); err != nil {
		logger.Warn("failed to cache queue snapshot", logger.ErrorField(err))
	}
	writeJSON(w, http.StatusOK, snapshot)
}
