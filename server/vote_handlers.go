package server

import (
	"encoding/json"
	"net/http"

	"spotiqueue/core/live"
	"spotiqueue/logger"
	"spotiqueue/model"
)

// VoteHandler toggles the caller's vote on a track.
func (h *APIHandler) VoteHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID string `json:"track_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "track_id is required")
		return
	}

	s, err := h.settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !s.VotingEnabled {
		writeError(w, http.StatusServiceUnavailable, "voting is not enabled")
		return
	}

	fpID := fingerprintID(r)
	fp, err := h.fingerprints.GetByID(fpID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if fp == nil {
		writeError(w, http.StatusForbidden, "unrecognized device")
		return
	}
	if fp.Status == model.FingerprintBlocked {
		writeError(w, http.StatusForbidden, "this device has been blocked")
		return
	}

	voted, count, err := h.votes.Toggle(req.TrackID, fp.ID)
	if err != nil {
		logger.Error("failed to toggle vote", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.hub.Broadcast(live.MsgTypeVoteUpdate, map[string]interface{}{
		"track_id": req.TrackID,
		"votes":    count,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"voted": voted,
		"votes": count,
	})
}

// VoteCountsHandler returns all-time vote counts per track.
func (h *APIHandler) VoteCountsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := h.votes.Counts()
	if err != nil {
		logger.Error("failed to load vote counts", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"votes": counts})
}

// MyVotesHandler returns the track ids the caller has voted for.
func (h *APIHandler) MyVotesHandler(w http.ResponseWriter, r *http.Request) {
	fpID := fingerprintID(r)
	if fpID == "" {
		writeError(w, http.StatusBadRequest, "no fingerprint provided")
		return
	}

	trackIDs, err := h.votes.TracksVotedBy(fpID)
	if err != nil {
		logger.Error("failed to load votes", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"track_ids": trackIDs})
}
