package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"spotiqueue/core/guestauth"
	"spotiqueue/core/live"
	"spotiqueue/core/prequeue"
	"spotiqueue/logger"

	"github.com/gorilla/mux"
)

func writePrequeueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, prequeue.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, prequeue.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, prequeue.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeAdmissionError(w, err)
	}
}

// SubmitPrequeueHandler files a song request for human review.
func (h *APIHandler) SubmitPrequeueHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackRef string `json:"track"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackRef == "" {
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

	if fp != nil && req.Username != "" {
		if err := h.fingerprints.SetUsernameIfEmpty(fp.ID, req.Username); err != nil {
			logger.Warn("failed to set username", logger.ErrorField(err))
		}
	}

	entry, err := h.workflow.Submit(r.Context(), fpID, req.TrackRef, s)
	if err != nil {
		writePrequeueError(w, err)
		return
	}

	h.hub.Broadcast(live.MsgTypePrequeue, entry)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pending": true,
		"entry":   entry,
	})
}

// ApprovePrequeueHandler pushes a pending request to the queue. Admin only.
func (h *APIHandler) ApprovePrequeueHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	entry, err := h.workflow.Approve(r.Context(), mux.Vars(r)["id"], adminSubject(r), s)
	if err != nil {
		writePrequeueError(w, err)
		return
	}

	h.hub.Broadcast(live.MsgTypePrequeue, entry)
	writeJSON(w, http.StatusOK, entry)
}

// DeclinePrequeueHandler rejects a pending request. Admin only.
func (h *APIHandler) DeclinePrequeueHandler(w http.ResponseWriter, r *http.Request) {
	entry, err := h.workflow.Decline(r.Context(), mux.Vars(r)["id"], adminSubject(r))
	if err != nil {
		writePrequeueError(w, err)
		return
	}

	h.hub.Broadcast(live.MsgTypePrequeue, entry)
	writeJSON(w, http.StatusOK, entry)
}

// PendingPrequeueHandler lists requests awaiting review. Admin only.
func (h *APIHandler) PendingPrequeueHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.workflow.Pending()
	if err != nil {
		logger.Error("failed to list pending prequeue entries", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// PrequeueStatusHandler lets a guest poll the fate of their request.
func (h *APIHandler) PrequeueStatusHandler(w http.ResponseWriter, r *http.Request) {
	entry, err := h.workflow.Status(mux.Vars(r)["id"])
	if err != nil {
		writePrequeueError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
