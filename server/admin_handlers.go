package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"spotiqueue/core/auth"
	"spotiqueue/logger"
	"spotiqueue/model"

	"github.com/gorilla/mux"
)

// AdminLoginHandler exchanges the admin password for a session token.
func (h *APIHandler) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	hash, ok, err := h.configRepo.Get("admin_password")
	if err != nil || !ok {
		logger.Error("failed to load admin password hash", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !auth.VerifyPassword(req.Password, hash) {
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, err := auth.GenerateToken("admin")
	if err != nil {
		logger.Error("failed to generate admin token", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ListDevicesHandler returns every known device with attempt counts.
func (h *APIHandler) ListDevicesHandler(w http.ResponseWriter, r *http.Request) {
	devices, err := h.fingerprints.ListDevices()
	if err != nil {
		logger.Error("failed to list devices", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

func (h *APIHandler) setDeviceStatus(w http.ResponseWriter, r *http.Request, status string) {
	id := mux.Vars(r)["id"]

	fp, err := h.fingerprints.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if fp == nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}

	if err := h.fingerprints.SetStatus(id, status); err != nil {
		logger.Error("failed to update device status", logger.String("fingerprint_id", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	logger.Info("device status changed",
		logger.String("fingerprint_id", id),
		logger.String("status", status),
		logger.String("admin", adminSubject(r)))
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": status})
}

// BlockDeviceHandler blocks a device from queueing.
func (h *APIHandler) BlockDeviceHandler(w http.ResponseWriter, r *http.Request) {
	h.setDeviceStatus(w, r, model.FingerprintBlocked)
}

// UnblockDeviceHandler restores a blocked device.
func (h *APIHandler) UnblockDeviceHandler(w http.ResponseWriter, r *http.Request) {
	h.setDeviceStatus(w, r, model.FingerprintActive)
}

// ResetCooldownHandler clears one device's cooldown.
func (h *APIHandler) ResetCooldownHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.fingerprints.ClearCooldown(id); err != nil {
		logger.Error("failed to clear cooldown", logger.String("fingerprint_id", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "cooldown": "cleared"})
}

// ResetAllCooldownsHandler clears every device's cooldown.
func (h *APIHandler) ResetAllCooldownsHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.fingerprints.ClearAllCooldowns(); err != nil {
		logger.Error("failed to clear all cooldowns", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	logger.Info("all cooldowns cleared", logger.String("admin", adminSubject(r)))
	writeJSON(w, http.StatusOK, map[string]string{"cooldowns": "cleared"})
}

// StatsHandler returns aggregate attempt stats and the top tracks.
func (h *APIHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.attempts.Stats()
	if err != nil {
		logger.Error("failed to load stats", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	topTracks, err := h.attempts.TopTracks(10)
	if err != nil {
		logger.Error("failed to load top tracks", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":      stats,
		"top_tracks": topTracks,
	})
}

// ActivityHandler returns the most recent attempts.
func (h *APIHandler) ActivityHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	entries, err := h.attempts.RecentActivity(limit)
	if err != nil {
		logger.Error("failed to load activity", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activity": entries})
}

// ListBannedHandler returns the track denylist.
func (h *APIHandler) ListBannedHandler(w http.ResponseWriter, r *http.Request) {
	banned, err := h.banned.List()
	if err != nil {
		logger.Error("failed to list banned tracks", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"banned": banned})
}

// BanTrackHandler adds a track to the denylist.
func (h *APIHandler) BanTrackHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID  string `json:"track_id"`
		ArtistID string `json:"artist_id"`
		Reason   string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "track_id is required")
		return
	}

	b := &model.BannedTrack{TrackID: req.TrackID, CreatedAt: time.Now().Unix()}
	if req.ArtistID != "" {
		b.ArtistID = sql.NullString{String: req.ArtistID, Valid: true}
	}
	if req.Reason != "" {
		b.Reason = sql.NullString{String: req.Reason, Valid: true}
	}

	if err := h.banned.Add(b); err != nil {
		logger.Error("failed to ban track", logger.String("track_id", req.TrackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	logger.Info("track banned", logger.String("track_id", req.TrackID), logger.String("admin", adminSubject(r)))
	writeJSON(w, http.StatusOK, b)
}

// UnbanTrackHandler removes a track from the denylist.
func (h *APIHandler) UnbanTrackHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["track_id"]
	if err := h.banned.Remove(trackID); err != nil {
		logger.Error("failed to unban track", logger.String("track_id", trackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"track_id": trackID, "banned": "false"})
}

// ResetAllHandler wipes guest state: devices, attempts, prequeue entries
// and votes. The denylist and settings survive.
func (h *APIHandler) ResetAllHandler(w http.ResponseWriter, r *http.Request) {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"attempts", h.attempts.DeleteAll},
		{"prequeue", h.prequeueRepo.DeleteAll},
		{"votes", h.votes.DeleteAll},
		{"fingerprints", h.fingerprints.DeleteAll},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			logger.Error("reset failed", logger.String("step", step.name), logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	logger.Info("guest state reset", logger.String("admin", adminSubject(r)))
	writeJSON(w, http.StatusOK, map[string]string{"reset": "done"})
}
