package server

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"spotiqueue/core/guestauth"
	"spotiqueue/core/policy"
	"spotiqueue/logger"
	"spotiqueue/model"
)

func newFingerprintID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// fingerprintResponse pairs a device id with its gate state so a client
// can render any username or verification prompt before the first queue
// attempt.
func (h *APIHandler) fingerprintResponse(fp *model.Fingerprint, s policy.Settings) map[string]interface{} {
	return map[string]interface{}{
		"fingerprint_id": fp.ID,
		"username":       fp.DisplayName(),
		"gate":           guestauth.StatusFor(s, h.providers(), fp),
	}
}

// GenerateFingerprintHandler mints a new device identity. The id is both
// returned in the body and set as a cookie so either transport works.
func (h *APIHandler) GenerateFingerprintHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // body is optional
	}

	s, err := h.settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Resolve before create: a client re-presenting a known id keeps it,
	// so reloading the page never mints a second device.
	if existing := fingerprintID(r); existing != "" {
		fp, err := h.fingerprints.GetByID(existing)
		if err == nil && fp != nil {
			if req.Username != "" {
				if err := h.fingerprints.SetUsernameIfEmpty(fp.ID, req.Username); err != nil {
					logger.Warn("failed to set username", logger.ErrorField(err))
				} else if updated, err := h.fingerprints.GetByID(fp.ID); err == nil && updated != nil {
					fp = updated
				}
			}
			writeJSON(w, http.StatusOK, h.fingerprintResponse(fp, s))
			return
		}
	}

	id, err := newFingerprintID()
	if err != nil {
		logger.Error("failed to generate fingerprint id", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	now := time.Now().Unix()
	fp := &model.Fingerprint{
		ID:        id,
		FirstSeen: now,
		Status:    model.FingerprintActive,
		CreatedAt: now,
	}
	if err := h.fingerprints.Create(fp); err != nil {
		logger.Error("failed to create fingerprint", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if req.Username != "" {
		if err := h.fingerprints.SetUsernameIfEmpty(id, req.Username); err != nil {
			logger.Warn("failed to set username", logger.ErrorField(err))
		} else {
			fp.Username = sql.NullString{String: req.Username, Valid: true}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "fingerprint_id",
		Value:    id,
		Path:     "/",
		MaxAge:   365 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, h.fingerprintResponse(fp, s))
}

// ValidateFingerprintHandler reports whether the presented id is known,
// and the device's current standing.
func (h *APIHandler) ValidateFingerprintHandler(w http.ResponseWriter, r *http.Request) {
	id := fingerprintID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "no fingerprint provided")
		return
	}

	fp, err := h.fingerprints.GetByID(id)
	if err != nil {
		logger.Error("failed to load fingerprint", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if fp == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"valid": false})
		return
	}

	s, err := h.settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := map[string]interface{}{
		"valid":    true,
		"blocked":  fp.Status == model.FingerprintBlocked,
		"username": fp.DisplayName(),
		"gate":     guestauth.StatusFor(s, h.providers(), fp),
	}
	if fp.CooldownExpires.Valid {
		if remaining := fp.CooldownExpires.Int64 - time.Now().Unix(); remaining > 0 {
			resp["cooldown_remaining"] = remaining
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
