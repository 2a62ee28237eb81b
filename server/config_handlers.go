package server

import (
	"encoding/json"
	"net/http"

	"spotiqueue/core/auth"
	"spotiqueue/core/live"
	"spotiqueue/logger"

	"github.com/gorilla/mux"
)

// publicConfigKeys are safe to expose to guests. Everything else stays
// behind the admin endpoints; passwords never leave the server at all.
var publicConfigKeys = map[string]bool{
	"cooldown_duration":      true,
	"songs_before_cooldown":  true,
	"fingerprinting_enabled": true,
	"url_input_enabled":      true,
	"search_ui_enabled":      true,
	"queueing_enabled":       true,
	"prequeue_enabled":       true,
	"require_username":       true,
	"require_github_auth":    true,
	"require_hackclub_auth":  true,
	"max_song_duration":      true,
	"ban_explicit":           true,
	"voting_enabled":         true,
	"aura_enabled":           true,
	"confetti_enabled":       true,
	"spotify_connected":      true,
}

// PublicConfigHandler returns the guest-visible settings, plus a flag
// for whether a shared password is set.
func (h *APIHandler) PublicConfigHandler(w http.ResponseWriter, r *http.Request) {
	values, err := h.configRepo.All()
	if err != nil {
		logger.Error("failed to load config", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	public := make(map[string]string, len(publicConfigKeys))
	for k, v := range values {
		if publicConfigKeys[k] {
			public[k] = v
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"config":            public,
		"password_required": values["user_password"] != "",
	})
}

// PublicConfigKeyHandler returns one guest-visible setting.
func (h *APIHandler) PublicConfigKeyHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if !publicConfigKeys[key] {
		writeError(w, http.StatusNotFound, "unknown setting")
		return
	}

	value, ok, err := h.configRepo.Get(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown setting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

// GetConfigHandler returns every setting for the admin panel, with
// password values redacted.
func (h *APIHandler) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	values, err := h.configRepo.All()
	if err != nil {
		logger.Error("failed to load config", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if _, ok := values["admin_password"]; ok {
		values["admin_password"] = ""
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"config": values})
}

// GetConfigKeyHandler returns one setting for the admin panel.
func (h *APIHandler) GetConfigKeyHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	value, ok, err := h.configRepo.Get(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown setting")
		return
	}
	if key == "admin_password" {
		value = ""
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

// UpdateConfigKeyHandler sets one setting.
func (h *APIHandler) UpdateConfigKeyHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	value := req.Value
	if key == "admin_password" {
		if value == "" {
			writeError(w, http.StatusBadRequest, "password cannot be empty")
			return
		}
		hash, err := auth.HashPassword(value)
		if err != nil {
			logger.Error("failed to hash admin password", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		value = hash
	}

	if err := h.configRepo.Set(key, value); err != nil {
		logger.Error("failed to update setting", logger.String("key", key), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	logger.Info("setting updated", logger.String("key", key), logger.String("admin", adminSubject(r)))
	h.hub.Broadcast(live.MsgTypeConfig, map[string]string{"changed": key})
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "updated": "true"})
}

// UpdateConfigHandler applies setting changes. New admin passwords are
// hashed before they hit the store.
func (h *APIHandler) UpdateConfigHandler(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil || len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no settings provided")
		return
	}

	for key, value := range updates {
		if key == "admin_password" {
			if value == "" {
				continue
			}
			hash, err := auth.HashPassword(value)
			if err != nil {
				logger.Error("failed to hash admin password", logger.ErrorField(err))
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			value = hash
		}
		if err := h.configRepo.Set(key, value); err != nil {
			logger.Error("failed to update setting", logger.String("key", key), logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	logger.Info("settings updated", logger.Int("count", len(updates)), logger.String("admin", adminSubject(r)))
	h.hub.Broadcast(live.MsgTypeConfig, map[string]string{"changed": "true"})
	writeJSON(w, http.StatusOK, map[string]string{"updated": "true"})
}
