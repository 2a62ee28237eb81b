package server

import (
	"net/http"

	"spotiqueue/core/auth"
	"spotiqueue/logger"
)

// SpotifyAuthorizeHandler returns the provider consent URL. Admin only;
// whoever completes the flow becomes the playback account.
func (h *APIHandler) SpotifyAuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateToken("spotify_oauth")
	if err != nil {
		logger.Error("failed to generate oauth state", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"url": h.spotify.AuthorizeURL(h.cfg.SpotifyRedirectURI, state),
	})
}

// SpotifyCallbackHandler completes the OAuth flow: exchanges the code,
// persists the refresh token and marks the account connected.
func (h *APIHandler) SpotifyCallbackHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errMsg := q.Get("error"); errMsg != "" {
		writeError(w, http.StatusBadRequest, "authorization was denied: "+errMsg)
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	claims, err := auth.ParseToken(q.Get("state"))
	if err != nil || claims.Subject != "spotify_oauth" {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}

	refreshToken, err := h.spotify.ExchangeCode(r.Context(), code, h.cfg.SpotifyRedirectURI)
	if err != nil {
		logger.Error("failed to exchange authorization code", logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	if err := h.envStore.SaveRefreshToken(refreshToken, h.cfg.SpotifyUserID); err != nil {
		logger.Error("failed to persist refresh token", logger.ErrorField(err))
	}
	if err := h.configRepo.Set("spotify_connected", "true"); err != nil {
		logger.Error("failed to mark account connected", logger.ErrorField(err))
	}

	logger.Info("playback account connected")
	if h.cfg.ClientURL != "" {
		http.Redirect(w, r, h.cfg.ClientURL+"/admin?connected=1", http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": true})
}

// SpotifyStatusHandler reports whether a playback account is linked.
func (h *APIHandler) SpotifyStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"connected": h.spotify.Connected()})
}

// SpotifyDisconnectHandler unlinks the playback account. Admin only.
func (h *APIHandler) SpotifyDisconnectHandler(w http.ResponseWriter, r *http.Request) {
	h.spotify.Disconnect()
	if err := h.envStore.SaveRefreshToken("", ""); err != nil {
		logger.Error("failed to clear refresh token", logger.ErrorField(err))
	}
	if err := h.configRepo.Set("spotify_connected", "false"); err != nil {
		logger.Error("failed to mark account disconnected", logger.ErrorField(err))
	}

	logger.Info("playback account disconnected", logger.String("admin", adminSubject(r)))
	writeJSON(w, http.StatusOK, map[string]bool{"connected": false})
}
