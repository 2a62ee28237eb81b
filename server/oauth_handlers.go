package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spotiqueue/core/auth"
	"spotiqueue/logger"
	"spotiqueue/model"
)

// Guest identity verification via third-party OAuth. Unlike the Spotify
// flow this binds to a fingerprint, not to the server: the state carries
// the device id so the callback knows which row to update.

var oauthHTTPClient = &http.Client{Timeout: 10 * time.Second}

type oauthUser struct {
	ID        string
	Username  string
	AvatarURL string
}

func oauthState(provider, fingerprintID string) (string, error) {
	return auth.GenerateToken(provider + ":" + fingerprintID)
}

func parseOAuthState(provider, state string) (string, error) {
	claims, err := auth.ParseToken(state)
	if err != nil {
		return "", err
	}
	fpID, ok := strings.CutPrefix(claims.Subject, provider+":")
	if !ok || fpID == "" {
		return "", fmt.Errorf("state was issued for a different flow")
	}
	return fpID, nil
}

func (h *APIHandler) startOAuth(w http.ResponseWriter, r *http.Request, provider, authorizeURL, clientID, redirectURI, scope string) {
	fpID := fingerprintID(r)
	if fpID == "" {
		writeError(w, http.StatusBadRequest, "no fingerprint provided")
		return
	}
	if fp, err := h.fingerprints.GetByID(fpID); err != nil || fp == nil {
		writeError(w, http.StatusForbidden, "unrecognized device")
		return
	}

	state, err := oauthState(provider, fpID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	if scope != "" {
		q.Set("scope", scope)
	}
	q.Set("response_type", "code")

	http.Redirect(w, r, authorizeURL+"?"+q.Encode(), http.StatusFound)
}

func exchangeOAuthCode(ctx context.Context, tokenURL string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := oauthHTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.AccessToken == "" {
		return "", fmt.Errorf("no access token in response")
	}
	return out.AccessToken, nil
}

func fetchOAuthUser(ctx context.Context, userURL, accessToken string) (*oauthUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := oauthHTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user endpoint returned status %d", resp.StatusCode)
	}

	var out struct {
		ID        json.Number `json:"id"`
		Login     string      `json:"login"`
		Username  string      `json:"username"`
		Name      string      `json:"name"`
		AvatarURL string      `json:"avatar_url"`
		Identity  *struct {
			ID       json.Number `json:"id"`
			Username string      `json:"username"`
			Avatar   string      `json:"avatar"`
		} `json:"identity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode user response: %w", err)
	}

	// Hack Club nests the account under "identity"; GitHub is flat.
	if out.Identity != nil {
		return &oauthUser{ID: out.Identity.ID.String(), Username: out.Identity.Username, AvatarURL: out.Identity.Avatar}, nil
	}

	username := out.Login
	if username == "" {
		username = out.Username
	}
	if username == "" {
		username = out.Name
	}
	return &oauthUser{ID: out.ID.String(), Username: username, AvatarURL: out.AvatarURL}, nil
}

func (h *APIHandler) finishOAuth(w http.ResponseWriter, r *http.Request, provider string,
	bind func(fingerprintID string, user *oauthUser) error) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	fpID, err := parseOAuthState(provider, q.Get("state"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}

	var tokenURL string
	form := url.Values{}
	form.Set("code", code)
	switch provider {
	case "github":
		tokenURL = "https://github.com/login/oauth/access_token"
		form.Set("client_id", h.cfg.GithubClientID)
		form.Set("client_secret", h.cfg.GithubClientSecret)
		form.Set("redirect_uri", h.cfg.GithubRedirectURI)
	case "hackclub":
		tokenURL = "https://auth.hackclub.com/oauth/token"
		form.Set("grant_type", "authorization_code")
		form.Set("client_id", h.cfg.HackClubClientID)
		form.Set("client_secret", h.cfg.HackClubClientSecret)
		form.Set("redirect_uri", h.cfg.HackClubRedirectURI)
	default:
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	accessToken, err := exchangeOAuthCode(r.Context(), tokenURL, form)
	if err != nil {
		logger.Error("oauth code exchange failed", logger.String("provider", provider), logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "authorization failed")
		return
	}

	userURL := "https://api.github.com/user"
	if provider == "hackclub" {
		userURL = "https://auth.hackclub.com/api/v1/me"
	}

	user, err := fetchOAuthUser(r.Context(), userURL, accessToken)
	if err != nil {
		logger.Error("failed to fetch oauth user", logger.String("provider", provider), logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "authorization failed")
		return
	}

	// The device row can vanish between redirect and callback (admin
	// reset); recreate it so the verification still lands somewhere.
	if fp, err := h.fingerprints.GetByID(fpID); err == nil && fp == nil {
		now := time.Now().Unix()
		if err := h.fingerprints.Create(&model.Fingerprint{
			ID: fpID, FirstSeen: now, Status: model.FingerprintActive, CreatedAt: now,
		}); err != nil {
			logger.Warn("failed to recreate fingerprint", logger.ErrorField(err))
		}
	}

	if err := bind(fpID, user); err != nil {
		logger.Error("failed to bind identity", logger.String("provider", provider), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	logger.Info("identity verified",
		logger.String("provider", provider),
		logger.String("fingerprint_id", fpID),
		logger.String("username", user.Username))

	if h.cfg.ClientURL != "" {
		http.Redirect(w, r, h.cfg.ClientURL+"/?verified="+provider, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"verified": provider, "username": user.Username})
}

// GithubLoginHandler starts GitHub identity verification for a device.
func (h *APIHandler) GithubLoginHandler(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.GithubOAuthConfigured() {
		writeError(w, http.StatusServiceUnavailable, "github verification is not configured")
		return
	}
	h.startOAuth(w, r, "github", "https://github.com/login/oauth/authorize",
		h.cfg.GithubClientID, h.cfg.GithubRedirectURI, "read:user")
}

// GithubCallbackHandler completes GitHub verification.
func (h *APIHandler) GithubCallbackHandler(w http.ResponseWriter, r *http.Request) {
	h.finishOAuth(w, r, "github", func(fpID string, user *oauthUser) error {
		return h.fingerprints.BindGithubIdentity(fpID, user.ID, user.Username, user.AvatarURL)
	})
}

// HackClubLoginHandler starts Hack Club identity verification for a device.
func (h *APIHandler) HackClubLoginHandler(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.HackClubOAuthConfigured() {
		writeError(w, http.StatusServiceUnavailable, "hack club verification is not configured")
		return
	}
	h.startOAuth(w, r, "hackclub", "https://auth.hackclub.com/oauth/authorize",
		h.cfg.HackClubClientID, h.cfg.HackClubRedirectURI, "identity")
}

// HackClubCallbackHandler completes Hack Club verification.
func (h *APIHandler) HackClubCallbackHandler(w http.ResponseWriter, r *http.Request) {
	h.finishOAuth(w, r, "hackclub", func(fpID string, user *oauthUser) error {
		return h.fingerprints.BindHackClubIdentity(fpID, user.ID, user.Username, user.AvatarURL)
	})
}
