package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"spotiqueue/config"
	"spotiqueue/core/admission"
	"spotiqueue/core/auth"
	"spotiqueue/core/guestauth"
	"spotiqueue/core/live"
	"spotiqueue/core/policy"
	"spotiqueue/core/prequeue"
	"spotiqueue/core/slack"
	"spotiqueue/core/spotify"
	"spotiqueue/logger"
	"spotiqueue/repository"
)

// APIHandler handles all API requests.
type APIHandler struct {
	cfg          *config.Config
	fingerprints repository.FingerprintRepository
	attempts     repository.AttemptRepository
	banned       repository.BannedRepository
	votes        repository.VoteRepository
	configRepo   repository.ConfigRepository
	prequeueRepo repository.PrequeueRepository
	controller   *admission.Controller
	workflow     *prequeue.Workflow
	spotify      *spotify.Client
	envStore     *spotify.EnvStore
	hub          *live.Hub
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	cfg *config.Config,
	fingerprints repository.FingerprintRepository,
	attempts repository.AttemptRepository,
	banned repository.BannedRepository,
	votes repository.VoteRepository,
	configRepo repository.ConfigRepository,
	prequeueRepo repository.PrequeueRepository,
	controller *admission.Controller,
	workflow *prequeue.Workflow,
	spotifyClient *spotify.Client,
	envStore *spotify.EnvStore,
	hub *live.Hub,
) *APIHandler {
	return &APIHandler{
		cfg:          cfg,
		fingerprints: fingerprints,
		attempts:     attempts,
		banned:       banned,
		votes:        votes,
		configRepo:   configRepo,
		prequeueRepo: prequeueRepo,
		controller:   controller,
		workflow:     workflow,
		spotify:      spotifyClient,
		envStore:     envStore,
		hub:          hub,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Error("failed to encode response", logger.ErrorField(err))
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// settings loads a typed snapshot of the config store for this request.
func (h *APIHandler) settings() (policy.Settings, error) {
	return policy.Load(h.configRepo)
}

func (h *APIHandler) providers() guestauth.Providers {
	return guestauth.Providers{
		Github:   h.cfg.GithubOAuthConfigured(),
		HackClub: h.cfg.HackClubOAuthConfigured(),
	}
}

// fingerprintID pulls the device id from the header or cookie.
func fingerprintID(r *http.Request) string {
	if id := r.Header.Get("X-Fingerprint-ID"); id != "" {
		return id
	}
	if c, err := r.Cookie("fingerprint_id"); err == nil {
		return c.Value
	}
	return ""
}

// writeAdmissionError maps admission failures to HTTP responses.
func writeAdmissionError(w http.ResponseWriter, err error) {
	var cooldown *admission.CooldownError
	if errors.As(err, &cooldown) {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":              cooldown.Error(),
			"cooldown_remaining": cooldown.RemainingSec,
		})
		return
	}

	var tooLong *admission.TooLongError
	if errors.As(err, &tooLong) {
		writeError(w, http.StatusForbidden, tooLong.Error())
		return
	}

	var upstream *spotify.UpstreamError
	switch {
	case errors.Is(err, admission.ErrServiceDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, admission.ErrUnknownDevice),
		errors.Is(err, admission.ErrDeviceBlocked),
		errors.Is(err, admission.ErrTrackBanned),
		errors.Is(err, admission.ErrExplicitBlocked):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, admission.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, admission.ErrDuplicateInQueue),
		errors.Is(err, repository.ErrDuplicatePending):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, admission.ErrNoActiveDevice), errors.Is(err, spotify.ErrNoActiveDevice):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, admission.ErrNotConnected), errors.Is(err, spotify.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &upstream):
		writeError(w, http.StatusBadGateway, "the music service is unavailable")
	default:
		logger.Error("admission failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeGateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, guestauth.ErrPasswordRequired),
		errors.Is(err, guestauth.ErrGithubRequired),
		errors.Is(err, guestauth.ErrHackClubRequired),
		errors.Is(err, guestauth.ErrUsernameRequired):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// AdminAuthMiddleware guards admin endpoints with a bearer token issued
// by the login handler.
func (h *APIHandler) AdminAuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		if _, err := auth.ParseToken(strings.TrimPrefix(header, "Bearer ")); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r)
	}
}

// adminSubject extracts the admin name from a verified token, for audit
// fields. Only call below AdminAuthMiddleware.
func adminSubject(r *http.Request) string {
	header := r.Header.Get("Authorization")
	claims, err := auth.ParseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return "admin"
	}
	if claims.Subject == "" {
		return "admin"
	}
	return claims.Subject
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}

// SlackVerifyMiddleware authenticates inbound Slack requests.
func (h *APIHandler) SlackVerifyMiddleware(next func(w http.ResponseWriter, r *http.Request, body []byte)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}

		err = slack.VerifySignature(h.cfg.SlackSigningSecret,
			r.Header.Get("X-Slack-Request-Timestamp"),
			r.Header.Get("X-Slack-Signature"), body)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "signature verification failed")
			return
		}

		next(w, r, body)
	}
}
