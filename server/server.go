package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spotiqueue/cache"
	"spotiqueue/config"
	"spotiqueue/core/admission"
	"spotiqueue/core/auth"
	"spotiqueue/core/live"
	"spotiqueue/core/prequeue"
	"spotiqueue/core/slack"
	"spotiqueue/core/spotify"
	"spotiqueue/db"
	"spotiqueue/logger"
	"spotiqueue/model"
	"spotiqueue/repository"

	"github.com/gorilla/mux"
)

// Start initializes dependencies and runs the HTTP server until a
// shutdown signal arrives.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.InfoLevel,
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	auth.SetSecret(cfg.JWTSecret)

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect to database with GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrateModels(&model.Vote{}, &model.ConfigEntry{}); err != nil {
		logger.Fatal("failed to migrate models", logger.ErrorField(err))
	}

	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database", logger.ErrorField(err))
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer cache.CloseRedis()

	fingerprintRepo := repository.NewMySQLFingerprintRepository()
	attemptRepo := repository.NewMySQLAttemptRepository()
	bannedRepo := repository.NewMySQLBannedRepository()
	prequeueRepo := repository.NewMySQLPrequeueRepository()
	voteRepo := repository.NewGormVoteRepository()
	configRepo := repository.NewGormConfigRepository()

	spotifyClient := spotify.NewClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.SpotifyRefreshToken)
	envStore := spotify.NewEnvStore(cfg.EnvFile)
	go func() {
		if err := envStore.Watch(spotifyClient); err != nil {
			logger.Warn("env watcher stopped", logger.ErrorField(err))
		}
	}()

	hub := live.NewHub()
	go hub.Run()

	controller := admission.NewController(fingerprintRepo, attemptRepo, bannedRepo, spotifyClient)
	controller.OnEnqueued(func(track *model.TrackMetadata) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.InvalidateQueueSnapshot(ctx); err != nil {
			logger.Warn("failed to invalidate queue snapshot", logger.ErrorField(err))
		}
		hub.BroadcastQueueUpdate(track)
	})

	notifier := slack.NewNotifier(cfg.SlackWebhookURL)
	workflow := prequeue.NewWorkflow(prequeueRepo, fingerprintRepo, controller, notifier)

	apiHandler := NewAPIHandler(cfg, fingerprintRepo, attemptRepo, bannedRepo, voteRepo,
		configRepo, prequeueRepo, controller, workflow, spotifyClient, envStore, hub)

	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", cfg.ClientURL)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Fingerprint-ID")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Device identity
	router.HandleFunc("/api/fingerprint/generate", apiHandler.GenerateFingerprintHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/fingerprint/validate", apiHandler.ValidateFingerprintHandler).Methods(http.MethodGet, http.MethodPost)

	// Queue
	router.HandleFunc("/api/queue/add", apiHandler.AddToQueueHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/search", apiHandler.SearchHandler).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/api/queue", apiHandler.GetQueueHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/now-playing", apiHandler.NowPlayingHandler).Methods(http.MethodGet)

	// Votes
	router.HandleFunc("/api/queue/vote", apiHandler.VoteHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/votes", apiHandler.VoteCountsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/queue/votes/mine", apiHandler.MyVotesHandler).Methods(http.MethodGet)

	// Prequeue
	router.HandleFunc("/api/prequeue/submit", apiHandler.SubmitPrequeueHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/prequeue/status/{id}", apiHandler.PrequeueStatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/prequeue/pending", apiHandler.AdminAuthMiddleware(apiHandler.PendingPrequeueHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/prequeue/approve/{id}", apiHandler.AdminAuthMiddleware(apiHandler.ApprovePrequeueHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/prequeue/decline/{id}", apiHandler.AdminAuthMiddleware(apiHandler.DeclinePrequeueHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/slack/actions", apiHandler.SlackVerifyMiddleware(apiHandler.SlackActionsHandler)).Methods(http.MethodPost)

	// Admin
	router.HandleFunc("/api/admin/login", apiHandler.AdminLoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/devices", apiHandler.AdminAuthMiddleware(apiHandler.ListDevicesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/devices/{id}/block", apiHandler.AdminAuthMiddleware(apiHandler.BlockDeviceHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/devices/{id}/unblock", apiHandler.AdminAuthMiddleware(apiHandler.UnblockDeviceHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/devices/{id}/reset-cooldown", apiHandler.AdminAuthMiddleware(apiHandler.ResetCooldownHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/reset-cooldowns", apiHandler.AdminAuthMiddleware(apiHandler.ResetAllCooldownsHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/stats", apiHandler.AdminAuthMiddleware(apiHandler.StatsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/activity", apiHandler.AdminAuthMiddleware(apiHandler.ActivityHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/banned", apiHandler.AdminAuthMiddleware(apiHandler.ListBannedHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/banned", apiHandler.AdminAuthMiddleware(apiHandler.BanTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/banned/{track_id}", apiHandler.AdminAuthMiddleware(apiHandler.UnbanTrackHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/admin/reset", apiHandler.AdminAuthMiddleware(apiHandler.ResetAllHandler)).Methods(http.MethodPost)

	// Settings
	router.HandleFunc("/api/config/public", apiHandler.PublicConfigHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/config/public/{key}", apiHandler.PublicConfigKeyHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/config", apiHandler.AdminAuthMiddleware(apiHandler.GetConfigHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/config", apiHandler.AdminAuthMiddleware(apiHandler.UpdateConfigHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/config/{key}", apiHandler.AdminAuthMiddleware(apiHandler.GetConfigKeyHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/config/{key}", apiHandler.AdminAuthMiddleware(apiHandler.UpdateConfigKeyHandler)).Methods(http.MethodPut)

	// Playback account OAuth
	router.HandleFunc("/api/auth/authorize", apiHandler.AdminAuthMiddleware(apiHandler.SpotifyAuthorizeHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/callback", apiHandler.SpotifyCallbackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/status", apiHandler.SpotifyStatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/disconnect", apiHandler.AdminAuthMiddleware(apiHandler.SpotifyDisconnectHandler)).Methods(http.MethodPost)

	// Guest identity verification
	router.HandleFunc("/api/auth/github/login", apiHandler.GithubLoginHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/github/callback", apiHandler.GithubCallbackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/hackclub/login", apiHandler.HackClubLoginHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/hackclub/callback", apiHandler.HackClubCallbackHandler).Methods(http.MethodGet)

	// Live updates
	router.HandleFunc("/api/ws", hub.ServeWS)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", logger.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", logger.ErrorField(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", logger.ErrorField(err))
	}
	hub.Stop()
	logger.Info("server stopped")
}
