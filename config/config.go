package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores process-level configuration. Runtime-tunable policy
// (cooldowns, feature toggles) lives in the config table instead.
type Config struct {
	Port      string
	ClientURL string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Spotify application credentials. The refresh token and user id are
	// written back to EnvFile by the OAuth callback and hot-reloaded.
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRefreshToken string
	SpotifyUserID       string
	SpotifyRedirectURI  string

	SlackWebhookURL     string
	SlackSigningSecret  string

	GithubClientID      string
	GithubClientSecret  string
	GithubRedirectURI   string
	HackClubClientID    string
	HackClubClientSecret string
	HackClubRedirectURI string

	JWTSecret string
	EnvFile   string
	LogPath   string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// firstEnv returns the first non-empty value among the given keys.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	envFile := getEnv("ENV_FILE", ".env")

	// godotenv.Load will not override variables already set in the environment.
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		Port:      getEnv("PORT", "8000"),
		ClientURL: getEnv("CLIENT_URL", "http://localhost:3000"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "spotiqueue"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		SpotifyRefreshToken: os.Getenv("SPOTIFY_REFRESH_TOKEN"),
		SpotifyUserID:       os.Getenv("SPOTIFY_USER_ID"),
		SpotifyRedirectURI:  os.Getenv("SPOTIFY_REDIRECT_URI"),

		SlackWebhookURL:    os.Getenv("SLACK_WEBHOOK_URL"),
		SlackSigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),

		GithubClientID:       os.Getenv("GITHUB_CLIENT_ID"),
		GithubClientSecret:   os.Getenv("GITHUB_CLIENT_SECRET"),
		GithubRedirectURI:    os.Getenv("GITHUB_REDIRECT_URI"),
		HackClubClientID:     firstEnv("HACKCLUB_CLIENT_ID", "HC_CLIENT_ID"),
		HackClubClientSecret: firstEnv("HACKCLUB_CLIENT_SECRET", "HC_CLIENT_SECRET"),
		HackClubRedirectURI:  firstEnv("HACKCLUB_REDIRECT_URI", "HC_REDIRECT_URI"),

		JWTSecret: getEnv("JWT_SECRET", "spotiqueue-dev-secret"),
		EnvFile:   envFile,
		LogPath:   os.Getenv("LOG_PATH"),
	}
}

// GithubOAuthConfigured reports whether the GitHub provider can be used.
func (c *Config) GithubOAuthConfigured() bool {
	return c.GithubClientID != "" && c.GithubClientSecret != ""
}

// HackClubOAuthConfigured reports whether the Hack Club provider can be used.
func (c *Config) HackClubOAuthConfigured() bool {
	return c.HackClubClientID != "" && c.HackClubClientSecret != ""
}
