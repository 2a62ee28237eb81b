package spotify

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"spotiqueue/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
)

// EnvStore persists Spotify credentials to the .env file and watches it
// for out-of-band edits, so an operator pasting a new refresh token into
// the file takes effect without a restart.
type EnvStore struct {
	path string
	mu   sync.Mutex
}

// NewEnvStore creates a store bound to the given .env path.
func NewEnvStore(path string) *EnvStore {
	return &EnvStore{path: path}
}

// SaveRefreshToken writes the refresh token (and optionally the linked
// user id) back to the .env file, preserving the other entries.
func (s *EnvStore) SaveRefreshToken(refreshToken, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := godotenv.Read(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read env file %s: %w", s.path, err)
		}
		env = map[string]string{}
	}

	env["SPOTIFY_REFRESH_TOKEN"] = refreshToken
	if userID != "" {
		env["SPOTIFY_USER_ID"] = userID
	}

	if err := writeEnvFile(s.path, env); err != nil {
		return fmt.Errorf("failed to write env file %s: %w", s.path, err)
	}
	return nil
}

// godotenv.Write quotes every value, which breaks files shared with
// shell scripts. Keep the plain key=value format instead.
func writeEnvFile(path string, env map[string]string) error {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(env[k])
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}

// Watch reloads Spotify credentials into the client whenever the .env
// file changes. Runs until the watcher is closed or an unrecoverable
// error occurs; call it in its own goroutine.
func (s *EnvStore) Watch(client *Client) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create env watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			env, err := godotenv.Read(s.path)
			if err != nil {
				logger.Warn("failed to reload env file", logger.ErrorField(err))
				continue
			}
			if id, secret := env["SPOTIFY_CLIENT_ID"], env["SPOTIFY_CLIENT_SECRET"]; id != "" && secret != "" {
				client.SetCredentials(id, secret, env["SPOTIFY_REFRESH_TOKEN"])
			} else if tok := env["SPOTIFY_REFRESH_TOKEN"]; tok != "" {
				client.SetRefreshToken(tok)
			}
			logger.Info("reloaded spotify credentials from env file", logger.String("path", s.path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("env watcher error", logger.ErrorField(err))
		}
	}
}
