package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"spotiqueue/logger"
	"spotiqueue/model"

	"golang.org/x/time/rate"
)

const (
	apiBaseURL     = "https://api.spotify.com/v1"
	accountBaseURL = "https://accounts.spotify.com"
)

// Gateway failures the admission layer maps to client responses.
var (
	ErrNotConnected   = errors.New("no playback account is connected")
	ErrNoActiveDevice = errors.New("no active playback device")
	ErrTrackNotFound  = errors.New("track not found")
)

// UpstreamError wraps an unexpected provider response.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("spotify returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Spotify Web API. Credentials may change at runtime
// (the OAuth callback writes a new refresh token), so they live behind
// the mutex rather than being fixed at construction.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter

	mu           sync.Mutex
	clientID     string
	clientSecret string
	refreshToken string
	accessToken  string
	tokenExpiry  time.Time
	tokenScoped  bool // true when the token came from the refresh grant
	retryAfter   time.Time
}

// NewClient creates a Spotify client. An empty refreshToken limits the
// client to the client-credentials grant, which can search but cannot
// touch playback.
func NewClient(clientID, clientSecret, refreshToken string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Stays well under the provider's limit; bursts cover the
		// search-then-enqueue pattern.
		limiter:      rate.NewLimiter(rate.Limit(8), 16),
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
	}
}

// SetCredentials swaps the credentials and drops any cached token.
func (c *Client) SetCredentials(clientID, clientSecret, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientID = clientID
	c.clientSecret = clientSecret
	c.refreshToken = refreshToken
	c.accessToken = ""
	c.tokenExpiry = time.Time{}
}

// SetRefreshToken installs a new refresh token after an OAuth callback.
func (c *Client) SetRefreshToken(refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshToken = refreshToken
	c.accessToken = ""
	c.tokenExpiry = time.Time{}
}

// Connected reports whether a user account is linked.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshToken != ""
}

// Disconnect drops the linked account.
func (c *Client) Disconnect() {
	c.SetRefreshToken("")
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// ExchangeCode swaps an authorization code for tokens. Returns the new
// refresh token so the caller can persist it.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	tok, err := c.tokenRequest(ctx, form)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.refreshToken = tok.RefreshToken
	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.tokenScoped = true
	c.mu.Unlock()

	return tok.RefreshToken, nil
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (*tokenResponse, error) {
	c.mu.Lock()
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, accountBaseURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	return &tok, nil
}

// accessTokenFor returns a valid access token, refreshing if needed.
// userScoped requests require a linked account.
func (c *Client) accessTokenFor(ctx context.Context, userScoped bool) (string, error) {
	c.mu.Lock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-60*time.Second)) && (!userScoped || c.tokenScoped) {
		tok := c.accessToken
		c.mu.Unlock()
		return tok, nil
	}
	refresh := c.refreshToken
	c.mu.Unlock()

	if userScoped && refresh == "" {
		return "", ErrNotConnected
	}

	form := url.Values{}
	if refresh != "" {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", refresh)
	} else {
		form.Set("grant_type", "client_credentials")
	}

	tok, err := c.tokenRequest(ctx, form)
	if err != nil {
		return "", fmt.Errorf("failed to obtain access token: %w", err)
	}

	c.mu.Lock()
	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.tokenScoped = refresh != ""
	// Spotify may rotate the refresh token on use.
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	c.mu.Unlock()

	return tok.AccessToken, nil
}

// do performs an authenticated API call, honoring both the local limiter
// and any Retry-After the provider handed back earlier.
func (c *Client) do(ctx context.Context, method, path string, userScoped bool) (int, []byte, error) {
	c.mu.Lock()
	wait := time.Until(c.retryAfter)
	c.mu.Unlock()
	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	token, err := c.accessTokenFor(ctx, userScoped)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, apiBaseURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("spotify request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		seconds, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		if seconds <= 0 {
			seconds = 1
		}
		c.mu.Lock()
		c.retryAfter = time.Now().Add(time.Duration(seconds) * time.Second)
		c.mu.Unlock()
		logger.Warn("spotify rate limited", logger.Int("retry_after_sec", seconds))
	}

	return resp.StatusCode, body, nil
}

type trackObject struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URI     string `json:"uri"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	DurationMS int  `json:"duration_ms"`
	Explicit   bool `json:"explicit"`
}

func (t *trackObject) toMetadata() model.TrackMetadata {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	art := ""
	if len(t.Album.Images) > 0 {
		art = t.Album.Images[0].URL
	}
	return model.TrackMetadata{
		ID:         t.ID,
		Name:       t.Name,
		Artists:    strings.Join(artists, ", "),
		Album:      t.Album.Name,
		AlbumArt:   art,
		DurationMS: t.DurationMS,
		URI:        t.URI,
		Explicit:   t.Explicit,
	}
}

// Search runs a track search and returns up to limit results.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]model.TrackMetadata, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	path := fmt.Sprintf("/search?type=track&limit=%d&q=%s", limit, url.QueryEscape(query))

	status, body, err := c.do(ctx, http.MethodGet, path, false)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &UpstreamError{StatusCode: status, Body: string(body)}
	}

	var out struct {
		Tracks struct {
			Items []trackObject `json:"items"`
		} `json:"tracks"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	tracks := make([]model.TrackMetadata, 0, len(out.Tracks.Items))
	for i := range out.Tracks.Items {
		tracks = append(tracks, out.Tracks.Items[i].toMetadata())
	}
	return tracks, nil
}

// GetTrack fetches full metadata for one track id.
func (c *Client) GetTrack(ctx context.Context, trackID string) (*model.TrackMetadata, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/tracks/"+url.PathEscape(trackID), false)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		return nil, ErrTrackNotFound
	default:
		return nil, &UpstreamError{StatusCode: status, Body: string(body)}
	}

	var t trackObject
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("failed to decode track response: %w", err)
	}
	meta := t.toMetadata()
	return &meta, nil
}

// AddToQueue appends a track to the linked account's playback queue.
func (c *Client) AddToQueue(ctx context.Context, trackURI string) error {
	path := "/me/player/queue?uri=" + url.QueryEscape(trackURI)
	status, body, err := c.do(ctx, http.MethodPost, path, true)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNoActiveDevice
	default:
		return &UpstreamError{StatusCode: status, Body: string(body)}
	}
}

// GetQueue returns the linked account's current queue.
func (c *Client) GetQueue(ctx context.Context) (*model.QueueSnapshot, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/me/player/queue", true)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &UpstreamError{StatusCode: status, Body: string(body)}
	}

	var out struct {
		CurrentlyPlaying *trackObject  `json:"currently_playing"`
		Queue            []trackObject `json:"queue"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode queue response: %w", err)
	}

	snapshot := &model.QueueSnapshot{Queue: make([]model.TrackMetadata, 0, len(out.Queue))}
	if out.CurrentlyPlaying != nil {
		meta := out.CurrentlyPlaying.toMetadata()
		snapshot.CurrentlyPlaying = &meta
	}
	for i := range out.Queue {
		snapshot.Queue = append(snapshot.Queue, out.Queue[i].toMetadata())
	}
	return snapshot, nil
}

// GetNowPlaying returns the current playback state, or nil when nothing
// is playing.
func (c *Client) GetNowPlaying(ctx context.Context) (*model.NowPlaying, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/me/player/currently-playing", true)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
	default:
		return nil, &UpstreamError{StatusCode: status, Body: string(body)}
	}

	var out struct {
		Item       *trackObject `json:"item"`
		ProgressMS int          `json:"progress_ms"`
		IsPlaying  bool         `json:"is_playing"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode playback response: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	return &model.NowPlaying{
		TrackMetadata: out.Item.toMetadata(),
		ProgressMS:    out.ProgressMS,
		IsPlaying:     out.IsPlaying,
	}, nil
}

// AuthorizeURL builds the user-consent URL for the OAuth flow.
func (c *Client) AuthorizeURL(redirectURI, state string) string {
	c.mu.Lock()
	clientID := c.clientID
	c.mu.Unlock()

	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	q.Set("scope", "user-modify-playback-state user-read-playback-state user-read-currently-playing")
	return accountBaseURL + "/authorize?" + q.Encode()
}
