package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/arlenko/mira/internal/config"
	"github.com/arlenko/mira/pkg/types"
)

// Client talks to the remote persistence service. It owns token attachment,
// rate limiting, retries and error-shape normalization; callers get decoded
// values or a wrapped error.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
	tokenMu    sync.RWMutex
	token      string
	userAgent  string
	debug      bool

	requestCount atomic.Int64
	errorCount   atomic.Int64
}

type SortOption string

const (
	SortDefault  SortOption = ""
	SortPlayed   SortOption = "played"
	SortLikes    SortOption = "likes"
	SortRecent   SortOption = "recent"
	SortDuration SortOption = "duration"
)

func NewClient(cfg *config.Config) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.API.Retries
	retryClient.HTTPClient.Timeout = time.Duration(cfg.API.Timeout) * time.Second
	retryClient.Logger = nil

	if cfg.Debug {
		retryClient.Logger = &debugLogger{}
	}

	limiter := rate.NewLimiter(
		rate.Limit(cfg.API.RateLimit.RequestsPerSecond),
		cfg.API.RateLimit.BurstSize,
	)

	return &Client{
		baseURL:    cfg.API.BaseURL,
		httpClient: retryClient,
		limiter:    limiter,
		token:      cfg.API.Token,
		userAgent:  cfg.API.UserAgent,
		debug:      cfg.Debug,
	}
}

type debugLogger struct{}

func (d *debugLogger) Printf(format string, args ...interface{}) {
	log.Printf("[HTTP] "+format, args...)
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if !c.debug {
		return
	}
	log.Printf("[API] "+format, args...)
}

// SetToken replaces the bearer token. Safe to call while requests are in
// flight; logout can race a fire-and-forget play record.
func (c *Client) SetToken(token string) {
	c.tokenMu.Lock()
	c.token = token
	c.tokenMu.Unlock()
}

func (c *Client) Token() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

func (c *Client) makeRequest(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	c.requestCount.Add(1)

	var reqBody io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.errorCount.Add(1)
		return nil, fmt.Errorf("do request: %w", err)
	}

	responseBody, readErr := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.debugLog("Failed to close response body: %v", closeErr)
	}
	if readErr != nil {
		c.errorCount.Add(1)
		return nil, fmt.Errorf("read response body: %w", readErr)
	}

	if resp.StatusCode >= 400 {
		c.errorCount.Add(1)
		return responseBody, c.normalizeError(resp, responseBody)
	}

	c.debugLog("%s %s -> %d (%d bytes)", method, fullURL, resp.StatusCode, len(responseBody))
	return responseBody, nil
}

func (c *Client) normalizeError(resp *http.Response, body []byte) error {
	var apiError struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}

	if json.Unmarshal(body, &apiError) == nil {
		msg := apiError.Error
		if msg == "" {
			msg = apiError.Message
		}
		if msg == "" {
			msg = apiError.Detail
		}
		if msg != "" {
			return fmt.Errorf("API error %d: %s", resp.StatusCode, msg)
		}
	}

	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
}

func (c *Client) GetTracks(ctx context.Context, page int, search string, sort SortOption) (*types.TrackListResponse, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if search != "" {
		params.Set("search", search)
	}
	if sort != SortDefault {
		params.Set("sort", string(sort))
	}

	body, err := c.makeRequest(ctx, "GET", "/catalog/tracks/", params, nil)
	if err != nil {
		return nil, fmt.Errorf("get tracks: %w", err)
	}

	var result types.TrackListResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode tracks response: %w", err)
	}
	return &result, nil
}

func (c *Client) GetTrack(ctx context.Context, id string) (*types.Track, error) {
	body, err := c.makeRequest(ctx, "GET", "/catalog/tracks/"+id, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}

	var track types.Track
	if err := json.Unmarshal(body, &track); err != nil {
		return nil, fmt.Errorf("decode track response: %w", err)
	}
	return &track, nil
}

func (c *Client) GetAlbum(ctx context.Context, id string) (*types.Album, error) {
	body, err := c.makeRequest(ctx, "GET", "/catalog/albums/"+id, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get album: %w", err)
	}

	var album types.Album
	if err := json.Unmarshal(body, &album); err != nil {
		return nil, fmt.Errorf("decode album response: %w", err)
	}
	return &album, nil
}

func (c *Client) GetArtist(ctx context.Context, id string) (*types.Artist, error) {
	body, err := c.makeRequest(ctx, "GET", "/catalog/artists/"+id, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get artist: %w", err)
	}

	var artist types.Artist
	if err := json.Unmarshal(body, &artist); err != nil {
		return nil, fmt.Errorf("decode artist response: %w", err)
	}
	return &artist, nil
}

func (c *Client) GetPlaylists(ctx context.Context) ([]*types.Playlist, error) {
	body, err := c.makeRequest(ctx, "GET", "/library/playlists/", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get playlists: %w", err)
	}

	var playlists []*types.Playlist
	if err := json.Unmarshal(body, &playlists); err != nil {
		return nil, fmt.Errorf("decode playlists response: %w", err)
	}
	return playlists, nil
}

func (c *Client) GetPlaylist(ctx context.Context, id string) (*types.Playlist, error) {
	body, err := c.makeRequest(ctx, "GET", "/library/playlists/"+id, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get playlist: %w", err)
	}

	var playlist types.Playlist
	if err := json.Unmarshal(body, &playlist); err != nil {
		return nil, fmt.Errorf("decode playlist response: %w", err)
	}
	return &playlist, nil
}

// CreatePlaylist returns the server-assigned playlist; the id the caller sent
// is provisional and replaced by the response.
func (c *Client) CreatePlaylist(ctx context.Context, title, description string) (*types.Playlist, error) {
	payload := map[string]string{"title": title}
	if description != "" {
		payload["description"] = description
	}

	body, err := c.makeRequest(ctx, "POST", "/library/playlists/", nil, payload)
	if err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}

	var playlist types.Playlist
	if err := json.Unmarshal(body, &playlist); err != nil {
		return nil, fmt.Errorf("decode create playlist response: %w", err)
	}
	return &playlist, nil
}

func (c *Client) DeletePlaylist(ctx context.Context, id string) error {
	if _, err := c.makeRequest(ctx, "DELETE", "/library/playlists/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	return nil
}

func (c *Client) AddPlaylistTrack(ctx context.Context, playlistID, trackID string) error {
	payload := map[string]string{"track": trackID}
	if _, err := c.makeRequest(ctx, "POST", "/library/playlists/"+playlistID+"/tracks/", nil, payload); err != nil {
		return fmt.Errorf("add playlist track: %w", err)
	}
	return nil
}

func (c *Client) RemovePlaylistTrack(ctx context.Context, playlistID, trackID string) error {
	if _, err := c.makeRequest(ctx, "DELETE", "/library/playlists/"+playlistID+"/tracks/"+trackID, nil, nil); err != nil {
		return fmt.Errorf("remove playlist track: %w", err)
	}
	return nil
}

func (c *Client) GetLikedTracks(ctx context.Context) ([]*types.Track, error) {
	body, err := c.makeRequest(ctx, "GET", "/library/likes/", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get liked tracks: %w", err)
	}

	var tracks []*types.Track
	if err := json.Unmarshal(body, &tracks); err != nil {
		return nil, fmt.Errorf("decode liked tracks response: %w", err)
	}
	return tracks, nil
}

func (c *Client) LikeTrack(ctx context.Context, trackID string) error {
	payload := map[string]string{"track": trackID}
	if _, err := c.makeRequest(ctx, "POST", "/library/likes/", nil, payload); err != nil {
		return fmt.Errorf("like track: %w", err)
	}
	return nil
}

func (c *Client) UnlikeTrack(ctx context.Context, trackID string) error {
	if _, err := c.makeRequest(ctx, "DELETE", "/library/likes/"+trackID, nil, nil); err != nil {
		return fmt.Errorf("unlike track: %w", err)
	}
	return nil
}

// RecordPlay inserts a play event. Callers treat this as best-effort; the
// event id deduplicates retried deliveries server-side.
func (c *Client) RecordPlay(ctx context.Context, trackID, eventID string, playedAt time.Time) error {
	payload := map[string]interface{}{
		"track":     trackID,
		"event_id":  eventID,
		"played_at": playedAt.UTC().Format(time.RFC3339),
	}
	if _, err := c.makeRequest(ctx, "POST", "/stats/plays/", nil, payload); err != nil {
		return fmt.Errorf("record play: %w", err)
	}
	return nil
}

func (c *Client) searchCategory(ctx context.Context, category, query string, limit int, out interface{}) error {
	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.makeRequest(ctx, "GET", "/search/"+category+"/", params, nil)
	if err != nil {
		return fmt.Errorf("search %s: %w", category, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s search response: %w", category, err)
	}
	return nil
}

func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]*types.Track, error) {
	var tracks []*types.Track
	if err := c.searchCategory(ctx, "tracks", query, limit, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) ([]*types.Album, error) {
	var albums []*types.Album
	if err := c.searchCategory(ctx, "albums", query, limit, &albums); err != nil {
		return nil, err
	}
	return albums, nil
}

func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]*types.Artist, error) {
	var artists []*types.Artist
	if err := c.searchCategory(ctx, "artists", query, limit, &artists); err != nil {
		return nil, err
	}
	return artists, nil
}

func (c *Client) SearchPlaylists(ctx context.Context, query string, limit int) ([]*types.Playlist, error) {
	var playlists []*types.Playlist
	if err := c.searchCategory(ctx, "playlists", query, limit, &playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string, limit int) ([]*types.User, error) {
	var users []*types.User
	if err := c.searchCategory(ctx, "users", query, limit, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"total_requests": c.requestCount.Load(),
		"total_errors":   c.errorCount.Load(),
		"has_token":      c.Token() != "",
		"base_url":       c.baseURL,
	}
}
