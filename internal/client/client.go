// Package client talks to the Gramy JSON API with a cookie session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gramy/gramy/internal/collections"
	"github.com/gramy/gramy/internal/follows"
	"github.com/gramy/gramy/internal/games"
	"github.com/gramy/gramy/internal/reviews"
	"github.com/gramy/gramy/internal/shared"
)

// APIError is a non-success response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gramy api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("gramy api: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// SessionInfo is the session bootstrap payload.
type SessionInfo struct {
	CSRFToken string `json:"csrf_token"`
	UserID    string `json:"user_id,omitempty"`
}

// GameLog is the request body of the game log API.
type GameLog struct {
	GameID      int64    `json:"gameId"`
	PlayCount   *int     `json:"playCount,omitempty"`
	HoursPlayed *float64 `json:"hoursPlayed,omitempty"`
	PlatformID  *int64   `json:"platformId,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
	Completed   *bool    `json:"completed,omitempty"`
	StartedAt   *string  `json:"startedAt,omitempty"`
	CompletedAt *string  `json:"completedAt,omitempty"`
	ReviewID    *string  `json:"reviewId,omitempty"`
}

// Client is a signed-in or anonymous API session.
type Client struct {
	base *url.URL
	http *http.Client

	mu   sync.Mutex
	csrf string
}

// New builds a Client for baseURL. A nil httpClient gets a fresh one; either
// way a cookie jar is attached when missing.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient.Jar = jar
	}
	return &Client{base: base, http: httpClient}, nil
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.csrf
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.csrf = token
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		if token := c.token(); token != "" {
			req.Header.Set(shared.CSRFHeader, token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &failure)
		return &APIError{Status: resp.StatusCode, Message: failure.Error}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// result calls an action endpoint and unwraps its data.
func result[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var env envelope[T]
	if err := c.do(ctx, method, path, body, &env); err != nil {
		var zero T
		return zero, err
	}
	if !env.Success {
		var zero T
		return zero, &APIError{Status: http.StatusOK, Message: env.Error}
	}
	return env.Data, nil
}

// Session starts or resumes the cookie session and caches its CSRF token.
func (c *Client) Session(ctx context.Context) (SessionInfo, error) {
	var info SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &info); err != nil {
		return SessionInfo{}, err
	}
	c.setToken(info.CSRFToken)
	return info, nil
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (SessionInfo, error) {
	if c.token() == "" {
		if _, err := c.Session(ctx); err != nil {
			return SessionInfo{}, err
		}
	}
	var info SessionInfo
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &info); err != nil {
		return SessionInfo{}, err
	}
	c.setToken(info.CSRFToken)
	return info, nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.setToken("")
	return nil
}

// ToggleLike flips the caller's like on a review.
func (c *Client) ToggleLike(ctx context.Context, reviewID string) (reviews.LikeState, error) {
	return result[reviews.LikeState](ctx, c, http.MethodPost, "/api/reviews/"+url.PathEscape(reviewID)+"/like", nil)
}

// Follow follows userID.
func (c *Client) Follow(ctx context.Context, userID string) (follows.State, error) {
	return result[follows.State](ctx, c, http.MethodPost, "/api/users/"+url.PathEscape(userID)+"/follow", nil)
}

// Unfollow stops following userID.
func (c *Client) Unfollow(ctx context.Context, userID string) (follows.State, error) {
	return result[follows.State](ctx, c, http.MethodDelete, "/api/users/"+url.PathEscape(userID)+"/follow", nil)
}

func statusPath(gameID int64) string {
	return "/api/games/" + strconv.FormatInt(gameID, 10) + "/status"
}

// SetStatus sets the caller's status for a game.
func (c *Client) SetStatus(ctx context.Context, gameID int64, status games.Status) (games.StatusState, error) {
	return result[games.StatusState](ctx, c, http.MethodPut, statusPath(gameID), map[string]games.Status{"status": status})
}

// RemoveStatus clears the caller's status for a game.
func (c *Client) RemoveStatus(ctx context.Context, gameID int64) (games.StatusState, error) {
	return result[games.StatusState](ctx, c, http.MethodDelete, statusPath(gameID), nil)
}

// ToggleCollectionGame adds the game to the collection or removes it.
func (c *Client) ToggleCollectionGame(ctx context.Context, collectionID string, gameID int64) (collections.Membership, error) {
	path := "/api/collections/" + url.PathEscape(collectionID) + "/games/" + strconv.FormatInt(gameID, 10) + "/toggle"
	return result[collections.Membership](ctx, c, http.MethodPost, path, nil)
}

// CreateGameLog records a play session.
func (c *Client) CreateGameLog(ctx context.Context, in GameLog) (games.Log, error) {
	var out struct {
		Log games.Log `json:"log"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/game-logs", in, &out); err != nil {
		return games.Log{}, err
	}
	return out.Log, nil
}

// ListGameLogs lists the caller's logs for a game, newest first.
func (c *Client) ListGameLogs(ctx context.Context, gameID int64, limit int) ([]games.Log, error) {
	q := url.Values{}
	q.Set("gameId", strconv.FormatInt(gameID, 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Logs []games.Log `json:"logs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/game-logs?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Logs, nil
}
