// Package commands implements the eapctl CLI commands.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// errAPIStatus wraps a non-2xx HTTP response from the daemon's status API.
var errAPIStatus = errors.New("eapd status api")

// sessionView mirrors internal/daemon's JSON session representation. It is
// redeclared here rather than imported so eapctl only ever depends on the
// documented HTTP contract, not on the daemon's internal types.
type sessionView struct {
	ID         string       `json:"id"`
	Addr       string       `json:"addr"`
	Method     string       `json:"method,omitempty"`
	LastActive time.Time    `json:"last_active"`
	Outcome    *outcomeView `json:"outcome"`
}

type outcomeView struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// statusClient talks to eapd's plain HTTP status API.
type statusClient struct {
	http    *http.Client
	baseURL string
}

func newStatusClient(addr string) *statusClient {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &statusClient{
		http:    &http.Client{Timeout: 5 * time.Second},
		baseURL: strings.TrimSuffix(addr, "/"),
	}
}

// ListSessions fetches every session the daemon currently knows about.
func (c *statusClient) ListSessions(ctx context.Context) ([]sessionView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/sessions", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request sessions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var sessions []sessionView
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return sessions, nil
}

// StartSession asks the daemon to begin authenticating addr, returning the
// new session's id.
func (c *statusClient) StartSession(ctx context.Context, addr string) (string, error) {
	body := strings.NewReader(fmt.Sprintf(`{"addr":%q}`, addr))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/sessions", body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request start session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", decodeError(resp)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return created.ID, nil
}

func decodeError(resp *http.Response) error {
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("%w: %s", errAPIStatus, resp.Status)
	}
	return fmt.Errorf("%w: %s: %s", errAPIStatus, resp.Status, body.Error)
}
