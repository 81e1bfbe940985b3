package simulator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/matchpulse/internal/domain/types"
)

// Outcome classifies the result of posting one event.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeDuplicate
)

// Client talks to the matchpulse HTTP API.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type ingestAck struct {
	Accepted     bool `json:"accepted"`
	Deduplicated bool `json:"deduplicated"`
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrUnexpectedStatus, status)
	}
	return nil
}

// CreateMatch creates a match. It reports false without error when the
// match already exists.
func (c *Client) CreateMatch(ctx context.Context, matchID, home, away string) (bool, error) {
	body := map[string]string{"match_id": matchID, "home_team": home, "away_team": away}
	status, raw, err := c.do(ctx, http.MethodPost, "/api/v1/matches", body)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusCreated:
		return true, nil
	case http.StatusConflict:
		return false, nil
	default:
		return false, fmt.Errorf("%w: create match returned %d: %s", ErrUnexpectedStatus, status, raw)
	}
}

// PostEvent submits one event.
func (c *Client) PostEvent(ctx context.Context, e Event) (Outcome, error) { //nolint:gocritic // hugeParam: one copy per request
	status, raw, err := c.do(ctx, http.MethodPost, "/api/v1/events", e)
	if err != nil {
		return 0, err
	}
	switch status {
	case http.StatusOK:
		var ack ingestAck
		if err := json.Unmarshal(raw, &ack); err != nil {
			return 0, fmt.Errorf("decode ingest response: %w", err)
		}
		if ack.Deduplicated {
			return OutcomeDuplicate, nil
		}
		return OutcomeAccepted, nil
	case http.StatusNotFound:
		return 0, fmt.Errorf("%w: %s", ErrMatchUnknown, e.MatchID)
	default:
		return 0, fmt.Errorf("%w: post event returned %d: %s", ErrUnexpectedStatus, status, raw)
	}
}

// MatchState fetches the current state of a match.
func (c *Client) MatchState(ctx context.Context, matchID string) (types.MatchState, error) {
	var out types.MatchState
	err := c.getJSON(ctx, "/api/v1/matches/"+matchID+"/state", &out)
	return out, err
}

// LatestAnalytics fetches the latest snapshot of a match.
func (c *Client) LatestAnalytics(ctx context.Context, matchID string) (types.Snapshot, error) {
	var out types.Snapshot
	err := c.getJSON(ctx, "/api/v1/matches/"+matchID+"/analytics/latest", &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	status, raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: GET %s returned %d", ErrUnexpectedStatus, path, status)
	}
	return json.Unmarshal(raw, dst)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, raw, nil
}
