// Package engine talks to the execution engine that holds scheduled
// deliveries and runs the delivery pipeline. The wire format follows the
// Inngest event and REST APIs.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"snapletter/internal/domain/delivery"
	"snapletter/internal/infra/config"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("execution engine call rate exceeded")
var ErrMalformedResponse = errors.New("execution engine returned malformed data")

// StatusError is a non-2xx answer from the engine.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("execution engine responded %d: %s", e.StatusCode, e.Body)
}

// Client implements delivery.Engine over HTTP.
type Client struct {
	cfg     config.EngineConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *logrus.Entry
}

func NewClient(cfg config.EngineConfig, logger *logrus.Entry) *Client {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		logger:  logger,
	}
}

// Configured reports whether the client has the credentials it needs.
func (c *Client) Configured() bool {
	return c.cfg.Configured()
}

// EventName is the event the delivery pipeline listens for.
func (c *Client) EventName() string {
	return c.cfg.EventName
}

type sendRequest struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
	Data any    `json:"data"`
	TS   int64  `json:"ts,omitempty"` // unix milliseconds
}

type sendResponse struct {
	IDs    []string `json:"ids"`
	Status int      `json:"status"`
	Error  string   `json:"error"`
}

// Submit posts one event and returns the id the engine assigned to it.
func (c *Client) Submit(ctx context.Context, event delivery.Event) (string, error) {
	if !c.Configured() {
		return "", delivery.ErrEngineNotConfigured
	}
	if !c.limiter.Allow() {
		return "", ErrRateLimited
	}

	name := event.Name
	if name == "" {
		name = c.cfg.EventName
	}
	body := sendRequest{Name: name, ID: event.ID, Data: event.Data}
	if !event.FireAt.IsZero() {
		body.TS = event.FireAt.UnixMilli()
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.EventURL, "/") + "/e/" + url.PathEscape(c.cfg.EventKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("failed to build event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp sendResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if len(resp.IDs) == 0 || resp.IDs[0] == "" {
		return "", fmt.Errorf("%w: no event id in response", ErrMalformedResponse)
	}

	c.logger.WithFields(logrus.Fields{
		"event_name": name,
		"event_id":   resp.IDs[0],
		"fire_at":    event.FireAt,
	}).Debug("Event submitted")
	return resp.IDs[0], nil
}

type runsResponse struct {
	Data []runDTO `json:"data"`
}

type runDTO struct {
	RunID        string          `json:"run_id"`
	Status       string          `json:"status"`
	RunStartedAt *time.Time      `json:"run_started_at"`
	EndedAt      *time.Time      `json:"ended_at"`
	Output       json.RawMessage `json:"output"`
}

// ListRuns fetches every run recorded for an event.
func (c *Client) ListRuns(ctx context.Context, correlationID string) ([]delivery.Run, error) {
	if !c.Configured() {
		return nil, delivery.ErrEngineNotConfigured
	}
	if !c.limiter.Allow() {
		return nil, ErrRateLimited
	}

	endpoint := strings.TrimRight(c.cfg.APIURL, "/") + "/events/" + url.PathEscape(correlationID) + "/runs"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build runs request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SigningKey)

	var resp runsResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	runs := make([]delivery.Run, 0, len(resp.Data))
	for _, dto := range resp.Data {
		if dto.Status == "" {
			return nil, fmt.Errorf("%w: run %q has no status", ErrMalformedResponse, dto.RunID)
		}
		run := delivery.Run{ID: dto.RunID, State: dto.Status, Output: dto.Output}
		if dto.RunStartedAt != nil {
			run.StartedAt = *dto.RunStartedAt
		}
		if dto.EndedAt != nil {
			run.EndedAt = *dto.EndedAt
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execution engine request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read execution engine response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
