// Package lichess talks to the remote irwin job and report API.
//
// The client is the worker's source feed, data provider and report sink:
//
//	GET  /api/irwin/jobs/next       200 {"playerId","queuedAt"} or 204 when idle
//	GET  /api/irwin/players/{id}    player games
//	POST /api/irwin/reports         report document
//
// Requests are rate limited and retried with backoff on transport errors,
// 429 and 5xx. Other 4xx responses fail immediately.
package lichess

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/irwin/internal/domain/model"
	"github.com/okian/irwin/pkg/logger"
	"github.com/okian/irwin/pkg/metrics"
	"github.com/okian/irwin/pkg/retry"
)

// Default client configuration constants.
const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 5 * time.Second
	defaultRPS          = 2
	maxResponseBytes    = 10 << 20
	maxRetryAfter       = 30
	errorSnippetBytes   = 256
)

// Client is an HTTP client for the remote API. It is safe for concurrent use.
type Client struct {
	baseURL      string
	token        string
	http         *http.Client
	limiter      *rate.Limiter
	policy       retry.Policy
	pollInterval time.Duration
	logger       logger.Logger
}

// New creates a client for baseURL, e.g. "https://lichess.org".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: defaultTimeout},
		limiter:      rate.NewLimiter(rate.Limit(defaultRPS), 1),
		policy:       retry.DefaultPolicy(),
		pollInterval: defaultPollInterval,
		logger:       logger.Get().Named("lichess"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type jobResponse struct {
	PlayerID string    `json:"playerId"`
	QueuedAt time.Time `json:"queuedAt"`
}

// Next blocks until the remote queue hands out a player or ctx is done.
func (c *Client) Next(ctx context.Context) (model.Job, error) {
	for {
		job, err := c.nextJob(ctx)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, ErrNoJob) {
			return model.Job{}, err
		}

		t := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return model.Job{}, ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) nextJob(ctx context.Context) (model.Job, error) {
	status, body, err := c.do(ctx, "next_job", http.MethodGet, "/api/irwin/jobs/next", nil)
	if err != nil {
		return model.Job{}, err
	}
	if status == http.StatusNoContent {
		return model.Job{}, ErrNoJob
	}

	var resp jobResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.Job{}, fmt.Errorf("%w: job: %w", ErrDecode, err)
	}
	if resp.PlayerID == "" {
		return model.Job{}, fmt.Errorf("%w: job without playerId", ErrDecode)
	}
	return model.Job{PlayerID: resp.PlayerID, QueuedAt: resp.QueuedAt}, nil
}

// Done acknowledges a job. The remote queue removes players when it hands
// them out, so there is nothing to send.
func (c *Client) Done(context.Context, model.Job) error {
	return nil
}

// PlayerData fetches the games of playerID. A payload without a games
// collection decodes successfully and fails PlayerData.Validate.
func (c *Client) PlayerData(ctx context.Context, playerID string) (model.PlayerData, error) {
	_, body, err := c.do(ctx, "player_data", http.MethodGet, "/api/irwin/players/"+url.PathEscape(playerID), nil)
	if err != nil {
		return model.PlayerData{}, err
	}

	var data model.PlayerData
	if err := json.Unmarshal(body, &data); err != nil {
		return model.PlayerData{}, fmt.Errorf("%w: player %s: %w", ErrDecode, playerID, err)
	}
	return data, nil
}

// PostReport publishes a report.
func (c *Client) PostReport(ctx context.Context, report model.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, _, err = c.do(ctx, "post_report", http.MethodPost, "/api/irwin/reports", payload)
	if err == nil {
		c.logger.Debug(ctx, "report posted",
			logger.String("player", report.UserID),
			logger.Int("activation", report.Activation),
		)
	}
	return err
}

// do performs one logical request with rate limiting and retries and
// returns the final status and body.
func (c *Client) do(ctx context.Context, operation, method, path string, payload []byte) (int, []byte, error) {
	type result struct {
		status int
		body   []byte
	}

	res, err := retry.Value(ctx, c.policy, operation, func(ctx context.Context) (result, error) {
		status, body, err := c.attempt(ctx, operation, method, path, payload)
		return result{status: status, body: body}, err
	})
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return res.status, res.body, nil
}

func (c *Client) attempt(ctx context.Context, operation, method, path string, payload []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, retry.Permanent(fmt.Errorf("rate limiter wait: %w", err))
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest(operation, "error")
		if ctx.Err() != nil {
			return 0, nil, retry.Permanent(fmt.Errorf("request cancelled: %w", ctx.Err()))
		}
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	metrics.RecordRemoteRequest(operation, strconv.Itoa(resp.StatusCode))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn(ctx, "rate limited by remote", logger.String("operation", operation))
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
			return 0, nil, retry.After(min(seconds, maxRetryAfter))
		}
		return 0, nil, statusError(resp.StatusCode, body)
	case resp.StatusCode >= 500:
		return 0, nil, statusError(resp.StatusCode, body)
	default:
		return 0, nil, retry.Permanent(statusError(resp.StatusCode, body))
	}
}

func statusError(status int, body []byte) error {
	if len(body) > errorSnippetBytes {
		body = body[:errorSnippetBytes]
	}
	return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, status, strings.TrimSpace(string(body)))
}
