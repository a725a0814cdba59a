// Package client is a Go SDK for the puzzle-engine API.
package client

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
	"time"

	"github.com/terra-clan/puzzle-engine/internal/models"
	"github.com/terra-clan/puzzle-engine/internal/poll"
)

// Client is a Go SDK for the puzzle-engine API
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     poll.Policy
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithPollPolicy sets how RequestPuzzle waits for a job
func WithPollPolicy(p poll.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// NewClient creates a new puzzle-engine client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		policy: poll.DefaultPolicy(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a non-2xx response
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (HTTP %d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// JobError is returned when a generation job ends in the error state
type JobError struct {
	JobID   string
	Message string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("puzzle job %s failed: %s", e.JobID, e.Message)
}

// GenerateResult is the response of a creation call: a cached puzzle or a
// job id to poll
type GenerateResult struct {
	Success  bool           `json:"success"`
	Puzzle   *models.Puzzle `json:"puzzle"`
	PuzzleID string         `json:"puzzleId"`
}

// JobStatus is the response of the status endpoint
type JobStatus struct {
	Status models.JobStatus `json:"status"`
	Puzzle *models.Puzzle   `json:"puzzle"`
	Error  *string          `json:"error"`
}

// ListOptions contains options for listing puzzles
type ListOptions struct {
	Type       models.PuzzleType
	Difficulty models.Difficulty
	GameID     int64
	Limit      int
	Offset     int
}

// CheckResult is the outcome of an answer submission
type CheckResult struct {
	Correct bool           `json:"correct"`
	Points  int            `json:"points"`
	Reward  *models.Reward `json:"reward,omitempty"`
}

// GeneratePuzzle asks for a puzzle without waiting for generation
func (c *Client) GeneratePuzzle(ctx context.Context, req models.CreatePuzzleRequest) (*GenerateResult, error) {
	var result GenerateResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/generate-puzzle", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PuzzleStatus reads the state of a generation job
func (c *Client) PuzzleStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	var status JobStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/puzzle-status/"+url.PathEscape(jobID), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// RequestPuzzle returns a puzzle, polling the job with backoff when none was
// cached. A failed job yields *JobError; running out of attempts yields
// *poll.TimeoutError carrying the last transient error.
func (c *Client) RequestPuzzle(ctx context.Context, req models.CreatePuzzleRequest) (*models.Puzzle, error) {
	res, err := c.GeneratePuzzle(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Puzzle != nil {
		return res.Puzzle, nil
	}
	if res.PuzzleID == "" {
		return nil, errors.New("response carried neither a puzzle nor a job id")
	}

	return poll.Until(ctx, func(ctx context.Context) (poll.Result[*models.Puzzle], error) {
		status, err := c.PuzzleStatus(ctx, res.PuzzleID)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				return poll.Result[*models.Puzzle]{}, poll.Permanent(err)
			}
			return poll.Result[*models.Puzzle]{}, err
		}

		switch status.Status {
		case models.JobCompleted:
			if status.Puzzle == nil {
				return poll.Result[*models.Puzzle]{}, poll.Permanent(&JobError{JobID: res.PuzzleID, Message: "completed without a puzzle"})
			}
			return poll.Done(status.Puzzle), nil
		case models.JobError:
			msg := "unknown error"
			if status.Error != nil {
				msg = *status.Error
			}
			return poll.Result[*models.Puzzle]{}, poll.Permanent(&JobError{JobID: res.PuzzleID, Message: msg})
		}
		return poll.Pending[*models.Puzzle](), nil
	}, c.policy)
}

// GetPuzzle retrieves a stored puzzle
func (c *Client) GetPuzzle(ctx context.Context, id int64) (*models.Puzzle, error) {
	var p models.Puzzle
	if err := c.doEnvelope(ctx, http.MethodGet, fmt.Sprintf("/api/puzzles/%d", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPuzzles lists stored puzzles
func (c *Client) ListPuzzles(ctx context.Context, opts ListOptions) ([]*models.Puzzle, error) {
	q := url.Values{}
	if opts.Type != "" {
		q.Set("type", string(opts.Type))
	}
	if opts.Difficulty != "" {
		q.Set("difficulty", string(opts.Difficulty))
	}
	if opts.GameID > 0 {
		q.Set("gameId", strconv.FormatInt(opts.GameID, 10))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	path := "/api/puzzles"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var data struct {
		Puzzles []*models.Puzzle `json:"puzzles"`
	}
	if err := c.doEnvelope(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data.Puzzles, nil
}

// CheckAnswer submits an answer. With a user id, a correct answer is
// credited to that user.
func (c *Client) CheckAnswer(ctx context.Context, id int64, answer, userID string) (*CheckResult, error) {
	body := map[string]string{"answer": answer}
	if userID != "" {
		body["userId"] = userID
	}

	var res CheckResult
	if err := c.doEnvelope(ctx, http.MethodPost, fmt.Sprintf("/api/puzzles/%d/check", id), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateReward appends a ledger row
func (c *Client) CreateReward(ctx context.Context, req models.CreateRewardRequest) (*models.Reward, error) {
	var result struct {
		Reward *models.Reward `json:"reward"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/rewards", req, &result); err != nil {
		return nil, err
	}
	return result.Reward, nil
}

// Points returns a user's balance
func (c *Client) Points(ctx context.Context, userID string) (*models.PointsSummary, error) {
	var summary models.PointsSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/points", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ResetPoints zeroes a user's balance
func (c *Client) ResetPoints(ctx context.Context, userID string) (*models.PointsSummary, error) {
	var summary models.PointsSummary
	if err := c.doJSON(ctx, http.MethodPost, "/api/users/"+url.PathEscape(userID)+"/points/reset", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Rewards lists a user's ledger rows
func (c *Client) Rewards(ctx context.Context, userID string) ([]*models.Reward, error) {
	var data struct {
		Rewards []*models.Reward `json:"rewards"`
	}
	if err := c.doEnvelope(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/rewards", nil, &data); err != nil {
		return nil, err
	}
	return data.Rewards, nil
}

// Topics lists the curated puzzle topics
func (c *Client) Topics(ctx context.Context) ([]string, error) {
	var data struct {
		Topics []string `json:"topics"`
	}
	if err := c.doEnvelope(ctx, http.MethodGet, "/api/topics", nil, &data); err != nil {
		return nil, err
	}
	return data.Topics, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}

// doEnvelope decodes the data field of a {success, data, error} response
func (c *Client) doEnvelope(ctx context.Context, method, path string, in, out interface{}) error {
	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := c.doJSON(ctx, method, path, in, &result); err != nil {
		return err
	}
	if len(result.Data) == 0 {
		return errors.New("response has no data")
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var envelope struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return nil, apiErr
	}

	return respBody, nil
}
