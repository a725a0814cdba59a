package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/puzzle-engine/internal/models"
	"github.com/terra-clan/puzzle-engine/internal/poll"
)

func fastPolicy(attempts int) poll.Policy {
	return poll.Policy{Base: time.Millisecond, Factor: 1, Max: time.Millisecond, MaxAttempts: attempts}
}

func quizPuzzle(id int64) models.Puzzle {
	return models.Puzzle{
		ID:         id,
		Type:       models.TypeQuiz,
		Title:      "Consensus",
		Content:    "What does Solana use to order transactions?",
		Solution:   "Proof of History",
		Difficulty: models.DifficultyMedium,
		Points:     20,
		Details: models.QuizDetails{
			Options:     []string{"Proof of History", "Proof of Work"},
			Explanation: "PoH is a verifiable clock.",
		},
		IsActive: true,
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestRequestPuzzleCacheHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate-puzzle", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req models.CreatePuzzleRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "solana", req.Topic)

		writeJSON(t, w, http.StatusOK, map[string]interface{}{"success": true, "puzzle": quizPuzzle(7)})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	p, err := c.RequestPuzzle(context.Background(), models.CreatePuzzleRequest{
		Topic: "solana", Difficulty: models.DifficultyMedium, Type: models.TypeQuiz,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "Consensus", p.Title)
}

func TestRequestPuzzlePollsUntilCompleted(t *testing.T) {
	var checks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate-puzzle":
			writeJSON(t, w, http.StatusAccepted, map[string]interface{}{"success": true, "puzzleId": "job-1"})
		case "/api/puzzle-status/job-1":
			if checks.Add(1) < 3 {
				writeJSON(t, w, http.StatusOK, map[string]interface{}{"status": "pending", "puzzle": nil, "error": nil})
				return
			}
			writeJSON(t, w, http.StatusOK, map[string]interface{}{"status": "completed", "puzzle": quizPuzzle(9), "error": nil})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithPollPolicy(fastPolicy(10)))
	p, err := c.RequestPuzzle(context.Background(), models.CreatePuzzleRequest{Topic: "solana", Type: models.TypeQuiz})
	require.NoError(t, err)
	assert.Equal(t, int64(9), p.ID)
	assert.Equal(t, int32(3), checks.Load())
}

func TestRequestPuzzleJobError(t *testing.T) {
	var checks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate-puzzle":
			writeJSON(t, w, http.StatusAccepted, map[string]interface{}{"success": true, "puzzleId": "job-2"})
		default:
			checks.Add(1)
			writeJSON(t, w, http.StatusOK, map[string]interface{}{"status": "error", "puzzle": nil, "error": "backend unavailable"})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithPollPolicy(fastPolicy(10)))
	_, err := c.RequestPuzzle(context.Background(), models.CreatePuzzleRequest{Topic: "solana", Type: models.TypeQuiz})

	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "job-2", jobErr.JobID)
	assert.Equal(t, "backend unavailable", jobErr.Message)
	assert.Equal(t, int32(1), checks.Load(), "a failed job must not be polled again")
}

func TestRequestPuzzleTimeoutKeepsLastError(t *testing.T) {
	var checks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate-puzzle":
			writeJSON(t, w, http.StatusAccepted, map[string]interface{}{"success": true, "puzzleId": "job-3"})
		default:
			checks.Add(1)
			writeJSON(t, w, http.StatusServiceUnavailable, map[string]interface{}{
				"success": false,
				"error":   map[string]string{"code": "unavailable", "message": "try later"},
			})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithPollPolicy(fastPolicy(4)))
	_, err := c.RequestPuzzle(context.Background(), models.CreatePuzzleRequest{Topic: "solana", Type: models.TypeQuiz})

	var timeout *poll.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 4, timeout.Attempts)
	assert.ErrorIs(t, err, poll.ErrTimeout)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "unavailable", apiErr.Code)
	assert.Equal(t, int32(4), checks.Load())
}

func TestRequestPuzzleRecoversFromTransientError(t *testing.T) {
	var checks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate-puzzle":
			writeJSON(t, w, http.StatusAccepted, map[string]interface{}{"success": true, "puzzleId": "job-4"})
		default:
			if checks.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			writeJSON(t, w, http.StatusOK, map[string]interface{}{"status": "completed", "puzzle": quizPuzzle(11), "error": nil})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithPollPolicy(fastPolicy(5)))
	p, err := c.RequestPuzzle(context.Background(), models.CreatePuzzleRequest{Topic: "solana", Type: models.TypeQuiz})
	require.NoError(t, err)
	assert.Equal(t, int64(11), p.ID)
}

func TestRequestPuzzleUnknownJobStops(t *testing.T) {
	var checks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate-puzzle":
			writeJSON(t, w, http.StatusAccepted, map[string]interface{}{"success": true, "puzzleId": "gone"})
		default:
			checks.Add(1)
			writeJSON(t, w, http.StatusNotFound, map[string]interface{}{
				"success": false,
				"error":   map[string]string{"code": "not_found", "message": "puzzle job not found"},
			})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithPollPolicy(fastPolicy(10)))
	_, err := c.RequestPuzzle(context.Background(), models.CreatePuzzleRequest{Topic: "solana", Type: models.TypeQuiz})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.False(t, errors.Is(err, poll.ErrTimeout))
	assert.Equal(t, int32(1), checks.Load())
}

func TestGeneratePuzzleValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   map[string]string{"code": "validation_error", "message": "topic is required"},
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GeneratePuzzle(context.Background(), models.CreatePuzzleRequest{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "validation_error", apiErr.Code)
	assert.Equal(t, "topic is required", apiErr.Message)
}

func TestCheckAnswerAndPoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/puzzles/7/check":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "u1", body["userId"])
			writeJSON(t, w, http.StatusOK, map[string]interface{}{
				"success": true,
				"data":    map[string]interface{}{"correct": true, "points": 20},
			})
		case "/api/users/u1/points":
			writeJSON(t, w, http.StatusOK, models.NewPointsSummary("u1", 6000))
		case "/api/users/u1/points/reset":
			assert.Equal(t, http.MethodPost, r.Method)
			writeJSON(t, w, http.StatusOK, models.NewPointsSummary("u1", 0))
		case "/api/topics":
			writeJSON(t, w, http.StatusOK, map[string]interface{}{
				"success": true,
				"data":    map[string]interface{}{"topics": []string{"Solana blockchain"}, "total": 1},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	res, err := c.CheckAnswer(ctx, 7, "Proof of History", "u1")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, 20, res.Points)

	summary, err := c.Points(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), summary.Points)
	assert.True(t, summary.SOLEligible)

	summary, err = c.ResetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, summary.Points)

	topics, err := c.Topics(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Solana blockchain"}, topics)
}
