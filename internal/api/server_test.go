package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/puzzle-engine/internal/config"
	"github.com/terra-clan/puzzle-engine/internal/health"
	"github.com/terra-clan/puzzle-engine/internal/jobs"
	"github.com/terra-clan/puzzle-engine/internal/models"
	"github.com/terra-clan/puzzle-engine/internal/puzzle"
	"github.com/terra-clan/puzzle-engine/internal/rewards"
	"github.com/terra-clan/puzzle-engine/internal/storage"
)

type fakeManager struct {
	mu      sync.Mutex
	result  *puzzle.RequestResult
	store   *jobs.MemoryStore
	puzzles map[int64]*models.Puzzle
	active  map[int64]bool
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		store:   jobs.NewMemoryStore(time.Hour),
		puzzles: map[int64]*models.Puzzle{1: anagramPuzzle()},
		active:  map[int64]bool{},
	}
}

func anagramPuzzle() *models.Puzzle {
	return &models.Puzzle{
		ID:         1,
		Type:       models.TypeAnagram,
		Title:      "Token",
		Content:    "LOS",
		Solution:   "SOL",
		Difficulty: models.DifficultyEasy,
		Points:     50,
		Details:    models.AnagramDetails{Explanation: "native token"},
		IsActive:   true,
	}
}

func (m *fakeManager) Request(_ context.Context, req models.CreatePuzzleRequest) (*puzzle.RequestResult, error) {
	if err := puzzle.Validate(req); err != nil {
		return nil, err
	}
	return m.result, nil
}

func (m *fakeManager) Status(ctx context.Context, id string) (*models.Job, error) {
	return m.store.Get(ctx, id)
}

func (m *fakeManager) Get(_ context.Context, id int64) (*models.Puzzle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.puzzles[id]
	if !ok {
		return nil, puzzle.ErrNotFound
	}
	return p, nil
}

func (m *fakeManager) List(_ context.Context, filter models.PuzzleFilter) ([]*models.Puzzle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Puzzle
	for _, p := range m.puzzles {
		if filter.Type == "" || filter.Type == p.Type {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *fakeManager) Check(ctx context.Context, id int64, answer string) (*puzzle.CheckResult, error) {
	p, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CheckAnswer(answer) {
		return &puzzle.CheckResult{}, nil
	}
	return &puzzle.CheckResult{Correct: true, Points: p.Points}, nil
}

func (m *fakeManager) SetActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.puzzles[id]
	if !ok {
		return puzzle.ErrNotFound
	}
	p.IsActive = active
	return nil
}

func (m *fakeManager) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.puzzles[id]; !ok {
		return puzzle.ErrNotFound
	}
	delete(m.puzzles, id)
	return nil
}

// memLedger mirrors the foreign key and the one-credit-per-puzzle index of
// the rewards table
type memLedger struct {
	mu    sync.Mutex
	rows  []*models.Reward
	known func(puzzleID int64) bool
}

func (l *memLedger) CreateReward(_ context.Context, r *models.Reward) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r.PuzzleID != nil {
		if l.known != nil && !l.known(*r.PuzzleID) {
			return storage.ErrInvalidReference
		}
		for _, row := range l.rows {
			if r.Reason == models.ReasonPuzzleSolved && row.Reason == r.Reason &&
				row.UserID == r.UserID && row.PuzzleID != nil && *row.PuzzleID == *r.PuzzleID {
				return storage.ErrDuplicate
			}
		}
	}
	r.ID = int64(len(l.rows) + 1)
	l.rows = append(l.rows, r)
	return nil
}

func (l *memLedger) UserPoints(_ context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int64
	for _, r := range l.rows {
		if r.UserID == userID && r.TokenType == models.TokenTypePoints {
			total += r.TokenAmount
		}
	}
	return total, nil
}

func (l *memLedger) ListRewards(_ context.Context, userID string, _ int) ([]*models.Reward, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Reward
	for _, r := range l.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type testEnv struct {
	server  *Server
	manager *fakeManager
	ledger  *memLedger
	ts      *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	manager := newFakeManager()
	ledger := &memLedger{known: func(id int64) bool {
		manager.mu.Lock()
		defer manager.mu.Unlock()
		_, ok := manager.puzzles[id]
		return ok
	}}
	registry := health.NewRegistry()
	registry.Register("postgres", health.NewFuncProvider("postgres", func(context.Context) error { return nil }))

	s := NewServer(config.CORSConfig{}, manager, rewards.NewService(ledger), registry)
	s.statusInterval = 5 * time.Millisecond
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: s, manager: manager, ledger: ledger, ts: ts}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, _ = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env.server.registry.Register("redis", health.NewFuncProvider("redis", func(context.Context) error {
		return errors.New("connection refused")
	}))
	resp, body = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestGeneratePuzzle(t *testing.T) {
	const validBody = `{"topic":"Solana NFTs","difficulty":"easy","type":"anagram","gameId":1}`

	t.Run("validation error", func(t *testing.T) {
		env := newTestEnv(t)
		resp, body := env.do(t, http.MethodPost, "/api/generate-puzzle", `{"topic":"","difficulty":"easy","type":"anagram"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "validation_error", body["error"].(map[string]interface{})["code"])
	})

	t.Run("invalid json", func(t *testing.T) {
		env := newTestEnv(t)
		resp, _ := env.do(t, http.MethodPost, "/api/generate-puzzle", `{`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("cache hit", func(t *testing.T) {
		env := newTestEnv(t)
		env.manager.result = &puzzle.RequestResult{Puzzle: anagramPuzzle()}

		resp, body := env.do(t, http.MethodPost, "/api/generate-puzzle", validBody)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		p := body["puzzle"].(map[string]interface{})
		assert.Equal(t, "LOS", p["content"])
		assert.NotContains(t, body, "puzzleId")
	})

	t.Run("async job", func(t *testing.T) {
		env := newTestEnv(t)
		env.manager.result = &puzzle.RequestResult{JobID: "job-42"}

		resp, body := env.do(t, http.MethodPost, "/api/generate-puzzle", validBody)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "job-42", body["puzzleId"])
		assert.NotContains(t, body, "puzzle")
	})
}

func TestPuzzleStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, _ := env.do(t, http.MethodGet, "/api/puzzle-status/unknown", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, env.manager.store.Create(ctx, "job-1"))
	resp, body := env.do(t, http.MethodGet, "/api/puzzle-status/job-1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])
	assert.Nil(t, body["puzzle"])
	assert.Nil(t, body["error"])

	require.NoError(t, env.manager.store.Fail(ctx, "job-1", "generation failed after 3 attempts"))
	_, body = env.do(t, http.MethodGet, "/api/puzzle-status/job-1", "")
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "generation failed after 3 attempts", body["error"])
}

func TestPuzzleCRUD(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/puzzles?type=anagram", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["data"].(map[string]interface{})["total"])

	resp, _ = env.do(t, http.MethodGet, "/api/puzzles?type=crossword", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/puzzles/1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Token", body["data"].(map[string]interface{})["title"])

	resp, _ = env.do(t, http.MethodGet, "/api/puzzles/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/puzzles/404", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPatch, "/api/puzzles/1", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPatch, "/api/puzzles/1", `{"isActive":false}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["data"].(map[string]interface{})["isActive"])

	resp, _ = env.do(t, http.MethodDelete, "/api/puzzles/1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/puzzles/1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckAnswerAwardsPoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/puzzles/1/check", `{"answer":"eth","userId":"alice"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, false, data["correct"])
	assert.Empty(t, env.ledger.rows)

	_, body = env.do(t, http.MethodPost, "/api/puzzles/1/check", `{"answer":"sol","userId":"alice"}`)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, true, data["correct"])
	assert.EqualValues(t, 50, data["points"])
	require.Len(t, env.ledger.rows, 1)
	assert.Equal(t, int64(50), env.ledger.rows[0].TokenAmount)
	assert.Equal(t, int64(1), *env.ledger.rows[0].PuzzleID)

	// resubmitting a solved puzzle credits nothing more
	resp, body = env.do(t, http.MethodPost, "/api/puzzles/1/check", `{"answer":"sol","userId":"alice"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, true, data["correct"])
	assert.Equal(t, true, data["alreadyCredited"])
	assert.Len(t, env.ledger.rows, 1)

	_, body = env.do(t, http.MethodGet, "/api/users/alice/points", "")
	assert.EqualValues(t, 50, body["points"])
}

func TestRewardsLedger(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/rewards", `{"userId":"","tokenAmount":100}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for i := 0; i < 5; i++ {
		resp, body := env.do(t, http.MethodPost, "/api/rewards", `{"userId":"bob","tokenType":"points","tokenAmount":100,"reason":"solved"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, true, body["success"])
	}

	_, body := env.do(t, http.MethodGet, "/api/users/bob/points", "")
	assert.EqualValues(t, 500, body["points"])
	assert.Equal(t, "bob", body["userId"])
	assert.Equal(t, false, body["solEligible"])

	_, body = env.do(t, http.MethodPost, "/api/users/bob/points/reset", "")
	assert.EqualValues(t, 0, body["points"])

	_, body = env.do(t, http.MethodGet, "/api/users/bob/points", "")
	assert.EqualValues(t, 0, body["points"])

	_, body = env.do(t, http.MethodGet, "/api/users/bob/rewards", "")
	assert.EqualValues(t, 6, body["data"].(map[string]interface{})["total"])
}

func TestRewardsNegativePostingResets(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		resp, _ := env.do(t, http.MethodPost, "/api/rewards", `{"userId":"carol","tokenType":"points","tokenAmount":100}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	_, body := env.do(t, http.MethodGet, "/api/users/carol/points", "")
	require.EqualValues(t, 500, body["points"])

	resp, body := env.do(t, http.MethodPost, "/api/rewards", `{"userId":"carol","tokenType":"points","tokenAmount":-500,"reason":"reset"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, -500, body["reward"].(map[string]interface{})["tokenAmount"])

	_, body = env.do(t, http.MethodGet, "/api/users/carol/points", "")
	assert.EqualValues(t, 0, body["points"])

	resp, _ = env.do(t, http.MethodPost, "/api/rewards", `{"userId":"carol","tokenAmount":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRewardsUnknownPuzzle(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/rewards", `{"userId":"dan","puzzleId":999,"tokenAmount":10}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["error"].(map[string]interface{})["code"])
	assert.Empty(t, env.ledger.rows)
}

func TestRewardsDuplicateSolveCredit(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/puzzles/1/check", `{"answer":"sol","userId":"erin"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/rewards", `{"userId":"erin","puzzleId":1,"tokenAmount":50,"reason":"puzzle solved"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_credited", body["error"].(map[string]interface{})["code"])
	assert.Len(t, env.ledger.rows, 1)
}

func TestListTopics(t *testing.T) {
	env := newTestEnv(t)
	_, body := env.do(t, http.MethodGet, "/api/topics", "")
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, len(models.Topics), data["total"])
}

func TestStatusWebsocketPushesUntilTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.manager.store.Create(ctx, "job-ws"))

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/puzzle-status/job-ws/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg StatusMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "status", msg.Type)
	assert.Equal(t, models.JobPending, msg.Status)

	require.NoError(t, env.manager.store.Complete(ctx, "job-ws", anagramPuzzle()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.JobCompleted, msg.Status)
	require.NotNil(t, msg.Puzzle)
	assert.Equal(t, "SOL", msg.Puzzle.Solution)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestStatusWebsocketUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.ts.URL + "/api/puzzle-status/missing/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
