package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/puzzle-engine/internal/jobs"
	"github.com/terra-clan/puzzle-engine/internal/models"
	"github.com/terra-clan/puzzle-engine/internal/poll"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StatusMessage is pushed to websocket subscribers of a job
type StatusMessage struct {
	Type   string           `json:"type"`
	Status models.JobStatus `json:"status,omitempty"`
	Puzzle *models.Puzzle   `json:"puzzle,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// handleStatusWS pushes a job's status on every change until it is terminal
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	if _, err := s.puzzles.Status(r.Context(), jobID); err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			http.Error(w, "puzzle job not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to get puzzle status", "job_id", jobID, "error", err)
		http.Error(w, "failed to get puzzle status", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	// Server read and write timeouts still apply to the hijacked connection
	_ = conn.SetReadDeadline(time.Time{})

	slog.Info("status websocket connected", "job_id", jobID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read side only detects the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	var last models.JobStatus
	policy := poll.DefaultPolicy()
	policy.Base = s.statusInterval
	policy.MaxAttempts = 1 << 20
	policy.Deadline = jobs.DefaultTTL

	_, err = poll.Until(ctx, func(ctx context.Context) (poll.Result[struct{}], error) {
		job, err := s.puzzles.Status(ctx, jobID)
		if err != nil {
			if errors.Is(err, jobs.ErrJobNotFound) {
				return poll.Result[struct{}]{}, poll.Permanent(err)
			}
			return poll.Result[struct{}]{}, err
		}

		if job.Status != last {
			last = job.Status
			msg := StatusMessage{Type: "status", Status: job.Status, Puzzle: job.Puzzle, Error: job.Error}
			if err := s.sendStatusMessage(conn, msg); err != nil {
				return poll.Result[struct{}]{}, poll.Permanent(err)
			}
		}
		if job.Status.IsTerminal() {
			return poll.Done(struct{}{}), nil
		}
		return poll.Pending[struct{}](), nil
	}, policy)

	if err != nil && !errors.Is(err, context.Canceled) {
		s.sendStatusMessage(conn, StatusMessage{Type: "error", Error: err.Error()})
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	slog.Info("status websocket disconnected", "job_id", jobID, "status", last)
}

func (s *Server) sendStatusMessage(conn *websocket.Conn, msg StatusMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal status message", "error", err)
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send status message", "error", err)
		return err
	}
	return nil
}
