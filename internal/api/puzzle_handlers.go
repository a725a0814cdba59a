package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/puzzle-engine/internal/jobs"
	"github.com/terra-clan/puzzle-engine/internal/models"
	"github.com/terra-clan/puzzle-engine/internal/puzzle"
	"github.com/terra-clan/puzzle-engine/internal/rewards"
)

// GeneratePuzzleResponse is the body of POST /api/generate-puzzle
type GeneratePuzzleResponse struct {
	Success  bool           `json:"success"`
	Puzzle   *models.Puzzle `json:"puzzle,omitempty"`
	PuzzleID string         `json:"puzzleId,omitempty"`
}

// PuzzleStatusResponse is the body of GET /api/puzzle-status/{id}
type PuzzleStatusResponse struct {
	Status models.JobStatus `json:"status"`
	Puzzle *models.Puzzle   `json:"puzzle"`
	Error  *string          `json:"error"`
}

func statusResponse(job *models.Job) PuzzleStatusResponse {
	resp := PuzzleStatusResponse{Status: job.Status, Puzzle: job.Puzzle}
	if job.Error != "" {
		msg := job.Error
		resp.Error = &msg
	}
	return resp
}

// CheckAnswerRequest is the body of POST /api/puzzles/{id}/check
type CheckAnswerRequest struct {
	Answer string `json:"answer"`
	UserID string `json:"userId,omitempty"`
}

// UpdatePuzzleRequest is the body of PATCH /api/puzzles/{id}
type UpdatePuzzleRequest struct {
	IsActive *bool `json:"isActive"`
}

func (s *Server) handleGeneratePuzzle(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePuzzleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.puzzles.Request(r.Context(), req)
	if err != nil {
		var ve *puzzle.ValidationError
		if errors.As(err, &ve) {
			respondError(w, http.StatusBadRequest, "validation_error", ve.Error())
			return
		}
		if errors.Is(err, puzzle.ErrClosed) {
			respondError(w, http.StatusServiceUnavailable, "unavailable", "service is shutting down")
			return
		}
		slog.Error("failed to start puzzle generation", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to start puzzle generation")
		return
	}

	if res.Puzzle != nil {
		respondRaw(w, http.StatusOK, GeneratePuzzleResponse{Success: true, Puzzle: res.Puzzle})
		return
	}
	respondRaw(w, http.StatusAccepted, GeneratePuzzleResponse{Success: true, PuzzleID: res.JobID})
}

func (s *Server) handlePuzzleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := s.puzzles.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "puzzle job not found")
			return
		}
		slog.Error("failed to get puzzle status", "error", err, "job_id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get puzzle status")
		return
	}

	respondRaw(w, http.StatusOK, statusResponse(job))
}

func (s *Server) handleListPuzzles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.PuzzleFilter{
		Type:       models.PuzzleType(q.Get("type")),
		Difficulty: models.Difficulty(q.Get("difficulty")),
		ActiveOnly: q.Get("active") == "true",
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		respondError(w, http.StatusBadRequest, "validation_error", "unknown puzzle type")
		return
	}
	if filter.Difficulty != "" && !filter.Difficulty.Valid() {
		respondError(w, http.StatusBadRequest, "validation_error", "unknown difficulty")
		return
	}
	if v := q.Get("gameId"); v != "" {
		gameID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "validation_error", "gameId must be a number")
			return
		}
		filter.GameID = gameID
	}

	puzzles, err := s.puzzles.List(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list puzzles", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list puzzles")
		return
	}
	if puzzles == nil {
		puzzles = []*models.Puzzle{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"puzzles": puzzles,
		"total":   len(puzzles),
	})
}

// puzzleID parses the {id} URL parameter, writing a 400 on failure
func puzzleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "puzzle id must be a positive number")
		return 0, false
	}
	return id, true
}

func (s *Server) respondPuzzleError(w http.ResponseWriter, err error, action string, id int64) {
	if errors.Is(err, puzzle.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "puzzle not found")
		return
	}
	slog.Error("failed to "+action+" puzzle", "error", err, "puzzle_id", id)
	respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+action+" puzzle")
}

func (s *Server) handleGetPuzzle(w http.ResponseWriter, r *http.Request) {
	id, ok := puzzleID(w, r)
	if !ok {
		return
	}

	p, err := s.puzzles.Get(r.Context(), id)
	if err != nil {
		s.respondPuzzleError(w, err, "get", id)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePuzzle(w http.ResponseWriter, r *http.Request) {
	id, ok := puzzleID(w, r)
	if !ok {
		return
	}

	var req UpdatePuzzleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		respondError(w, http.StatusBadRequest, "validation_error", "isActive is required")
		return
	}

	if err := s.puzzles.SetActive(r.Context(), id, *req.IsActive); err != nil {
		s.respondPuzzleError(w, err, "update", id)
		return
	}

	p, err := s.puzzles.Get(r.Context(), id)
	if err != nil {
		s.respondPuzzleError(w, err, "get", id)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePuzzle(w http.ResponseWriter, r *http.Request) {
	id, ok := puzzleID(w, r)
	if !ok {
		return
	}

	if err := s.puzzles.Delete(r.Context(), id); err != nil {
		s.respondPuzzleError(w, err, "delete", id)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "puzzle deleted",
	})
}

func (s *Server) handleCheckAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := puzzleID(w, r)
	if !ok {
		return
	}

	var req CheckAnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.puzzles.Check(r.Context(), id, req.Answer)
	if err != nil {
		s.respondPuzzleError(w, err, "check", id)
		return
	}

	body := map[string]interface{}{
		"correct": res.Correct,
		"points":  res.Points,
	}

	if res.Correct && req.UserID != "" && res.Points > 0 {
		reward, err := s.rewards.AwardSolve(r.Context(), req.UserID, id, int64(res.Points))
		switch {
		case err == nil:
			body["reward"] = reward
		case errors.Is(err, rewards.ErrAlreadyCredited):
			body["alreadyCredited"] = true
		default:
			slog.Error("failed to award points", "error", err, "puzzle_id", id, "user_id", req.UserID)
		}
	}

	respondJSON(w, http.StatusOK, body)
}
