package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/puzzle-engine/internal/models"
	"github.com/terra-clan/puzzle-engine/internal/rewards"
)

func (s *Server) handleCreateReward(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRewardRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reward, err := s.rewards.Award(r.Context(), req)
	if err != nil {
		if errors.Is(err, rewards.ErrInvalidReward) {
			respondError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		if errors.Is(err, rewards.ErrAlreadyCredited) {
			respondError(w, http.StatusConflict, "already_credited", err.Error())
			return
		}
		slog.Error("failed to create reward", "error", err, "user_id", req.UserID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create reward")
		return
	}

	respondRaw(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"reward":  reward,
	})
}

func (s *Server) handleGetPoints(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	summary, err := s.rewards.Points(r.Context(), userID)
	if err != nil {
		slog.Error("failed to get points", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get points")
		return
	}
	respondRaw(w, http.StatusOK, summary)
}

func (s *Server) handleResetPoints(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	summary, err := s.rewards.Reset(r.Context(), userID)
	if err != nil {
		slog.Error("failed to reset points", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to reset points")
		return
	}
	respondRaw(w, http.StatusOK, summary)
}

func (s *Server) handleListRewards(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	rows, err := s.rewards.History(r.Context(), userID, queryInt(r, "limit", 50))
	if err != nil {
		slog.Error("failed to list rewards", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list rewards")
		return
	}
	if rows == nil {
		rows = []*models.Reward{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rewards": rows,
		"total":   len(rows),
	})
}
