// Package controller exposes the host/operator HTTP surface: starting a
// question's timer and applying score corrections. Both actions feed the
// same match channel that viewer sockets consume.
package controller

import (
	"encoding/json"
	"net/http"

	"glorylive/internal/match"

	"github.com/rs/zerolog/log"
)

type Controller struct {
	timers *match.TimerService
	scores *match.ScoreBroadcaster
}

func New(timers *match.TimerService, scores *match.ScoreBroadcaster) *Controller {
	return &Controller{timers: timers, scores: scores}
}

// StartQuestionRequest triggers a new question.
type StartQuestionRequest struct {
	MatchCode    string `json:"match_code"`
	QuestionCode string `json:"question_code"`
	TimeLimit    int    `json:"time_limit"`
	EventType    string `json:"event_type,omitempty"`
}

type startQuestionResponse struct {
	Message   string  `json:"message"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

func (c *Controller) HandleStartQuestion(w http.ResponseWriter, r *http.Request) {
	var req StartQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MatchCode == "" || req.QuestionCode == "" {
		http.Error(w, "match_code and question_code are required", http.StatusBadRequest)
		return
	}

	startTime, endTime, err := c.timers.StartQuestion(
		r.Context(), req.MatchCode, req.QuestionCode, req.TimeLimit, match.EventType(req.EventType))
	if err != nil {
		log.Error().Err(err).
			Str("match_code", req.MatchCode).
			Str("question_code", req.QuestionCode).
			Msg("failed to start question")
		http.Error(w, "failed to start question", http.StatusInternalServerError)
		return
	}

	writeJSON(w, startQuestionResponse{
		Message:   "question started",
		StartTime: startTime,
		EndTime:   endTime,
	})
}

// ScoreDeltaRequest applies a score change for a player.
type ScoreDeltaRequest struct {
	MatchCode  string `json:"match_code"`
	PlayerCode string `json:"player_code"`
	Delta      int64  `json:"delta"`
}

type scoreDeltaResponse struct {
	Message  string `json:"message"`
	NewTotal int64  `json:"new_total"`
}

func (c *Controller) HandleScoreDelta(w http.ResponseWriter, r *http.Request) {
	var req ScoreDeltaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MatchCode == "" || req.PlayerCode == "" {
		http.Error(w, "match_code and player_code are required", http.StatusBadRequest)
		return
	}

	newTotal, err := c.scores.ApplyScoreDelta(r.Context(), req.MatchCode, req.PlayerCode, req.Delta)
	if err != nil {
		log.Error().Err(err).
			Str("match_code", req.MatchCode).
			Str("player_code", req.PlayerCode).
			Msg("failed to apply score delta")
		http.Error(w, "failed to apply score delta", http.StatusInternalServerError)
		return
	}

	writeJSON(w, scoreDeltaResponse{Message: "score updated", NewTotal: newTotal})
}

// RegisterRoutes registers the controller endpoints on a mux.
func (c *Controller) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /controller/start_question", c.HandleStartQuestion)
	mux.HandleFunc("POST /controller/score", c.HandleScoreDelta)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
