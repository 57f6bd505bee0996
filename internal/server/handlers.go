package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quantflow/optimizer/internal/modules/improvement"
)

// handleHealth returns basic liveness info
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"engine_running": s.engine.Running(),
	})
}

// CreateTaskRequest is the POST /api/tasks body
type CreateTaskRequest struct {
	TaskType    string                 `json:"task_type"`
	ComponentID string                 `json:"component_id"`
	Frequency   string                 `json:"frequency"`
	Priority    int                    `json:"priority"`
	Config      map[string]interface{} `json:"config"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": s.registry.List(),
	})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TaskType == "" || req.ComponentID == "" {
		http.Error(w, "task_type and component_id are required", http.StatusBadRequest)
		return
	}

	task := &improvement.Task{
		Type:        improvement.OptimizationType(req.TaskType),
		ComponentID: req.ComponentID,
		Frequency:   improvement.Frequency(req.Frequency),
		Priority:    req.Priority,
		Config:      req.Config,
	}

	taskID, err := s.registry.Add(task)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{"task_id": taskID})
}

func (s *Server) handleTaskSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"by_frequency": s.registry.Summary(),
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, ok := s.registry.Get(taskID)
	if !ok {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	s.registry.Remove(chi.URLParam(r, "taskID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnableTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	taskID := chi.URLParam(r, "taskID")
	if err := s.registry.SetEnabled(taskID, req.Enabled); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id": taskID,
		"enabled": req.Enabled,
	})
}

// handleRunCycle kicks off a full improvement cycle asynchronously
func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StrategyID string `json:"strategy_id"`
	}
	// An empty body means "all strategies"
	_ = json.NewDecoder(r.Body).Decode(&req)

	// The cycle outlives the request, so it gets its own context
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Msg("Improvement cycle panicked")
			}
		}()
		if _, ran := s.runner.TryRunFullCycle(context.Background(), req.StrategyID); !ran {
			s.log.Warn().Msg("Improvement cycle request skipped, one already running")
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "cycle started"})
}

func (s *Server) handleCycleResults(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": s.runner.History(),
	})
}

func (s *Server) handleImprovementEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	evts, err := s.tasks.RecentEvents(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load improvement events")
		http.Error(w, "Failed to load events", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": evts})
}

func (s *Server) handleAnalysisReport(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	strategyID := r.URL.Query().Get("strategy_id")

	report, err := s.analyzer.AnalyzeRecentPerformance(strategyID, days)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to build analysis report")
		http.Error(w, "Failed to build report", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListRollouts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	rollouts, err := s.rollouts.List(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list rollouts")
		http.Error(w, "Failed to list rollouts", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"rollouts": rollouts})
}

func (s *Server) handleGetRollout(w http.ResponseWriter, r *http.Request) {
	rollout, err := s.rollouts.Get(chi.URLParam(r, "rolloutID"))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load rollout")
		http.Error(w, "Failed to load rollout", http.StatusInternalServerError)
		return
	}
	if rollout == nil {
		http.Error(w, "Rollout not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, rollout)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
