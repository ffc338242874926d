package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"ragbot/internal/domain"
	"ragbot/internal/history"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type askRequest struct {
	Question string `json:"question" validate:"required,max=4000"`
}

type sourceResponse struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Content string         `json:"content"`
	Meta    map[string]any `json:"meta"`
}

type askResponse struct {
	Question    string           `json:"question"`
	Answer      string           `json:"answer"`
	NumRecords  int              `json:"num_records"`
	ContextUsed int              `json:"context_used"`
	Grounding   float64          `json:"grounding"`
	ElapsedMS   int64            `json:"elapsed_ms"`
	Sources     []sourceResponse `json:"sources"`
}

func newAskResponse(res *domain.QueryResult) askResponse {
	sources := make([]sourceResponse, 0, len(res.Records))
	for _, r := range res.Records {
		sources = append(sources, sourceResponse{
			ID:      r.Record.ID,
			Score:   r.Score,
			Content: r.Record.Content,
			Meta:    r.Record.Meta,
		})
	}
	return askResponse{
		Question:    res.Question,
		Answer:      res.Answer,
		NumRecords:  res.NumRecords,
		ContextUsed: res.ContextUsed,
		Grounding:   res.Grounding,
		ElapsedMS:   res.Elapsed.Milliseconds(),
		Sources:     sources,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeOK(w, map[string]string{"status": "ok", "state": s.svc.Status().State})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeOK(w, s.svc.Status())
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.NewValidationError("", "invalid request body: %v", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, domain.NewValidationError("", "question is required and at most 4000 characters"))
		return
	}

	res, err := s.svc.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.history != nil {
		if _, err := s.history.Append(r.Context(), history.EntryFor(res)); err != nil {
			s.logger.Warn("failed to record exchange", zap.Error(err))
		}
	}
	s.writeOK(w, newAskResponse(res))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Reload(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOK(w, map[string]int{"records": n})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		_ = writeJSON(w, http.StatusNotFound, errorResponse{Error: "conversation log is disabled"})
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, domain.NewValidationError("", "limit must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOK(w, map[string]any{"entries": entries})
}
