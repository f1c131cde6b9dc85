package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/tooldex/tooldex/pkg/model"
	"github.com/tooldex/tooldex/pkg/pipeline"
)

// errorBody is the stable error envelope of every terminal failure.
type errorBody struct {
	Code      model.ErrorCode `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Stage     string          `json:"stage,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := middleware.GetReqID(r.Context())

	var req pipeline.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, requestID, http.StatusBadRequest, errorBody{
			Code:      model.CodeInputInvalid,
			Message:   "request body is not valid JSON",
			RequestID: requestID,
		}, started, 0)
		return
	}

	resp, err := s.orchestrator.Search(r.Context(), &req)
	if err != nil {
		code := model.CodeOf(err)
		body := errorBody{
			Code:      code,
			Message:   err.Error(),
			RequestID: requestID,
		}
		if req.Options.Debug {
			var pErr *model.Error
			if errors.As(err, &pErr) {
				body.Stage = pErr.Component
			}
		}
		s.fail(w, requestID, statusFor(code), body, started, 0)
		return
	}

	status := "ok"
	for _, e := range resp.Errors {
		if e.Code == model.CodePartialFailure {
			status = "partial"
			break
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveSearch(status, time.Since(started), len(resp.Results))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) fail(w http.ResponseWriter, requestID string, status int, body errorBody, started time.Time, results int) {
	if s.metrics != nil {
		s.metrics.ObserveSearch("error", time.Since(started), results)
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

// statusFor maps pipeline error codes onto HTTP statuses.
func statusFor(code model.ErrorCode) int {
	switch code {
	case model.CodeInputInvalid:
		return http.StatusBadRequest
	case model.CodeTimeout:
		return http.StatusGatewayTimeout
	case model.CodeIntentUnparseable, model.CodePlanInvalid:
		return http.StatusBadGateway
	case model.CodeFatalConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
