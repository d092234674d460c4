package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	fuseerrors "github.com/searchworks/partfuse/internal/errors"
	"github.com/searchworks/partfuse/internal/search"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
}

// handleQuery serves GET /api/query: classifier-routed hybrid search with
// an optional mode override.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.serveSearch(w, r, r.URL.Query().Get("mode"))
}

// fixed-mode forms of /api/query
func (s *Server) handleDense(w http.ResponseWriter, r *http.Request) {
	s.serveSearch(w, r, "dense")
}

func (s *Server) handleSparse(w http.ResponseWriter, r *http.Request) {
	s.serveSearch(w, r, "sparse")
}

func (s *Server) handleHybrid(w http.ResponseWriter, r *http.Request) {
	s.serveSearch(w, r, "hybrid")
}

func (s *Server) serveSearch(w http.ResponseWriter, r *http.Request, mode string) {
	params := r.URL.Query()

	query := search.Query{Text: params.Get("q")}

	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, fuseerrors.New(fuseerrors.ErrCodeInvalidLimit,
				"limit must be an integer", err))
			return
		}
		query.Limit = limit
	}

	strategies, err := resolveMode(mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	query.Strategies = strategies

	if fm := params.Get("fusion"); fm != "" {
		fusion, err := search.ParseFusionMode(fm)
		if err != nil {
			s.writeError(w, r, fuseerrors.New(fuseerrors.ErrCodeInvalidQuery,
				"fusion must be rrf or weighted", err))
			return
		}
		query.FusionMode = fusion
	}

	resp, err := s.engine.Search(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// resolveMode maps the mode parameter onto a strategy override. Empty and
// "hybrid" leave routing to the classifier.
func resolveMode(mode string) ([]search.Strategy, error) {
	switch mode {
	case "", "hybrid":
		return nil, nil
	case "dense":
		return []search.Strategy{search.StrategyDense}, nil
	case "sparse":
		return []search.Strategy{search.StrategySparse}, nil
	case "neural_sparse":
		return []search.Strategy{search.StrategyNeuralSparse}, nil
	default:
		return nil, fuseerrors.New(fuseerrors.ErrCodeUnknownStrategy,
			"unknown mode "+strconv.Quote(mode), nil).
			WithSuggestion("use dense, sparse, neural_sparse, or hybrid")
	}
}

// handleHealthz reports liveness plus snapshot readiness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.stats != nil {
		body["snapshot"] = s.stats()
	}
	s.writeJSON(w, http.StatusOK, body)
}

// handleStats serves the query-metrics snapshot.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("response_encode_failed", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var all *search.AllStrategiesFailedError
	if errors.As(err, &all) {
		err = all.ToFuseError()
	}

	detail := errorDetail{
		Code:      fuseerrors.ErrCodeInternal,
		Message:   "internal error",
		RequestID: RequestID(r.Context()),
	}

	var fe *fuseerrors.FuseError
	if errors.As(err, &fe) {
		detail.Code = fe.Code
		detail.Message = fe.Message
		detail.Details = fe.Details
		detail.Suggestion = fe.Suggestion
	}

	status := statusForCode(detail.Code)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			slog.String("request_id", detail.RequestID),
			slog.String("code", detail.Code),
			slog.String("error", err.Error()))
	}

	s.writeJSON(w, status, errorBody{Error: detail})
}

// statusForCode maps structured error codes onto HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case fuseerrors.ErrCodeBackendTimeout:
		return http.StatusGatewayTimeout
	case fuseerrors.ErrCodeBackendUnavailable,
		fuseerrors.ErrCodeAllStrategiesFailed,
		fuseerrors.ErrCodeSnapshotLocked,
		fuseerrors.ErrCodeCatalogUnavailable:
		return http.StatusServiceUnavailable
	}

	// Codes group by hundred: 1xx config, 2xx store, 3xx backend, 4xx
	// query, 5xx internal.
	if len(code) > 4 {
		switch code[4] {
		case '4':
			return http.StatusBadRequest
		case '2', '3':
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusInternalServerError
}
