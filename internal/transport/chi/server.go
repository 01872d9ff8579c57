// Package chi is the HTTP API: routes, request decoding and error mapping.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/defectscope/defectscope/internal/domain"
	"github.com/defectscope/defectscope/internal/domain/vehicle"
	"github.com/defectscope/defectscope/internal/logger"
	healthuc "github.com/defectscope/defectscope/internal/usecase/health"
	sessionuc "github.com/defectscope/defectscope/internal/usecase/session"
)

const (
	defaultMaxBodyBytes = 32 << 20
	defaultMaxK         = 100

	headerEmbeddingTokens = "X-Embedding-Tokens"
	headerEmbeddingCalls  = "X-Embedding-Calls"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Options tunes request limits.
type Options struct {
	MaxBodyBytes int64
	MaxK         int
}

// Server serves the HTTP API.
type Server struct {
	sessions      Sessions
	vehicles      Vehicles
	health        Health
	logger        *zap.Logger
	maxBodyBytes  int64
	maxK          int
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(sessions Sessions, vehicles Vehicles, health Health, opts Options, logger *zap.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.MaxK <= 0 {
		opts.MaxK = defaultMaxK
	}
	s := &Server{
		sessions:     sessions,
		vehicles:     vehicles,
		health:       health,
		logger:       logger,
		maxBodyBytes: opts.MaxBodyBytes,
		maxK:         opts.MaxK,
	}
	// Order matters: specific not-found sentinels before the generic ones.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidVehicle, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNoData, http.StatusUnprocessableEntity, CodeNoData),
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound),
		sentinelHandler(domain.ErrVINNotFound, http.StatusNotFound, CodeVINNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingError),
		sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, CodeUpstreamError),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.Analyze)

		r.Post("/sessions", s.OpenSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.CloseSession)
			r.Get("/complaints", s.ListComplaints)
			r.Post("/search", s.Search)
		})

		r.Get("/vehicles/vin/{vin}", s.DecodeVIN)
		r.Get("/recalls", s.ListRecalls)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
}

// Analyze handles POST /v1/analyze. It aggregates an ad-hoc batch without embedding it.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.Analyze(req.Records))
}

// OpenSession handles POST /v1/sessions.
func (s *Server) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	sess, err := s.sessions.Open(ctx, sessionuc.OpenRequest{
		VIN:   req.VIN,
		Make:  req.Make,
		Model: req.Model,
		Year:  req.Year,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	w.Header().Set("Location", "/v1/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, sessionToResponse(sess))
}

// GetSession handles GET /v1/sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(sess))
}

// CloseSession handles DELETE /v1/sessions/{id}.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListComplaints handles GET /v1/sessions/{id}/complaints?component=.
func (s *Server) ListComplaints(w http.ResponseWriter, r *http.Request) {
	records, err := s.sessions.Complaints(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("component"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := make([]complaintRow, len(records))
	for i, rec := range records {
		items[i] = complaintToRow(rec)
	}
	writeJSON(w, http.StatusOK, complaintListResponse{Items: items, Total: len(items)})
}

// Search handles POST /v1/sessions/{id}/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}

	k := 0
	if req.K != nil {
		k = *req.K
		if k < 1 || k > s.maxK {
			writeError(w, http.StatusBadRequest, CodeValidationFailed,
				fmt.Sprintf("k must be between 1 and %d", s.maxK))
			return
		}
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	hits, err := s.sessions.Search(ctx, chi.URLParam(r, "id"), req.Query, k)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, hitsToResponse(req.Query, hits))
}

// DecodeVIN handles GET /v1/vehicles/vin/{vin}.
func (s *Server) DecodeVIN(w http.ResponseWriter, r *http.Request) {
	v, err := s.vehicles.DecodeVIN(r.Context(), chi.URLParam(r, "vin"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ListRecalls handles GET /v1/recalls?make=&model=&year=.
func (s *Server) ListRecalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := vehicle.New(q.Get("make"), q.Get("model"), q.Get("year"))
	if err := v.Validate(); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	recalls, err := s.vehicles.Recalls(r.Context(), v)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recallListResponse{Vehicle: v, Items: recalls, Total: len(recalls)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeBadRequest, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	tokens, calls := usage.Totals()
	if calls > 0 {
		w.Header().Set(headerEmbeddingTokens, strconv.Itoa(tokens))
		w.Header().Set(headerEmbeddingCalls, strconv.Itoa(calls))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuery,
		domain.ErrInvalidVehicle,
		domain.ErrNoEmbeddings,
		domain.ErrNoData,
		domain.ErrSessionNotFound,
		domain.ErrVINNotFound,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrUpstream,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := safeDomainMessage(err)
		// Validation messages are built from request input and safe to echo.
		if code == CodeValidationFailed {
			msg = strings.TrimSpace(err.Error())
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
