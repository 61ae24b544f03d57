package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/domain"
	"github.com/kailas-cloud/listbot/internal/domain/conversation"
	"github.com/kailas-cloud/listbot/internal/logger"
	chatuc "github.com/kailas-cloud/listbot/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/listbot/internal/usecase/health"
)

const maxBodyBytes = 1 << 20

// Usage headers set when the corresponding provider was called.
const (
	HeaderEmbeddingTokens  = "X-Embedding-Tokens"
	HeaderCompletionTokens = "X-Completion-Tokens"
)

// Pipeline is the conversational core consumed by the handlers (ISP).
type Pipeline interface {
	Answer(ctx context.Context, q conversation.Query) (chatuc.Result, conversation.State)
	Inspect(ctx context.Context, q conversation.Query) chatuc.Inspection
}

// HealthChecker aggregates component health (ISP).
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers of the listbot API.
type Server struct {
	pipeline     Pipeline
	health       HealthChecker
	validate     *validator.Validate
	maxTurns     int
	queryTimeout time.Duration
	metrics      http.Handler
	logger       *zap.Logger
}

// NewServer creates an HTTP API server. maxTurns bounds the caller history
// fed into the pipeline; queryTimeout bounds a single /query (0 = none).
func NewServer(p Pipeline, h HealthChecker, maxTurns int, queryTimeout time.Duration, logger *zap.Logger) *Server {
	return &Server{
		pipeline:     p,
		health:       h,
		validate:     newValidator(),
		maxTurns:     maxTurns,
		queryTimeout: queryTimeout,
		metrics:      promhttp.Handler(),
		logger:       logger,
	}
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/query", s.Query)
	r.Post("/retrieve", s.Retrieve)
	r.Get("/health", s.Health)
	r.Get("/metrics", s.Metrics)
}

// Query handles POST /query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}
	ctx, usage := domain.NewContextWithUsage(ctx)

	state := conversation.NewState(turnsFromDTO(req.History), req.LastRetrievedContent, s.maxTurns)
	res, next := s.pipeline.Answer(ctx, conversation.NewQuery(req.Question, state))

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, QueryResponse{
		Answer:               res.Answer,
		RetrievedCount:       res.RetrievedCount,
		History:              turnsToDTO(next.History()),
		LastRetrievedContent: next.LastRetrievedContent(),
		Evidence:             string(res.Evidence),
	})
}

// Retrieve handles POST /retrieve.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	state := conversation.NewState(turnsFromDTO(req.History), "", s.maxTurns)
	ins := s.pipeline.Inspect(ctx, conversation.NewQuery(req.Question, state))

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, RetrieveResponse{
		RewrittenQuery: ins.RewrittenQuery,
		Documents:      documentsToDTO(ins.Documents),
	})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.ServeHTTP(w, r)
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		logger.FromContext(r.Context(), s.logger).Debug("Request validation failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldPath drops the struct name: "QueryRequest.history[0].user" -> "history[0].user".
func fieldPath(ns string) string {
	if _, path, ok := strings.Cut(ns, "."); ok {
		return path
	}
	return ns
}

// validationMessage turns validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return "invalid request"
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fieldPath(fe.Namespace()), rule))
	}
	return strings.Join(parts, "; ")
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.Usage) {
	if n, ok := usage.Embedding(); ok {
		w.Header().Set(HeaderEmbeddingTokens, strconv.Itoa(n))
	}
	if n, ok := usage.Completion(); ok {
		w.Header().Set(HeaderCompletionTokens, strconv.Itoa(n))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
