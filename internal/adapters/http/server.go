package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"domainfinder/internal/adapters/brreg"
	"domainfinder/internal/adapters/output"
	"domainfinder/internal/domain"
	"domainfinder/internal/ports"
	"domainfinder/internal/services/profiles"
	"domainfinder/internal/services/scanner"
	"domainfinder/internal/workers/scanrunner"
)

const (
	defaultWaitTimeout = 30 * time.Second
	maxBodyBytes       = 1 << 16
)

type Server struct {
	runs      ports.Runs
	pipeline  ports.Pipeline
	domains   ports.Domains
	jobs      ports.JobRepository
	processor scanrunner.RunProcessor
	metrics   http.Handler
	log       *zap.Logger
}

type Deps struct {
	Runs      ports.Runs
	Pipeline  ports.Pipeline
	Domains   ports.Domains
	Jobs      ports.JobRepository
	Processor scanrunner.RunProcessor
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Log     *zap.Logger
}

func New(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		runs:      d.Runs,
		pipeline:  d.Pipeline,
		domains:   d.Domains,
		jobs:      d.Jobs,
		processor: d.Processor,
		metrics:   d.Metrics,
		log:       log.Named("http"),
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.accessLog)

	r.Get("/healthz", s.getHealthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Post("/runs", s.postRun)
	r.Get("/runs/{id}", s.getRun)
	r.Get("/runs/{id}/results", s.getRunResults)
	r.Get("/companies/{orgnr}", s.getCompany)
	r.Post("/verify", s.postVerify)
	r.Get("/domains/{domain}", s.getDomain)
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runRequest struct {
	MaxCompanies int  `json:"max_companies"`
	MinEmployees *int `json:"min_employees"`
}

type runResponse struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
}

func (s *Server) postRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	params := domain.RunParams{MaxCompanies: req.MaxCompanies, MinEmployees: 10}
	if req.MinEmployees != nil {
		params.MinEmployees = *req.MinEmployees
	}
	id, err := s.runs.Enqueue(r.Context(), params)
	if err != nil {
		s.fail(w, err)
		return
	}

	// Blocking path for testing
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		timeout := defaultWaitTimeout
		if n, err := strconv.Atoi(r.URL.Query().Get("timeout")); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		// Use the same processor the workers use
		if err := scanrunner.ProcessInline(ctx, s.jobs, s.processor, id); err != nil {
			s.fail(w, err)
			return
		}
		s.writeRun(r.Context(), w, id)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	s.writeRun(r.Context(), w, chi.URLParam(r, "id"))
}

func (s *Server) writeRun(ctx context.Context, w http.ResponseWriter, id string) {
	status, progress, err := s.runs.Status(ctx, id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{ID: id, Status: status, Progress: progress})
}

func (s *Server) getRunResults(w http.ResponseWriter, r *http.Request) {
	format := output.FormatJSON
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := output.ParseFormat(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}
	report, err := s.runs.Results(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	var buf bytes.Buffer
	if err := output.Write(&buf, format, report); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) getCompany(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipeline.Enrich(r.Context(), chi.URLParam(r, "orgnr"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type verifyRequest struct {
	URL string `json:"url"`
}

type domainResponse struct {
	Domain    string    `json:"domain"`
	Outcome   string    `json:"outcome"`
	Verified  bool      `json:"verified"`
	CheckedAt time.Time `json:"checked_at"`
}

func toDomainResponse(rec domain.DomainRecord) domainResponse {
	return domainResponse{
		Domain:    rec.RegistrableDomain,
		Outcome:   rec.Outcome.String(),
		Verified:  rec.Outcome.Verified(),
		CheckedAt: rec.CheckedAt,
	}
}

func (s *Server) postVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "missing url")
		return
	}
	rec, err := s.domains.Check(r.Context(), req.URL)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDomainResponse(rec))
}

func (s *Server) getDomain(w http.ResponseWriter, r *http.Request) {
	rec, err := s.domains.Latest(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDomainResponse(rec))
}

// fail maps service errors to status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrNotFound), errors.Is(err, scanner.ErrCompanyNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scanner.ErrInvalidParams), errors.Is(err, profiles.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scanner.ErrRunNotFinished), errors.Is(err, scanrunner.ErrAlreadyStarted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scanner.ErrNoInputData), errors.Is(err, brreg.ErrRegistry):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
