// Package httpapi exposes model checks and causal support over HTTP for the
// visualization layer.
package httpapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"modelcheck/adapters/tabular"
	"modelcheck/app"
	"modelcheck/domain/family"
	"modelcheck/internal"
	"modelcheck/internal/config"
	"modelcheck/internal/errors"
	"modelcheck/internal/report"
	"modelcheck/internal/sampler"
	"modelcheck/internal/support"
)

// Server routes HTTP requests to the model check service
type Server struct {
	router    *chi.Mux
	checks    *app.ModelCheckService
	estimator *support.Estimator
	config    config.ServerConfig
	logger    *internal.Logger
}

// NewServer creates a server with its routes installed
func NewServer(cfg config.ServerConfig, checks *app.ModelCheckService, estimator *support.Estimator, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router:    chi.NewRouter(),
		checks:    checks,
		estimator: estimator,
		config:    cfg,
		logger:    logger.With("http"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/modelcheck", s.handleModelCheck)
		r.Post("/causal-support", s.handleCausalSupport)
	})
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleModelCheck answers JSON by default; ?format=csv streams the
// long-format table and ?format=html renders the fit report
func (s *Server) handleModelCheck(w http.ResponseWriter, r *http.Request) {
	var body ModelCheckRequest
	if !s.decode(w, r, &body) {
		return
	}
	data, err := body.Data.toDataset()
	if err != nil {
		s.writeError(w, err)
		return
	}
	fam, err := family.Parse(body.Family)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.checks.Run(r.Context(), data, app.CheckRequest{
		MeanSpec:       body.MeanSpec,
		DispersionSpec: body.DispersionSpec,
		Family:         fam,
		Draws:          body.Draws,
		Seed:           body.Seed,
		Output:         sampler.Output(body.Output),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("X-Check-ID", res.ID.String())
		if err := (tabular.CSVWriter{}).Write(r.Context(), w, res.Long); err != nil {
			s.logger.Error("writing csv for check %s: %v", res.ID, err)
		}
		return
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(report.HTML(report.ModelCheck(res.Summary, res.Predictive), res.Summary.MeanSpec))
		return
	}

	long, err := fromDataset(res.Long)
	if err != nil {
		s.writeError(w, errors.Wrap(err, "encoding long-format table"))
		return
	}
	writeJSON(w, http.StatusOK, ModelCheckResponse{
		ID:          res.ID,
		Fingerprint: res.Fingerprint,
		Seed:        res.Seed,
		Summary:     res.Summary,
		Long:        long,
		RuntimeMs:   res.RuntimeMs,
	})
}

func (s *Server) handleCausalSupport(w http.ResponseWriter, r *http.Request) {
	var body CausalSupportRequest
	if !s.decode(w, r, &body) {
		return
	}
	data, err := body.Data.toDataset()
	if err != nil {
		s.writeError(w, err)
		return
	}
	req, err := body.toRequest()
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.estimator.Estimate(data, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if s.config.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, errors.InvalidInput("malformed request body: "+err.Error()))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeFor(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
	} else {
		s.logger.Debug("request rejected (%s): %v", code, err)
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: err.Error()})
}

func statusFor(code string) int {
	switch code {
	case errors.CodeInvalidInput, errors.CodeInvalidSpecification:
		return http.StatusBadRequest
	case errors.CodeFitFailure, errors.CodeSamplingFailure, errors.CodeNumericInstability:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !stderrors.Is(err, http.ErrHandlerTimeout) {
		internal.DefaultLogger.Warn("encoding response: %v", err)
	}
}
