// Package server exposes the transcoder over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/deepteams/webp2png"
	"github.com/deepteams/webp2png/internal/config"
	"github.com/deepteams/webp2png/internal/logging"
)

const (
	// HeaderRequestID carries the request id; an incoming value is kept.
	HeaderRequestID = "X-Request-Id"
	// HeaderSourceFormat names the sniffed input container.
	HeaderSourceFormat = "X-Source-Format"

	shutdownTimeout = 10 * time.Second
)

// Converter is the transcoder as used by the service. *webp2png.Converter
// satisfies it.
type Converter interface {
	Transcode(input []byte) (*webp2png.Result, error)
	Inspect(input []byte) (*webp2png.Info, error)
}

// Service implements the HTTP handlers.
type Service struct {
	conv           Converter
	cfg            config.ServerConfig
	log            *zap.Logger
	sem            *semaphore.Weighted
	limiter        *rate.Limiter // nil when unlimited
	healthResponse []byte
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// New returns a Service. A non-positive MaxConcurrent means 1 and a
// non-positive MaxBodyBytes means 64 MiB. A zero Timeout disables the
// per-request deadline.
func New(conv Converter, cfg config.ServerConfig, logger *zap.Logger) *Service {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 20
	}
	health, _ := json.Marshal(HealthResponse{Status: "ok"})
	s := &Service{
		conv:           conv,
		cfg:            cfg,
		log:            logging.OrNop(logger),
		sem:            semaphore.NewWeighted(cfg.MaxConcurrent),
		healthResponse: health,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = max(1, int(cfg.RateLimit))
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// APIPrefix is the path prefix of the conversion endpoints.
const APIPrefix = "/api/v1"

// RegisterRoutes registers the API routes with router.
func (s *Service) RegisterRoutes(router *mux.Router) {
	router.Use(s.requestID)

	// Registered on router directly so a method mismatch answers 405.
	router.Handle(APIPrefix+"/convert", s.rateLimit(s.instrument("convert", s.handleConvert))).Methods(http.MethodPost)
	router.Handle(APIPrefix+"/inspect", s.rateLimit(s.instrument("inspect", s.handleInspect))).Methods(http.MethodPost)
}

// Handler returns a router serving the API, /health and /metrics.
func (s *Service) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)
	s.RegisterRoutes(router)
	return router
}

// HandleHealth reports liveness.
func (s *Service) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.healthResponse)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. ready, if non-nil, receives the bound address.
func (s *Service) ListenAndServe(ctx context.Context, addr string, ready chan<- string) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, l, ready)
}

// Serve serves on l until ctx is done.
func (s *Service) Serve(ctx context.Context, l net.Listener, ready chan<- string) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.log.Info("http server started", zap.String("addr", l.Addr().String()))
	if ready != nil {
		ready <- l.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("stopping http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Service) handleConvert(w http.ResponseWriter, r *http.Request) {
	input, ok := s.readBody(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		rejected.Inc()
		respondError(w, http.StatusServiceUnavailable, "server busy: no conversion slot became free")
		return
	}

	// The slot is released when the codec returns, not when the request ends.
	type outcome struct {
		res *webp2png.Result
		err error
	}
	done := make(chan outcome, 1)
	inFlight.Inc()
	go func() {
		defer func() {
			inFlight.Dec()
			s.sem.Release(1)
		}()
		res, err := s.conv.Transcode(input)
		done <- outcome{res, err}
	}()

	var o outcome
	select {
	case <-ctx.Done():
		s.log.Warn("conversion abandoned",
			zap.String("request_id", requestIDFrom(r)),
			zap.Error(ctx.Err()))
		respondError(w, http.StatusServiceUnavailable, "conversion deadline exceeded")
		return
	case o = <-done:
	}

	if o.err != nil {
		s.respondConvertError(w, r, o.err)
		return
	}

	bytesIn.Add(float64(len(input)))
	bytesOut.Add(float64(len(o.res.Output)))
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(o.res.Output)))
	w.Header().Set(HeaderSourceFormat, o.res.Source.Format)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(o.res.Output); err != nil {
		s.log.Debug("writing response", zap.Error(err))
	}
}

func (s *Service) handleInspect(w http.ResponseWriter, r *http.Request) {
	input, ok := s.readBody(w, r)
	if !ok {
		return
	}
	info, err := s.conv.Inspect(input)
	if err != nil {
		s.respondConvertError(w, r, err)
		return
	}
	w.Header().Set(HeaderSourceFormat, info.Format)
	respondJSON(w, http.StatusOK, info)
}

func (s *Service) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	input, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		respondError(w, http.StatusBadRequest, fmt.Sprintf("reading request body: %v", err))
		return nil, false
	}
	return input, true
}

// statusFor maps a transcoder error to a response code.
func statusFor(err error) int {
	switch webp2png.KindOf(err) {
	case webp2png.KindDecode:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) respondConvertError(w http.ResponseWriter, r *http.Request, err error) {
	kind := webp2png.KindOf(err)
	conversionErrors.WithLabelValues(kind.String()).Inc()
	var de *webp2png.DecodeError
	if errors.As(err, &de) && de.Format != "" {
		w.Header().Set(HeaderSourceFormat, de.Format)
	}
	s.log.Info("conversion failed",
		zap.String("request_id", requestIDFrom(r)),
		zap.Stringer("kind", kind),
		zap.Error(err))
	respondJSON(w, statusFor(err), ErrorResponse{Error: err.Error(), Kind: kind.String()})
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logging.Logger().Error("encoding response", zap.Error(err))
		}
	}
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// rateLimit rejects API requests beyond the configured rate with 429.
func (s *Service) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			rateLimited.Inc()
			w.Header().Set("Retry-After", "1")
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

func (s *Service) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Service) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		elapsed := time.Since(start)

		requestsTotal.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		s.log.Debug("request",
			zap.String("route", route),
			zap.String("request_id", requestIDFrom(r)),
			zap.Int("status", rec.code),
			zap.Duration("elapsed", elapsed))
	}
}
