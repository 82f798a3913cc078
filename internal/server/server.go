// Package server exposes the analyzer over HTTP.
package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/KaramelBytes/tabloom-cli/internal/analysis"
	"github.com/KaramelBytes/tabloom-cli/internal/logger"
	"github.com/KaramelBytes/tabloom-cli/internal/pareto"
	"github.com/KaramelBytes/tabloom-cli/internal/service"
)

// Analyzer is the part of service.Analyzer the handlers use.
type Analyzer interface {
	Upload(ctx context.Context, name string, r io.Reader) (*service.UploadSummary, error)
	Normalize(ctx context.Context, name string) (*service.NormalizeResult, error)
	Pareto(ctx context.Context, name, column string) (*pareto.Result, error)
	Profile(ctx context.Context, name string) (*analysis.Report, error)
	Frequencies(ctx context.Context, name, column string) (*analysis.Frequencies, error)
	Files() ([]string, error)
}

// Options configures the server.
type Options struct {
	// MaxUploadBytes caps multipart bodies; <= 0 means no limit, as in dataset.NewStore.
	MaxUploadBytes int64
	// UploadRate limits uploads per second across all clients; 0 disables it.
	UploadRate  float64
	UploadBurst int
	// ShutdownTimeout bounds graceful shutdown; 0 means 10s.
	ShutdownTimeout time.Duration
}

// Server routes HTTP requests to an Analyzer.
type Server struct {
	analyzer Analyzer
	opt      Options
	logger   *zap.Logger
	validate *validator.Validate
	metrics  *Metrics
	limiter  *rate.Limiter
	router   chi.Router
}

// New builds the server and its routes. A nil logger disables logging.
func New(a Analyzer, opt Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opt.ShutdownTimeout <= 0 {
		opt.ShutdownTimeout = 10 * time.Second
	}
	v := validator.New()
	// Report JSON field names in validation messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	s := &Server{
		analyzer: a,
		opt:      opt,
		logger:   log.With(zap.String(logger.FieldComponent, "server")),
		validate: v,
		metrics:  NewMetrics(),
	}
	if opt.UploadRate > 0 {
		burst := opt.UploadBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opt.UploadRate), burst)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.metrics.instrument)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/health", s.health)
		r.Get("/files", s.files)
		r.With(s.throttle).Post("/upload", s.upload)
		r.Route("/analyze", func(r chi.Router) {
			r.Post("/pareto", s.pareto)
			r.Post("/normalize", s.normalize)
			r.Post("/profile", s.profile)
			r.Post("/frequencies", s.frequencies)
		})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), s.opt.ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

const headerRequestID = "X-Request-ID"

type ctxKey struct{}

// requestID propagates an incoming X-Request-ID or assigns a new UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" || len(id) > 128 {
			id = newID()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// RequestID returns the request ID stored by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String(logger.FieldRequestID, RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int(logger.FieldStatus, ww.Status()),
			zap.Int64(logger.FieldDurationMS, time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many uploads, retry shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}
