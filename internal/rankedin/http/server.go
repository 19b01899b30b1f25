package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"time"

	"connectrpc.com/connect"
	grpchealth "connectrpc.com/grpchealth"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"rankedin.shikanime.studio/internal/config"
	"rankedin.shikanime.studio/internal/rankedin"
)

// ServiceName is the name reported by the health endpoints.
const ServiceName = "rankedin"

// Server holds handlers and dependencies for the RankedIn HTTP API.
type Server struct {
	clients  *rankedin.RankedIn
	mux      *stdhttp.ServeMux
	metrics  *Metrics
	badgeTTL time.Duration
	srv      *stdhttp.Server
}

type ServerOption func(*Server)

// WithBadgeCacheTTL sets the max-age advertised on SVG badges.
func WithBadgeCacheTTL(d time.Duration) ServerOption {
	return func(s *Server) { s.badgeTTL = d }
}

func WithMetrics(m *Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// NewServer initializes a Server and mounts the API, metrics and gRPC health handlers.
func NewServer(clients *rankedin.RankedIn, opts ...ServerOption) *Server {
	s := &Server{
		clients:  clients,
		mux:      stdhttp.NewServeMux(),
		badgeTTL: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	s.route("POST /contribute", "contribute", s.handleContribute)
	s.route("GET /users", "users", s.handleListUsers)
	s.route("POST /users", "users", s.handleCreate(rankedin.KindUser, "username", "Username is required"))
	s.route("GET /repositories", "repositories", s.handleListRepositories)
	s.route("POST /repositories", "repositories", s.handleCreate(rankedin.KindRepo, "fullName", "Valid repository full name (owner/repo) is required"))
	s.route("GET /topics", "topics", s.handleListTopics)
	s.route("POST /topics", "topics", s.handleCreate(rankedin.KindTopic, "name", "Topic name is required"))
	s.route("GET /badges", "badges", s.handleBadge)
	s.route("GET /stats", "stats", s.handleStats)
	s.route("GET /search", "search", s.handleSearch)
	s.route("POST /newsletter/subscribe", "newsletter", s.handleSubscribe)
	s.route("GET /newsletter/subscribe", "newsletter", s.handleSubscriberCount)
	s.route("GET /healthz", "healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	hpath, hhandler := grpchealth.NewHandler(NewHealthChecker(clients))
	s.mux.Handle(hpath, hhandler)
	return s
}

// NewServerForConfig builds RankedIn clients from cfg and returns a configured Server.
func NewServerForConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	clients, err := rankedin.NewForConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewServer(clients, WithBadgeCacheTTL(cfg.GetBadgeCacheTTL())), nil
}

func (s *Server) route(pattern, endpoint string, h stdhttp.HandlerFunc) {
	s.mux.HandleFunc(pattern, s.metrics.Middleware(endpoint, h))
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() stdhttp.Handler {
	return otelhttp.NewHandler(withRequestLog(s.mux), "http.server")
}

// Close closes database connections.
func (s *Server) Close() error {
	if s.clients != nil {
		return s.clients.Close()
	}
	return nil
}

// ListenAndServe serves on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.srv = &stdhttp.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}

// HealthChecker reports health based on database connectivity.
type HealthChecker struct{ clients *rankedin.RankedIn }

func NewHealthChecker(clients *rankedin.RankedIn) HealthChecker {
	return HealthChecker{clients: clients}
}

// Check implements grpchealth.Checker. It returns StatusServing when the database ping succeeds.
func (c HealthChecker) Check(
	ctx context.Context,
	req *grpchealth.CheckRequest,
) (*grpchealth.CheckResponse, error) {
	tracer := otel.Tracer("rankedin/http")
	ctx, span := tracer.Start(ctx, "HealthChecker.Check")
	defer span.End()
	switch req.Service {
	case "", ServiceName:
		if err := c.clients.Ping(ctx); err != nil {
			return &grpchealth.CheckResponse{Status: grpchealth.StatusNotServing}, nil
		}
		return &grpchealth.CheckResponse{Status: grpchealth.StatusServing}, nil
	default:
		return nil, connect.NewError(
			connect.CodeNotFound,
			fmt.Errorf("unknown service: %s", req.Service),
		)
	}
}
