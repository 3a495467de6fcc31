// Package api serves the raffle node's HTTP JSON surface: public queries,
// ticket purchases, signed admin and creator actions, cron trigger routes,
// health and Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/solraffle/raffle-node/raffleNode/cache"
)

// Options configures the listener and request limits.
type Options struct {
	Port           int
	CronSecret     string
	RateLimitRPS   float64
	RateLimitBurst int
	// StatsMaxAge is how old cached stats may get before a request
	// recomputes them. Defaults to five minutes.
	StatsMaxAge time.Duration
}

// Server provides HTTP endpoints
type Server struct {
	logger     zerolog.Logger
	server     *http.Server
	engine     RaffleEngine
	auth       Authorizer
	reconciler Reconciler
	cache      *cache.Cache
	cronSecret string
	limiter    *ipLimiter
	statsAge   time.Duration
}

// NewServer creates a new Server instance
func NewServer(deps Deps, opts Options, logger zerolog.Logger) *Server {
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 20
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 40
	}
	if opts.StatsMaxAge <= 0 {
		opts.StatsMaxAge = 5 * time.Minute
	}
	c := deps.Cache
	if c == nil {
		c = cache.New(logger)
	}
	s := &Server{
		logger:     logger.With().Str("component", "api").Logger(),
		engine:     deps.Engine,
		auth:       deps.Auth,
		reconciler: deps.Reconciler,
		cache:      c,
		cronSecret: opts.CronSecret,
		limiter:    newIPLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		statsAge:   opts.StatsMaxAge,
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the routed handler, used by tests and embedding servers.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("api server is nil")
	}

	// Channel to signal server startup result
	startupChan := make(chan error, 1)

	go func() {
		// Create a test listener to verify the port is available
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupChan <- fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
			return
		}
		ln.Close()

		startupChan <- nil

		err = s.server.ListenAndServe()
		switch err {
		case nil:
			s.logger.Info().Msg("api server stopped normally")
		case http.ErrServerClosed:
			s.logger.Info().Msg("api server closed gracefully")
		default:
			s.logger.Error().Err(err).Msg("api server error")
		}
	}()

	select {
	case err := <-startupChan:
		if err != nil {
			return err
		}
		s.logger.Info().Str("addr", s.server.Addr).Msg("api server listening")
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("server startup timeout")
	}
}

// Stop gracefully shuts down the HTTP server, giving in-flight requests
// until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return s.server.Close()
	}
	return nil
}
