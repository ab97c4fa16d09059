// Package server is the composition root: it wires the pool, the
// execution engine, the capability detector, and the tool catalog into
// an MCP server speaking JSON-RPC over stdio. stdout carries protocol
// frames only; every diagnostic goes to stderr.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/orahub/oracle-mcp/internal/capability"
	"github.com/orahub/oracle-mcp/internal/config"
	"github.com/orahub/oracle-mcp/internal/exec"
	"github.com/orahub/oracle-mcp/internal/pool"
	"github.com/orahub/oracle-mcp/internal/registry"
	"github.com/orahub/oracle-mcp/internal/sqlbuild"
	"github.com/orahub/oracle-mcp/internal/tools"
	"github.com/orahub/oracle-mcp/pkg/version"
)

// Name identifies the server in the MCP handshake.
const Name = "oracle-mcp"

// ErrConnectivity marks a startup failure to reach Oracle, so the
// command layer can map it to its dedicated exit code.
var ErrConnectivity = errors.New("oracle connectivity failure")

// Server owns every long-lived component.
type Server struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *registry.Registry
	detector *capability.Detector
	pool     *pool.Pool
	engine   *exec.Engine
	db       *sql.DB
	mcp      *mcpserver.MCPServer

	// workers bounds concurrent tool executions.
	workers     *semaphore.Weighted
	workerCount int64
}

// New wires the full server. It verifies Oracle connectivity before
// returning so a misconfigured target fails at startup, not on the
// first tool call.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	db, factory, err := pool.Connect(cfg.Oracle.URL, cfg.Oracle.User, cfg.Oracle.Password, cfg.Pool.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	p := pool.New(pool.Config{
		MaxSize:        cfg.Pool.MaxSize,
		MinIdle:        cfg.Pool.MinIdle,
		AcquireTimeout: cfg.Pool.AcquireTimeout(),
		IdleTimeout:    cfg.Pool.IdleTimeout(),
		MaxLifetime:    cfg.Pool.MaxLifetime(),
		LeakThreshold:  cfg.Pool.LeakThreshold(),
	}, factory, logger)

	engine := exec.New(p, exec.Options{
		DefaultFetchSize: cfg.Query.DefaultFetchSize,
		MaxRows:          cfg.Query.MaxRows,
		DefaultTimeout:   cfg.Query.Timeout(),
		LobPreviewBytes:  cfg.Query.LobPreviewBytes,
	}, logger)

	detector := capability.NewDetector(
		&poolProber{pool: p, engine: engine},
		cfg.Features.Detect.TTL(),
		logger,
	)

	s := &Server{
		cfg:         cfg,
		logger:      logger.With().Str("component", "server").Logger(),
		registry:    registry.New(),
		detector:    detector,
		pool:        p,
		engine:      engine,
		db:          db,
		workerCount: int64(cfg.WorkerCount()),
	}
	s.workers = semaphore.NewWeighted(s.workerCount)

	if err := s.verifyConnectivity(ctx); err != nil {
		s.closeResources()
		return nil, err
	}
	p.Warm(ctx)

	deps := tools.Deps{
		Engine:   engine,
		Pool:     p,
		Detector: detector,
		Builder:  sqlbuild.New(cfg.Security.BlockSystemUsers, cfg.Security.ExtraDenylist),
		Config:   cfg,
		Logger:   logger,
	}
	if err := tools.Register(s.registry, deps); err != nil {
		s.closeResources()
		return nil, fmt.Errorf("registering tool catalog: %w", err)
	}
	s.registry.Freeze()

	mcpSrv := mcpserver.NewMCPServer(Name, version.Version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := s.addTools(mcpSrv); err != nil {
		s.closeResources()
		return nil, err
	}
	s.mcp = mcpSrv

	s.logger.Info().
		Int("tools", s.registry.Len()).
		Str("edition", string(cfg.Edition)).
		Str("exposure", string(cfg.Tools.Exposure)).
		Msg("server wired")
	return s, nil
}

// verifyConnectivity borrows one connection and pings it.
func (s *Server) verifyConnectivity(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Pool.AcquireTimeout())
	defer cancel()

	err := s.pool.WithConnection(ctx, "startup_check", func(ctx context.Context, entry *pool.Entry) error {
		return entry.Session().PingContext(ctx)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	return nil
}

// Serve speaks MCP on stdin/stdout until ctx is cancelled or stdin
// closes, then drains in-flight calls and closes the pool. The frame
// loop lives in serveStdio: tool calls run concurrently there so a
// cancellation frame can reach a call that is still executing.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().Msg("serving MCP on stdio")

	err := s.serveStdio(ctx, os.Stdin, os.Stdout)
	s.shutdown()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// shutdown waits for in-flight calls up to the drain timeout, then
// closes the pool. Acquiring every worker slot proves quiescence.
func (s *Server) shutdown() {
	drainCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.DrainTimeout())
	defer cancel()

	if err := s.workers.Acquire(drainCtx, s.workerCount); err != nil {
		s.logger.Warn().Msg("drain timeout elapsed with calls still in flight")
	} else {
		s.workers.Release(s.workerCount)
	}
	s.closeResources()
	s.logger.Info().Msg("server stopped")
}

func (s *Server) closeResources() {
	s.pool.Close()
	if s.db != nil {
		_ = s.db.Close()
	}
}

// Registry exposes the catalog for tests and the command layer.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}
