// ABOUTME: Gateway orchestrator that wires the store, chat hub and websocket transport
// ABOUTME: Manages the HTTP server, optional Redis relay and store lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/2389/pairchat/internal/auth"
	"github.com/2389/pairchat/internal/chat"
	"github.com/2389/pairchat/internal/config"
	"github.com/2389/pairchat/internal/realtime"
	"github.com/2389/pairchat/internal/relay"
	"github.com/2389/pairchat/internal/store"
)

// Gateway owns every long-lived pairchat component.
type Gateway struct {
	config     *config.Config
	store      store.Store
	guard      *chat.Guard
	hub        *chat.Hub
	realtime   *realtime.Server
	relay      *relay.Relay
	engine     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

// OpenStore creates the store selected by cfg.Database.
// PAIRCHAT_DB_PATH overrides the SQLite path.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		s, err := store.NewPostgresStore(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("initializing store: %w", err)
		}
		return s, nil
	case config.DriverSQLite, "":
		dbPath := cfg.Database.Path
		if envPath := os.Getenv("PAIRCHAT_DB_PATH"); envPath != "" {
			dbPath = envPath
		}
		s, err := store.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("initializing store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gw := &Gateway{
		config: cfg,
		store:  s,
		logger: logger.With("component", "gateway"),
	}

	// The registry is shared by the router and, when enabled, the relay
	gw.guard = chat.NewGuard(s)
	registry := chat.NewRegistry(gw.guard, logger)

	var broadcaster chat.Broadcaster = chat.NewFanOut(logger)
	if cfg.Redis.Enabled {
		client, err := relay.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("connecting relay: %w", err)
		}
		gw.relay = relay.New(client, cfg.Redis.ChannelPrefix, broadcaster, registry, cfg.Redis.DedupeTTL, logger)
		broadcaster = gw.relay
		logger.Info("redis relay enabled", "node", gw.relay.Node(), "prefix", cfg.Redis.ChannelPrefix)
	}

	router := chat.NewRouter(gw.guard, registry, s, broadcaster, logger)
	gw.hub = chat.NewHub(registry, router, logger)

	gw.realtime = realtime.NewServer(gw.hub, realtime.Options{
		SendBuffer:     cfg.Realtime.SendBuffer,
		WriteWait:      cfg.Realtime.WriteWait,
		PingPeriod:     cfg.Realtime.PingPeriod,
		ReadTimeout:    cfg.Realtime.ReadTimeout,
		MaxFrameBytes:  cfg.Realtime.MaxFrameBytes,
		RequestTimeout: cfg.Realtime.RequestTimeout,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
	}, logger)

	gw.engine = gw.newEngine(verifier)
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// newEngine builds the gin router. Health is public; everything else
// requires a bearer token.
func (g *Gateway) newEngine(verifier auth.TokenVerifier) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", g.handleHealth)

	authed := engine.Group("/", auth.Middleware(verifier))
	authed.GET("/ws", g.realtime.Handle())
	authed.GET("/api/conversations/:id/messages", g.handleListMessages)

	return engine
}

// Handler returns the HTTP handler serving every gateway route.
func (g *Gateway) Handler() http.Handler {
	return g.engine
}

// Store returns the gateway's store.
func (g *Gateway) Store() store.Store {
	return g.store
}

// Hub returns the chat hub driven by the websocket transport.
func (g *Gateway) Hub() *chat.Hub {
	return g.hub
}

// Run starts the HTTP server (and the relay subscription, when enabled) and
// blocks until the context is canceled or a server fails.
// Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 2)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	if g.relay != nil {
		go func() {
			if err := g.relay.Run(relayCtx); err != nil {
				errCh <- fmt.Errorf("relay: %w", err)
			}
		}()
	}

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}
	stopRelay()

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The run context is already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown closes websocket sessions, stops the HTTP server and releases the
// relay and store. Calls after the first return the first result.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.shutdownErr = g.shutdown(ctx)
	})
	return g.shutdownErr
}

func (g *Gateway) shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway", "connections", g.realtime.ActiveConnections())

	// Hijacked websocket connections are not tracked by http.Server.Shutdown
	g.realtime.CloseAll()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	if g.relay != nil {
		errs = appendCloseError(errs, "relay close", g.relay.Close())
	}
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
