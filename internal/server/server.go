// Package server wires the request engine to COMMS, storage and an HTTP side
// server, and runs it until shutdown.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/beacon-dapp/internal/config"
	"github.com/morezero/beacon-dapp/pkg/client"
	"github.com/morezero/beacon-dapp/pkg/commsutil"
	"github.com/morezero/beacon-dapp/pkg/correlation"
	"github.com/morezero/beacon-dapp/pkg/dispatcher"
	"github.com/morezero/beacon-dapp/pkg/events"
	"github.com/morezero/beacon-dapp/pkg/identity"
	"github.com/morezero/beacon-dapp/pkg/metrics"
	"github.com/morezero/beacon-dapp/pkg/ratelimit"
	"github.com/morezero/beacon-dapp/pkg/session"
	"github.com/morezero/beacon-dapp/pkg/storage"
	"github.com/morezero/beacon-dapp/pkg/transport"
)

const logPrefix = "server:server"

// Server is the beacon-dapp orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	pool       *pgxpool.Pool
	store      storage.Store
	transport  *transport.CommsTransport
	table      *correlation.Table
	session    *session.Manager
	client     *client.Client
	bus        *events.Bus
	metrics    *metrics.Metrics
	restored   <-chan struct{}
	httpServer *http.Server
}

// SetupLogging installs the default slog text handler at level.
func SetupLogging(level string, w io.Writer) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})))
}

// New connects every component. The persisted session is restored in the
// background; see Ready.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}

	// Step 1: Storage
	if err := s.openStore(ctx); err != nil {
		return nil, err
	}

	// Step 2: Client identity. Its absence is reported per request.
	ids := identity.NewProvider(s.store)
	responseSubject := cfg.ResponseSubject
	if responseSubject == "" {
		responseSubject = commsutil.SubjectResponses
		if senderID, err := ids.SenderID(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - Client identity unavailable, using shared inbox: %v", logPrefix, err))
		} else {
			responseSubject = commsutil.BuildInboxSubject(commsutil.SubjectResponses, senderID)
		}
	}

	// Step 3: Connect to COMMS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}
	s.nc = nc

	serializer, err := commsutil.NewSerializer(cfg.WireFormat)
	if err != nil {
		s.Close()
		return nil, err
	}

	// Step 4: Engine
	s.metrics = metrics.New()
	s.table = correlation.NewTable(s.metrics)
	s.bus = events.NewBus()
	publisher := events.Fanout{
		s.bus,
		events.NewCommsPublisher(nc, &events.CommsPublisherOpts{SubjectPrefix: cfg.EventSubjectPrefix}),
	}
	s.session = session.NewManager(s.store, publisher)

	s.transport = transport.NewCommsTransport(transport.CommsTransportOpts{
		Conn:            nc,
		Name:            cfg.COMMSName,
		RequestSubject:  cfg.RequestSubject,
		ResponseSubject: responseSubject,
	})
	disp := dispatcher.NewDispatcher(s.table, serializer, publisher, s.metrics)
	s.transport.SetHandler(disp.HandleData)

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if l := ratelimit.New(cfg.RateLimit, cfg.RateLimitWindow); l != nil {
		limiter = l
	}

	s.client, err = client.New(client.Options{
		Transport:      s.transport,
		Serializer:     serializer,
		Table:          s.table,
		Session:        s.session,
		Accounts:       s.store,
		Identity:       ids,
		Limiter:        limiter,
		Publisher:      publisher,
		Metrics:        s.metrics,
		AppName:        cfg.AppName,
		AppIcon:        cfg.AppIcon,
		DefaultNetwork: cfg.Network(),
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	// Step 5: Restore the persisted session
	s.restored = s.session.Start(ctx)

	slog.Info(fmt.Sprintf("%s - Engine ready, requests on %s, responses on %s", logPrefix, cfg.RequestSubject, responseSubject))
	return s, nil
}

func (s *Server) openStore(ctx context.Context) error {
	if s.cfg.DatabaseURL == "" {
		slog.Info(fmt.Sprintf("%s - DATABASE_URL not set, using in-memory storage", logPrefix))
		s.store = storage.NewMemory()
		return nil
	}

	pool, err := storage.NewPool(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	s.pool = pool

	if s.cfg.RunMigrations {
		migrations, err := storage.LoadMigrations(s.cfg.MigrationPath)
		if err != nil {
			pool.Close()
			return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := storage.RunMigrations(ctx, pool, migrations); err != nil {
			pool.Close()
			return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}

	s.store = storage.NewRepository(pool)
	return nil
}

// Client returns the request engine.
func (s *Server) Client() *client.Client { return s.client }

// Store returns the key/value and account store.
func (s *Server) Store() storage.Store { return s.store }

// Events returns the in-process event bus.
func (s *Server) Events() *events.Bus { return s.bus }

// Ready is closed once the persisted session has been restored.
func (s *Server) Ready() <-chan struct{} { return s.restored }

// RequestContext bounds a request by BEACON_REQUEST_TIMEOUT when it is set.
func (s *Server) RequestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout > 0 {
		return context.WithTimeout(parent, s.cfg.RequestTimeout)
	}
	return context.WithCancel(parent)
}

// Handler serves /health, /ready, /account and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/account", s.handleAccount)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

type healthOutput struct {
	Status  string          `json:"status"`
	Checks  map[string]bool `json:"checks"`
	Pending int             `json:"pending"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := healthOutput{Status: "healthy", Checks: map[string]bool{}}
	out.Checks["comms"] = s.nc != nil && s.nc.IsConnected()
	if s.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		out.Checks["database"] = s.pool.Ping(ctx) == nil
		cancel()
	}
	for _, ok := range out.Checks {
		if !ok {
			out.Status = "unhealthy"
		}
	}
	if s.table != nil {
		out.Pending = s.table.Len()
	}

	status := http.StatusOK
	if out.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, out)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	select {
	case <-s.restored:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	default:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "restoring"})
	}
}

func (s *Server) handleAccount(w http.ResponseWriter, _ *http.Request) {
	account := s.session.Active()
	if account == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active account"})
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
	}
}

// Close releases COMMS and database resources.
func (s *Server) Close() {
	if s.transport != nil {
		s.transport.Close()
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.nc.Close()
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// Run starts the engine and the HTTP side server, blocks until a shutdown
// signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	SetupLogging(cfg.LogLevel, os.Stdout)
	if err := cfg.ValidateForRun(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting beacon-dapp", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	// Subscribe to the response inbox now rather than on first request.
	if err := s.transport.Connect(ctx); err != nil {
		return fmt.Errorf("%s - failed to open response inbox: %w", logPrefix, err)
	}

	if cfg.HTTPPort > 0 {
		httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
		s.httpServer = &http.Server{Addr: httpAddr, Handler: s.Handler()}
		go func() {
			slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, httpAddr))
			if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
				slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
			}
		}()
	}

	slog.Info(fmt.Sprintf("%s - beacon-dapp is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	if s.httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
		s.httpServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}
