package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/strefethen/soundtouch-hub-go/internal/api"
	"github.com/strefethen/soundtouch-hub-go/internal/audit"
	"github.com/strefethen/soundtouch-hub-go/internal/auth"
	"github.com/strefethen/soundtouch-hub-go/internal/config"
	"github.com/strefethen/soundtouch-hub-go/internal/db"
	"github.com/strefethen/soundtouch-hub-go/internal/devices"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch/events"
)

// Options controls server wiring.
type Options struct {
	// Listeners receive every property update in addition to the state cache.
	Listeners []soundtouch.Listener
	// Dial overrides how device websockets are created.
	Dial devices.Dialer
}

// Server wires the device hub, its HTTP API and background jobs.
type Server struct {
	cfg       config.Config
	logger    zerolog.Logger
	handler   http.Handler
	dbPair    *db.DBPair
	audit     *audit.Service
	devices   *devices.Service
	cache     *events.StateCache
	pairing   *auth.PairingStore
	issuer    *auth.TokenIssuer
	scheduler *cron.Cron
}

// New builds the server. Nothing connects to devices until Run.
func New(cfg config.Config, opts Options, logger zerolog.Logger) (*Server, error) {
	logger.Info().Str("db_path", cfg.SQLiteDBPath).Msg("Using database")
	dbPair, err := db.Init(cfg.SQLiteDBPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		dbPair:    dbPair,
		audit:     audit.NewService(dbPair, cfg.AuditRetentionDays, logger),
		cache:     events.NewStateCache(time.Duration(cfg.StateCacheTTLSec) * time.Second),
		pairing:   auth.NewPairingStore(time.Duration(cfg.PairingCodeTTLSec) * time.Second),
		issuer:    auth.NewTokenIssuer(cfg),
		scheduler: cron.New(),
	}

	listeners := append(soundtouch.Listeners{s.cache}, opts.Listeners...)
	s.devices = devices.NewService(devices.Options{
		PresetDir:    cfg.PresetDir,
		WSPort:       cfg.SoundTouchWSPort,
		ReconnectMin: time.Duration(cfg.ReconnectMinMs) * time.Millisecond,
		ReconnectMax: time.Duration(cfg.ReconnectMaxMs) * time.Millisecond,
		Dial:         opts.Dial,
	}, listeners, s.audit, logger)

	for _, device := range cfg.Devices {
		if _, err := s.devices.Add(device); err != nil {
			s.close()
			return nil, err
		}
	}

	if err := s.schedule(); err != nil {
		s.close()
		return nil, err
	}

	s.handler = s.routes()
	return s, nil
}

func (s *Server) schedule() error {
	if _, err := s.devices.SchedulePoll(s.scheduler, s.cfg.PollSchedule); err != nil {
		return err
	}
	if _, err := s.audit.SchedulePrune(s.scheduler, s.cfg.AuditPruneSchedule); err != nil {
		return err
	}
	return scheduleCachePrune(s.scheduler, s.cache, s.cfg.StateCacheTTLSec, s.logger)
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(api.RequestContext(s.logger))
	router.Use(api.RequestLogger(s.logger))
	router.Use(api.RecovererMiddleware(s.logger))
	router.Use(auth.Middleware(s.cfg, s.issuer))

	s.registerHealthRoutes(router)
	auth.RegisterRoutes(router, s.pairing, s.issuer, s.cfg, s.logger)
	devices.RegisterRoutes(router, s.devices, s.cache)
	audit.RegisterRoutes(router, s.audit)
	return router
}

// Handler returns the HTTP API.
func (s *Server) Handler() http.Handler { return s.handler }

// Devices returns the device service.
func (s *Server) Devices() *devices.Service { return s.devices }

// Run starts device sessions and background jobs and blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.audit.Record(audit.WriteEventInput{
		Type:    audit.EventSystemStartup,
		Message: "Hub started",
		Payload: map[string]any{"devices": len(s.devices.List())},
	})
	s.pairing.StartCleanup(ctx, time.Minute)
	s.scheduler.Start()
	defer func() {
		<-s.scheduler.Stop().Done()
	}()

	err := s.devices.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.audit.Record(audit.WriteEventInput{Type: audit.EventSystemError, Level: audit.EventLevelError, Message: err.Error()})
		return fmt.Errorf("device sessions: %w", err)
	}
	return nil
}

// Close records shutdown and releases storage. Call after Run returns.
func (s *Server) Close() error {
	s.audit.Record(audit.WriteEventInput{Type: audit.EventSystemShutdown, Message: "Hub stopped"})
	return s.close()
}

func (s *Server) close() error {
	return errors.Join(s.devices.Close(), s.dbPair.Close())
}

func (s *Server) registerHealthRoutes(router chi.Router) {
	router.Method(http.MethodGet, "/v1/health", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		total, connected := 0, 0
		for _, device := range s.devices.List() {
			total++
			if device.Connected() {
				connected++
			}
		}
		hits, misses, size := s.cache.Stats()
		status := "healthy"
		if !s.audit.IsHealthy() {
			status = "degraded"
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{
			"status":    status,
			"service":   "soundtouch-hub",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"devices": map[string]any{
				"total":     total,
				"connected": connected,
			},
			"state_cache": map[string]any{
				"hits":   hits,
				"misses": misses,
				"size":   size,
			},
		})
	}))
	router.Method(http.MethodGet, "/v1/health/live", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}))
	router.Method(http.MethodGet, "/v1/health/ready", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if !s.audit.IsHealthy() {
			return api.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}))
}
