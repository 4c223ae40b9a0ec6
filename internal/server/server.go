// Package server assembles the daemon from its parts and runs the HTTP
// control surface plus the confirmation-timeout ticker.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/attendd/attendd/internal/api"
	"github.com/attendd/attendd/internal/arbiter"
	"github.com/attendd/attendd/internal/config"
	"github.com/attendd/attendd/internal/events"
	"github.com/attendd/attendd/internal/executor"
	"github.com/attendd/attendd/internal/intent"
	"github.com/attendd/attendd/internal/intent/groq"
	"github.com/attendd/attendd/internal/registry"
	"github.com/attendd/attendd/internal/session"
	"github.com/attendd/attendd/internal/store/sqlite"
)

const tickInterval = time.Second

type Server struct {
	cfg   *config.Config
	log   *zap.Logger
	store *sqlite.Store
	exec  *executor.Executor
	mgr   *session.Manager
	http  *http.Server
}

// New builds every component from the configuration. The command registry
// must load, everything else degrades: a disabled audit store simply drops
// events, a "none" classifier keeps routing fully offline.
func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	var store *sqlite.Store
	var sinks []events.Sink
	if cfg.Audit.Enabled {
		var err error
		store, err = sqlite.Open(cfg.Audit.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		sinks = append(sinks, store)
	}
	emit := events.NewBroker(log, sinks...)

	var pol *registry.Policy
	if cfg.Registry.PolicyPath != "" {
		var err error
		pol, err = registry.LoadPolicy(cfg.Registry.PolicyPath)
		if err != nil {
			if store != nil {
				_ = store.Close()
			}
			return nil, fmt.Errorf("load policy: %w", err)
		}
	}

	reg, err := registry.Load(cfg.Registry.CommandsPath, pol, emit, log)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("load commands: %w", err)
	}

	classifier, err := newClassifier(cfg.Classifier)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	router := intent.NewRouter(intent.Config{
		DeterministicThreshold: cfg.Intent.DeterministicThreshold,
		LLMFallbackThreshold:   cfg.Intent.LLMFallbackThreshold,
	}, reg.List(), classifier, log)

	arb := arbiter.New(arbiter.Config{DeterministicThreshold: cfg.Intent.DeterministicThreshold})
	mgr := session.NewManager(arb, emit, log)
	exec := executor.New(reg, executor.Config{
		ConfirmationTimeout: cfg.Execution.ConfirmationTimeout(),
		DryRun:              cfg.Execution.DryRun,
	}, emit, log)

	app := api.NewApp(router, mgr, exec, reg, store, log)

	return &Server{
		cfg:   cfg,
		log:   log,
		store: store,
		exec:  exec,
		mgr:   mgr,
		http: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           app.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func newClassifier(cfg config.ClassifierConfig) (intent.Classifier, error) {
	switch cfg.Provider {
	case "none":
		return intent.NopClassifier{}, nil
	case "groq":
		return groq.NewClient(groq.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  os.Getenv(cfg.APIKeyEnv),
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		}), nil
	}
	return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
}

// Run serves until ctx is canceled. The ticker expires stale pending
// confirmations even when no request is in flight.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	s.log.Info("attendd listening", zap.String("addr", s.cfg.Server.Addr))
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := s.http.Shutdown(shutdownCtx)
			s.mgr.Cancel()
			return err
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case now := <-ticker.C:
			s.exec.HandleTick(now)
		}
	}
}

// Close releases the audit store and flushes the logger.
func (s *Server) Close() error {
	var err error
	if s.store != nil {
		err = s.store.Close()
	}
	_ = s.log.Sync()
	return err
}
