package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"alertcore/internal/api"
	"alertcore/internal/clock"
	"alertcore/internal/config"
	"alertcore/internal/domain"
	"alertcore/internal/ingest"
	"alertcore/internal/logging"
	"alertcore/internal/notify"
	"alertcore/internal/rules"
	"alertcore/internal/store"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config source and shared runtime components.
// Returns: runnable alert service.
type Service struct {
	source     config.ConfigSource
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func()
	store      *store.Store
	registry   *rules.Registry
	dispatcher *notify.Dispatcher
	manager    *Manager
	httpSrv    *http.Server
	natsSub    interface{ Close() error }
	readyFlag  atomic.Bool
	clock      clock.Clock
}

// NewService builds a service instance from a config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		closeLog()
		return nil, err
	}

	dispatcher, err := notify.NewDispatcherFromConfig(cfg.Notify, logger)
	if err != nil {
		closeLog()
		return nil, err
	}

	alertStore := store.New()
	manager := NewManager(
		logger,
		registry,
		rules.NewEvaluator(),
		alertStore,
		dispatcher,
		clk,
		WithStrictTransitions(cfg.Service.StrictTransitions),
	)

	service := &Service{
		source:     source,
		cfg:        cfg,
		logger:     logger,
		closeLog:   closeLog,
		store:      alertStore,
		registry:   registry,
		dispatcher: dispatcher,
		manager:    manager,
		clock:      clk,
	}

	service.buildHTTPServer()
	if err := service.buildNATSSubscriber(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	return service, nil
}

// Manager exposes the lifecycle manager for embedding callers.
// Params: none.
// Returns: shared lifecycle manager.
func (s *Service) Manager() *Manager {
	return s.manager
}

// Run starts the service lifecycle and blocks until a shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	shutdownCtx, shutdownCancel := context.WithCancel(ctx)
	defer shutdownCancel()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", s.cfg.Service.Listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Sweep scheduling lives here; the sweeper itself stays on-demand.
	sweepInterval := time.Duration(s.cfg.Service.SweepIntervalSec) * time.Second
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-shutdownCtx.Done():
				return
			case <-ticker.C:
				s.manager.SweepRetention(s.cfg.RetentionWindow())
			}
		}
	}()

	s.readyFlag.Store(true)
	s.logger.Info("service started",
		"name", s.cfg.Service.Name,
		"rules", s.registry.Len(),
		"notify_channels", s.dispatcher.Channels(),
		"strict_transitions", s.cfg.Service.StrictTransitions,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats subscriber close failed", "error", err.Error())
			markErr(fmt.Errorf("nats subscriber close: %w", err))
		}
	}
	if err := s.dispatcher.Close(); err != nil {
		s.logger.Error("dispatcher close failed", "error", err.Error())
		markErr(fmt.Errorf("dispatcher close: %w", err))
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Close()
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildHTTPServer wires the API router onto the service listener.
// Params: none.
// Returns: none.
func (s *Service) buildHTTPServer() {
	handler := api.NewServer(s.manager, s.logger, s.cfg.Service.MaxBodyBytes, &s.readyFlag)
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Service.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// buildNATSSubscriber starts NATS sample ingest when enabled.
// Params: none.
// Returns: initialization error.
func (s *Service) buildNATSSubscriber() error {
	if !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	subscriber, err := ingest.NewNATSSubscriber(s.cfg.Ingest.NATS, s.manager, s.logger)
	if err != nil {
		return err
	}
	s.natsSub = subscriber
	return nil
}

// buildRegistry seeds built-in rules and merges config overrides.
// Params: config snapshot with `[rule.<type>]` tables.
// Returns: populated registry or rule validation error.
func buildRegistry(cfg config.Config) (*rules.Registry, error) {
	registry := rules.NewRegistry()
	for _, rule := range rules.Builtin() {
		if err := registry.Register(rule); err != nil {
			return nil, fmt.Errorf("register built-in rule %q: %w", rule.RuleType, err)
		}
	}
	for _, override := range cfg.Rules {
		merged := mergeRuleOverride(registry, override)
		if err := registry.Register(merged); err != nil {
			return nil, fmt.Errorf("register rule %q: %w", merged.RuleType, err)
		}
	}
	return registry, nil
}

// mergeRuleOverride layers one config override over the registered rule.
// Params: registry with built-ins and one config rule body.
// Returns: merged rule; unknown rule types must be complete definitions.
func mergeRuleOverride(registry *rules.Registry, override domain.Rule) domain.Rule {
	existing, err := registry.Get(override.RuleType)
	if err != nil {
		return override
	}
	merged := existing
	merged.Enabled = override.Enabled
	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Description != "" {
		merged.Description = override.Description
	}
	if override.DefaultSeverity != "" {
		merged.DefaultSeverity = override.DefaultSeverity
	}
	for field, threshold := range override.Conditions {
		if merged.Conditions == nil {
			merged.Conditions = make(map[string]float64, len(override.Conditions))
		}
		merged.Conditions[field] = threshold
	}
	return merged
}
