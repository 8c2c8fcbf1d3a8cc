package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"alertcore/internal/clock"
	"alertcore/internal/domain"
	"alertcore/internal/metrics"
	"alertcore/internal/notify"
	"alertcore/internal/retention"
	"alertcore/internal/rules"
	"alertcore/internal/store"

	"github.com/google/uuid"
)

// ErrIllegalTransition indicates a status change rejected by strict mode.
var ErrIllegalTransition = errors.New("illegal status transition")

// Manager drives the alert lifecycle over registry, store, and dispatcher.
// Params: injected registry, evaluator, store, dispatcher, sweeper, clock,
// id generator, and strict-transition flag.
// Returns: lifecycle operations for ingest and API layers.
type Manager struct {
	logger     *slog.Logger
	registry   *rules.Registry
	evaluator  *rules.Evaluator
	store      *store.Store
	dispatcher *notify.Dispatcher
	sweeper    *retention.Sweeper
	clock      clock.Clock
	newID      func() string
	strict     bool
}

// ManagerOption customizes manager construction.
// Params: mutable manager pointer.
// Returns: option applied during NewManager.
type ManagerOption func(*Manager)

// WithIDGenerator replaces the alert id generator.
// Params: id factory; tests inject deterministic ids here.
// Returns: manager option.
func WithIDGenerator(newID func() string) ManagerOption {
	return func(m *Manager) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// WithStrictTransitions enables the strict lifecycle state machine.
// Params: strict flag; default keeps the permissive any-to-any behavior.
// Returns: manager option.
func WithStrictTransitions(strict bool) ManagerOption {
	return func(m *Manager) {
		m.strict = strict
	}
}

// NewManager creates the lifecycle manager.
// Params: logger, registry, evaluator, store, dispatcher, clock, and options.
// Returns: initialized manager.
func NewManager(
	logger *slog.Logger,
	registry *rules.Registry,
	evaluator *rules.Evaluator,
	alertStore *store.Store,
	dispatcher *notify.Dispatcher,
	clk clock.Clock,
	opts ...ManagerOption,
) *Manager {
	manager := &Manager{
		logger:     logger,
		registry:   registry,
		evaluator:  evaluator,
		store:      alertStore,
		dispatcher: dispatcher,
		sweeper:    retention.NewSweeper(alertStore, clk, logger),
		clock:      clk,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(manager)
	}
	return manager
}

// CreateAlert materializes one alert, resolving defaults from the registry.
// Params: context and creation request; empty title/message/severity fall
// back to the registered rule's name/description/default severity.
// Returns: created alert, or rule-resolution/store/validation error.
func (m *Manager) CreateAlert(ctx context.Context, req domain.CreateRequest) (domain.Alert, error) {
	ruleType := strings.TrimSpace(req.RuleType)
	if ruleType == "" {
		return domain.Alert{}, errors.New("rule_type is required")
	}

	title := strings.TrimSpace(req.Title)
	message := strings.TrimSpace(req.Message)
	severity := req.Severity

	rule, err := m.registry.Get(ruleType)
	switch {
	case err == nil:
		if title == "" {
			title = rule.Name
		}
		if message == "" {
			message = rule.Description
		}
		if severity == "" {
			severity = rule.DefaultSeverity
		}
	case errors.Is(err, rules.ErrNoSuchRule):
		// Explicit caller-supplied alerts may use unregistered types, but
		// there is nothing to default from.
		if title == "" || severity == "" {
			return domain.Alert{}, fmt.Errorf("create alert: %w", err)
		}
	default:
		return domain.Alert{}, err
	}

	if err := severity.Validate(); err != nil {
		return domain.Alert{}, fmt.Errorf("create alert: %w", err)
	}

	now := m.clock.Now()
	alert := domain.Alert{
		ID:        m.newID(),
		RuleType:  ruleType,
		Title:     title,
		Message:   message,
		Severity:  severity,
		Payload:   req.Payload,
		Status:    domain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(alert); err != nil {
		return domain.Alert{}, err
	}
	metrics.AlertsCreatedTotal.WithLabelValues(alert.RuleType, string(alert.Severity)).Inc()
	if m.logger != nil {
		m.logger.Info("alert created", "id", alert.ID, "rule_type", alert.RuleType, "severity", alert.Severity)
	}

	// Best-effort boundary: delivery runs asynchronously and dispatch
	// failures stay inside the dispatcher, never reaching the creating caller.
	m.dispatcher.Notify(ctx, alert)

	return alert, nil
}

// EvaluateAndCreate runs one sample against the enabled rule set.
// Params: context and input sample.
// Returns: alerts created for every triggered rule (possibly empty), or
// sample validation error.
func (m *Manager) EvaluateAndCreate(ctx context.Context, sample domain.Sample) ([]domain.Alert, error) {
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	metrics.SamplesEvaluatedTotal.Inc()

	snapshot := m.registry.ListEnabled()
	triggers := m.evaluator.Evaluate(sample, snapshot)

	created := make([]domain.Alert, 0, len(triggers))
	for _, trigger := range triggers {
		alert, err := m.CreateAlert(ctx, domain.CreateRequest{
			RuleType: trigger.RuleType,
			Severity: trigger.Severity,
			Payload:  sample,
		})
		if err != nil {
			return created, fmt.Errorf("create alert for rule %q: %w", trigger.RuleType, err)
		}
		created = append(created, alert)
	}
	return created, nil
}

// SetStatus applies one status transition with set-once actor stamps.
// Params: alert id, target status, and opaque actor identifier.
// Returns: updated alert, ErrNotFound, or ErrIllegalTransition in strict mode.
func (m *Manager) SetStatus(_ context.Context, id string, status domain.Status, actor string) (domain.Alert, error) {
	if err := status.Validate(); err != nil {
		return domain.Alert{}, err
	}

	updated, err := m.store.Update(id, func(alert *domain.Alert) error {
		if m.strict && !legalTransition(alert.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, alert.Status, status)
		}
		now := m.clock.Now()
		alert.Status = status
		alert.UpdatedAt = now
		switch status {
		case domain.StatusAcknowledged:
			if alert.AcknowledgedAt == nil {
				stamp := now
				alert.AcknowledgedAt = &stamp
				alert.AcknowledgedBy = actor
			}
		case domain.StatusResolved:
			if alert.ResolvedAt == nil {
				stamp := now
				alert.ResolvedAt = &stamp
				alert.ResolvedBy = actor
			}
		}
		return nil
	})
	if err != nil {
		return domain.Alert{}, err
	}
	metrics.StatusUpdatesTotal.WithLabelValues(string(status)).Inc()
	return updated, nil
}

// Acknowledge marks one alert as acknowledged by an actor.
// Params: alert id and actor identifier.
// Returns: updated alert or SetStatus error.
func (m *Manager) Acknowledge(ctx context.Context, id, actor string) (domain.Alert, error) {
	return m.SetStatus(ctx, id, domain.StatusAcknowledged, actor)
}

// Resolve marks one alert as resolved by an actor.
// Params: alert id and actor identifier.
// Returns: updated alert or SetStatus error.
func (m *Manager) Resolve(ctx context.Context, id, actor string) (domain.Alert, error) {
	return m.SetStatus(ctx, id, domain.StatusResolved, actor)
}

// BulkSetStatus applies SetStatus independently to each id.
// Params: id list, target status, and actor identifier.
// Returns: per-id results matching the input ordering; one id's failure
// never aborts processing of the remaining ids.
func (m *Manager) BulkSetStatus(ctx context.Context, ids []string, status domain.Status, actor string) []domain.BulkResult {
	results := make([]domain.BulkResult, 0, len(ids))
	for _, id := range ids {
		updated, err := m.SetStatus(ctx, id, status, actor)
		if err != nil {
			results = append(results, domain.BulkResult{ID: id, Err: err})
			continue
		}
		alert := updated
		results = append(results, domain.BulkResult{ID: id, Alert: &alert})
	}
	return results
}

// DeleteAlert removes one alert from the live collection.
// Params: alert id.
// Returns: ErrNotFound when the id is absent; history keeps its entry.
func (m *Manager) DeleteAlert(id string) error {
	return m.store.Delete(id)
}

// GetAlert returns one live alert by id.
// Params: alert id.
// Returns: alert copy or ErrNotFound.
func (m *Manager) GetAlert(id string) (domain.Alert, error) {
	return m.store.Get(id)
}

// ListAlerts returns live alerts matching the filter.
// Params: AND-composed filter.
// Returns: alerts sorted by creation time descending, or ErrInvalidFilter.
func (m *Manager) ListAlerts(filter store.Filter) ([]domain.Alert, error) {
	return m.store.List(filter)
}

// Stats returns aggregate counts over the live collection.
// Params: none.
// Returns: stats document.
func (m *Manager) Stats() domain.Stats {
	return m.store.Stats()
}

// History returns the append-only creation log.
// Params: none.
// Returns: every alert ever created in creation order.
func (m *Manager) History() []domain.Alert {
	return m.store.History()
}

// SweepRetention purges resolved alerts older than the window.
// Params: retention window; non-positive falls back to the 30-day default.
// Returns: number of alerts purged.
func (m *Manager) SweepRetention(window time.Duration) int {
	return m.sweeper.Sweep(window)
}

// legalTransition reports strict-mode transition legality.
// Params: current and target status.
// Returns: true for forward transitions and same-status re-assertions.
func legalTransition(from, to domain.Status) bool {
	if from == to {
		return true
	}
	switch from {
	case domain.StatusActive:
		return to == domain.StatusAcknowledged || to == domain.StatusResolved
	case domain.StatusAcknowledged:
		return to == domain.StatusResolved
	default:
		return false
	}
}
