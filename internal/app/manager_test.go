package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"alertcore/internal/clock"
	"alertcore/internal/domain"
	"alertcore/internal/notify"
	"alertcore/internal/rules"
	"alertcore/internal/store"
)

// stepClock returns a fixed instant, advancing a step per call.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock(start time.Time, step time.Duration) *stepClock {
	return &stepClock{now: start, step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.now
	c.now = c.now.Add(c.step)
	return current
}

var _ clock.Clock = (*stepClock)(nil)

type recordingChannel struct {
	mu   sync.Mutex
	sent []domain.Alert
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Send(_ context.Context, alert domain.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, alert)
	return nil
}

func (c *recordingChannel) alerts() []domain.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Alert, len(c.sent))
	copy(out, c.sent)
	return out
}

type failingChannel struct{}

func (failingChannel) Name() string { return "failing" }

func (failingChannel) Send(context.Context, domain.Alert) error {
	return errors.New("delivery refused")
}

type managerFixture struct {
	manager    *Manager
	store      *store.Store
	registry   *rules.Registry
	channel    *recordingChannel
	dispatcher *notify.Dispatcher
	clock      *stepClock
}

func newManagerFixture(t *testing.T, opts ...ManagerOption) *managerFixture {
	t.Helper()

	registry := rules.NewRegistry()
	for _, rule := range rules.Builtin() {
		if err := registry.Register(rule); err != nil {
			t.Fatalf("register built-in rule %q failed: %v", rule.RuleType, err)
		}
	}

	channel := &recordingChannel{}
	alertStore := store.New()
	clk := newStepClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), time.Second)

	var counter int
	defaults := []ManagerOption{
		WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("alert-%04d", counter)
		}),
	}
	dispatcher := notify.NewDispatcher(nil, channel)
	manager := NewManager(
		nil,
		registry,
		rules.NewEvaluator(),
		alertStore,
		dispatcher,
		clk,
		append(defaults, opts...)...,
	)
	return &managerFixture{
		manager:    manager,
		store:      alertStore,
		registry:   registry,
		channel:    channel,
		dispatcher: dispatcher,
		clock:      clk,
	}
}

func TestCreateAlertResolvesRegistryDefaults(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	alert, err := f.manager.CreateAlert(context.Background(), domain.CreateRequest{
		RuleType: rules.RuleSystemPerformance,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if alert.Title != "System Performance Alert" {
		t.Fatalf("title not defaulted from rule name: %q", alert.Title)
	}
	if alert.Severity != domain.SeverityHigh {
		t.Fatalf("severity not defaulted: %q", alert.Severity)
	}
	if alert.Status != domain.StatusActive {
		t.Fatalf("new alert not active: %q", alert.Status)
	}
	if alert.ID == "" {
		t.Fatalf("alert id not assigned")
	}
	if !alert.UpdatedAt.Equal(alert.CreatedAt) {
		t.Fatalf("updated_at differs from created_at on create")
	}

	f.dispatcher.Flush()
	if sent := f.channel.alerts(); len(sent) != 1 || sent[0].ID != alert.ID {
		t.Fatalf("notification missing for created alert: %+v", sent)
	}
}

func TestCreateAlertCallerOverridesWin(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	alert, err := f.manager.CreateAlert(context.Background(), domain.CreateRequest{
		RuleType: rules.RulePriceChange,
		Title:    "BTC moved hard",
		Severity: domain.SeverityCritical,
		Payload:  map[string]any{"priceChangePercent": 12.0},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if alert.Title != "BTC moved hard" || alert.Severity != domain.SeverityCritical {
		t.Fatalf("overrides not applied: %+v", alert)
	}
}

func TestCreateAlertUnknownRuleWithoutOverrides(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	_, err := f.manager.CreateAlert(context.Background(), domain.CreateRequest{
		RuleType: "made_up_rule",
	})
	if !errors.Is(err, rules.ErrNoSuchRule) {
		t.Fatalf("expected ErrNoSuchRule, got %v", err)
	}
	f.dispatcher.Flush()
	if len(f.channel.alerts()) != 0 {
		t.Fatalf("failed create still notified")
	}
}

func TestCreateAlertUnknownRuleWithCompleteOverrides(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	alert, err := f.manager.CreateAlert(context.Background(), domain.CreateRequest{
		RuleType: "one_off_incident",
		Title:    "Manual incident",
		Severity: domain.SeverityLow,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if alert.RuleType != "one_off_incident" || alert.Severity != domain.SeverityLow {
		t.Fatalf("unexpected alert %+v", alert)
	}
}

func TestCreateAlertIDsAreUnique(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		alert, err := f.manager.CreateAlert(context.Background(), domain.CreateRequest{
			RuleType: rules.RulePriceChange,
		})
		if err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
		if seen[alert.ID] {
			t.Fatalf("duplicate id %q", alert.ID)
		}
		seen[alert.ID] = true
	}
}

func TestCreateAlertSurvivesNotifyFailure(t *testing.T) {
	t.Parallel()

	registry := rules.NewRegistry()
	for _, rule := range rules.Builtin() {
		if err := registry.Register(rule); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}
	manager := NewManager(
		nil,
		registry,
		rules.NewEvaluator(),
		store.New(),
		notify.NewDispatcher(nil, failingChannel{}),
		newStepClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), time.Second),
	)

	alert, err := manager.CreateAlert(context.Background(), domain.CreateRequest{
		RuleType: rules.RuleDatabaseHealth,
	})
	if err != nil {
		t.Fatalf("create must succeed despite notify failure: %v", err)
	}
	if _, err := manager.GetAlert(alert.ID); err != nil {
		t.Fatalf("alert not stored: %v", err)
	}
}

type blockedChannel struct {
	release chan struct{}
}

func (c *blockedChannel) Name() string { return "stuck" }

func (c *blockedChannel) Send(context.Context, domain.Alert) error {
	<-c.release
	return nil
}

func TestCreateAlertDoesNotBlockOnSlowChannel(t *testing.T) {
	t.Parallel()

	registry := rules.NewRegistry()
	for _, rule := range rules.Builtin() {
		if err := registry.Register(rule); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}
	blocked := &blockedChannel{release: make(chan struct{})}
	dispatcher := notify.NewDispatcher(nil, blocked)
	manager := NewManager(
		nil,
		registry,
		rules.NewEvaluator(),
		store.New(),
		dispatcher,
		newStepClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), time.Second),
	)

	start := time.Now()
	alert, err := manager.CreateAlert(context.Background(), domain.CreateRequest{
		RuleType: rules.RuleSystemPerformance,
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("create blocked %v on a stuck notification channel", elapsed)
	}
	if _, err := manager.GetAlert(alert.ID); err != nil {
		t.Fatalf("alert not stored while delivery pending: %v", err)
	}

	close(blocked.release)
	dispatcher.Flush()
}

func TestEvaluateAndCreateSingleTriggerPerRule(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	created, err := f.manager.EvaluateAndCreate(context.Background(), domain.Sample{
		rules.FieldCPUUsage: 85.0,
	})
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected exactly 1 alert, got %d", len(created))
	}
	if created[0].RuleType != rules.RuleSystemPerformance {
		t.Fatalf("unexpected rule type %q", created[0].RuleType)
	}
	if created[0].Payload[rules.FieldCPUUsage] != 85.0 {
		t.Fatalf("sample not carried as payload: %+v", created[0].Payload)
	}
}

func TestEvaluateAndCreateNoTriggers(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	created, err := f.manager.EvaluateAndCreate(context.Background(), domain.Sample{
		rules.FieldCPUUsage: 10.0,
	})
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("expected no alerts, got %+v", created)
	}
	if f.store.Len() != 0 {
		t.Fatalf("store not empty after non-triggering sample")
	}
}

func TestEvaluateAndCreateRejectsEmptySample(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	if _, err := f.manager.EvaluateAndCreate(context.Background(), domain.Sample{}); err == nil {
		t.Fatalf("expected validation error for empty sample")
	}
}

func TestAcknowledgeStampsOnce(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	created, err := f.manager.CreateAlert(context.Background(), domain.CreateRequest{
		RuleType: rules.RulePriceChange,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, err := f.manager.Acknowledge(context.Background(), created.ID, "alice")
	if err != nil {
		t.Fatalf("first acknowledge failed: %v", err)
	}
	if first.AcknowledgedAt == nil || first.AcknowledgedBy != "alice" {
		t.Fatalf("acknowledge stamp missing: %+v", first)
	}
	firstStamp := *first.AcknowledgedAt

	second, err := f.manager.Acknowledge(context.Background(), created.ID, "bob")
	if err != nil {
		t.Fatalf("second acknowledge failed: %v", err)
	}
	if second.AcknowledgedBy != "alice" {
		t.Fatalf("acknowledge actor overwritten by %q", second.AcknowledgedBy)
	}
	if !second.AcknowledgedAt.Equal(firstStamp) {
		t.Fatalf("acknowledge time overwritten: %v -> %v", firstStamp, second.AcknowledgedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("updated_at not refreshed on re-acknowledge")
	}
}

func TestResolveStampsOnce(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	created, err := f.manager.CreateAlert(context.Background(), domain.CreateRequest{
		RuleType: rules.RulePriceChange,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, err := f.manager.Resolve(context.Background(), created.ID, "alice")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	second, err := f.manager.Resolve(context.Background(), created.ID, "bob")
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if second.ResolvedBy != "alice" || !second.ResolvedAt.Equal(*first.ResolvedAt) {
		t.Fatalf("resolve stamp overwritten: %+v", second)
	}
}

func TestPermissiveModeAllowsBackwardTransition(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	created, err := f.manager.CreateAlert(context.Background(), domain.CreateRequest{
		RuleType: rules.RulePriceChange,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.manager.Resolve(context.Background(), created.ID, "alice"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	reopened, err := f.manager.SetStatus(context.Background(), created.ID, domain.StatusActive, "bob")
	if err != nil {
		t.Fatalf("permissive backward transition rejected: %v", err)
	}
	if reopened.Status != domain.StatusActive {
		t.Fatalf("unexpected status %q", reopened.Status)
	}
	// The resolve stamp survives reopening.
	if reopened.ResolvedAt == nil || reopened.ResolvedBy != "alice" {
		t.Fatalf("resolve stamp lost on reopen: %+v", reopened)
	}
}

func TestStrictModeRejectsBackwardTransition(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, WithStrictTransitions(true))
	created, err := f.manager.CreateAlert(context.Background(), domain.CreateRequest{
		RuleType: rules.RulePriceChange,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.manager.Resolve(context.Background(), created.ID, "alice"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	_, err = f.manager.SetStatus(context.Background(), created.ID, domain.StatusActive, "bob")
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	_, err = f.manager.Acknowledge(context.Background(), created.ID, "bob")
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition on resolved->acknowledged, got %v", err)
	}

	got, err := f.manager.GetAlert(created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != domain.StatusResolved {
		t.Fatalf("rejected transition leaked, status %q", got.Status)
	}
}

func TestStrictModeAllowsForwardPath(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, WithStrictTransitions(true))
	created, err := f.manager.CreateAlert(context.Background(), domain.CreateRequest{
		RuleType: rules.RulePriceChange,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.manager.Acknowledge(context.Background(), created.ID, "alice"); err != nil {
		t.Fatalf("active->acknowledged rejected: %v", err)
	}
	if _, err := f.manager.Acknowledge(context.Background(), created.ID, "bob"); err != nil {
		t.Fatalf("same-status re-assertion rejected: %v", err)
	}
	if _, err := f.manager.Resolve(context.Background(), created.ID, "alice"); err != nil {
		t.Fatalf("acknowledged->resolved rejected: %v", err)
	}
}

func TestSetStatusUnknownAlert(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	_, err := f.manager.SetStatus(context.Background(), "missing", domain.StatusResolved, "alice")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBulkSetStatusPartialFailure(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	created, err := f.manager.CreateAlert(context.Background(), domain.CreateRequest{
		RuleType: rules.RulePriceChange,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	results := f.manager.BulkSetStatus(
		context.Background(),
		[]string{created.ID, "missing-id"},
		domain.StatusAcknowledged,
		"alice",
	)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != created.ID || results[0].Err != nil || results[0].Alert == nil {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if results[0].Alert.Status != domain.StatusAcknowledged {
		t.Fatalf("first alert not acknowledged: %q", results[0].Alert.Status)
	}
	if results[1].ID != "missing-id" || !errors.Is(results[1].Err, store.ErrNotFound) {
		t.Fatalf("unexpected second result %+v", results[1])
	}
}

func TestBulkSetStatusEmptyInput(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	results := f.manager.BulkSetStatus(context.Background(), nil, domain.StatusResolved, "alice")
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %+v", results)
	}
}

func TestDeleteAlertKeepsHistory(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	created, err := f.manager.CreateAlert(context.Background(), domain.CreateRequest{
		RuleType: rules.RulePriceChange,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := f.manager.DeleteAlert(created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := f.manager.DeleteAlert(created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if history := f.manager.History(); len(history) != 1 || history[0].ID != created.ID {
		t.Fatalf("history lost deleted alert: %+v", history)
	}
}

func TestSweepRetentionPurgesOldResolved(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seed := func(id string, age time.Duration, status domain.Status) {
		t.Helper()
		alert := domain.Alert{
			ID:        id,
			RuleType:  rules.RulePriceChange,
			Title:     "Price Change Alert",
			Severity:  domain.SeverityMedium,
			Status:    status,
			CreatedAt: now.Add(-age),
			UpdatedAt: now.Add(-age),
		}
		if err := f.store.Create(alert); err != nil {
			t.Fatalf("seed %s failed: %v", id, err)
		}
	}
	seed("a-old-resolved", 40*24*time.Hour, domain.StatusResolved)
	seed("a-fresh-resolved", 5*24*time.Hour, domain.StatusResolved)
	seed("a-old-active", 40*24*time.Hour, domain.StatusActive)

	purged := f.manager.SweepRetention(30 * 24 * time.Hour)
	if purged != 1 {
		t.Fatalf("expected 1 purged alert, got %d", purged)
	}
	if _, err := f.manager.GetAlert("a-old-resolved"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("old resolved alert survived: %v", err)
	}
	if _, err := f.manager.GetAlert("a-fresh-resolved"); err != nil {
		t.Fatalf("fresh resolved alert purged: %v", err)
	}
	if _, err := f.manager.GetAlert("a-old-active"); err != nil {
		t.Fatalf("active alert purged: %v", err)
	}
}
