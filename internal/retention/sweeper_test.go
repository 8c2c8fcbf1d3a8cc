package retention

import (
	"testing"
	"time"

	"alertcore/internal/domain"
	"alertcore/internal/store"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func seedAlert(t *testing.T, s *store.Store, id string, createdAt time.Time, status domain.Status) {
	t.Helper()
	err := s.Create(domain.Alert{
		ID:        id,
		RuleType:  "price_change",
		Title:     "Price Change Alert",
		Severity:  domain.SeverityMedium,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("seed %s failed: %v", id, err)
	}
}

func TestSweepPurgesOnlyOldResolved(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := store.New()
	seedAlert(t, s, "a-old-resolved", now.Add(-40*24*time.Hour), domain.StatusResolved)
	seedAlert(t, s, "a-fresh-resolved", now.Add(-5*24*time.Hour), domain.StatusResolved)
	seedAlert(t, s, "a-old-active", now.Add(-40*24*time.Hour), domain.StatusActive)

	sweeper := NewSweeper(s, fixedClock{now: now}, nil)
	removed := sweeper.Sweep(30 * 24 * time.Hour)
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 live alerts after sweep, got %d", s.Len())
	}
	if len(s.History()) != 3 {
		t.Fatalf("sweep touched history: %d entries", len(s.History()))
	}
}

func TestSweepDefaultsWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := store.New()
	seedAlert(t, s, "a-old-resolved", now.Add(-31*24*time.Hour), domain.StatusResolved)
	seedAlert(t, s, "a-recent-resolved", now.Add(-29*24*time.Hour), domain.StatusResolved)

	sweeper := NewSweeper(s, fixedClock{now: now}, nil)
	// Zero window falls back to the 30-day default.
	if removed := sweeper.Sweep(0); removed != 1 {
		t.Fatalf("expected 1 removed with default window, got %d", removed)
	}
}

func TestSweepNothingEligible(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := store.New()
	seedAlert(t, s, "a-active", now.Add(-100*24*time.Hour), domain.StatusActive)

	sweeper := NewSweeper(s, fixedClock{now: now}, nil)
	if removed := sweeper.Sweep(30 * 24 * time.Hour); removed != 0 {
		t.Fatalf("expected 0 removed, got %d", removed)
	}
}
