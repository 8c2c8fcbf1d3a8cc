// Package store keeps the authoritative in-memory alert collection and an
// append-only creation history. History growth is unbounded by design; the
// hosting system watches it through Stats.HistoryLen.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"alertcore/internal/domain"
)

var (
	// ErrNotFound indicates an absent alert id on get/update/delete.
	ErrNotFound = errors.New("alert not found")
	// ErrDuplicateID indicates an id collision on create.
	ErrDuplicateID = errors.New("duplicate alert id")
	// ErrInvalidFilter indicates a malformed list filter.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Filter selects alerts for list queries; zero-valued fields match everything.
// Params: optional status/severity/rule-type equality and inclusive date range.
// Returns: AND-composed predicate over the live collection.
type Filter struct {
	Status        domain.Status
	Severity      domain.Severity
	RuleType      string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Validate checks filter consistency.
// Params: filter fields from the caller.
// Returns: ErrInvalidFilter when the date range is inverted.
func (f Filter) Validate() error {
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return fmt.Errorf("%w: created_after is later than created_before", ErrInvalidFilter)
	}
	return nil
}

// matches applies all supplied filter fields to one alert.
// Params: alert from the live collection.
// Returns: true when every supplied predicate holds.
func (f Filter) matches(alert domain.Alert) bool {
	if f.Status != "" && alert.Status != f.Status {
		return false
	}
	if f.Severity != "" && alert.Severity != f.Severity {
		return false
	}
	if f.RuleType != "" && alert.RuleType != f.RuleType {
		return false
	}
	if f.CreatedAfter != nil && alert.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && alert.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

// Store holds the live alert map and the append-only creation history.
// Params: one RWMutex serializes mutations; readers observe consistent snapshots.
// Returns: authoritative single-process alert storage.
type Store struct {
	mu      sync.RWMutex
	live    map[string]domain.Alert
	history []domain.Alert
}

// New creates an empty alert store.
// Params: none.
// Returns: initialized store instance.
func New() *Store {
	return &Store{live: make(map[string]domain.Alert)}
}

// Create inserts one alert into the live map and appends it to history.
// Params: fully constructed alert with a unique id.
// Returns: ErrDuplicateID when the id already exists in the live map.
func (s *Store) Create(alert domain.Alert) error {
	stored := alert.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.live[stored.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, stored.ID)
	}
	s.live[stored.ID] = stored
	s.history = append(s.history, stored.Clone())
	return nil
}

// Get returns one live alert by id.
// Params: alert id.
// Returns: detached alert copy or ErrNotFound.
func (s *Store) Get(id string) (domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alert, ok := s.live[id]
	if !ok {
		return domain.Alert{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return alert.Clone(), nil
}

// List returns live alerts matching all supplied filters.
// Params: filter with AND-composed predicates.
// Returns: matching alert copies sorted by creation time descending.
func (s *Store) List(filter Filter) ([]domain.Alert, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]domain.Alert, 0, len(s.live))
	for _, alert := range s.live {
		if !filter.matches(alert) {
			continue
		}
		matched = append(matched, alert.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

// Update applies one mutation to a live alert atomically.
// Params: alert id and mutator applied under the write lock; a mutator error
// aborts the update and leaves the stored alert untouched.
// Returns: updated alert copy, ErrNotFound, or the mutator error.
func (s *Store) Update(id string, mutate func(*domain.Alert) error) (domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.live[id]
	if !ok {
		return domain.Alert{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	draft := alert.Clone()
	if err := mutate(&draft); err != nil {
		return domain.Alert{}, err
	}
	draft.ID = alert.ID
	draft.CreatedAt = alert.CreatedAt
	s.live[id] = draft
	return draft.Clone(), nil
}

// Delete removes one alert from the live map; history keeps its entry.
// Params: alert id.
// Returns: ErrNotFound when the id is absent from the live map.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.live, id)
	return nil
}

// PurgeResolvedBefore removes resolved alerts created before the cutoff.
// Params: creation-time cutoff; only alerts in resolved status are eligible.
// Returns: number of alerts removed from the live map.
func (s *Store) PurgeResolvedBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, alert := range s.live {
		if alert.Status != domain.StatusResolved {
			continue
		}
		if !alert.CreatedAt.Before(cutoff) {
			continue
		}
		delete(s.live, id)
		removed++
	}
	return removed
}

// Stats computes aggregate counts over the live collection.
// Params: none.
// Returns: total plus per-status, per-severity, and per-rule-type counts;
// enum buckets are always present even when zero.
func (s *Store) Stats() domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.Stats{
		Total:      len(s.live),
		ByStatus:   make(map[domain.Status]int, 3),
		BySeverity: make(map[domain.Severity]int, 4),
		ByRuleType: make(map[string]int),
		HistoryLen: len(s.history),
	}
	for _, status := range domain.Statuses() {
		stats.ByStatus[status] = 0
	}
	for _, severity := range domain.Severities() {
		stats.BySeverity[severity] = 0
	}
	for _, alert := range s.live {
		stats.ByStatus[alert.Status]++
		stats.BySeverity[alert.Severity]++
		stats.ByRuleType[alert.RuleType]++
	}
	return stats
}

// History returns the append-only creation log in creation order.
// Params: none.
// Returns: detached copies of every alert ever created, deletions included.
func (s *Store) History() []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Alert, 0, len(s.history))
	for _, alert := range s.history {
		out = append(out, alert.Clone())
	}
	return out
}

// Len reports the live collection size.
// Params: none.
// Returns: number of live alerts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live)
}
