package rules

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"alertcore/internal/domain"
)

// ErrNoSuchRule indicates a lookup for a rule type that was never registered.
var ErrNoSuchRule = errors.New("no such rule")

// Registry owns the rule-type to rule-definition mapping.
// Params: guarded map of registered rules keyed by rule type.
// Returns: registration, toggle, and snapshot operations for evaluation.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]domain.Rule
}

// NewRegistry creates an empty rule registry.
// Params: none.
// Returns: initialized registry instance.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]domain.Rule)}
}

// Register inserts or atomically replaces one rule definition.
// Params: validated rule definition keyed by its rule type.
// Returns: validation error when the definition is incomplete.
func (r *Registry) Register(rule domain.Rule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("register rule %q: %w", rule.RuleType, err)
	}
	stored := rule.Clone()
	r.mu.Lock()
	r.rules[stored.RuleType] = stored
	r.mu.Unlock()
	return nil
}

// SetEnabled toggles one rule's enabled flag.
// Params: rule type key and target enabled state.
// Returns: ErrNoSuchRule when the rule type was never registered.
func (r *Registry) SetEnabled(ruleType string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[ruleType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchRule, ruleType)
	}
	rule.Enabled = enabled
	r.rules[ruleType] = rule
	return nil
}

// Get returns one registered rule by rule type.
// Params: rule type key.
// Returns: detached rule copy or ErrNoSuchRule.
func (r *Registry) Get(ruleType string) (domain.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[ruleType]
	if !ok {
		return domain.Rule{}, fmt.Errorf("%w: %q", ErrNoSuchRule, ruleType)
	}
	return rule.Clone(), nil
}

// ListEnabled returns a stable-ordered snapshot of currently enabled rules.
// Params: none.
// Returns: detached rule copies sorted by rule type.
func (r *Registry) ListEnabled() []domain.Rule {
	r.mu.RLock()
	snapshot := make([]domain.Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if !rule.Enabled {
			continue
		}
		snapshot = append(snapshot, rule.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].RuleType < snapshot[j].RuleType
	})
	return snapshot
}

// Len reports the number of registered rules.
// Params: none.
// Returns: registered rule count including disabled rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}
