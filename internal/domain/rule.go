package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Rule is one named, enable-able trigger definition.
// Params: rule type key, display text, threshold map, default severity, enabled flag.
// Returns: rule definition consumed by the registry and evaluator.
type Rule struct {
	RuleType        string             `json:"rule_type"`
	Name            string             `json:"name"`
	Description     string             `json:"description,omitempty"`
	Conditions      map[string]float64 `json:"conditions"`
	DefaultSeverity Severity           `json:"default_severity"`
	Enabled         bool               `json:"enabled"`
}

// Validate validates one rule definition against the contract.
// Params: rule fields from config or registration call.
// Returns: validation error when the definition is incomplete.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.RuleType) == "" {
		return errors.New("rule_type is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if err := r.DefaultSeverity.Validate(); err != nil {
		return fmt.Errorf("default_severity: %w", err)
	}
	return nil
}

// Clone returns a detached rule copy with its own conditions map.
// Params: none.
// Returns: rule copy safe to hand out of the registry.
func (r Rule) Clone() Rule {
	out := r
	if r.Conditions != nil {
		out.Conditions = make(map[string]float64, len(r.Conditions))
		for field, threshold := range r.Conditions {
			out.Conditions[field] = threshold
		}
	}
	return out
}

// Trigger is one evaluator decision that a rule condition held for a sample.
// Params: rule type that fired and its effective severity.
// Returns: trigger record consumed by the lifecycle manager.
type Trigger struct {
	RuleType string   `json:"rule_type"`
	Severity Severity `json:"severity"`
}
