package domain

import (
	"fmt"
	"time"
)

// Severity is ordinal alert importance classification.
// Params: low/medium/high/critical constants.
// Returns: closed severity enumeration for rules and alerts.
type Severity string

const (
	// SeverityLow marks informational alerts.
	SeverityLow Severity = "low"
	// SeverityMedium marks alerts that need attention soon.
	SeverityMedium Severity = "medium"
	// SeverityHigh marks alerts that need prompt attention.
	SeverityHigh Severity = "high"
	// SeverityCritical marks alerts that need immediate attention.
	SeverityCritical Severity = "critical"
)

// Severities lists all members of the severity enumeration in ascending order.
// Params: none.
// Returns: ordered severity slice for stats/validation loops.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// Validate checks severity enumeration membership.
// Params: severity value parsed from transport or config.
// Returns: error when value is outside the closed set.
func (s Severity) Validate() error {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return nil
	default:
		return fmt.Errorf("unsupported severity %q", s)
	}
}

// Status is the alert lifecycle status.
// Params: active/acknowledged/resolved constants.
// Returns: closed status enumeration for lifecycle transitions.
type Status string

const (
	// StatusActive indicates a newly materialized, unhandled alert.
	StatusActive Status = "active"
	// StatusAcknowledged indicates an operator has seen the alert.
	StatusAcknowledged Status = "acknowledged"
	// StatusResolved indicates the underlying condition is considered fixed.
	StatusResolved Status = "resolved"
)

// Statuses lists all members of the status enumeration in lifecycle order.
// Params: none.
// Returns: ordered status slice for stats/validation loops.
func Statuses() []Status {
	return []Status{StatusActive, StatusAcknowledged, StatusResolved}
}

// Validate checks status enumeration membership.
// Params: status value parsed from transport.
// Returns: error when value is outside the closed set.
func (s Status) Validate() error {
	switch s {
	case StatusActive, StatusAcknowledged, StatusResolved:
		return nil
	default:
		return fmt.Errorf("unsupported status %q", s)
	}
}

// Alert is one materialized rule trigger with lifecycle provenance.
// Params: identity, display text, trigger payload, status, and actor stamps.
// Returns: authoritative alert record for store and outbound payloads.
type Alert struct {
	ID             string         `json:"id"`
	RuleType       string         `json:"rule_type"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Severity       Severity       `json:"severity"`
	Payload        map[string]any `json:"payload,omitempty"`
	Status         Status         `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string         `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy     string         `json:"resolved_by,omitempty"`
}

// Clone returns a detached copy with its own payload map and stamp pointers.
// The payload copy is shallow: nested maps or slices inside payload values
// stay shared with the original. Payload is opaque to the engine, so callers
// who mutate nested structures own that aliasing.
// Params: none.
// Returns: alert copy safe to hand across the store boundary.
func (a Alert) Clone() Alert {
	out := a
	if a.Payload != nil {
		out.Payload = make(map[string]any, len(a.Payload))
		for key, value := range a.Payload {
			out.Payload[key] = value
		}
	}
	if a.AcknowledgedAt != nil {
		at := *a.AcknowledgedAt
		out.AcknowledgedAt = &at
	}
	if a.ResolvedAt != nil {
		at := *a.ResolvedAt
		out.ResolvedAt = &at
	}
	return out
}

// CreateRequest carries caller-supplied fields for manual alert creation.
// Params: rule type, optional display/severity overrides, and opaque payload.
// Returns: creation input resolved against the rule registry defaults.
type CreateRequest struct {
	RuleType string         `json:"rule_type"`
	Title    string         `json:"title,omitempty"`
	Message  string         `json:"message,omitempty"`
	Severity Severity       `json:"severity,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// BulkResult is one per-id outcome of a batch status update.
// Params: target id, updated alert on success, error on per-id failure.
// Returns: batch result entry matching the input id ordering.
type BulkResult struct {
	ID    string `json:"id"`
	Alert *Alert `json:"alert,omitempty"`
	Err   error  `json:"-"`
}

// Stats aggregates live-collection counts for the stats query.
// Params: total plus per-status, per-severity, and per-rule-type counts.
// Returns: stats document computed over the live alert collection.
type Stats struct {
	Total      int              `json:"total"`
	ByStatus   map[Status]int   `json:"by_status"`
	BySeverity map[Severity]int `json:"by_severity"`
	ByRuleType map[string]int   `json:"by_rule_type"`
	HistoryLen int              `json:"history_len"`
}
