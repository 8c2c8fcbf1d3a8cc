package rules

import "alertcore/internal/domain"

// Built-in rule type keys.
const (
	// RulePriceChange triggers on price movement above a percent threshold.
	RulePriceChange = "price_change"
	// RuleSystemPerformance triggers when any host resource threshold is breached.
	RuleSystemPerformance = "system_performance"
	// RuleDatabaseHealth triggers when any database health threshold is breached.
	RuleDatabaseHealth = "database_health"
)

// Condition and sample field names shared by built-in rules and callers.
const (
	FieldPriceChangePercent = "priceChangePercent"
	FieldTimeWindowMinutes  = "timeWindowMinutes"
	FieldCPUUsage           = "cpuUsage"
	FieldMemoryUsage        = "memoryUsage"
	FieldResponseTime       = "responseTime"
	FieldConnectionErrors   = "connectionErrors"
	FieldQueryTimeout       = "queryTimeout"
	FieldSlowQueries        = "slowQueries"
)

// Builtin returns the built-in rule set with default thresholds.
// Params: none.
// Returns: fresh rule definitions, enabled, ready for registry seeding.
func Builtin() []domain.Rule {
	return []domain.Rule{
		{
			RuleType:    RulePriceChange,
			Name:        "Price Change Alert",
			Description: "Alerts when price moves more than the configured percent within the sampling window",
			Conditions: map[string]float64{
				FieldPriceChangePercent: 5,
				// timeWindowMinutes is advisory for the caller's sampling
				// cadence; the predicate does not enforce it.
				FieldTimeWindowMinutes: 60,
			},
			DefaultSeverity: domain.SeverityMedium,
			Enabled:         true,
		},
		{
			RuleType:    RuleSystemPerformance,
			Name:        "System Performance Alert",
			Description: "Alerts when CPU, memory, or response time breaches its threshold",
			Conditions: map[string]float64{
				FieldCPUUsage:     80,
				FieldMemoryUsage:  85,
				FieldResponseTime: 5000,
			},
			DefaultSeverity: domain.SeverityHigh,
			Enabled:         true,
		},
		{
			RuleType:    RuleDatabaseHealth,
			Name:        "Database Health Alert",
			Description: "Alerts when connection errors, query timeouts, or slow queries breach their thresholds",
			Conditions: map[string]float64{
				FieldConnectionErrors: 10,
				FieldQueryTimeout:     30,
				FieldSlowQueries:      5,
			},
			DefaultSeverity: domain.SeverityCritical,
			Enabled:         true,
		},
	}
}
