package rules

import (
	"sync"

	"alertcore/internal/domain"
)

// Predicate decides whether one rule's condition holds for one sample.
// Params: rule condition thresholds and the input sample.
// Returns: true when the rule should trigger; must be pure and side-effect free.
type Predicate func(conditions map[string]float64, sample domain.Sample) bool

// Evaluator runs registered predicates over an enabled-rule snapshot.
// Params: guarded predicate table keyed by rule type.
// Returns: deterministic trigger decisions for the lifecycle manager.
type Evaluator struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
}

// NewEvaluator creates an evaluator with the built-in predicates registered.
// Params: none.
// Returns: initialized evaluator; new rule types register their own predicate.
func NewEvaluator() *Evaluator {
	e := &Evaluator{predicates: make(map[string]Predicate)}
	e.RegisterPredicate(RulePriceChange, priceChangePredicate)
	e.RegisterPredicate(RuleSystemPerformance, systemPerformancePredicate)
	e.RegisterPredicate(RuleDatabaseHealth, databaseHealthPredicate)
	return e
}

// RegisterPredicate inserts or replaces the predicate for one rule type.
// Params: rule type key and predicate function.
// Returns: predicate table updated for subsequent evaluations.
func (e *Evaluator) RegisterPredicate(ruleType string, predicate Predicate) {
	if predicate == nil {
		return
	}
	e.mu.Lock()
	e.predicates[ruleType] = predicate
	e.mu.Unlock()
}

// HasPredicate reports whether a predicate is registered for one rule type.
// Params: rule type key.
// Returns: true when the rule type can ever trigger.
func (e *Evaluator) HasPredicate(ruleType string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.predicates[ruleType]
	return ok
}

// Evaluate runs one sample against an enabled-rule snapshot.
// Params: input sample and rule snapshot from the registry.
// Returns: zero or more trigger decisions; rules without a predicate never fire.
func (e *Evaluator) Evaluate(sample domain.Sample, snapshot []domain.Rule) []domain.Trigger {
	e.mu.RLock()
	defer e.mu.RUnlock()

	triggers := make([]domain.Trigger, 0)
	for _, rule := range snapshot {
		predicate, ok := e.predicates[rule.RuleType]
		if !ok {
			continue
		}
		if !predicate(rule.Conditions, sample) {
			continue
		}
		triggers = append(triggers, domain.Trigger{
			RuleType: rule.RuleType,
			Severity: rule.DefaultSeverity,
		})
	}
	return triggers
}

// priceChangePredicate triggers when the measured price change percent
// reaches the configured threshold.
// Params: rule thresholds and input sample.
// Returns: true when priceChangePercent >= its threshold.
func priceChangePredicate(conditions map[string]float64, sample domain.Sample) bool {
	return anyThresholdReached(conditions, sample, FieldPriceChangePercent)
}

// systemPerformancePredicate triggers when any host resource breaches its
// threshold (logical OR across independent thresholds).
// Params: rule thresholds and input sample.
// Returns: true when cpuUsage, memoryUsage, or responseTime breaches.
func systemPerformancePredicate(conditions map[string]float64, sample domain.Sample) bool {
	return anyThresholdReached(conditions, sample, FieldCPUUsage, FieldMemoryUsage, FieldResponseTime)
}

// databaseHealthPredicate triggers when any database health metric breaches
// its threshold (logical OR across independent thresholds).
// Params: rule thresholds and input sample.
// Returns: true when connectionErrors, queryTimeout, or slowQueries breaches.
func databaseHealthPredicate(conditions map[string]float64, sample domain.Sample) bool {
	return anyThresholdReached(conditions, sample, FieldConnectionErrors, FieldQueryTimeout, FieldSlowQueries)
}

// anyThresholdReached checks sample fields against same-named thresholds.
// Params: threshold map, sample, and the fields the rule compares.
// Returns: true when any present field reaches its configured threshold;
// fields absent from the sample or the threshold map never satisfy.
func anyThresholdReached(conditions map[string]float64, sample domain.Sample, fields ...string) bool {
	for _, field := range fields {
		threshold, configured := conditions[field]
		if !configured {
			continue
		}
		measured, present := sample.Number(field)
		if !present {
			continue
		}
		if measured >= threshold {
			return true
		}
	}
	return false
}
