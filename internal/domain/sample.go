package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sample is one flat telemetry record fed into rule evaluation.
// Params: named numeric/categorical fields; unknown fields are ignored.
// Returns: evaluation input with typed numeric accessor.
type Sample map[string]any

// Number reads one sample field as float64.
// Params: field name from a rule condition.
// Returns: numeric value and presence flag; absent or non-numeric fields
// report false so thresholds are never satisfied by absence.
func (s Sample) Number(field string) (float64, bool) {
	raw, ok := s[field]
	if !ok {
		return 0, false
	}
	switch value := raw.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		parsed, err := value.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// DecodeSample decodes and validates one sample payload.
// Params: JSON document bytes.
// Returns: validated sample or decode/validation error.
func DecodeSample(raw []byte) (Sample, error) {
	var sample Sample
	if err := json.Unmarshal(raw, &sample); err != nil {
		return nil, fmt.Errorf("decode sample: %w", err)
	}
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	return sample, nil
}

// Validate validates one sample against the contract.
// Params: decoded sample fields.
// Returns: validation error when the sample carries no fields.
func (s Sample) Validate() error {
	if len(s) == 0 {
		return errors.New("sample must contain at least one field")
	}
	return nil
}
