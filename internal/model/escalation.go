package model

// EscalationTier labels unresolved questions at least ThresholdDays old.
type EscalationTier struct {
	Label         string `json:"label" yaml:"label"`
	ThresholdDays int    `json:"threshold_days" yaml:"threshold_days"`
}
