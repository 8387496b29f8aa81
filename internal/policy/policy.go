// Package policy holds the escalation tier table: the reference policy and an
// optional YAML override.
package policy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"basegraph.app/nudge/internal/model"
)

var (
	ErrEmptyPolicy    = errors.New("escalation policy has no tiers")
	ErrTierOrder      = errors.New("escalation tiers must be in strictly descending threshold order")
	ErrMissingDefault = errors.New("escalation policy must end with a 0-day tier")
)

// Default is the reference policy: a week, three days, two days, one day, new.
func Default() []model.EscalationTier {
	return []model.EscalationTier{
		{ThresholdDays: 7, Label: ":boom: Unresolved for over a week. Talking in person may be faster :boom:"},
		{ThresholdDays: 3, Label: ":kami: Unresolved for 3+ days. An answer is needed urgently :kami:"},
		{ThresholdDays: 2, Label: ":fire: Unresolved for 2 days. Please answer soon! :fire:"},
		{ThresholdDays: 1, Label: ":yatteiki: Unresolved for 1 day. Let's answer it! :yatteiki:"},
		{ThresholdDays: 0, Label: ":dart: New question! :dart:"},
	}
}

type document struct {
	Tiers []model.EscalationTier `yaml:"tiers"`
}

// Load reads a tier table from a YAML file. An empty path yields Default.
//
//	tiers:
//	  - threshold_days: 5
//	    label: ":fire: five days :fire:"
//	  - threshold_days: 0
//	    label: ":dart: new :dart:"
func Load(path string) ([]model.EscalationTier, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading escalation policy: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) ([]model.EscalationTier, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing escalation policy: %w", err)
	}

	if err := Validate(doc.Tiers); err != nil {
		return nil, err
	}

	return doc.Tiers, nil
}

// Validate checks that tiers form a total first-match table.
func Validate(tiers []model.EscalationTier) error {
	if len(tiers) == 0 {
		return ErrEmptyPolicy
	}

	for i, t := range tiers {
		if t.ThresholdDays < 0 {
			return fmt.Errorf("tier %d: negative threshold %d", i, t.ThresholdDays)
		}
		if strings.TrimSpace(t.Label) == "" {
			return fmt.Errorf("tier %d: empty label", i)
		}
		if i > 0 && t.ThresholdDays >= tiers[i-1].ThresholdDays {
			return fmt.Errorf("%w: tier %d (%d days) after %d days", ErrTierOrder, i, t.ThresholdDays, tiers[i-1].ThresholdDays)
		}
	}

	if tiers[len(tiers)-1].ThresholdDays != 0 {
		return ErrMissingDefault
	}

	return nil
}
