package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"basegraph.app/nudge/internal/model"
)

const day = 24 * time.Hour

// ClassifiedItem is an unresolved message with its escalation tier.
// Fallback is set when no tier matched on its own (future or unparsable
// timestamp) and the catch-all tier was assigned instead.
type ClassifiedItem struct {
	UnresolvedItem
	Tier     model.EscalationTier
	Elapsed  time.Duration
	Fallback bool
}

// Classify returns the first tier, in table order, whose threshold elapsed
// reaches. Tables are ordered by descending ThresholdDays, so a 10-day-old
// question stops at the 7-day tier. When nothing matches (negative elapsed)
// the last tier is returned with matched=false.
func Classify(tiers []model.EscalationTier, elapsed time.Duration) (tier model.EscalationTier, matched bool) {
	for _, t := range tiers {
		if elapsed >= time.Duration(t.ThresholdDays)*day {
			return t, true
		}
	}
	if len(tiers) == 0 {
		return model.EscalationTier{}, false
	}
	return tiers[len(tiers)-1], false
}

// ClassifyAll assigns a tier to every item relative to reference.
func ClassifyAll(items []UnresolvedItem, tiers []model.EscalationTier, reference time.Time) []ClassifiedItem {
	classified := make([]ClassifiedItem, len(items))
	for i, item := range items {
		elapsed, err := Elapsed(reference, item.MessageID)
		if err != nil {
			tier, _ := Classify(tiers, -1)
			classified[i] = ClassifiedItem{UnresolvedItem: item, Tier: tier, Fallback: true}
			continue
		}

		tier, matched := Classify(tiers, elapsed)
		classified[i] = ClassifiedItem{
			UnresolvedItem: item,
			Tier:           tier,
			Elapsed:        elapsed,
			Fallback:       !matched,
		}
	}
	return classified
}

// Elapsed is the time between a message timestamp and reference.
func Elapsed(reference time.Time, ts string) (time.Duration, error) {
	sent, err := ParseTimestamp(ts)
	if err != nil {
		return 0, err
	}
	return reference.Sub(sent), nil
}

// ParseTimestamp reads a message timestamp in "<epoch seconds>.<micros>" form.
func ParseTimestamp(ts string) (time.Time, error) {
	secPart, fracPart, _ := strings.Cut(ts, ".")

	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing message timestamp %q: %w", ts, err)
	}

	var nsec int64
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		fracPart += strings.Repeat("0", 9-len(fracPart))
		nsec, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing message timestamp %q: %w", ts, err)
		}
	}

	return time.Unix(sec, nsec).UTC(), nil
}
