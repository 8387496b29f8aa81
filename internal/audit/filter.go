package audit

import "basegraph.app/nudge/internal/model"

type FilterParams struct {
	BotUserID      string
	MarkerReaction string
}

// UnresolvedItem is a message that still needs an answer. OriginalIndex is its
// position in the history page.
type UnresolvedItem struct {
	MessageID     string
	OriginalIndex int
}

// FilterUnresolved keeps the messages that are still open questions, in
// history order.
func FilterUnresolved(history *model.History, params FilterParams) ([]UnresolvedItem, error) {
	if history == nil || history.Messages == nil {
		return nil, ErrEmptyOrMalformedHistory
	}

	items := make([]UnresolvedItem, 0, len(history.Messages))
	for i, msg := range history.Messages {
		if !IsUnresolved(msg, params) {
			continue
		}
		items = append(items, UnresolvedItem{
			MessageID:     msg.Timestamp,
			OriginalIndex: i,
		})
	}

	return items, nil
}

// IsUnresolved reports whether msg is a question nobody has marked resolved.
// Reactions other than the marker do not count: when unsure, keep surfacing it.
// With no bot identity configured, authorless messages (integrations, apps)
// match the empty identity and are skipped too.
func IsUnresolved(msg model.Message, params FilterParams) bool {
	if msg.User == params.BotUserID {
		return false
	}

	if msg.Subtype != "" && msg.Subtype != model.SubtypeThreadBroadcast {
		return false
	}

	for _, r := range msg.Reactions {
		if r.Name == params.MarkerReaction {
			return false
		}
	}

	return true
}
