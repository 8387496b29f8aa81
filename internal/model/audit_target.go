package model

import "time"

// AuditTarget is one channel that gets audited for unresolved questions.
type AuditTarget struct {
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ChannelID      string    `json:"channel_id"`
	BotUserID      string    `json:"bot_user_id,omitempty"`
	MarkerReaction string    `json:"marker_reaction"`
	WebhookURL     string    `json:"-"`
	ID             int64     `json:"id"`
	HistoryLimit   int       `json:"history_limit"`
	Enabled        bool      `json:"enabled"`
}
