package model

import "time"

type SkipReason string

const (
	SkipReasonNone              SkipReason = ""
	SkipReasonNoHistory         SkipReason = "no_history"
	SkipReasonNothingUnresolved SkipReason = "nothing_unresolved"
)

// AuditRun summarises one audit of one channel. It is returned and logged,
// never stored.
type AuditRun struct {
	StartedAt     time.Time  `json:"started_at"`
	WindowStart   time.Time  `json:"window_start"`
	WindowEnd     time.Time  `json:"window_end"`
	ChannelID     string     `json:"channel_id"`
	Header        string     `json:"header,omitempty"`
	Body          string     `json:"body,omitempty"`
	SkippedReason SkipReason `json:"skipped_reason,omitempty"`
	ID            int64      `json:"id"`
	TargetID      int64      `json:"target_id"`
	Scanned       int        `json:"scanned"`
	Unresolved    int        `json:"unresolved"`
	Resolved      int        `json:"resolved"`
	Failed        int        `json:"failed"`
	Sent          bool       `json:"sent"`
}
