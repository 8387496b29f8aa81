package dto

import (
	"time"

	"basegraph.app/nudge/internal/model"
)

// AuditRequest selects a target by id or channel. ReferenceDate accepts the
// same formats as TARGET_DATE; empty means now.
type AuditRequest struct {
	TargetID      *int64 `json:"target_id,omitempty"`
	ChannelID     string `json:"channel_id,omitempty" binding:"omitempty,max=64"`
	ReferenceDate string `json:"reference_date,omitempty" binding:"omitempty,max=64"`
}

type EnqueueAuditResponse struct {
	MessageID string `json:"message_id"`
	TargetID  int64  `json:"target_id"`
}

type AuditRunResponse struct {
	ID            int64     `json:"id"`
	TargetID      int64     `json:"target_id"`
	ChannelID     string    `json:"channel_id"`
	StartedAt     time.Time `json:"started_at"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	Scanned       int       `json:"scanned"`
	Unresolved    int       `json:"unresolved"`
	Resolved      int       `json:"resolved"`
	Failed        int       `json:"failed"`
	Sent          bool      `json:"sent"`
	SkippedReason string    `json:"skipped_reason,omitempty"`
	Header        string    `json:"header,omitempty"`
	Body          string    `json:"body,omitempty"`
}

func ToAuditRunResponse(run *model.AuditRun) *AuditRunResponse {
	return &AuditRunResponse{
		ID:            run.ID,
		TargetID:      run.TargetID,
		ChannelID:     run.ChannelID,
		StartedAt:     run.StartedAt,
		WindowStart:   run.WindowStart,
		WindowEnd:     run.WindowEnd,
		Scanned:       run.Scanned,
		Unresolved:    run.Unresolved,
		Resolved:      run.Resolved,
		Failed:        run.Failed,
		Sent:          run.Sent,
		SkippedReason: string(run.SkippedReason),
		Header:        run.Header,
		Body:          run.Body,
	}
}

type RegisterTargetRequest struct {
	ChannelID      string `json:"channel_id" binding:"required,max=64"`
	BotUserID      string `json:"bot_user_id,omitempty" binding:"omitempty,max=64"`
	MarkerReaction string `json:"marker_reaction,omitempty" binding:"omitempty,max=100"`
	WebhookURL     string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	HistoryLimit   int    `json:"history_limit,omitempty" binding:"omitempty,min=1,max=1000"`
	Enabled        *bool  `json:"enabled,omitempty"`
}

func (r RegisterTargetRequest) ToModel() *model.AuditTarget {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return &model.AuditTarget{
		ChannelID:      r.ChannelID,
		BotUserID:      r.BotUserID,
		MarkerReaction: r.MarkerReaction,
		WebhookURL:     r.WebhookURL,
		HistoryLimit:   r.HistoryLimit,
		Enabled:        enabled,
	}
}

type TargetResponse struct {
	ID             int64     `json:"id"`
	ChannelID      string    `json:"channel_id"`
	BotUserID      string    `json:"bot_user_id,omitempty"`
	MarkerReaction string    `json:"marker_reaction"`
	HistoryLimit   int       `json:"history_limit"`
	Enabled        bool      `json:"enabled"`
	HasWebhook     bool      `json:"has_webhook"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
	UpdatedAt      time.Time `json:"updated_at,omitzero"`
}

func ToTargetResponse(t *model.AuditTarget) TargetResponse {
	return TargetResponse{
		ID:             t.ID,
		ChannelID:      t.ChannelID,
		BotUserID:      t.BotUserID,
		MarkerReaction: t.MarkerReaction,
		HistoryLimit:   t.HistoryLimit,
		Enabled:        t.Enabled,
		HasWebhook:     t.WebhookURL != "",
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

type ListTargetsResponse struct {
	Targets []TargetResponse `json:"targets"`
}
