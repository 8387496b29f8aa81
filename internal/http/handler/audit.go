package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"basegraph.app/nudge/internal/audit"
	"basegraph.app/nudge/internal/http/dto"
	"basegraph.app/nudge/internal/service"
	"basegraph.app/nudge/internal/store"
)

type AuditHandler struct {
	audits          service.AuditService
	traceHeaderName string
}

func NewAuditHandler(audits service.AuditService, traceHeaderName string) *AuditHandler {
	return &AuditHandler{
		audits:          audits,
		traceHeaderName: traceHeaderName,
	}
}

// Enqueue queues an audit for the worker and answers 202.
func (h *AuditHandler) Enqueue(c *gin.Context) {
	ctx := c.Request.Context()

	req, ok := h.bindAuditRequest(c)
	if !ok {
		return
	}

	params := toRunParams(req)
	params.TraceID = h.traceID(c)

	res, err := h.audits.Enqueue(ctx, params)
	if err != nil {
		h.writeError(c, err, "failed to enqueue audit")
		return
	}

	c.JSON(http.StatusAccepted, dto.EnqueueAuditResponse{
		MessageID: res.MessageID,
		TargetID:  res.TargetID,
	})
}

// Run audits synchronously and returns the run summary.
func (h *AuditHandler) Run(c *gin.Context) {
	ctx := c.Request.Context()

	req, ok := h.bindAuditRequest(c)
	if !ok {
		return
	}

	run, err := h.audits.Run(ctx, toRunParams(req))
	if err != nil {
		h.writeError(c, err, "audit failed")
		return
	}

	c.JSON(http.StatusOK, dto.ToAuditRunResponse(run))
}

func (h *AuditHandler) ListTargets(c *gin.Context) {
	ctx := c.Request.Context()

	targets, err := h.audits.ListTargets(ctx)
	if err != nil {
		h.writeError(c, err, "failed to list targets")
		return
	}

	resp := dto.ListTargetsResponse{Targets: make([]dto.TargetResponse, len(targets))}
	for i := range targets {
		resp.Targets[i] = dto.ToTargetResponse(&targets[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuditHandler) RegisterTarget(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RegisterTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	target := req.ToModel()
	if err := h.audits.RegisterTarget(ctx, target); err != nil {
		h.writeError(c, err, "failed to register target")
		return
	}

	slog.InfoContext(ctx, "audit target registered",
		"target_id", target.ID,
		"channel_id", target.ChannelID)

	c.JSON(http.StatusCreated, dto.ToTargetResponse(target))
}

// An empty body is fine; the service reports a missing selector.
func (h *AuditHandler) bindAuditRequest(c *gin.Context) (dto.AuditRequest, bool) {
	var req dto.AuditRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return req, false
	}
	return req, true
}

func (h *AuditHandler) traceID(c *gin.Context) *string {
	if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
		tid := span.SpanContext().TraceID().String()
		return &tid
	}
	if h.traceHeaderName != "" {
		if tid := c.GetHeader(h.traceHeaderName); tid != "" {
			return &tid
		}
	}
	return nil
}

func (h *AuditHandler) writeError(c *gin.Context, err error, msg string) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, service.ErrTargetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "audit target not found"})
	case errors.Is(err, audit.ErrInvalidConfig):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrReadOnly):
		c.JSON(http.StatusConflict, gin.H{"error": "targets are configured from the environment"})
	case errors.Is(err, service.ErrQueueUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit queue unavailable"})
	case errors.Is(err, service.ErrAuditorUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "synchronous audits are disabled"})
	case errors.Is(err, audit.ErrTransport):
		slog.WarnContext(ctx, msg, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not read channel history"})
	default:
		slog.ErrorContext(ctx, msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func toRunParams(req dto.AuditRequest) service.RunAuditParams {
	return service.RunAuditParams{
		TargetID:      req.TargetID,
		ChannelID:     req.ChannelID,
		ReferenceDate: req.ReferenceDate,
	}
}
