package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/nudge/internal/http/handler"
)

// AuditRouter sets up audit trigger routes
// - POST /audits queues an audit for the worker
// - POST /audits/run audits synchronously
func AuditRouter(rg *gin.RouterGroup, h *handler.AuditHandler) {
	rg.POST("", h.Enqueue)
	rg.POST("/run", h.Run)
}

func TargetRouter(rg *gin.RouterGroup, h *handler.AuditHandler) {
	rg.GET("", h.ListTargets)
	rg.POST("", h.RegisterTarget)
}
