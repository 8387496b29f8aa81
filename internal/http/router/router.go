package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/nudge/internal/http/handler"
	"basegraph.app/nudge/internal/service"
)

type RouterConfig struct {
	TraceHeaderName string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		auditHandler := handler.NewAuditHandler(services.Audits(), cfg.TraceHeaderName)
		AuditRouter(v1.Group("/audits"), auditHandler)
		TargetRouter(v1.Group("/targets"), auditHandler)
	}
}
