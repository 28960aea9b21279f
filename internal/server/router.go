package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shield-core/internal/handler"
	"shield-core/internal/handler/response"
	"shield-core/internal/server/routes"
	"shield-core/pkg/monitor"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(transferHandler *handler.TransferHandler) *gin.Engine {
	monitor.Init()

	r := gin.Default()

	r.Use(monitor.PrometheusMiddleware())

	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"pong": true})
		})

		routes.RegisterTransferRoutes(api, transferHandler)
	}

	return r
}
