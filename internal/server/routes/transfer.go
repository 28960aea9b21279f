package routes

import (
	"github.com/gin-gonic/gin"

	"shield-core/internal/handler"
)

// RegisterTransferRoutes 注册转账相关路由
func RegisterTransferRoutes(api *gin.RouterGroup, h *handler.TransferHandler) {
	transfers := api.Group("/transfers")
	{
		transfers.POST("", h.CreateTransfer)
		transfers.GET("", h.History)
	}
}
