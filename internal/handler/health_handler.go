package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cinematch-go/internal/service"
)

// HealthHandler 负责存活与就绪探针。
type HealthHandler struct {
	recommendService service.RecommendationService
}

// NewHealthHandler 创建一个新的 HealthHandler 实例。
func NewHealthHandler(recommendService service.RecommendationService) *HealthHandler {
	return &HealthHandler{recommendService: recommendService}
}

// Health 是存活探针：只要进程在服务就返回 ok，不依赖任何产物。
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready 是就绪探针：全部启动产物（分词器、模型、索引、目录映射）
// 加载完成才返回 200，外围基础设施用它来决定是否放量。
func (h *HealthHandler) Ready(c *gin.Context) {
	status := h.recommendService.Readiness()
	if !status.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"artifacts": status,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"artifacts": status,
	})
}
