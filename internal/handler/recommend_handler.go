// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cinematch-go/internal/model"
	"cinematch-go/internal/service"
	"cinematch-go/pkg/ann"
	"cinematch-go/pkg/embedding"
	"cinematch-go/pkg/log"
)

// RecommendHandler 负责处理推荐相关的 API 请求。
type RecommendHandler struct {
	recommendService service.RecommendationService
}

// NewRecommendHandler 创建一个新的 RecommendHandler 实例。
func NewRecommendHandler(recommendService service.RecommendationService) *RecommendHandler {
	return &RecommendHandler{recommendService: recommendService}
}

// Recommend 处理推荐请求。请求体校验（梗概长度、年份区间、top_k 范围）
// 全部由 binding 标签在边界层完成，核心管线不会收到非法请求。
func (h *RecommendHandler) Recommend(c *gin.Context) {
	var req model.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Recommend: 请求负载校验失败, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：" + err.Error(),
		})
		return
	}

	resp, err := h.recommendService.Recommend(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	log.Infof("Recommend: 推荐成功, 返回 %d 条结果", resp.Count)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"data":    resp,
		"message": "success",
	})
}

// writeError 把管线的类型化错误映射为 HTTP 状态码。
func (h *RecommendHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ann.ErrIndexUnavailable), errors.Is(err, embedding.ErrModelLoad):
		// 启动产物缺失：整个推荐能力不可用，区别于单请求错误
		log.Errorf("Recommend: 服务未就绪, error: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    http.StatusServiceUnavailable,
			"message": "推荐服务尚未就绪，请稍后重试",
		})
	case errors.Is(err, embedding.ErrTokenization):
		log.Warnf("Recommend: 文本无法编码, error: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":    http.StatusUnprocessableEntity,
			"message": "查询文本无法被编码",
		})
	default:
		log.Errorf("Recommend: 推荐服务返回错误, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "推荐失败",
		})
	}
}
