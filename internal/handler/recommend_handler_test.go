package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinematch-go/internal/model"
	"cinematch-go/pkg/ann"
	"cinematch-go/pkg/embedding"
)

type stubRecommendService struct {
	resp  *model.RecommendationResponse
	err   error
	ready bool
}

func (s *stubRecommendService) Recommend(ctx context.Context, req model.RecommendRequest) (*model.RecommendationResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubRecommendService) Readiness() model.ReadinessStatus {
	if s.ready {
		return model.ReadinessStatus{Tokenizer: true, Model: true, Index: true, Catalog: true}
	}
	return model.ReadinessStatus{Tokenizer: true, Model: true, Catalog: true}
}

func setupRouter(svc *stubRecommendService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/recommend", NewRecommendHandler(svc).Recommend)
	health := NewHealthHandler(svc)
	r.GET("/api/v1/health", health.Health)
	r.GET("/api/v1/ready", health.Ready)
	return r
}

func postRecommend(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommend", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecommend_OK(t *testing.T) {
	title := "Fight Club"
	svc := &stubRecommendService{
		ready: true,
		resp: &model.RecommendationResponse{
			QueryTextUsed: "A young wizard discovers his magical heritage.",
			Items: []model.RecommendationItem{
				{CatalogID: 550, SimilarityScore: 0.92, Title: &title},
			},
			Count: 1,
		},
	}
	r := setupRouter(svc)

	w := postRecommend(r, `{"synopsis": "A young wizard discovers his magical heritage.", "top_k": 1}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Code int                           `json:"code"`
		Data *model.RecommendationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusOK, body.Code)
	require.NotNil(t, body.Data)
	assert.Equal(t, 1, body.Data.Count)
	assert.Len(t, body.Data.Items, 1)
	assert.Equal(t, 550, body.Data.Items[0].CatalogID)
}

func TestRecommend_Validation(t *testing.T) {
	svc := &stubRecommendService{ready: true, resp: &model.RecommendationResponse{}}
	r := setupRouter(svc)

	tests := []struct {
		name string
		body string
	}{
		{"缺少梗概", `{}`},
		{"梗概 9 个字符不足下限", `{"synopsis": "123456789"}`},
		{"top_k 超上限", `{"synopsis": "A young wizard discovers his magical heritage.", "top_k": 51}`},
		{"top_k 为负", `{"synopsis": "A young wizard discovers his magical heritage.", "top_k": -1}`},
		{"年份早于电影诞生", `{"synopsis": "A young wizard discovers his magical heritage.", "year": 1500}`},
		{"标题超长", fmt.Sprintf(`{"synopsis": "A young wizard discovers his magical heritage.", "title": "%s"}`, strings.Repeat("x", 201))},
		{"非法 JSON", `{"synopsis": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postRecommend(r, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	// 正好 10 个字符的梗概必须通过校验
	w := postRecommend(r, `{"synopsis": "1234567890"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecommend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"索引不可用", fmt.Errorf("%w: 索引未加载", ann.ErrIndexUnavailable), http.StatusServiceUnavailable},
		{"模型未加载", fmt.Errorf("%w: 模型产物未加载", embedding.ErrModelLoad), http.StatusServiceUnavailable},
		{"文本无法编码", fmt.Errorf("%w: 编码结果为空", embedding.ErrTokenization), http.StatusUnprocessableEntity},
		{"推理缺陷", fmt.Errorf("%w: 输出形状异常", embedding.ErrInference), http.StatusInternalServerError},
		{"未分类错误", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupRouter(&stubRecommendService{ready: true, err: tt.err})
			w := postRecommend(r, `{"synopsis": "A young wizard discovers his magical heritage."}`)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestHealthAndReady(t *testing.T) {
	// 存活探针不依赖产物，未就绪时也返回 200
	r := setupRouter(&stubRecommendService{ready: false})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status    string                `json:"status"`
		Artifacts model.ReadinessStatus `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.False(t, body.Artifacts.Index)

	r = setupRouter(&stubRecommendService{ready: true})
	req = httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
