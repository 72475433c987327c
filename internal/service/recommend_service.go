package service

import (
	"context"
	"fmt"

	"cinematch-go/internal/model"
	"cinematch-go/pkg/ann"
	"cinematch-go/pkg/embedding"
	"cinematch-go/pkg/log"
)

// TextTokenizer 把规范化文本编码为定长数值序列。
type TextTokenizer interface {
	Tokenize(text string) (*embedding.TokenBatch, error)
}

// Embedder 把 TokenBatch 变换为单位模长的句向量。
type Embedder interface {
	Embed(batch *embedding.TokenBatch) ([]float32, error)
	Dimension() int
}

// VectorIndex 在目录向量上执行 k 近邻检索。
type VectorIndex interface {
	SearchByVector(v []float32, n, searchK int) ([]ann.Result, error)
	NItems() int
}

// CatalogResolver 把内部索引 ID 翻译回目录条目。
type CatalogResolver interface {
	Resolve(index int) model.CatalogEntry
}

// VectorCache 是可选的查询向量缓存。
type VectorCache interface {
	Get(ctx context.Context, text string) []float32
	Set(ctx context.Context, text string, vec []float32)
}

// RecommendationService 接口定义了推荐操作与就绪查询。
type RecommendationService interface {
	Recommend(ctx context.Context, req model.RecommendRequest) (*model.RecommendationResponse, error)
	Readiness() model.ReadinessStatus
}

// recommendationService 把各组件组合成一条线性管线：
// 规范化 → 分词 → 推理 → 检索 → 映射 → 排序。
// 服务自身不持有任何跨请求状态，除启动期加载的只读产物外没有共享
// 可变数据，可被任意数量的请求并发调用，热路径上没有锁。
type recommendationService struct {
	tokenizer   TextTokenizer
	engine      Embedder
	index       VectorIndex
	mapper      CatalogResolver
	cache       VectorCache
	searchK     int
	defaultTopK int
}

// NewRecommendationService 创建一个新的 RecommendationService 实例。
// 组件允许为 nil（对应产物未能加载），此时服务处于降级状态：
// 就绪检查反映缺失项，推荐请求返回对应的启动期错误。
func NewRecommendationService(
	tokenizer TextTokenizer,
	engine Embedder,
	index VectorIndex,
	mapper CatalogResolver,
	cache VectorCache,
	searchK int,
	defaultTopK int,
) RecommendationService {
	return &recommendationService{
		tokenizer:   tokenizer,
		engine:      engine,
		index:       index,
		mapper:      mapper,
		cache:       cache,
		searchK:     searchK,
		defaultTopK: defaultTopK,
	}
}

// Readiness 报告各启动产物的加载情况。
func (s *recommendationService) Readiness() model.ReadinessStatus {
	return model.ReadinessStatus{
		Tokenizer: s.tokenizer != nil,
		Model:     s.engine != nil,
		Index:     s.index != nil,
		Catalog:   s.mapper != nil,
	}
}

// Recommend 执行一次完整的推荐管线调用。任一阶段失败都会中止本次
// 请求并原样上抛该阶段的错误类型，绝不返回半成品结果。
func (s *recommendationService) Recommend(ctx context.Context, req model.RecommendRequest) (*model.RecommendationResponse, error) {
	if status := s.Readiness(); !status.Ready() {
		return nil, s.unavailableError(status)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}

	// 1. 规范化：构造与训练格式一致的查询文本
	queryText := BuildQueryText(req)
	log.Infof("[RecommendService] 开始推荐, top_k: %d, query_len: %d", topK, len(queryText))

	// 2. 向量化：优先查缓存（默认关闭），未命中走分词 + 推理
	var vec []float32
	if s.cache != nil {
		vec = s.cache.Get(ctx, queryText)
		if vec != nil {
			log.Debugf("[RecommendService] 查询向量缓存命中")
		}
	}
	if vec == nil {
		batch, err := s.tokenizer.Tokenize(queryText)
		if err != nil {
			log.Errorf("[RecommendService] 分词失败: %v", err)
			return nil, err
		}
		vec, err = s.engine.Embed(batch)
		if err != nil {
			log.Errorf("[RecommendService] 推理失败: %v", err)
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(ctx, queryText, vec)
		}
	}

	// 3. 检索：k 近邻候选，距离升序
	results, err := s.index.SearchByVector(vec, topK, s.searchK)
	if err != nil {
		log.Errorf("[RecommendService] 向量检索失败: %v", err)
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}

	// 4. 换算相似度分数，保持索引给出的顺序（距离升序即相似度降序）
	candidates := make([]model.ScoredCandidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, model.ScoredCandidate{
			Index:      r.Index,
			Similarity: ann.Similarity(r.Distance),
		})
	}

	// 5. 映射回目录条目并组装响应，映射缺失走回退条目，不丢槽位
	items := make([]model.RecommendationItem, 0, len(candidates))
	for _, cand := range candidates {
		entry := s.mapper.Resolve(cand.Index)
		items = append(items, model.RecommendationItem{
			CatalogID:       entry.CatalogID,
			SimilarityScore: cand.Similarity,
			Title:           entry.Title,
			Overview:        entry.Overview,
		})
	}

	log.Infof("[RecommendService] 推荐完成, 返回 %d 条结果", len(items))
	return &model.RecommendationResponse{
		QueryTextUsed: queryText,
		Items:         items,
		Count:         len(items),
	}, nil
}

// unavailableError 把缺失的产物映射为对应的启动期错误类型。
func (s *recommendationService) unavailableError(status model.ReadinessStatus) error {
	if !status.Index {
		return fmt.Errorf("%w: 索引未加载", ann.ErrIndexUnavailable)
	}
	return fmt.Errorf("%w: 模型产物未加载", embedding.ErrModelLoad)
}
