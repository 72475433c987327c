package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinematch-go/internal/model"
	"cinematch-go/pkg/ann"
	"cinematch-go/pkg/embedding"
)

// 以下 stub 替代启动产物，管线的组合逻辑不依赖真实模型与索引文件。

type stubTokenizer struct {
	err error
}

func (s *stubTokenizer) Tokenize(text string) (*embedding.TokenBatch, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &embedding.TokenBatch{
		IDs:           []int64{101, 2003, 102},
		AttentionMask: []int64{1, 1, 1},
	}, nil
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(batch *embedding.TokenBatch) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubEmbedder) Dimension() int { return len(s.vec) }

type stubIndex struct {
	results     []ann.Result
	nItems      int
	gotN        int
	gotSearchK  int
	searchCalls int
}

func (s *stubIndex) SearchByVector(v []float32, n, searchK int) ([]ann.Result, error) {
	s.gotN = n
	s.gotSearchK = searchK
	s.searchCalls++
	if n < len(s.results) {
		return s.results[:n], nil
	}
	return s.results, nil
}

func (s *stubIndex) NItems() int { return s.nItems }

type stubMapper struct {
	entries map[int]model.CatalogEntry
}

func (s *stubMapper) Resolve(index int) model.CatalogEntry {
	if e, ok := s.entries[index]; ok {
		return e
	}
	return model.CatalogEntry{Index: index, CatalogID: index}
}

func strPtr(s string) *string { return &s }

func newTestService(idx *stubIndex) RecommendationService {
	mapper := &stubMapper{entries: map[int]model.CatalogEntry{
		0: {Index: 0, CatalogID: 550, Title: strPtr("Fight Club"), Overview: strPtr("An office worker starts an underground club.")},
		1: {Index: 1, CatalogID: 603, Title: strPtr("The Matrix"), Overview: strPtr("A computer hacker learns the truth about reality.")},
		2: {Index: 2, CatalogID: 680, Title: strPtr("Pulp Fiction"), Overview: strPtr("Two hitmen philosophize between jobs.")},
	}}
	return NewRecommendationService(
		&stubTokenizer{},
		&stubEmbedder{vec: []float32{1, 0, 0, 0}},
		idx,
		mapper,
		nil,
		0,
		10,
	)
}

func TestRecommend_OrderingAndCount(t *testing.T) {
	idx := &stubIndex{
		results: []ann.Result{
			{Index: 2, Distance: 0.1},
			{Index: 0, Distance: 0.5},
			{Index: 1, Distance: 1.2},
		},
		nItems: 3,
	}
	svc := newTestService(idx)

	resp, err := svc.Recommend(context.Background(), model.RecommendRequest{
		Synopsis: "A young wizard discovers his magical heritage.",
		TopK:     3,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Count)
	assert.Len(t, resp.Items, resp.Count)
	// 距离升序对应相似度严格非增
	for i := 1; i < len(resp.Items); i++ {
		assert.GreaterOrEqual(t, resp.Items[i-1].SimilarityScore, resp.Items[i].SimilarityScore)
	}
	// 相似度分数全部落在 [0,1]
	for _, item := range resp.Items {
		assert.GreaterOrEqual(t, item.SimilarityScore, 0.0)
		assert.LessOrEqual(t, item.SimilarityScore, 1.0)
	}
	assert.Equal(t, 680, resp.Items[0].CatalogID)
	assert.Equal(t, "Pulp Fiction", *resp.Items[0].Title)
}

func TestRecommend_QueryTextUsed(t *testing.T) {
	idx := &stubIndex{results: []ann.Result{{Index: 0, Distance: 0.2}}, nItems: 3}
	svc := newTestService(idx)

	// 无元数据：query_text_used 必须与梗概逐字一致
	synopsis := "A young wizard discovers his magical heritage and must face the dark lord."
	resp, err := svc.Recommend(context.Background(), model.RecommendRequest{Synopsis: synopsis, TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, synopsis, resp.QueryTextUsed)
	assert.Equal(t, 1, resp.Count)

	// 带元数据：query_text_used 是拼接后的规范化文本
	year := 2018
	resp, err = svc.Recommend(context.Background(), model.RecommendRequest{
		Synopsis: synopsis,
		Genre:    "Horror, Mystery, Thriller",
		Year:     &year,
		Title:    "Hereditary",
		TopK:     1,
	})
	require.NoError(t, err)
	assert.Equal(t,
		"Genre: Horror, Mystery, Thriller. Year: 2018. Title: Hereditary. Overview: "+synopsis,
		resp.QueryTextUsed)
}

func TestRecommend_DefaultTopK(t *testing.T) {
	idx := &stubIndex{results: []ann.Result{{Index: 0, Distance: 0.2}}, nItems: 3}
	svc := newTestService(idx)

	_, err := svc.Recommend(context.Background(), model.RecommendRequest{
		Synopsis: "A young wizard discovers his magical heritage.",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, idx.gotN)
}

func TestRecommend_MappingFallbackKeepsSlot(t *testing.T) {
	// 内部 ID 99 不在映射中：回退条目占住槽位，目录 ID 取内部 ID，展示字段为 null
	idx := &stubIndex{
		results: []ann.Result{
			{Index: 0, Distance: 0.1},
			{Index: 99, Distance: 0.3},
		},
		nItems: 100,
	}
	svc := newTestService(idx)

	resp, err := svc.Recommend(context.Background(), model.RecommendRequest{
		Synopsis: "A young wizard discovers his magical heritage.",
		TopK:     2,
	})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Count)

	fallback := resp.Items[1]
	assert.Equal(t, 99, fallback.CatalogID)
	assert.Nil(t, fallback.Title)
	assert.Nil(t, fallback.Overview)
}

func TestRecommend_Idempotent(t *testing.T) {
	idx := &stubIndex{
		results: []ann.Result{
			{Index: 1, Distance: 0.2},
			{Index: 2, Distance: 0.4},
		},
		nItems: 3,
	}
	svc := newTestService(idx)

	req := model.RecommendRequest{Synopsis: "A young wizard discovers his magical heritage.", TopK: 2}
	first, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, idx.searchCalls)
}

func TestRecommend_NotReady(t *testing.T) {
	// 索引缺失
	svc := NewRecommendationService(&stubTokenizer{}, &stubEmbedder{vec: []float32{1}}, nil, &stubMapper{}, nil, 0, 10)
	_, err := svc.Recommend(context.Background(), model.RecommendRequest{Synopsis: "A young wizard discovers..."})
	require.Error(t, err)
	assert.ErrorIs(t, err, ann.ErrIndexUnavailable)
	assert.False(t, svc.Readiness().Ready())

	// 模型缺失
	idx := &stubIndex{nItems: 3}
	svc = NewRecommendationService(&stubTokenizer{}, nil, idx, &stubMapper{}, nil, 0, 10)
	_, err = svc.Recommend(context.Background(), model.RecommendRequest{Synopsis: "A young wizard discovers..."})
	require.Error(t, err)
	assert.ErrorIs(t, err, embedding.ErrModelLoad)
}

func TestRecommend_TokenizationErrorAborts(t *testing.T) {
	idx := &stubIndex{results: []ann.Result{{Index: 0, Distance: 0.1}}, nItems: 3}
	tokErr := fmt.Errorf("%w: 编码结果为空", embedding.ErrTokenization)
	svc := NewRecommendationService(
		&stubTokenizer{err: tokErr},
		&stubEmbedder{vec: []float32{1}},
		idx,
		&stubMapper{},
		nil,
		0,
		10,
	)

	resp, err := svc.Recommend(context.Background(), model.RecommendRequest{Synopsis: "A young wizard discovers..."})
	require.Error(t, err)
	assert.True(t, errors.Is(err, embedding.ErrTokenization))
	// 失败时绝不返回半成品结果
	assert.Nil(t, resp)
	assert.Equal(t, 0, idx.searchCalls)
}
