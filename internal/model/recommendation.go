// Package model 定义了核心数据结构与对外的 DTO。
package model

// RecommendRequest 定义了推荐 API 的请求体结构。
// 校验规则在边界层（gin binding）完成，核心管线只接收合法请求。
type RecommendRequest struct {
	Synopsis string `json:"synopsis" binding:"required,min=10,max=5000"`
	Genre    string `json:"genre" binding:"omitempty"`
	Year     *int   `json:"year" binding:"omitempty,gte=1888,lte=2100"`
	Title    string `json:"title" binding:"omitempty,max=200"`
	TopK     int    `json:"top_k" binding:"omitempty,gte=1,lte=50"`
}

// ScoredCandidate 是向量索引返回的单条候选：内部索引 ID 加上
// 已经换算到 [0,1] 区间的相似度，按相似度降序、ID 升序排列。
type ScoredCandidate struct {
	Index      int
	Similarity float64
}

// CatalogEntry 是目录映射中的一条影片记录。
// Title/Overview 为指针：映射缺失该 ID 时回退条目的展示字段为 null。
type CatalogEntry struct {
	Index     int     `json:"-"`
	CatalogID int     `json:"catalog_id"`
	Title     *string `json:"title"`
	Overview  *string `json:"overview"`
}

// RecommendationItem 是返回给前端的单条推荐结果。
type RecommendationItem struct {
	CatalogID       int     `json:"catalog_id"`
	SimilarityScore float64 `json:"similarity_score"`
	Title           *string `json:"title"`
	Overview        *string `json:"overview"`
}

// RecommendationResponse 定义了推荐 API 的响应数据结构。
// Count 恒等于 len(Items)，且不超过请求的 top_k 与目录大小。
type RecommendationResponse struct {
	QueryTextUsed string               `json:"query_text_used"`
	Items         []RecommendationItem `json:"items"`
	Count         int                  `json:"count"`
}

// ReadinessStatus 描述各启动产物的加载情况，用于 /ready 接口。
type ReadinessStatus struct {
	Tokenizer bool `json:"tokenizer"`
	Model     bool `json:"model"`
	Index     bool `json:"index"`
	Catalog   bool `json:"catalog"`
}

// Ready 当且仅当全部产物加载完成时为真。
func (s ReadinessStatus) Ready() bool {
	return s.Tokenizer && s.Model && s.Index && s.Catalog
}
