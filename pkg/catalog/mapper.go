// Package catalog 负责把向量索引的内部 ID 翻译回影片目录记录。
// 映射产物与索引同版本离线生成，进程启动时一次性加载，随后只读。
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"cinematch-go/internal/model"
	"cinematch-go/pkg/log"
)

// Mapper 提供内部索引 ID 到目录条目的 O(1) 查找。
type Mapper struct {
	entries map[int]model.CatalogEntry
}

// mappingEntry 对应映射 JSON 文件中的一条记录。
type mappingEntry struct {
	MovieID  int     `json:"movie_id"`
	Title    *string `json:"title"`
	Overview *string `json:"overview"`
}

// Load 从 JSON 映射文件加载目录。文件是一个以内部索引 ID 为键的对象：
//
//	{"42": {"movie_id": 550, "title": "Fight Club", "overview": "..."}, ...}
func Load(path string) (*Mapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取目录映射文件失败: %w", err)
	}

	var raw map[string]mappingEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("解析目录映射文件失败: %w", err)
	}

	entries := make(map[int]model.CatalogEntry, len(raw))
	for key, e := range raw {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("目录映射包含非整数键 '%s'", key)
		}
		entries[idx] = model.CatalogEntry{
			Index:     idx,
			CatalogID: e.MovieID,
			Title:     e.Title,
			Overview:  e.Overview,
		}
	}

	log.Infof("[CatalogMapper] 目录映射加载成功, 条目数: %d", len(entries))
	return &Mapper{entries: entries}, nil
}

// Resolve 返回内部索引 ID 对应的目录条目。映射缺失该 ID 时（索引与
// 映射版本不匹配的运维事故）返回回退条目而不是报错：目录 ID 取内部
// ID 本身，展示字段为 null。宁可返回降级条目也不丢弃候选——静默丢
// 槽位会改变 top_k 的语义。
func (m *Mapper) Resolve(index int) model.CatalogEntry {
	if e, ok := m.entries[index]; ok {
		return e
	}
	log.Warnf("[CatalogMapper] 内部 ID %d 不在目录映射中, 返回回退条目", index)
	return model.CatalogEntry{Index: index, CatalogID: index}
}

// Size 返回目录条目数。
func (m *Mapper) Size() int { return len(m.entries) }

// CatalogIDs 返回排序后的全部目录 ID，仅用于诊断与测试。
func (m *Mapper) CatalogIDs() []int {
	ids := make([]int, 0, len(m.entries))
	for _, e := range m.entries {
		ids = append(ids, e.CatalogID)
	}
	sort.Ints(ids)
	return ids
}
