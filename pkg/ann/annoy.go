// Package ann 实现了对 Annoy（angular 距离）二进制索引文件的只读加载与
// k 近邻检索。索引由离线管线构建，进程启动时一次性载入内存，随后对
// 任意数量的并发读取是安全的：检索过程不修改任何共享状态。
//
// 文件格式与 Annoy 保持二进制兼容：定长节点数组，angular 节点布局为
// n_descendants(int32) + children[2](int32) + v[dim](float32)，节点大小
// 12 + 4*dim 字节。n_descendants == 1 的节点是数据点；2..K 之间的节点在
// children 区域内联存储后代 ID 列表；更大的节点是分裂超平面。
package ann

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"cinematch-go/pkg/log"
)

// ErrIndexUnavailable 表示向量索引在启动阶段未能加载。
// 该错误使推荐能力整体不可用，但不影响健康检查接口。
var ErrIndexUnavailable = errors.New("向量索引不可用")

const (
	// headerSize 是 angular 节点中向量数据之前的字节数。
	headerSize = 12
	// childrenOffset 是 children 区域相对节点起始的偏移。
	childrenOffset = 4
)

// Result 是一次检索命中：内部索引 ID 与 Annoy 的归一化 angular 距离
// sqrt(max(2 - 2*cosθ, 0))，取值范围 [0, 2]。
type Result struct {
	Index    int
	Distance float64
}

// Index 是加载完成的只读 Annoy 索引。
type Index struct {
	dim      int
	nodeSize int
	leafCap  int // 单节点 children 区域可内联的最大后代数，即 Annoy 的 K
	data     []byte
	nNodes   int
	nItems   int
	roots    []int32
}

// Load 从文件加载 Annoy 索引。dim 必须与离线构建时的向量维度一致，
// 否则节点大小对不上，文件长度校验会直接失败。
func Load(path string, dim int) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取索引文件失败: %w", err)
	}

	nodeSize := headerSize + 4*dim
	if len(data) == 0 || len(data)%nodeSize != 0 {
		return nil, fmt.Errorf("索引文件大小 %d 不是节点大小 %d 的整数倍, 维度配置可能与构建时不一致", len(data), nodeSize)
	}

	idx := &Index{
		dim:      dim,
		nodeSize: nodeSize,
		leafCap:  (nodeSize - childrenOffset) / 4,
		data:     data,
		nNodes:   len(data) / nodeSize,
	}

	// 根节点收集：构建完成的索引把所有树根追加在文件末尾，
	// 它们的 n_descendants 都等于数据点总数。从尾部向前扫描即可。
	m := int32(-1)
	for i := idx.nNodes - 1; i >= 0; i-- {
		k := idx.nDescendants(int32(i))
		if m == -1 || k == m {
			idx.roots = append(idx.roots, int32(i))
			m = k
		} else {
			break
		}
	}
	// 与 Annoy 相同的修正：最后一个根若与第一个根指向同一子树则丢弃。
	if len(idx.roots) > 1 && idx.child(idx.roots[0], 0) == idx.child(idx.roots[len(idx.roots)-1], 0) {
		idx.roots = idx.roots[:len(idx.roots)-1]
	}
	idx.nItems = int(m)

	if idx.nItems <= 0 || len(idx.roots) == 0 {
		return nil, fmt.Errorf("索引文件不包含有效的树结构")
	}

	log.Infof("[AnnIndex] 索引加载成功, 数据点: %d, 树: %d, 维度: %d", idx.nItems, len(idx.roots), dim)
	return idx, nil
}

// NItems 返回索引中的数据点数量，即目录大小。
func (t *Index) NItems() int { return t.nItems }

// NTrees 返回索引中的树数量。
func (t *Index) NTrees() int { return len(t.roots) }

// Dimension 返回向量维度。
func (t *Index) Dimension() int { return t.dim }

// ItemVector 返回第 i 个数据点的向量，越界返回 nil。
func (t *Index) ItemVector(i int) []float32 {
	if i < 0 || i >= t.nItems {
		return nil
	}
	return t.vector(int32(i))
}

// SearchByVector 返回与查询向量最近的至多 n 个数据点，按距离升序、
// ID 升序排列。searchK 控制遍历的候选规模（精度/速度权衡），
// 传 0 或负数时使用 Annoy 的默认值 n * n_trees。
func (t *Index) SearchByVector(v []float32, n, searchK int) ([]Result, error) {
	if len(v) != t.dim {
		return nil, fmt.Errorf("查询向量维度 %d 与索引维度 %d 不一致", len(v), t.dim)
	}
	if n <= 0 {
		return []Result{}, nil
	}
	if searchK <= 0 {
		searchK = n * len(t.roots)
	}

	// 多树并行下探：优先队列按“距离分裂面的保底余量”取最大者展开。
	pq := make(nodeQueue, 0, len(t.roots)*2)
	for _, r := range t.roots {
		heap.Push(&pq, queueItem{priority: math.Inf(1), node: r})
	}

	nns := make([]int32, 0, searchK+t.leafCap)
	for len(nns) < searchK && pq.Len() > 0 {
		top := heap.Pop(&pq).(queueItem)
		i := top.node
		nd := t.nDescendants(i)
		switch {
		case nd == 1 && int(i) < t.nItems:
			nns = append(nns, i)
		case int(nd) <= t.leafCap:
			nns = append(nns, t.childList(i, nd)...)
		default:
			margin := float64(dot(t.vector(i), v))
			heap.Push(&pq, queueItem{priority: math.Min(top.priority, margin), node: t.child(i, 1)})
			heap.Push(&pq, queueItem{priority: math.Min(top.priority, -margin), node: t.child(i, 0)})
		}
	}

	// 多棵树会产生重复候选，排序去重后再精确计算距离。
	sort.Slice(nns, func(a, b int) bool { return nns[a] < nns[b] })
	results := make([]Result, 0, len(nns))
	var last int32 = -1
	for _, id := range nns {
		if id == last {
			continue
		}
		last = id
		results = append(results, Result{
			Index:    int(id),
			Distance: angularDistance(t.vector(id), v),
		})
	}

	// 距离升序即相似度降序；距离相同时按 ID 升序保证确定性。
	sort.Slice(results, func(a, b int) bool {
		if results[a].Distance != results[b].Distance {
			return results[a].Distance < results[b].Distance
		}
		return results[a].Index < results[b].Index
	})
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// Similarity 把归一化 angular 距离映射为展示给用户的相似度分数。
// 变换固定为 1 - d/π 并截断到 [0,1]，与离线产物的约定一致，不可更改：
// 分数会原样呈现给最终用户，哪怕排序不变，数值变了也是破坏性变更。
func Similarity(distance float64) float64 {
	s := 1 - distance/math.Pi
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// angularDistance 计算 Annoy 的归一化 angular 距离 sqrt(2 - 2*cosθ)。
// 两侧向量各自按模长归一，零向量按最远距离处理。
func angularDistance(x, y []float32) float64 {
	var pp, qq, pq float64
	for i := range x {
		xi := float64(x[i])
		yi := float64(y[i])
		pp += xi * xi
		qq += yi * yi
		pq += xi * yi
	}
	d := 2.0
	if ppqq := pp * qq; ppqq > 0 {
		d = 2.0 - 2.0*pq/math.Sqrt(ppqq)
	}
	if d < 0 {
		d = 0
	}
	return math.Sqrt(d)
}

func dot(x []float32, y []float32) float32 {
	var s float32
	for i := range x {
		s += x[i] * y[i]
	}
	return s
}

// queueItem 是遍历队列中的一个待展开节点。
type queueItem struct {
	priority float64
	node     int32
}

// nodeQueue 是按 priority 取最大的优先队列。
type nodeQueue []queueItem

func (q nodeQueue) Len() int            { return len(q) }
func (q nodeQueue) Less(i, j int) bool  { return q[i].priority > q[j].priority }
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(queueItem)) }
func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
