package ann

import (
	"encoding/binary"
	"math"
)

// 本文件是节点数组上的原始访问器。索引数据保持为一整块字节切片，
// 按需解码，加载阶段之外不做任何拷贝或修改。

// nDescendants 返回节点 i 的后代数量。
func (t *Index) nDescendants(i int32) int32 {
	off := int(i) * t.nodeSize
	return int32(binary.LittleEndian.Uint32(t.data[off : off+4]))
}

// child 返回分裂节点 i 的第 j 个子节点 ID（j 为 0 或 1）。
func (t *Index) child(i int32, j int) int32 {
	off := int(i)*t.nodeSize + childrenOffset + 4*j
	return int32(binary.LittleEndian.Uint32(t.data[off : off+4]))
}

// childList 返回叶簇节点 i 内联存储的 n 个后代 ID。
// ID 列表从 children 区域起始，越过 union 边界延伸进向量区域。
func (t *Index) childList(i int32, n int32) []int32 {
	off := int(i)*t.nodeSize + childrenOffset
	out := make([]int32, n)
	for j := range out {
		out[j] = int32(binary.LittleEndian.Uint32(t.data[off+4*j : off+4*j+4]))
	}
	return out
}

// vector 解码节点 i 的向量。
func (t *Index) vector(i int32) []float32 {
	off := int(i)*t.nodeSize + headerSize
	out := make([]float32, t.dim)
	for j := range out {
		out[j] = math.Float32frombits(binary.LittleEndian.Uint32(t.data[off+4*j : off+4*j+4]))
	}
	return out
}
