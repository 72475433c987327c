package embedding

import "math"

// meanPool 对 [1, seqLen, dim] 的最后隐层做注意力加权平均：
// 被掩码的位置（padding）不参与求和，也不计入分母。
func meanPool(hidden []float32, mask []int64, seqLen, dim int) []float32 {
	sums := make([]float64, dim)
	var count float64
	for p := 0; p < seqLen; p++ {
		if p < len(mask) && mask[p] == 0 {
			continue
		}
		base := p * dim
		for d := 0; d < dim; d++ {
			sums[d] += float64(hidden[base+d])
		}
		count++
	}

	out := make([]float32, dim)
	if count == 0 {
		return out
	}
	for d := 0; d < dim; d++ {
		out[d] = float32(sums[d] / count)
	}
	return out
}

// l2Normalize 原地把向量缩放到单位模长。零向量保持原样以避免除零。
func l2Normalize(v []float32) {
	var ss float64
	for _, x := range v {
		ss += float64(x) * float64(x)
	}
	norm := math.Sqrt(ss)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
