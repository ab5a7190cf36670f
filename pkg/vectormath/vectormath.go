// Package vectormath 提供推荐打分用到的向量原语：余弦相似度、均值向量、点积、sigmoid。
package vectormath

import "math"

// Cosine 计算两个向量的余弦相似度，结果截断到 [0, 1]。
//
// 约定：
//   - 维度不一致或任一向量范数为零时返回 0.0（视为"无关"，不是错误）
//   - 负余弦在本 embedding 空间没有业务含义，floor 到 0
//   - 截断上界 1 吸收浮点误差的轻微越界
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0.0
	}
	if sim > 1 {
		return 1.0
	}
	return sim
}

// Mean 计算向量组的逐元素均值。
// 空输入返回 nil（调用方必须自行保证非空）；维度不一致的向量被跳过。
func Mean(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	sum := make([]float64, dim)
	count := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i := range v {
			sum[i] += v[i]
		}
		count++
	}
	if count == 0 {
		return nil
	}

	for i := range sum {
		sum[i] /= float64(count)
	}
	return sum
}

// Dot 计算两个向量的点积，维度不一致返回 0。
func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Sigmoid 计算 1 / (1 + e^-x)。
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
