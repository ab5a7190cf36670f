package trainer

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// TFIDF 是有界词表的稀疏文本向量化器：外部 embedding 模型不可用时的回退方案。
//
// 核心思想：
//   - 词表按语料词频取 TopK（MaxFeatures），维度有上界，内存可控
//   - 权重 = tf * (ln((1+n)/(1+df)) + 1)，再做 L2 归一化
//   - Fit 一次建词表，Transform 可对任意文本重复调用
type TFIDF struct {
	// MaxFeatures 词表上限，0 表示 DefaultTFIDFFeatures
	MaxFeatures int

	vocab map[string]int // 词 -> 维度下标
	idf   []float64      // 每个维度的 idf 值
}

// NewTFIDF 创建向量化器。
func NewTFIDF(maxFeatures int) *TFIDF {
	if maxFeatures <= 0 {
		maxFeatures = DefaultTFIDFFeatures
	}
	return &TFIDF{MaxFeatures: maxFeatures}
}

// tokenize 小写分词：字母数字为词，其余为分隔符。
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Fit 从语料建词表并计算 idf。
func (v *TFIDF) Fit(texts []string) {
	termFreq := make(map[string]int) // 语料总词频，用于裁剪词表
	docFreq := make(map[string]int)  // 文档频率，用于 idf

	for _, text := range texts {
		seen := make(map[string]struct{})
		for _, tok := range tokenize(text) {
			termFreq[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				docFreq[tok]++
			}
		}
	}

	// 词表取语料词频 TopK，频率平手按字典序保证确定性
	terms := make([]string, 0, len(termFreq))
	for term := range termFreq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if termFreq[terms[i]] != termFreq[terms[j]] {
			return termFreq[terms[i]] > termFreq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > v.MaxFeatures {
		terms = terms[:v.MaxFeatures]
	}
	// 维度顺序用字典序，与词频无关，保证相同词表下向量布局稳定
	sort.Strings(terms)

	v.vocab = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	n := float64(len(texts))
	for i, term := range terms {
		v.vocab[term] = i
		// 平滑 idf：ln((1+n)/(1+df)) + 1，未见词不为零权重
		v.idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
}

// Transform 将单条文本映射为 L2 归一化的 TF-IDF 向量。
// 词表外的词被忽略；全部词都在词表外时返回零向量。
func (v *TFIDF) Transform(text string) []float64 {
	vec := make([]float64, len(v.idf))
	for _, tok := range tokenize(text) {
		if idx, ok := v.vocab[tok]; ok {
			vec[idx] += v.idf[idx]
		}
	}

	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// FitTransform 建词表并向量化整个语料。
func (v *TFIDF) FitTransform(texts []string) [][]float64 {
	v.Fit(texts)
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = v.Transform(text)
	}
	return out
}

// Dimension 返回向量维度（Fit 之后有效）。
func (v *TFIDF) Dimension() int {
	return len(v.idf)
}
