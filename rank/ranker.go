// Package rank 对候选池按参考向量的余弦相似度排序并截断 TopN。
package rank

import (
	"sort"

	"github.com/cinekit/cinekit/core"
	"github.com/cinekit/cinekit/pkg/vectormath"
)

// Scored 是一条打分结果。
type Scored struct {
	ItemID string
	Score  float64
}

// Ranker 是相似度排序器。
//
// 默认不设最低相似度阈值：低分候选照常返回（刻意保持简单，需要阈值的调用方
// 设置 MinScore 或在上层过滤）。
type Ranker struct {
	// MinScore 最低保留分数，0 表示不过滤
	MinScore float64
}

// Rank 对候选打分并按分数降序排序，截断到 topN，返回物品 ID 序列。
// 使用稳定排序：平分时保持候选迭代顺序。返回的 ID 一定来自 candidates。
func (r *Ranker) Rank(reference []float64, candidates []core.ItemVector, topN int) []string {
	scored := r.Score(reference, candidates)

	if topN > 0 && len(scored) > topN {
		scored = scored[:topN]
	}

	ids := make([]string, len(scored))
	for i, s := range scored {
		ids[i] = s.ItemID
	}
	return ids
}

// Score 对候选打分并按分数降序稳定排序，不截断。
// 混合打分等需要拿到分数本身的调用方使用此方法。
func (r *Ranker) Score(reference []float64, candidates []core.ItemVector) []Scored {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		score := vectormath.Cosine(reference, c.Vector)
		if r.MinScore > 0 && score < r.MinScore {
			continue
		}
		scored = append(scored, Scored{ItemID: c.ItemID, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
