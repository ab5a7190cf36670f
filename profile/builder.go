// Package profile 从用户的正向交互历史构建口味向量。
package profile

import (
	"context"

	"github.com/cinekit/cinekit/core"
	"github.com/cinekit/cinekit/embedding"
	"github.com/cinekit/cinekit/pkg/vectormath"
)

// DefaultHistoryLimit 是画像构建使用的正向交互条数上限（最近优先）。
const DefaultHistoryLimit = 50

// Builder 从交互历史派生用户画像。
//
// 画像是临时的：每次未命中缓存的请求都会重新计算，不做持久化。
// 只有评分 >= 4.0 的 rate 交互进入画像；所有类型的交互都进入排除集。
type Builder struct {
	Interactions core.InteractionStore
	Source       embedding.Source

	// HistoryLimit 画像使用的历史条数上限，0 表示 DefaultHistoryLimit
	HistoryLimit int
}

// NewBuilder 创建画像构建器。
func NewBuilder(interactions core.InteractionStore, source embedding.Source) *Builder {
	return &Builder{Interactions: interactions, Source: source}
}

func (b *Builder) historyLimit() int {
	if b.HistoryLimit > 0 {
		return b.HistoryLimit
	}
	return DefaultHistoryLimit
}

// PositiveItemIDs 返回用户正向交互过的物品 ID，最近优先、去重、保持顺序。
func (b *Builder) PositiveItemIDs(ctx context.Context, userID string) ([]string, error) {
	interactions, err := b.Interactions.FindByUser(ctx, userID, core.InteractionFilter{
		Type:     core.InteractionRate,
		MinValue: core.PositiveRatingThreshold,
		Limit:    b.historyLimit(),
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(interactions))
	ids := make([]string, 0, len(interactions))
	for _, in := range interactions {
		if _, ok := seen[in.ItemID]; ok {
			continue
		}
		seen[in.ItemID] = struct{}{}
		ids = append(ids, in.ItemID)
	}
	return ids, nil
}

// AllInteractedItemIDs 返回用户交互过的全部物品 ID（任意类型/评分），用作推荐排除集。
func (b *Builder) AllInteractedItemIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	return b.Interactions.FindDistinctItemIDs(ctx, userID)
}

// Build 构建用户口味向量：正向物品 embedding 的逐元素均值。
// 没有正向历史、或正向物品都没有向量时返回 (nil, false)——这是"无信号"，不是错误。
func (b *Builder) Build(ctx context.Context, userID, modelKey string) ([]float64, bool, error) {
	ids, err := b.PositiveItemIDs(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if len(ids) == 0 {
		return nil, false, nil
	}

	vectors, err := b.Source.GetMany(ctx, ids, modelKey)
	if err != nil {
		return nil, false, err
	}
	if len(vectors) == 0 {
		return nil, false, nil
	}

	liked := make([][]float64, 0, len(vectors))
	for _, id := range ids {
		if vec, ok := vectors[id]; ok {
			liked = append(liked, vec)
		}
	}
	mean := vectormath.Mean(liked)
	if mean == nil {
		return nil, false, nil
	}
	return mean, true, nil
}
