// Package embedding 提供按 (itemID, modelKey) 读取物品向量与抽取候选池的统一入口。
//
// 内容模型与协同过滤模型的向量走同一套 Source 机制：训练路径写入不同的模型键，
// 推荐路径只需切换 modelKey 即可复用相同的抽样与排序代码。
package embedding

import (
	"context"

	"github.com/cinekit/cinekit/core"
)

// CollaborativeKeyPrefix 是协同过滤向量的模型键前缀。
const CollaborativeKeyPrefix = "collaborative_"

// CollaborativeModelKey 返回协同过滤模型的向量存储键。
func CollaborativeModelKey(modelID string) string {
	return CollaborativeKeyPrefix + modelID
}

// Source 是 embedding 的读取接口。
//
// 约定：
//   - Get 缺失返回 core.ErrItemNotFound
//   - GetMany 中缺失的 ID 不出现在结果里，不算错误
//   - SampleCandidates 只返回有非空向量的物品，池不足时返回更少的结果
type Source interface {
	Get(ctx context.Context, itemID, modelKey string) ([]float64, error)
	GetMany(ctx context.Context, itemIDs []string, modelKey string) (map[string][]float64, error)
	SampleCandidates(ctx context.Context, exclude map[string]struct{}, modelKey string, n int) ([]core.ItemVector, error)
}

// StoreSource 是基于 core.ItemStore 的 Source 实现（默认实现）。
type StoreSource struct {
	Items core.ItemStore
}

// NewStoreSource 创建仓储支撑的 embedding 源。
func NewStoreSource(items core.ItemStore) *StoreSource {
	return &StoreSource{Items: items}
}

func (s *StoreSource) Get(ctx context.Context, itemID, modelKey string) ([]float64, error) {
	emb, err := s.Items.GetEmbedding(ctx, itemID, modelKey)
	if err != nil {
		return nil, err
	}
	if emb.Empty() {
		return nil, core.ErrItemNotFound
	}
	return emb.Vector, nil
}

func (s *StoreSource) GetMany(ctx context.Context, itemIDs []string, modelKey string) (map[string][]float64, error) {
	embs, err := s.Items.GetEmbeddings(ctx, itemIDs, modelKey)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float64, len(embs))
	for id, emb := range embs {
		if emb.Empty() {
			continue
		}
		out[id] = emb.Vector
	}
	return out, nil
}

func (s *StoreSource) SampleCandidates(ctx context.Context, exclude map[string]struct{}, modelKey string, n int) ([]core.ItemVector, error) {
	return s.Items.SampleWithEmbedding(ctx, exclude, modelKey, n)
}

// 确保 StoreSource 实现了 Source 接口
var _ Source = (*StoreSource)(nil)
