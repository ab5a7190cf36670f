package embedding

import (
	"context"
	"fmt"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	feasttypes "github.com/feast-dev/feast/sdk/go/protos/feast/types"

	"github.com/cinekit/cinekit/core"
)

// FeastClient 是 Feast 在线特征服务的客户端接口。
// 官方 SDK 的 *feastsdk.GrpcClient 满足此接口；测试可注入假实现。
type FeastClient interface {
	GetOnlineFeatures(ctx context.Context, req *feastsdk.OnlineFeaturesRequest) (*feastsdk.OnlineFeaturesResponse, error)
}

// FeastSource 是基于 Feast Online Store 的 embedding 读取实现。
//
// 向量以 DoubleList 特征存放：feature 名为 {FeatureView}:{FeatureName}，
// 实体键为 EntityName（默认 "movie_id"）。
//
// 在线特征存储不支持随机抽样，SampleCandidates 委托给 Fallback
//（通常是仓储支撑的 StoreSource）；Get/GetMany 走 Feast 低延迟读取。
//
// 使用方式：
//
//	client, _ := feastsdk.NewGrpcClient("localhost", 6565)
//	src := &embedding.FeastSource{
//	    Client:      client,
//	    Project:     "movies",
//	    FeatureView: "movie_embeddings",
//	    Fallback:    embedding.NewStoreSource(items),
//	}
type FeastSource struct {
	Client FeastClient

	// Project Feast 项目名称
	Project string

	// FeatureView 承载向量的特征视图名称
	FeatureView string

	// FeatureName 向量特征名，默认 "embedding"
	FeatureName string

	// EntityName 实体键名，默认 "movie_id"
	EntityName string

	// Fallback 承接抽样请求的本地 Source
	Fallback Source
}

func (s *FeastSource) featureRef() string {
	name := s.FeatureName
	if name == "" {
		name = "embedding"
	}
	return s.FeatureView + ":" + name
}

func (s *FeastSource) entityName() string {
	if s.EntityName == "" {
		return "movie_id"
	}
	return s.EntityName
}

func (s *FeastSource) Get(ctx context.Context, itemID, modelKey string) ([]float64, error) {
	vectors, err := s.GetMany(ctx, []string{itemID}, modelKey)
	if err != nil {
		return nil, err
	}
	vec, ok := vectors[itemID]
	if !ok {
		return nil, core.ErrItemNotFound
	}
	return vec, nil
}

func (s *FeastSource) GetMany(ctx context.Context, itemIDs []string, modelKey string) (map[string][]float64, error) {
	if len(itemIDs) == 0 {
		return map[string][]float64{}, nil
	}

	entityRows := make([]feastsdk.Row, len(itemIDs))
	for i, id := range itemIDs {
		entityRows[i] = feastsdk.Row{s.entityName(): feastsdk.StrVal(id)}
	}

	req := &feastsdk.OnlineFeaturesRequest{
		Features: []string{s.featureRef()},
		Entities: entityRows,
		Project:  s.Project,
	}

	resp, err := s.Client.GetOnlineFeatures(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("feast get online features failed: %w", err)
	}

	rows := resp.Rows()
	if len(rows) != len(itemIDs) {
		return nil, fmt.Errorf("feast response row count mismatch: expected %d, got %d", len(itemIDs), len(rows))
	}

	out := make(map[string][]float64, len(itemIDs))
	for i, row := range rows {
		vec := extractVector(row[s.featureRef()])
		if len(vec) == 0 {
			continue
		}
		out[itemIDs[i]] = vec
	}
	return out, nil
}

func (s *FeastSource) SampleCandidates(ctx context.Context, exclude map[string]struct{}, modelKey string, n int) ([]core.ItemVector, error) {
	if s.Fallback == nil {
		return nil, core.NewDomainError(core.ModuleEmbedding, core.ErrorCodeInvalidInput,
			"embedding: feast source requires a fallback sampler")
	}
	return s.Fallback.SampleCandidates(ctx, exclude, modelKey, n)
}

// extractVector 从 Feast 的 Value 中提取 DoubleList/FloatList 向量。
// 其他类型（或缺失）返回 nil。
func extractVector(val *feasttypes.Value) []float64 {
	if val == nil {
		return nil
	}
	if dl := val.GetDoubleListVal(); dl != nil {
		return dl.GetVal()
	}
	if fl := val.GetFloatListVal(); fl != nil {
		floats := fl.GetVal()
		out := make([]float64, len(floats))
		for i, f := range floats {
			out[i] = float64(f)
		}
		return out
	}
	return nil
}

// 确保 FeastSource 实现了 Source 接口
var _ Source = (*FeastSource)(nil)
