package embedding

import (
	"context"
	"errors"
	"testing"

	feastsdk "github.com/feast-dev/feast/sdk/go"

	"github.com/cinekit/cinekit/core"
	"github.com/cinekit/cinekit/store"
)

// fakeFeastClient 记录请求并返回预设错误。
type fakeFeastClient struct {
	lastReq *feastsdk.OnlineFeaturesRequest
	err     error
}

func (c *fakeFeastClient) GetOnlineFeatures(ctx context.Context, req *feastsdk.OnlineFeaturesRequest) (*feastsdk.OnlineFeaturesResponse, error) {
	c.lastReq = req
	return nil, c.err
}

func TestFeastSourceRequestShape(t *testing.T) {
	ctx := context.Background()
	client := &fakeFeastClient{err: errors.New("unavailable")}
	s := &FeastSource{
		Client:      client,
		Project:     "movies",
		FeatureView: "movie_embeddings",
	}

	_, err := s.GetMany(ctx, []string{"1", "2"}, "ignored")
	if err == nil {
		t.Fatal("客户端错误应向上传播")
	}

	// 特征引用与实体键使用默认值
	req := client.lastReq
	if req == nil {
		t.Fatal("应发起在线特征请求")
	}
	if len(req.Features) != 1 || req.Features[0] != "movie_embeddings:embedding" {
		t.Errorf("features = %v", req.Features)
	}
	if req.Project != "movies" {
		t.Errorf("project = %q", req.Project)
	}
	if len(req.Entities) != 2 {
		t.Fatalf("entities = %d, want 2", len(req.Entities))
	}
	if _, ok := req.Entities[0]["movie_id"]; !ok {
		t.Errorf("实体键应为默认 movie_id: %v", req.Entities[0])
	}
}

func TestFeastSourceEmptyIDsSkipsCall(t *testing.T) {
	client := &fakeFeastClient{err: errors.New("should not be called")}
	s := &FeastSource{Client: client, FeatureView: "v"}

	got, err := s.GetMany(context.Background(), nil, "k")
	if err != nil || len(got) != 0 {
		t.Errorf("空 ID 列表应直接返回空结果: %v, %v", got, err)
	}
	if client.lastReq != nil {
		t.Error("空 ID 列表不应触发远程调用")
	}
}

func TestFeastSourceSampleDelegatesToFallback(t *testing.T) {
	ctx := context.Background()
	items := store.NewMemoryItemStore()
	items.Put(&core.Item{ID: "m1"})
	_ = items.UpdateEmbedding(ctx, "m1", "k", core.Embedding{Vector: []float64{1}})

	s := &FeastSource{Client: &fakeFeastClient{}, FeatureView: "v"}

	// 无 Fallback：抽样不可用
	if _, err := s.SampleCandidates(ctx, nil, "k", 5); !core.IsInvalidInput(err) {
		t.Errorf("缺 Fallback 应返回 InvalidInput，实际 %v", err)
	}

	s.Fallback = NewStoreSource(items)
	got, err := s.SampleCandidates(ctx, nil, "k", 5)
	if err != nil {
		t.Fatalf("SampleCandidates: %v", err)
	}
	if len(got) != 1 || got[0].ItemID != "m1" {
		t.Errorf("候选 = %v", got)
	}
}
