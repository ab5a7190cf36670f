package trainer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cinekit/cinekit/core"
	"github.com/cinekit/cinekit/embedding"
	"github.com/cinekit/cinekit/registry"
	"github.com/cinekit/cinekit/store"
)

type env struct {
	items        *store.MemoryItemStore
	interactions *store.MemoryInteractionStore
	jobs         *store.MemoryJobStore
	models       *store.MemoryModelStore
	trainer      *Trainer
}

func newEnv() *env {
	items := store.NewMemoryItemStore()
	interactions := store.NewMemoryInteractionStore()
	jobs := store.NewMemoryJobStore()
	models := store.NewMemoryModelStore()

	return &env{
		items:        items,
		interactions: interactions,
		jobs:         jobs,
		models:       models,
		trainer: &Trainer{
			Jobs:         jobs,
			Models:       models,
			Items:        items,
			Interactions: interactions,
			Registry:     registry.New(models, nil),
		},
	}
}

func (e *env) loadCatalog() {
	e.items.Put(&core.Item{ID: "1", Title: "Alien", Genres: []string{"Horror", "Sci-Fi"}})
	e.items.Put(&core.Item{ID: "2", Title: "Aliens", Genres: []string{"Horror", "Sci-Fi", "Action"}})
	e.items.Put(&core.Item{ID: "3", Title: "Sleepless in Seattle", Genres: []string{"Romance", "Comedy"}})
}

func (e *env) loadRatings() {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ratings := []struct {
		user, item string
		value      float64
	}{
		{"u1", "1", 5}, {"u1", "2", 4.5}, {"u1", "3", 1},
		{"u2", "1", 4}, {"u2", "3", 2},
		{"u3", "2", 5}, {"u3", "3", 0.5},
	}
	for i, r := range ratings {
		e.interactions.Add(core.Interaction{
			UserID: r.user, ItemID: r.item,
			Type: core.InteractionRate, Value: r.value,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
}

func TestSubmitValidatesModelType(t *testing.T) {
	e := newEnv()
	_, err := e.trainer.Submit(context.Background(), SubmitRequest{
		ModelName: "bad", ModelType: "unknown_type",
	})
	if !core.IsInvalidInput(err) {
		t.Errorf("非法模型类型应返回 InvalidInput，实际 %v", err)
	}
}

func TestSubmitDefaultsParameters(t *testing.T) {
	e := newEnv()
	job, err := e.trainer.Submit(context.Background(), SubmitRequest{
		ModelName: "cf", ModelType: core.ModelCollaborative,
		Parameters: map[string]any{"n_epochs": 5},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != core.JobPending {
		t.Errorf("新任务状态 = %v, want PENDING", job.Status)
	}
	// 显式参数优先，其余补默认
	if got := job.Parameters["n_epochs"]; got != 5 {
		t.Errorf("n_epochs = %v, want 5", got)
	}
	if got := job.Parameters["n_factors"]; got != DefaultFactors {
		t.Errorf("n_factors = %v, want %d", got, DefaultFactors)
	}
	if got := job.Parameters["learning_rate"]; got != DefaultLearningRate {
		t.Errorf("learning_rate = %v, want %v", got, DefaultLearningRate)
	}
}

func TestProcessContentBasedTFIDFFallback(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.loadCatalog()

	job, err := e.trainer.Submit(ctx, SubmitRequest{
		ModelName: "content-v1", ModelType: core.ModelContentBased,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := e.trainer.Process(ctx, job.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	done, _ := e.jobs.Find(ctx, job.ID)
	if done.Status != core.JobComplete {
		t.Fatalf("任务状态 = %v (error=%q), want COMPLETE", done.Status, done.Error)
	}
	if done.Progress != 100 {
		t.Errorf("完成进度 = %v, want 100", done.Progress)
	}
	if done.ModelID == "" {
		t.Fatal("完成的任务应带模型 ID")
	}

	// 无 Embedder 时回退 TF-IDF，来源写入模型参数
	record, err := e.models.Find(ctx, done.ModelID)
	if err != nil {
		t.Fatalf("Find model: %v", err)
	}
	if got := record.Parameters["embedding_source"]; got != TFIDFSourceName {
		t.Errorf("embedding_source = %v, want %s", got, TFIDFSourceName)
	}
	if record.Metrics["num_items"] != 3 {
		t.Errorf("num_items = %v, want 3", record.Metrics["num_items"])
	}

	// 向量按来源名落库
	emb, err := e.items.GetEmbedding(ctx, "1", TFIDFSourceName)
	if err != nil {
		t.Fatalf("GetEmbedding: %v", err)
	}
	if len(emb.Vector) == 0 {
		t.Error("训练后向量不应为空")
	}

	// 首个模型自动激活
	active, err := e.models.FindActive(ctx, core.ModelContentBased)
	if err != nil || active.ID != done.ModelID {
		t.Errorf("首个模型应自动激活: %v, %v", active, err)
	}
}

// fakeEmbedder 记录批大小的假 embedding 服务。
type fakeEmbedder struct {
	loadErr    error
	batchSizes []int
}

func (f *fakeEmbedder) Load(ctx context.Context) error { return f.loadErr }
func (f *fakeEmbedder) Name() string                   { return "fake-minilm" }
func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	f.batchSizes = append(f.batchSizes, len(texts))
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = []float64{float64(len(text)), float64(strings.Count(text, " "))}
	}
	return out, nil
}

func TestProcessContentBasedWithEmbedder(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	embedder := &fakeEmbedder{}
	e.trainer.Embedder = embedder
	e.trainer.Defaults.EmbedBatch = 2
	e.loadCatalog()

	job, _ := e.trainer.Submit(ctx, SubmitRequest{
		ModelName: "content-v2", ModelType: core.ModelContentBased,
	})
	if err := e.trainer.Process(ctx, job.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	done, _ := e.jobs.Find(ctx, job.ID)
	if done.Status != core.JobComplete {
		t.Fatalf("任务状态 = %v (error=%q)", done.Status, done.Error)
	}
	record, _ := e.models.Find(ctx, done.ModelID)
	if got := record.Parameters["embedding_source"]; got != "fake-minilm" {
		t.Errorf("embedding_source = %v, want fake-minilm", got)
	}

	// 3 条文本、批大小 2 → 两批：2 + 1
	if len(embedder.batchSizes) != 2 || embedder.batchSizes[0] != 2 || embedder.batchSizes[1] != 1 {
		t.Errorf("批大小序列 = %v, want [2 1]", embedder.batchSizes)
	}
}

func TestProcessContentBasedEmbedderLoadFailure(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.trainer.Embedder = &fakeEmbedder{loadErr: errors.New("model server down")}
	e.loadCatalog()

	job, _ := e.trainer.Submit(ctx, SubmitRequest{
		ModelName: "content-v3", ModelType: core.ModelContentBased,
	})
	if err := e.trainer.Process(ctx, job.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	// Load 失败是硬性回退要求，任务必须用 TF-IDF 照常完成
	done, _ := e.jobs.Find(ctx, job.ID)
	if done.Status != core.JobComplete {
		t.Fatalf("回退训练应完成, 状态 = %v (error=%q)", done.Status, done.Error)
	}
	record, _ := e.models.Find(ctx, done.ModelID)
	if got := record.Parameters["embedding_source"]; got != TFIDFSourceName {
		t.Errorf("embedding_source = %v, want %s", got, TFIDFSourceName)
	}
}

func TestProcessFailsWithoutData(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	job, _ := e.trainer.Submit(ctx, SubmitRequest{
		ModelName: "content-empty", ModelType: core.ModelContentBased,
	})
	if err := e.trainer.Process(ctx, job.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	// 训练失败落在任务记录上，不上抛
	done, _ := e.jobs.Find(ctx, job.ID)
	if done.Status != core.JobFailed {
		t.Fatalf("无数据应 FAILED, 状态 = %v", done.Status)
	}
	if done.Error == "" {
		t.Error("失败任务应带错误文本")
	}
}

func TestProcessCollaborative(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.loadRatings()

	job, _ := e.trainer.Submit(ctx, SubmitRequest{
		ModelName: "cf-v1", ModelType: core.ModelCollaborative,
		Parameters: map[string]any{"n_factors": 4, "n_epochs": 10, "batch_size": 2},
	})
	if err := e.trainer.Process(ctx, job.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	done, _ := e.jobs.Find(ctx, job.ID)
	if done.Status != core.JobComplete {
		t.Fatalf("任务状态 = %v (error=%q)", done.Status, done.Error)
	}

	record, _ := e.models.Find(ctx, done.ModelID)
	if record.Metrics["num_users"] != 3 || record.Metrics["num_items"] != 3 {
		t.Errorf("metrics = %v, want 3 users / 3 items", record.Metrics)
	}
	if record.Metrics["num_ratings"] != 7 {
		t.Errorf("num_ratings = %v, want 7", record.Metrics["num_ratings"])
	}
	if _, ok := record.Metrics["final_loss"]; !ok {
		t.Error("metrics 应包含 final_loss")
	}

	// 物品向量+偏置落在 collaborative_<modelID> 键下
	modelKey := embedding.CollaborativeModelKey(done.ModelID)
	emb, err := e.items.GetEmbedding(ctx, "1", modelKey)
	if err != nil {
		t.Fatalf("GetEmbedding(%s): %v", modelKey, err)
	}
	if len(emb.Vector) != 4 {
		t.Errorf("向量维度 = %d, want n_factors=4", len(emb.Vector))
	}
	if !emb.HasBias {
		t.Error("协同过滤向量应携带偏置")
	}
}

func TestProcessHybridPrecondition(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	job, _ := e.trainer.Submit(ctx, SubmitRequest{
		ModelName: "hybrid-v1", ModelType: core.ModelHybrid,
	})
	if err := e.trainer.Process(ctx, job.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	done, _ := e.jobs.Find(ctx, job.ID)
	if done.Status != core.JobFailed {
		t.Fatalf("缺前置模型应 FAILED, 状态 = %v", done.Status)
	}

	// 不插入任何 ModelRecord
	records, _ := e.models.List(ctx)
	if len(records) != 0 {
		t.Errorf("失败的混合训练不应留下模型记录，实际 %d 条", len(records))
	}
}

func TestProcessHybrid(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	_ = e.models.Insert(ctx, &core.ModelRecord{ID: "c1", Type: core.ModelContentBased, Active: true})
	_ = e.models.Insert(ctx, &core.ModelRecord{ID: "f1", Type: core.ModelCollaborative, Active: true})

	job, _ := e.trainer.Submit(ctx, SubmitRequest{
		ModelName: "hybrid-v2", ModelType: core.ModelHybrid,
		Parameters: map[string]any{"content_weight": 0.7, "collaborative_weight": 0.3},
	})
	if err := e.trainer.Process(ctx, job.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	done, _ := e.jobs.Find(ctx, job.ID)
	if done.Status != core.JobComplete {
		t.Fatalf("任务状态 = %v (error=%q)", done.Status, done.Error)
	}

	record, _ := e.models.Find(ctx, done.ModelID)
	if record.Parameters["content_model_id"] != "c1" ||
		record.Parameters["collaborative_model_id"] != "f1" {
		t.Errorf("混合模型应记录底层模型引用: %v", record.Parameters)
	}
	if record.Parameters["content_weight"] != 0.7 {
		t.Errorf("content_weight = %v, want 0.7", record.Parameters["content_weight"])
	}
}

// panicEmbedder 在 Embed 时 panic，验证任务边界兜底。
type panicEmbedder struct{}

func (panicEmbedder) Load(ctx context.Context) error { return nil }
func (panicEmbedder) Name() string                   { return "panicky" }
func (panicEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	panic("index out of range")
}

func TestProcessRecoversPanic(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.trainer.Embedder = panicEmbedder{}
	e.loadCatalog()

	job, _ := e.trainer.Submit(ctx, SubmitRequest{
		ModelName: "content-panic", ModelType: core.ModelContentBased,
	})
	if err := e.trainer.Process(ctx, job.ID); err != nil {
		t.Fatalf("Process 不应把 panic 上抛: %v", err)
	}

	done, _ := e.jobs.Find(ctx, job.ID)
	if done.Status != core.JobFailed {
		t.Fatalf("panic 应转为 FAILED, 状态 = %v", done.Status)
	}
	if !strings.Contains(done.Error, "panic") {
		t.Errorf("错误文本应包含 panic 信息: %q", done.Error)
	}
}

// MF 学习效果的冒烟测试：u1 喜欢 1、2 讨厌 3，训练后预测分应有同样的偏序。
func TestMFLearnsPreferences(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.loadRatings()

	job, _ := e.trainer.Submit(ctx, SubmitRequest{
		ModelName: "cf-smoke", ModelType: core.ModelCollaborative,
		Parameters: map[string]any{"n_factors": 8, "n_epochs": 200, "learning_rate": 0.05, "batch_size": 4},
	})
	if err := e.trainer.Process(ctx, job.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	done, _ := e.jobs.Find(ctx, job.ID)
	if done.Status != core.JobComplete {
		t.Fatalf("任务状态 = %v (error=%q)", done.Status, done.Error)
	}
	record, _ := e.models.Find(ctx, done.ModelID)
	if record.Metrics["final_loss"] >= 0.25 {
		t.Errorf("200 epoch 后损失应明显下降, final_loss = %v", record.Metrics["final_loss"])
	}
}
