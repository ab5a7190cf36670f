// Package trainer 实现模型训练：内容 embedding 计算、协同过滤矩阵分解与混合模型注册。
//
// 设计原则：
//   - 训练是长任务，由调用方在 goroutine 里执行 Process；进度通过任务记录上报
//   - 任务边界兜底：训练过程的任何失败（含 panic）都落到任务记录上，绝不打垮宿主进程
//   - 重活分块执行，块间显式让出调度，训练期间推荐请求照常服务
package trainer

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cinekit/cinekit/core"
	"github.com/cinekit/cinekit/registry"
)

// Embedder 是内容向量的计算接口（如外部 embedding 服务）。
// Load 失败时训练回退到 TF-IDF。
type Embedder interface {
	// Load 探测/加载模型，失败触发 TF-IDF 回退
	Load(ctx context.Context) error

	// Embed 批量计算文本向量，返回与 texts 等长的向量表
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// Name 返回模型标识，写入 ModelRecord 的 embedding_source
	Name() string
}

// SubmitRequest 是一次训练请求。
type SubmitRequest struct {
	ModelName   string
	ModelType   core.ModelType
	Description string
	Parameters  map[string]any
}

// Trainer 是训练编排器。
type Trainer struct {
	Jobs         core.JobStore
	Models       core.ModelStore
	Items        core.ItemStore
	Interactions core.InteractionStore
	Registry     *registry.Registry

	// Embedder 内容训练的首选向量来源，nil 或 Load 失败时用 TF-IDF
	Embedder Embedder

	// Defaults 训练超参默认值，零值字段用包内默认
	Defaults TrainingDefaults

	Logger *zap.Logger
}

// TrainingDefaults 是各训练路径的默认超参。
type TrainingDefaults struct {
	Factors        int
	Epochs         int
	LearningRate   float64
	Regularization float64
	BatchSize      int
	RatingMin      float64
	RatingMax      float64
	EmbedBatch     int
	TFIDFFeatures  int
}

// 训练默认超参（单进程、内存受限场景下的保守取值）。
const (
	DefaultFactors        = 50
	DefaultEpochs         = 20
	DefaultLearningRate   = 0.005
	DefaultRegularization = 0.02
	DefaultBatchSize      = 512
	DefaultRatingMin      = 0.5
	DefaultRatingMax      = 5.0
	DefaultEmbedBatch     = 32
	DefaultTFIDFFeatures  = 1000
)

func (d TrainingDefaults) factors() int {
	if d.Factors > 0 {
		return d.Factors
	}
	return DefaultFactors
}

func (d TrainingDefaults) epochs() int {
	if d.Epochs > 0 {
		return d.Epochs
	}
	return DefaultEpochs
}

func (d TrainingDefaults) learningRate() float64 {
	if d.LearningRate > 0 {
		return d.LearningRate
	}
	return DefaultLearningRate
}

func (d TrainingDefaults) regularization() float64 {
	if d.Regularization > 0 {
		return d.Regularization
	}
	return DefaultRegularization
}

func (d TrainingDefaults) batchSize() int {
	if d.BatchSize > 0 {
		return d.BatchSize
	}
	return DefaultBatchSize
}

func (d TrainingDefaults) ratingMin() float64 {
	if d.RatingMax > d.RatingMin {
		return d.RatingMin
	}
	return DefaultRatingMin
}

func (d TrainingDefaults) ratingMax() float64 {
	if d.RatingMax > d.RatingMin {
		return d.RatingMax
	}
	return DefaultRatingMax
}

func (d TrainingDefaults) embedBatch() int {
	if d.EmbedBatch > 0 {
		return d.EmbedBatch
	}
	return DefaultEmbedBatch
}

func (d TrainingDefaults) tfidfFeatures() int {
	if d.TFIDFFeatures > 0 {
		return d.TFIDFFeatures
	}
	return DefaultTFIDFFeatures
}

func (t *Trainer) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

// Submit 校验请求、补全该类型的默认参数并创建 PENDING 任务。
// 训练本体由调用方随后在 goroutine 里执行 Process。
func (t *Trainer) Submit(ctx context.Context, req SubmitRequest) (*core.TrainingJob, error) {
	if !req.ModelType.Valid() {
		return nil, core.NewDomainError(core.ModuleTrainer, core.ErrorCodeInvalidInput,
			"trainer: invalid model type "+string(req.ModelType))
	}
	if req.ModelName == "" {
		return nil, core.NewDomainError(core.ModuleTrainer, core.ErrorCodeInvalidInput,
			"trainer: model name is required")
	}

	params := t.defaultParameters(req.ModelType, req.Parameters)

	job := &core.TrainingJob{
		ID:         uuid.NewString(),
		ModelName:  req.ModelName,
		ModelType:  req.ModelType,
		Status:     core.JobPending,
		Message:    fmt.Sprintf("Training job for %s queued", req.ModelName),
		Parameters: params,
		CreatedAt:  time.Now().UTC(),
	}
	if err := t.Jobs.Insert(ctx, job); err != nil {
		return nil, err
	}

	t.logger().Info("training job submitted",
		zap.String("job_id", job.ID),
		zap.String("model_name", req.ModelName),
		zap.String("model_type", string(req.ModelType)))
	return job, nil
}

// defaultParameters 按模型类型补全缺省超参，调用方显式给出的值优先。
func (t *Trainer) defaultParameters(modelType core.ModelType, params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+6)
	for k, v := range params {
		out[k] = v
	}
	setDefault := func(key string, value any) {
		if _, ok := out[key]; !ok {
			out[key] = value
		}
	}

	switch modelType {
	case core.ModelContentBased:
		setDefault("use_genres", true)
		setDefault("use_titles", true)
	case core.ModelCollaborative:
		setDefault("n_factors", t.Defaults.factors())
		setDefault("n_epochs", t.Defaults.epochs())
		setDefault("learning_rate", t.Defaults.learningRate())
		setDefault("regularization", t.Defaults.regularization())
		setDefault("batch_size", t.Defaults.batchSize())
	case core.ModelHybrid:
		setDefault("content_weight", 0.5)
		setDefault("collaborative_weight", 0.5)
	}
	return out
}

// Process 执行训练任务直到终态。
//
// 错误策略：训练过程的任何失败（含 panic）都被捕获并落到任务记录
// （FAILED + error 文本），本方法只在任务记录本身读写失败时返回错误。
func (t *Trainer) Process(ctx context.Context, jobID string) error {
	job, err := t.Jobs.Find(ctx, jobID)
	if err != nil {
		return err
	}

	if err := job.Transition(core.JobInProgress); err != nil {
		return err
	}
	_ = job.SetProgress(5, "Starting model training")
	if err := t.Jobs.Update(ctx, job); err != nil {
		return err
	}

	modelID, trainErr := t.runGuarded(ctx, job)

	if trainErr != nil {
		t.logger().Error("training failed",
			zap.String("job_id", jobID), zap.Error(trainErr))
		job.Error = trainErr.Error()
		job.Message = "Training failed: " + trainErr.Error()
		if err := job.Transition(core.JobFailed); err != nil {
			return err
		}
		return t.Jobs.Update(ctx, job)
	}

	job.ModelID = modelID
	if err := job.Transition(core.JobComplete); err != nil {
		return err
	}
	_ = job.SetProgress(100, "Model training completed successfully")
	if err := t.Jobs.Update(ctx, job); err != nil {
		return err
	}

	t.logger().Info("training completed",
		zap.String("job_id", jobID), zap.String("model_id", modelID))
	return nil
}

// runGuarded 分派训练路径并把 panic 转换成错误。
func (t *Trainer) runGuarded(ctx context.Context, job *core.TrainingJob) (modelID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("training panic: %v", r)
		}
	}()

	switch job.ModelType {
	case core.ModelContentBased:
		return t.trainContentBased(ctx, job)
	case core.ModelCollaborative:
		return t.trainCollaborative(ctx, job)
	case core.ModelHybrid:
		return t.trainHybrid(ctx, job)
	}
	return "", core.NewDomainError(core.ModuleTrainer, core.ErrorCodeInvalidInput,
		"trainer: unsupported model type "+string(job.ModelType))
}

// setProgress 更新并持久化任务进度（训练中的里程碑上报）。
func (t *Trainer) setProgress(ctx context.Context, job *core.TrainingJob, p float64, message string) error {
	if err := job.SetProgress(p, message); err != nil {
		return err
	}
	return t.Jobs.Update(ctx, job)
}

// registerModel 插入模型记录；该类型尚无激活模型时自动激活（首个模型即激活）。
func (t *Trainer) registerModel(ctx context.Context, record *core.ModelRecord) error {
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if err := t.Models.Insert(ctx, record); err != nil {
		return err
	}
	if t.Registry != nil {
		return t.Registry.ActivateIfNone(ctx, record.ID, record.Type)
	}
	return nil
}

// yield 是训练重活的协作式检查点：让出调度并观察取消信号。
// 不支持训练中途的细粒度取消，ctx 只在块边界生效。
func yield(ctx context.Context) error {
	runtime.Gosched()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
