package core

import (
	"context"
	"time"
)

// 仓储接口定义在领域层（core），由基础设施层（store、store/redis 等）实现。
//
// 设计原则：
//   - 依赖倒置：领域层定义接口，基础设施层实现接口
//   - 引擎只读 Item/Interaction，写回派生的 embedding
//   - 重试策略属于存储实现，本层视所有读写为幂等且不重试

// ItemStore 是电影目录与 embedding 的存储接口。
type ItemStore interface {
	// Find 查找单部电影，不存在返回 ErrItemNotFound
	Find(ctx context.Context, itemID string) (*Item, error)

	// FindMany 批量查找，缺失的 ID 不出现在结果中，不算错误
	FindMany(ctx context.Context, itemIDs []string) (map[string]*Item, error)

	// FindAll 返回全部电影（训练时遍历目录用）
	FindAll(ctx context.Context) ([]*Item, error)

	// GetEmbedding 读取 (itemID, modelKey) 的向量，缺失返回 ErrItemNotFound
	GetEmbedding(ctx context.Context, itemID, modelKey string) (Embedding, error)

	// GetEmbeddings 批量读取向量，缺失的 ID 不出现在结果中
	GetEmbeddings(ctx context.Context, itemIDs []string, modelKey string) (map[string]Embedding, error)

	// SampleWithEmbedding 从"在 modelKey 下有非空向量且不在 exclude 中"的物品里
	// 均匀随机抽取至多 n 个。候选池不足时返回更少的结果，不算错误。
	// 返回顺序即候选迭代顺序，排序平分时以此为准。
	SampleWithEmbedding(ctx context.Context, exclude map[string]struct{}, modelKey string, n int) ([]ItemVector, error)

	// UpdateEmbedding 写入（覆盖）某个模型键下的物品向量
	UpdateEmbedding(ctx context.Context, itemID, modelKey string, emb Embedding) error
}

// ItemVector 是带序候选：SampleWithEmbedding 的返回单元。
// 用 slice 而不是 map 承载候选池，保证排序平分时的迭代顺序稳定。
type ItemVector struct {
	ItemID string
	Vector []float64
}

// InteractionFilter 是交互查询条件。零值字段不参与过滤。
type InteractionFilter struct {
	Type     string  // 交互类型，如 "rate"
	MinValue float64 // 最小评分（仅 rate 有意义）
	Limit    int     // 最多返回条数，0 表示不限
}

// InteractionStore 是交互记录的存储接口。
type InteractionStore interface {
	// FindByUser 按时间戳降序返回用户的交互记录
	FindByUser(ctx context.Context, userID string, filter InteractionFilter) ([]Interaction, error)

	// FindDistinctItemIDs 返回用户交互过的全部物品 ID（任意类型），用作排除集
	FindDistinctItemIDs(ctx context.Context, userID string) (map[string]struct{}, error)

	// FindAll 返回满足条件的全部交互（训练时遍历评分用）
	FindAll(ctx context.Context, filter InteractionFilter) ([]Interaction, error)
}

// CacheStore 是字符串 KV 缓存接口。
// payload 由调用方自行编码（推荐缓存使用 JSON ID 列表）。
type CacheStore interface {
	// Get 读取 key，不存在返回 ErrCacheMiss
	Get(ctx context.Context, key string) (string, error)

	// Set 写入 key，ttl <= 0 表示不过期
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete 删除 key，key 不存在不算错误
	Delete(ctx context.Context, key string) error
}

// JobStore 是训练任务的存储接口。
type JobStore interface {
	// Insert 插入新任务
	Insert(ctx context.Context, job *TrainingJob) error

	// Update 以 ID 为键整体覆盖任务记录
	Update(ctx context.Context, job *TrainingJob) error

	// Find 查找任务，不存在返回 ErrJobNotFound
	Find(ctx context.Context, jobID string) (*TrainingJob, error)
}

// ModelStore 是模型元数据的存储接口。
type ModelStore interface {
	// Insert 插入新模型记录
	Insert(ctx context.Context, record *ModelRecord) error

	// Update 以 ID 为键整体覆盖模型记录
	Update(ctx context.Context, record *ModelRecord) error

	// Find 查找模型，不存在返回 ErrModelNotFound
	Find(ctx context.Context, modelID string) (*ModelRecord, error)

	// FindActive 查找某类型的激活模型，不存在返回 ErrModelNotFound
	FindActive(ctx context.Context, modelType ModelType) (*ModelRecord, error)

	// List 返回全部模型记录
	List(ctx context.Context) ([]*ModelRecord, error)
}

// 存储层错误定义（使用统一的 DomainError）
var (
	// ErrItemNotFound 表示电影或其 embedding 不存在
	ErrItemNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: item not found")

	// ErrJobNotFound 表示训练任务不存在
	ErrJobNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: training job not found")

	// ErrModelNotFound 表示模型记录不存在
	ErrModelNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: model not found")

	// ErrCacheMiss 表示缓存 key 不存在
	ErrCacheMiss = NewDomainError(ModuleCache, ErrorCodeNotFound, "cache: key not found")
)
