// Package store 提供 core 仓储接口的内存实现，用于测试/开发/原型。
//
// 特点：
//   - 纯内存实现，进程重启后数据丢失
//   - 线程安全
//   - 候选抽样支持注入随机源，测试可保证确定性
package store

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/cinekit/cinekit/core"
)

// MemoryItemStore 是 core.ItemStore 的内存实现。
type MemoryItemStore struct {
	mu         sync.RWMutex
	items      map[string]*core.Item
	embeddings map[string]map[string]core.Embedding // modelKey -> itemID -> embedding

	// rnd 抽样用随机源；nil 时使用时间种子
	rnd *rand.Rand
}

// NewMemoryItemStore 创建内存物品存储。
func NewMemoryItemStore() *MemoryItemStore {
	return &MemoryItemStore{
		items:      make(map[string]*core.Item),
		embeddings: make(map[string]map[string]core.Embedding),
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand 注入随机源（测试用）。
func (m *MemoryItemStore) WithRand(rnd *rand.Rand) *MemoryItemStore {
	m.rnd = rnd
	return m
}

// Put 写入一部电影（初始化数据用）。
func (m *MemoryItemStore) Put(item *core.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
}

func (m *MemoryItemStore) Find(ctx context.Context, itemID string) (*core.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[itemID]
	if !ok {
		return nil, core.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *MemoryItemStore) FindMany(ctx context.Context, itemIDs []string) (map[string]*core.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*core.Item, len(itemIDs))
	for _, id := range itemIDs {
		if item, ok := m.items[id]; ok {
			cp := *item
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *MemoryItemStore) FindAll(ctx context.Context) ([]*core.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*core.Item, 0, len(m.items))
	for _, item := range m.items {
		cp := *item
		out = append(out, &cp)
	}
	// 遍历 map 顺序随机，按 ID 排序保证可重复
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryItemStore) GetEmbedding(ctx context.Context, itemID, modelKey string) (core.Embedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byItem, ok := m.embeddings[modelKey]
	if !ok {
		return core.Embedding{}, core.ErrItemNotFound
	}
	emb, ok := byItem[itemID]
	if !ok {
		return core.Embedding{}, core.ErrItemNotFound
	}
	return emb, nil
}

func (m *MemoryItemStore) GetEmbeddings(ctx context.Context, itemIDs []string, modelKey string) (map[string]core.Embedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]core.Embedding, len(itemIDs))
	byItem, ok := m.embeddings[modelKey]
	if !ok {
		return out, nil
	}
	for _, id := range itemIDs {
		if emb, ok := byItem[id]; ok {
			out[id] = emb
		}
	}
	return out, nil
}

func (m *MemoryItemStore) SampleWithEmbedding(ctx context.Context, exclude map[string]struct{}, modelKey string, n int) ([]core.ItemVector, error) {
	// 写锁：Shuffle 会修改共享 rnd 的内部状态（rand.Rand 非并发安全）
	m.mu.Lock()
	defer m.mu.Unlock()

	byItem := m.embeddings[modelKey]
	eligible := make([]core.ItemVector, 0, len(byItem))
	ids := make([]string, 0, len(byItem))
	for id := range byItem {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		emb := byItem[id]
		if emb.Empty() {
			continue
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		eligible = append(eligible, core.ItemVector{ItemID: id, Vector: emb.Vector})
	}

	if n <= 0 || len(eligible) <= n {
		return eligible, nil
	}

	m.rnd.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	return eligible[:n], nil
}

func (m *MemoryItemStore) UpdateEmbedding(ctx context.Context, itemID, modelKey string, emb core.Embedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byItem, ok := m.embeddings[modelKey]
	if !ok {
		byItem = make(map[string]core.Embedding)
		m.embeddings[modelKey] = byItem
	}
	byItem[itemID] = emb
	return nil
}

// MemoryInteractionStore 是 core.InteractionStore 的内存实现。
type MemoryInteractionStore struct {
	mu           sync.RWMutex
	interactions []core.Interaction
}

// NewMemoryInteractionStore 创建内存交互存储。
func NewMemoryInteractionStore() *MemoryInteractionStore {
	return &MemoryInteractionStore{}
}

// Add 追加一条交互记录。
func (m *MemoryInteractionStore) Add(in core.Interaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, in)
}

func matches(in core.Interaction, filter core.InteractionFilter) bool {
	if filter.Type != "" && in.Type != filter.Type {
		return false
	}
	if filter.MinValue > 0 && in.Value < filter.MinValue {
		return false
	}
	return true
}

func (m *MemoryInteractionStore) FindByUser(ctx context.Context, userID string, filter core.InteractionFilter) ([]core.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.Interaction, 0)
	for _, in := range m.interactions {
		if in.UserID != userID {
			continue
		}
		if !matches(in, filter) {
			continue
		}
		out = append(out, in)
	}

	// 时间戳降序
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryInteractionStore) FindDistinctItemIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]struct{})
	for _, in := range m.interactions {
		if in.UserID == userID {
			out[in.ItemID] = struct{}{}
		}
	}
	return out, nil
}

func (m *MemoryInteractionStore) FindAll(ctx context.Context, filter core.InteractionFilter) ([]core.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Interaction, 0, len(m.interactions))
	for _, in := range m.interactions {
		if matches(in, filter) {
			out = append(out, in)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// MemoryCacheStore 是 core.CacheStore 的内存实现，支持 TTL。
type MemoryCacheStore struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry

	// now 时间源；nil 时使用 time.Now（测试可注入假时钟）
	now func() time.Time
}

type cacheEntry struct {
	value     string
	expiresAt time.Time // 零值表示不过期
}

// NewMemoryCacheStore 创建内存缓存。
func NewMemoryCacheStore() *MemoryCacheStore {
	return &MemoryCacheStore{entries: make(map[string]cacheEntry), now: time.Now}
}

// WithClock 注入时间源（测试用）。
func (m *MemoryCacheStore) WithClock(now func() time.Time) *MemoryCacheStore {
	m.now = now
	return m
}

func (m *MemoryCacheStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return "", core.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", core.ErrCacheMiss
	}
	return entry.value, nil
}

func (m *MemoryCacheStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := cacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryCacheStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// MemoryJobStore 是 core.JobStore 的内存实现。
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]core.TrainingJob
}

// NewMemoryJobStore 创建内存任务存储。
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]core.TrainingJob)}
}

func (m *MemoryJobStore) Insert(ctx context.Context, job *core.TrainingJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *MemoryJobStore) Update(ctx context.Context, job *core.TrainingJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return core.ErrJobNotFound
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *MemoryJobStore) Find(ctx context.Context, jobID string) (*core.TrainingJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, core.ErrJobNotFound
	}
	cp := job
	return &cp, nil
}

// MemoryModelStore 是 core.ModelStore 的内存实现。
type MemoryModelStore struct {
	mu     sync.RWMutex
	models map[string]core.ModelRecord
}

// NewMemoryModelStore 创建内存模型存储。
func NewMemoryModelStore() *MemoryModelStore {
	return &MemoryModelStore{models: make(map[string]core.ModelRecord)}
}

func (m *MemoryModelStore) Insert(ctx context.Context, record *core.ModelRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models[record.ID] = *record
	return nil
}

func (m *MemoryModelStore) Update(ctx context.Context, record *core.ModelRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.models[record.ID]; !ok {
		return core.ErrModelNotFound
	}
	m.models[record.ID] = *record
	return nil
}

func (m *MemoryModelStore) Find(ctx context.Context, modelID string) (*core.ModelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.models[modelID]
	if !ok {
		return nil, core.ErrModelNotFound
	}
	cp := record
	return &cp, nil
}

func (m *MemoryModelStore) FindActive(ctx context.Context, modelType core.ModelType) (*core.ModelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, record := range m.models {
		if record.Type == modelType && record.Active {
			cp := record
			return &cp, nil
		}
	}
	return nil, core.ErrModelNotFound
}

func (m *MemoryModelStore) List(ctx context.Context) ([]*core.ModelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*core.ModelRecord, 0, len(m.models))
	for _, record := range m.models {
		cp := record
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// 接口实现检查
var (
	_ core.ItemStore        = (*MemoryItemStore)(nil)
	_ core.InteractionStore = (*MemoryInteractionStore)(nil)
	_ core.CacheStore       = (*MemoryCacheStore)(nil)
	_ core.JobStore         = (*MemoryJobStore)(nil)
	_ core.ModelStore       = (*MemoryModelStore)(nil)
)
