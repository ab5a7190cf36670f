// Package recommend 实现两条请求态推荐链路：用户推荐与物品相似推荐。
//
// 链路（无状态、请求级）：
//
//	用户画像/目标向量 → 候选抽样 → 相似度排序 → 结果缓存（写透）→ ID 列表
//
// 无信号（没有正向历史、没有可用候选）一律返回空列表而不是错误；
// 唯一上抛的错误是物品相似请求的源物品/向量缺失（NOT_FOUND）。
package recommend

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cinekit/cinekit/cache"
	"github.com/cinekit/cinekit/core"
	"github.com/cinekit/cinekit/embedding"
	"github.com/cinekit/cinekit/pkg/conv"
	"github.com/cinekit/cinekit/pkg/dsl"
	"github.com/cinekit/cinekit/pkg/vectormath"
	"github.com/cinekit/cinekit/profile"
	"github.com/cinekit/cinekit/rank"
)

// DefaultPoolSize 是每次请求抽取的候选池大小。
// 固定抽样让单次请求成本与目录规模无关。
const DefaultPoolSize = 500

// DefaultTopN 是默认返回条数。
const DefaultTopN = 10

// ErrSourceNotFound 表示物品相似请求的源物品或其向量缺失。
var ErrSourceNotFound = core.NewDomainError(core.ModuleRecommend, core.ErrorCodeNotFound,
	"recommend: source item or embedding not found")

// Service 是推荐服务。
//
// 所有协作方通过构造参数注入，自身不持有进程级可变状态；
// 并发的冷缓存请求不做去重（最后写入者胜，缓存最终一致）。
type Service struct {
	Profiles *profile.Builder
	Source   embedding.Source
	Ranker   *rank.Ranker
	Cache    *cache.RecCache
	Items    core.ItemStore
	Models   core.ModelStore

	// ModelKey 内容向量的模型键。为空时从激活的内容模型解析。
	ModelKey string

	// PoolSize 候选池大小，0 表示 DefaultPoolSize
	PoolSize int

	// TopN 调用方未指定条数时的默认值，0 表示 DefaultTopN
	TopN int

	// UserTTL / ItemTTL 结果缓存时长，0 表示 cache 包默认
	UserTTL time.Duration
	ItemTTL time.Duration

	// Filter 可选的 CEL 候选过滤规则（排序后应用）
	Filter *dsl.Filter

	Logger *zap.Logger
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Service) poolSize() int {
	if s.PoolSize > 0 {
		return s.PoolSize
	}
	return DefaultPoolSize
}

func (s *Service) topN(topN int) int {
	if topN > 0 {
		return topN
	}
	if s.TopN > 0 {
		return s.TopN
	}
	return DefaultTopN
}

func (s *Service) userTTL() time.Duration {
	if s.UserTTL > 0 {
		return s.UserTTL
	}
	return cache.UserTTL
}

func (s *Service) itemTTL() time.Duration {
	if s.ItemTTL > 0 {
		return s.ItemTTL
	}
	return cache.ItemTTL
}

// resolveContentKey 解析内容向量的模型键。
// 优先使用显式配置，否则读取激活内容模型记录里训练时写入的 embedding_source。
func (s *Service) resolveContentKey(ctx context.Context) (string, error) {
	if s.ModelKey != "" {
		return s.ModelKey, nil
	}
	if s.Models == nil {
		return "", core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput,
			"recommend: model key not configured and no model store to resolve it")
	}
	record, err := s.Models.FindActive(ctx, core.ModelContentBased)
	if err != nil {
		return "", err
	}
	if key, ok := record.Parameters["embedding_source"].(string); ok && key != "" {
		return key, nil
	}
	return "", core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInternalError,
		"recommend: active content model has no embedding_source")
}

// ForUser 生成用户的内容推荐。
//
// 1) 查缓存；2) 构建口味画像（无正向历史/无可用向量 → 空结果）；
// 3) 抽候选（排除已交互物品）；4) 排序截断；5) 非空时写透缓存。
func (s *Service) ForUser(ctx context.Context, userID string, topN int) ([]string, error) {
	key := cache.UserKey(userID)
	if ids, hit := s.Cache.Get(ctx, key); hit {
		s.logger().Debug("user recommendations cache hit",
			zap.String("user_id", userID), zap.Int("count", len(ids)))
		return ids, nil
	}

	contentKey, err := s.resolveContentKey(ctx)
	if err != nil {
		return nil, err
	}

	// 画像与排除集各走一次仓储，读之间无依赖，并发取
	var (
		profileVec []float64
		hasProfile bool
		exclude    map[string]struct{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profileVec, hasProfile, err = s.Profiles.Build(gctx, userID, contentKey)
		return err
	})
	g.Go(func() error {
		var err error
		exclude, err = s.Profiles.AllInteractedItemIDs(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !hasProfile {
		s.logger().Debug("no usable taste profile, returning empty",
			zap.String("user_id", userID))
		return []string{}, nil
	}

	candidates, err := s.Source.SampleCandidates(ctx, exclude, contentKey, s.poolSize())
	if err != nil {
		return nil, err
	}

	ranked, err := s.rankAndFilter(ctx, profileVec, candidates, s.topN(topN))
	if err != nil {
		return nil, err
	}

	if len(ranked) > 0 {
		s.Cache.Set(ctx, key, ranked, s.userTTL())
	}
	return ranked, nil
}

// SimilarItems 生成与指定物品相似的推荐。
// 源物品或其向量缺失返回 ErrSourceNotFound——这是本链路唯一上抛的错误条件。
func (s *Service) SimilarItems(ctx context.Context, itemID string, topN int) ([]string, error) {
	key := cache.ItemKey(itemID)
	if ids, hit := s.Cache.Get(ctx, key); hit {
		return ids, nil
	}

	contentKey, err := s.resolveContentKey(ctx)
	if err != nil {
		return nil, err
	}

	target, err := s.Source.Get(ctx, itemID, contentKey)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrSourceNotFound
		}
		return nil, err
	}

	candidates, err := s.Source.SampleCandidates(ctx,
		map[string]struct{}{itemID: {}}, contentKey, s.poolSize())
	if err != nil {
		return nil, err
	}

	ranked, err := s.rankAndFilter(ctx, target, candidates, s.topN(topN))
	if err != nil {
		return nil, err
	}

	if len(ranked) > 0 {
		s.Cache.Set(ctx, key, ranked, s.itemTTL())
	}
	return ranked, nil
}

// HybridForUser 用激活的混合模型权重融合内容分与协同过滤分。
//
// score = w_c * content_score + w_f * cf_score，请求时计算，不训练。
// 需要激活的混合模型记录（内含两个底层模型的引用与权重）。
// 融合结果不写缓存：权重随激活模型切换，缓存键无法表达。
func (s *Service) HybridForUser(ctx context.Context, userID string, topN int) ([]string, error) {
	if s.Models == nil {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput,
			"recommend: hybrid scoring requires a model store")
	}
	hybrid, err := s.Models.FindActive(ctx, core.ModelHybrid)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodePreconditionFailed,
				"recommend: no active hybrid model")
		}
		return nil, err
	}

	contentWeight := conv.ParamFloat(hybrid.Parameters, "content_weight", 0.5)
	cfWeight := conv.ParamFloat(hybrid.Parameters, "collaborative_weight", 0.5)

	contentKey, err := s.resolveContentKey(ctx)
	if err != nil {
		return nil, err
	}
	cfRecord, err := s.Models.FindActive(ctx, core.ModelCollaborative)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodePreconditionFailed,
				"recommend: no active collaborative_filtering model")
		}
		return nil, err
	}
	cfKey := embedding.CollaborativeModelKey(cfRecord.ID)

	contentProfile, hasContent, err := s.Profiles.Build(ctx, userID, contentKey)
	if err != nil {
		return nil, err
	}
	cfProfile, hasCF, err := s.Profiles.Build(ctx, userID, cfKey)
	if err != nil {
		return nil, err
	}
	if !hasContent && !hasCF {
		return []string{}, nil
	}

	exclude, err := s.Profiles.AllInteractedItemIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.Source.SampleCandidates(ctx, exclude, contentKey, s.poolSize())
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []string{}, nil
	}

	candidateIDs := make([]string, len(candidates))
	for i, c := range candidates {
		candidateIDs[i] = c.ItemID
	}
	cfVectors, err := s.Source.GetMany(ctx, candidateIDs, cfKey)
	if err != nil {
		return nil, err
	}

	scored := make([]rank.Scored, 0, len(candidates))
	for _, c := range candidates {
		var score float64
		if hasContent {
			score += contentWeight * vectormath.Cosine(contentProfile, c.Vector)
		}
		if hasCF {
			if cfVec, ok := cfVectors[c.ItemID]; ok {
				score += cfWeight * vectormath.Cosine(cfProfile, cfVec)
			}
		}
		scored = append(scored, rank.Scored{ItemID: c.ItemID, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	n := s.topN(topN)
	if len(scored) > n {
		scored = scored[:n]
	}
	ids := make([]string, len(scored))
	for i, sc := range scored {
		ids[i] = sc.ItemID
	}
	return ids, nil
}

// InvalidateUser 在用户产生新交互时使其推荐缓存失效（口味可能已变化）。
// 物品相似缓存不受交互影响，只在新一轮训练替换向量后整体过期。
func (s *Service) InvalidateUser(ctx context.Context, userID string) {
	s.Cache.Invalidate(ctx, cache.UserKey(userID))
}

// rankAndFilter 对候选打分一次，应用可选的 CEL 规则后截断 TopN。
// 过滤在截断之前进行：被规则淘汰的位置由更深的候选顶上。
// 规则执行出错时跳过过滤（降级返回未过滤的截断结果）并记日志。
func (s *Service) rankAndFilter(ctx context.Context, reference []float64, candidates []core.ItemVector, topN int) ([]string, error) {
	scored := s.Ranker.Score(reference, candidates)
	if s.Filter == nil || s.Items == nil || len(scored) == 0 {
		return idsOf(truncate(scored, topN)), nil
	}

	items, err := s.Items.FindMany(ctx, idsOf(scored))
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, topN)
	for _, sc := range scored {
		item, ok := items[sc.ItemID]
		if !ok {
			continue
		}
		keep, err := s.Filter.Keep(item, sc.Score)
		if err != nil {
			s.logger().Warn("candidate filter failed, skipping rule",
				zap.String("expr", s.Filter.Expr()), zap.Error(err))
			return idsOf(truncate(scored, topN)), nil
		}
		if keep {
			out = append(out, sc.ItemID)
			if len(out) >= topN {
				break
			}
		}
	}
	return out, nil
}

func truncate(scored []rank.Scored, topN int) []rank.Scored {
	if topN > 0 && len(scored) > topN {
		return scored[:topN]
	}
	return scored
}

func idsOf(scored []rank.Scored) []string {
	ids := make([]string, len(scored))
	for i, s := range scored {
		ids[i] = s.ItemID
	}
	return ids
}
