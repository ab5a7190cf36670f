// Package config 提供引擎的 YAML/JSON 配置加载与默认值。
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cinekit/cinekit/pkg/dsl"
	"github.com/cinekit/cinekit/rank"
	"github.com/cinekit/cinekit/recommend"
	"github.com/cinekit/cinekit/trainer"
)

// Config 是引擎配置结构（支持 YAML/JSON）。
type Config struct {
	Recommend RecommendConfig `yaml:"recommend" json:"recommend"`
	Training  TrainingConfig  `yaml:"training" json:"training"`
}

// RecommendConfig 是推荐链路配置。
type RecommendConfig struct {
	// PoolSize 候选池大小，0 表示默认 500
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// TopN 默认返回条数，0 表示默认 10
	TopN int `yaml:"top_n" json:"top_n"`

	// UserTTLSeconds 用户推荐缓存 TTL（秒），0 表示默认 3600
	UserTTLSeconds int `yaml:"user_ttl_seconds" json:"user_ttl_seconds"`

	// ItemTTLSeconds 物品相似缓存 TTL（秒），0 表示默认 86400
	ItemTTLSeconds int `yaml:"item_ttl_seconds" json:"item_ttl_seconds"`

	// HistoryLimit 画像使用的正向历史条数上限，0 表示默认 50
	HistoryLimit int `yaml:"history_limit" json:"history_limit"`

	// MinScore 最低相似度阈值，0 表示不过滤
	MinScore float64 `yaml:"min_score" json:"min_score"`

	// FilterExpr 可选的 CEL 候选过滤表达式
	FilterExpr string `yaml:"filter_expr" json:"filter_expr"`
}

// TrainingConfig 是训练默认超参配置。
type TrainingConfig struct {
	Factors        int     `yaml:"factors" json:"factors"`
	Epochs         int     `yaml:"epochs" json:"epochs"`
	LearningRate   float64 `yaml:"learning_rate" json:"learning_rate"`
	Regularization float64 `yaml:"regularization" json:"regularization"`
	BatchSize      int     `yaml:"batch_size" json:"batch_size"`
	RatingMin      float64 `yaml:"rating_min" json:"rating_min"`
	RatingMax      float64 `yaml:"rating_max" json:"rating_max"`
	EmbedBatch     int     `yaml:"embed_batch" json:"embed_batch"`
	TFIDFFeatures  int     `yaml:"tfidf_features" json:"tfidf_features"`

	// EmbedderEndpoint 外部 embedding 服务端点，空表示不用（直接 TF-IDF）
	EmbedderEndpoint string `yaml:"embedder_endpoint" json:"embedder_endpoint"`

	// EmbedderModel 外部 embedding 模型标识
	EmbedderModel string `yaml:"embedder_model" json:"embedder_model"`
}

// Load 从 YAML 字节流解析配置。
func Load(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &cfg, nil
}

// LoadFile 从 YAML 文件加载配置。
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Load(data)
}

// LoadJSON 从 JSON 字节流解析配置。
func LoadJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &cfg, nil
}

// ApplyRecommend 将推荐配置落到服务实例：池大小、默认 TopN、缓存 TTL、
// 画像历史上限、最低分阈值与 CEL 过滤表达式。
// 零值字段不覆盖，保持服务端已有取值或包内默认。
func (c *Config) ApplyRecommend(svc *recommend.Service) error {
	r := c.Recommend
	if r.PoolSize > 0 {
		svc.PoolSize = r.PoolSize
	}
	if r.TopN > 0 {
		svc.TopN = r.TopN
	}
	if r.UserTTLSeconds > 0 {
		svc.UserTTL = time.Duration(r.UserTTLSeconds) * time.Second
	}
	if r.ItemTTLSeconds > 0 {
		svc.ItemTTL = time.Duration(r.ItemTTLSeconds) * time.Second
	}
	if r.HistoryLimit > 0 && svc.Profiles != nil {
		svc.Profiles.HistoryLimit = r.HistoryLimit
	}
	if r.MinScore > 0 {
		if svc.Ranker == nil {
			svc.Ranker = &rank.Ranker{}
		}
		svc.Ranker.MinScore = r.MinScore
	}
	if r.FilterExpr != "" {
		filter, err := dsl.Compile(r.FilterExpr)
		if err != nil {
			return fmt.Errorf("compile filter_expr: %w", err)
		}
		svc.Filter = filter
	}
	return nil
}

// TrainingDefaults 将训练配置转为 trainer 的默认超参。
// 零值字段由 trainer 侧的包内默认兜底。
func (c *Config) TrainingDefaults() trainer.TrainingDefaults {
	return trainer.TrainingDefaults{
		Factors:        c.Training.Factors,
		Epochs:         c.Training.Epochs,
		LearningRate:   c.Training.LearningRate,
		Regularization: c.Training.Regularization,
		BatchSize:      c.Training.BatchSize,
		RatingMin:      c.Training.RatingMin,
		RatingMax:      c.Training.RatingMax,
		EmbedBatch:     c.Training.EmbedBatch,
		TFIDFFeatures:  c.Training.TFIDFFeatures,
	}
}
