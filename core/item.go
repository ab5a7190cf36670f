package core

import "time"

// Item 是目录中的一部电影。
// 内容 embedding 与协同过滤 embedding 不放在 Item 上，而是按 (itemID, modelKey)
// 存放在 ItemStore 中：同一部电影可以同时拥有多个模型的向量。
type Item struct {
	ID     string   // 稳定、不透明的物品 ID
	Title  string
	Genres []string
	Year   int
}

// Embedding 是某个模型键下的物品向量。
// 协同过滤模型额外带 per-item bias；内容模型 HasBias 为 false。
type Embedding struct {
	Vector  []float64
	Bias    float64
	HasBias bool
}

// Empty 判断向量是否缺失或为空。
// 空向量的物品不可作为该模型键下的排序候选。
func (e Embedding) Empty() bool {
	return len(e.Vector) == 0
}

// 交互类型常量。
// 画像构建只使用 InteractionRate 且 Value >= PositiveRatingThreshold 的记录；
// 所有类型都计入"已看过"排除集。
const (
	InteractionRate  = "rate"
	InteractionView  = "view"
	InteractionClick = "click"
)

// PositiveRatingThreshold 是"喜欢"的评分阈值（5 分制下 4.0）。
const PositiveRatingThreshold = 4.0

// Interaction 是一条用户-物品交互记录。
type Interaction struct {
	UserID    string
	ItemID    string
	Type      string
	Value     float64 // 仅 rate 类型有意义
	Timestamp time.Time
}

// Positive 判断该交互是否构成正向信号（进入用户画像）。
func (i Interaction) Positive() bool {
	return i.Type == InteractionRate && i.Value >= PositiveRatingThreshold
}
