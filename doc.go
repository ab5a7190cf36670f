// Package cinekit 是一个电影推荐引擎（Movie Recommender Kit）。
//
// 设计要点：
// - Store-first: 领域层（core）定义仓储/缓存接口，基础设施层（store、embedding）实现
// - 双信号: 内容 embedding 相似度 + 协同过滤矩阵分解，共用同一套 EmbeddingSource/Ranker 机制
// - 资源受限: 训练单进程、分批分块、带协作式让出点，面向数百 MB 内存 / 分钟级时长预算
package cinekit

import (
	"github.com/cinekit/cinekit/core"
	"github.com/cinekit/cinekit/recommend"
	"github.com/cinekit/cinekit/trainer"
)

// 轻量 facade：便于用户直接 import "cinekit" 使用核心抽象。
type Item = core.Item
type Interaction = core.Interaction
type ModelRecord = core.ModelRecord
type TrainingJob = core.TrainingJob
type Recommender = recommend.Service
type Trainer = trainer.Trainer

const (
	ModelContentBased  = core.ModelContentBased
	ModelCollaborative = core.ModelCollaborative
	ModelHybrid        = core.ModelHybrid
	JobPending         = core.JobPending
	JobInProgress      = core.JobInProgress
	JobComplete        = core.JobComplete
	JobFailed          = core.JobFailed
)
