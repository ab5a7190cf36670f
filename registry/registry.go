// Package registry 管理训练产出的模型元数据与各类型的激活状态。
//
// 核心思想：
//   - 同一类型最多一条激活记录（由 Activate 维护）
//   - 激活失败时做补偿更新，保证不变量在失败路径下也成立
package registry

import (
	"context"

	"go.uber.org/zap"

	"github.com/cinekit/cinekit/core"
)

// Registry 是模型注册表。
type Registry struct {
	Models core.ModelStore
	Logger *zap.Logger
}

// New 创建模型注册表。logger 传 nil 则静默。
func New(models core.ModelStore, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{Models: models, Logger: logger}
}

// List 返回全部模型记录。
func (r *Registry) List(ctx context.Context) ([]*core.ModelRecord, error) {
	return r.Models.List(ctx)
}

// Get 返回指定模型，不存在返回 NotFound。
func (r *Registry) Get(ctx context.Context, modelID string) (*core.ModelRecord, error) {
	return r.Models.Find(ctx, modelID)
}

// GetActive 返回某类型的激活模型，不存在返回 NotFound。
func (r *Registry) GetActive(ctx context.Context, modelType core.ModelType) (*core.ModelRecord, error) {
	return r.Models.FindActive(ctx, modelType)
}

// Activate 激活指定模型：先取消同类型的其他激活记录，再激活目标。
//
// "原子"指调用返回后同类型最多一条激活记录——即使激活目标失败，
// 也通过补偿更新恢复先前的激活记录，不会留下零散的中间状态。
func (r *Registry) Activate(ctx context.Context, modelID string) (*core.ModelRecord, error) {
	target, err := r.Models.Find(ctx, modelID)
	if err != nil {
		return nil, err
	}

	// 记录被取消激活的前任，激活目标失败时用于补偿
	var previous *core.ModelRecord
	all, err := r.Models.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, record := range all {
		if record.Type != target.Type || !record.Active || record.ID == modelID {
			continue
		}
		record.Active = false
		if err := r.Models.Update(ctx, record); err != nil {
			return nil, err
		}
		previous = record
	}

	target.Active = true
	if err := r.Models.Update(ctx, target); err != nil {
		if previous != nil {
			previous.Active = true
			if compErr := r.Models.Update(ctx, previous); compErr != nil {
				r.logger().Error("compensating re-activation failed",
					zap.String("model_id", previous.ID), zap.Error(compErr))
			}
		}
		return nil, err
	}

	r.logger().Info("model activated",
		zap.String("model_id", modelID), zap.String("type", string(target.Type)))
	return target, nil
}

// ActivateIfNone 在该类型没有激活模型时激活指定模型（训练完成后的自动激活）。
func (r *Registry) ActivateIfNone(ctx context.Context, modelID string, modelType core.ModelType) error {
	_, err := r.Models.FindActive(ctx, modelType)
	if err == nil {
		return nil
	}
	if !core.IsNotFound(err) {
		return err
	}
	_, err = r.Activate(ctx, modelID)
	return err
}

func (r *Registry) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
