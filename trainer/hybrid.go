package trainer

import (
	"context"

	"github.com/google/uuid"

	"github.com/cinekit/cinekit/core"
	"github.com/cinekit/cinekit/pkg/conv"
)

// trainHybrid 注册混合模型：只记录融合权重，不训练。
//
// 前置条件：内容与协同过滤各有一个激活模型，否则 PRECONDITION_FAILED
// 且不插入任何 ModelRecord。实际的融合打分在推荐请求时进行。
func (t *Trainer) trainHybrid(ctx context.Context, job *core.TrainingJob) (string, error) {
	if err := t.setProgress(ctx, job, 10, "Finding underlying models"); err != nil {
		return "", err
	}

	contentModel, err := t.Models.FindActive(ctx, core.ModelContentBased)
	if err != nil {
		if core.IsNotFound(err) {
			return "", core.NewDomainError(core.ModuleTrainer, core.ErrorCodePreconditionFailed,
				"trainer: no active content-based model found, train one first")
		}
		return "", err
	}
	cfModel, err := t.Models.FindActive(ctx, core.ModelCollaborative)
	if err != nil {
		if core.IsNotFound(err) {
			return "", core.NewDomainError(core.ModuleTrainer, core.ErrorCodePreconditionFailed,
				"trainer: no active collaborative filtering model found, train one first")
		}
		return "", err
	}

	contentWeight := conv.ParamFloat(job.Parameters, "content_weight", 0.5)
	cfWeight := conv.ParamFloat(job.Parameters, "collaborative_weight", 0.5)

	record := &core.ModelRecord{
		ID:          uuid.NewString(),
		Name:        job.ModelName,
		Type:        core.ModelHybrid,
		Description: "Hybrid model combining content-based and collaborative filtering",
		Parameters: map[string]any{
			"content_model_id":       contentModel.ID,
			"collaborative_model_id": cfModel.ID,
			"content_weight":         contentWeight,
			"collaborative_weight":   cfWeight,
		},
		Metrics: map[string]float64{
			"num_models_combined": 2,
		},
		TrainingJobID: job.ID,
	}
	if err := t.registerModel(ctx, record); err != nil {
		return "", err
	}
	return record.ID, nil
}
