package trainer

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/cinekit/cinekit/core"
	"github.com/cinekit/cinekit/embedding"
	"github.com/cinekit/cinekit/pkg/conv"
	"github.com/cinekit/cinekit/pkg/vectormath"
)

// rating 是一条训练样本：稠密下标 + 归一化评分。
type rating struct {
	user  int
	item  int
	value float64
}

// mfModel 是带偏置的矩阵分解模型。
//
// 预测：sigmoid(dot(P_u, Q_i) + b_u + b_i)，P/Q 为学习的 embedding 表。
// 评分先归一化到 [0,1] 再对 sigmoid 输出做 MSE，mini-batch 梯度下降 + L2 正则。
type mfModel struct {
	userFactors [][]float64
	itemFactors [][]float64
	userBias    []float64
	itemBias    []float64
	factors     int
}

func newMFModel(numUsers, numItems, factors int, rng *rand.Rand) *mfModel {
	m := &mfModel{
		userFactors: make([][]float64, numUsers),
		itemFactors: make([][]float64, numItems),
		userBias:    make([]float64, numUsers),
		itemBias:    make([]float64, numItems),
		factors:     factors,
	}
	// 小随机初始化，尺度随维度收缩，避免 sigmoid 一开始就饱和
	scale := 1.0 / math.Sqrt(float64(factors))
	for u := range m.userFactors {
		m.userFactors[u] = randomVector(factors, scale, rng)
	}
	for i := range m.itemFactors {
		m.itemFactors[i] = randomVector(factors, scale, rng)
	}
	return m
}

func randomVector(n int, scale float64, rng *rand.Rand) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.NormFloat64() * scale
	}
	return v
}

func (m *mfModel) predict(u, i int) float64 {
	return vectormath.Sigmoid(vectormath.Dot(m.userFactors[u], m.itemFactors[i]) +
		m.userBias[u] + m.itemBias[i])
}

// trainEpoch 跑一个 epoch 的 mini-batch SGD，返回 (平均 MSE, 平均绝对误差)。
// 样本顺序每个 epoch 重新洗牌。
func (m *mfModel) trainEpoch(samples []rating, batchSize int, lr, reg float64, rng *rand.Rand) (float64, float64) {
	rng.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})

	var sumSq, sumAbs float64
	for start := 0; start < len(samples); start += batchSize {
		end := start + batchSize
		if end > len(samples) {
			end = len(samples)
		}

		for _, s := range samples[start:end] {
			pred := m.predict(s.user, s.item)
			err := pred - s.value
			sumSq += err * err
			sumAbs += math.Abs(err)

			// dL/dz 对 sigmoid 输入的梯度：2*err*pred*(1-pred)
			grad := 2 * err * pred * (1 - pred)

			pu, qi := m.userFactors[s.user], m.itemFactors[s.item]
			for f := 0; f < m.factors; f++ {
				du := grad*qi[f] + reg*pu[f]
				di := grad*pu[f] + reg*qi[f]
				pu[f] -= lr * du
				qi[f] -= lr * di
			}
			m.userBias[s.user] -= lr * grad
			m.itemBias[s.item] -= lr * grad
		}
	}

	n := float64(len(samples))
	return sumSq / n, sumAbs / n
}

// trainCollaborative 执行协同过滤矩阵分解训练。
//
// 流程：读评分 → 建稠密下标映射 → 归一化评分 → 分块 epoch 训练
// （进度 40→90，每 ~10% epoch 上报一次并让出调度）→
// 把物品向量和偏置按 collaborative_<modelID> 落库，与内容向量共用同一套读取与排序机制。
func (t *Trainer) trainCollaborative(ctx context.Context, job *core.TrainingJob) (string, error) {
	if err := t.setProgress(ctx, job, 10, "Loading ratings data"); err != nil {
		return "", err
	}

	factors := conv.ParamInt(job.Parameters, "n_factors", t.Defaults.factors())
	epochs := conv.ParamInt(job.Parameters, "n_epochs", t.Defaults.epochs())
	lr := conv.ParamFloat(job.Parameters, "learning_rate", t.Defaults.learningRate())
	reg := conv.ParamFloat(job.Parameters, "regularization", t.Defaults.regularization())
	batchSize := conv.ParamInt(job.Parameters, "batch_size", t.Defaults.batchSize())

	interactions, err := t.Interactions.FindAll(ctx, core.InteractionFilter{Type: core.InteractionRate})
	if err != nil {
		return "", err
	}
	if len(interactions) == 0 {
		return "", core.NewDomainError(core.ModuleTrainer, core.ErrorCodePreconditionFailed,
			"trainer: no ratings found, load a dataset first")
	}

	if err := t.setProgress(ctx, job, 20, "Preparing training data"); err != nil {
		return "", err
	}

	// 稠密下标映射：首次出现即分配，itemIndex 的逆映射落库时用
	userIndex := make(map[string]int)
	itemIndex := make(map[string]int)
	itemIDs := make([]string, 0)
	samples := make([]rating, 0, len(interactions))

	ratingMin, ratingMax := t.Defaults.ratingMin(), t.Defaults.ratingMax()
	ratingSpan := ratingMax - ratingMin

	for _, in := range interactions {
		u, ok := userIndex[in.UserID]
		if !ok {
			u = len(userIndex)
			userIndex[in.UserID] = u
		}
		i, ok := itemIndex[in.ItemID]
		if !ok {
			i = len(itemIndex)
			itemIndex[in.ItemID] = i
			itemIDs = append(itemIDs, in.ItemID)
		}

		// 评分归一化到 [0,1]，与 sigmoid 输出同域
		value := (in.Value - ratingMin) / ratingSpan
		if value < 0 {
			value = 0
		}
		if value > 1 {
			value = 1
		}
		samples = append(samples, rating{user: u, item: i, value: value})
	}

	if err := t.setProgress(ctx, job, 30, "Building model"); err != nil {
		return "", err
	}
	rng := rand.New(rand.NewSource(int64(len(samples))))
	model := newMFModel(len(userIndex), len(itemIndex), factors, rng)

	if err := t.setProgress(ctx, job, 40, "Training model"); err != nil {
		return "", err
	}

	// 分块训练：每块 ~10% 的 epoch，块间上报进度并让出调度
	epochsPerChunk := epochs / 10
	if epochsPerChunk < 1 {
		epochsPerChunk = 1
	}

	var finalLoss, finalMAE float64
	for done := 0; done < epochs; {
		chunk := epochsPerChunk
		if done+chunk > epochs {
			chunk = epochs - done
		}
		for e := 0; e < chunk; e++ {
			finalLoss, finalMAE = model.trainEpoch(samples, batchSize, lr, reg, rng)
		}
		done += chunk

		progress := 40 + 50*float64(done)/float64(epochs)
		if err := t.setProgress(ctx, job, progress,
			fmt.Sprintf("Training epoch %d/%d", done, epochs)); err != nil {
			return "", err
		}
		if err := yield(ctx); err != nil {
			return "", err
		}
	}

	record := &core.ModelRecord{
		ID:          uuid.NewString(),
		Name:        job.ModelName,
		Type:        core.ModelCollaborative,
		Description: "Collaborative filtering matrix factorization model",
		Parameters: map[string]any{
			"n_factors":      factors,
			"n_epochs":       epochs,
			"learning_rate":  lr,
			"regularization": reg,
			"batch_size":     batchSize,
		},
		Metrics: map[string]float64{
			"final_loss":  finalLoss,
			"final_mae":   finalMAE,
			"num_users":   float64(len(userIndex)),
			"num_items":   float64(len(itemIndex)),
			"num_ratings": float64(len(samples)),
		},
		TrainingJobID: job.ID,
	}

	if err := t.setProgress(ctx, job, 90, "Storing movie embeddings"); err != nil {
		return "", err
	}

	// 物品向量+偏置按独立模型键落库，推荐侧与内容向量走同一套机制
	modelKey := embedding.CollaborativeModelKey(record.ID)
	for i, itemID := range itemIDs {
		emb := core.Embedding{
			Vector:  model.itemFactors[i],
			Bias:    model.itemBias[i],
			HasBias: true,
		}
		if err := t.Items.UpdateEmbedding(ctx, itemID, modelKey, emb); err != nil {
			return "", err
		}
		if (i+1)%100 == 0 {
			if err := yield(ctx); err != nil {
				return "", err
			}
		}
	}

	if err := t.registerModel(ctx, record); err != nil {
		return "", err
	}
	return record.ID, nil
}
