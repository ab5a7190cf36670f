package trainer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cinekit/cinekit/core"
	"github.com/cinekit/cinekit/pkg/conv"
)

// TFIDFSourceName 是 TF-IDF 回退向量的 embedding_source 标识。
const TFIDFSourceName = "tfidf"

// trainContentBased 执行内容模型训练。
//
// 流程：读取目录 → 构造文本特征 → 计算向量（Embedder，失败回退 TF-IDF）
// → 按 (itemID, modelKey) 持久化 → 注册模型记录。
// 里程碑：10 读数据，20 备特征，30 算向量，70 落库。
func (t *Trainer) trainContentBased(ctx context.Context, job *core.TrainingJob) (string, error) {
	if err := t.setProgress(ctx, job, 10, "Loading movie data"); err != nil {
		return "", err
	}

	items, err := t.Items.FindAll(ctx)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", core.NewDomainError(core.ModuleTrainer, core.ErrorCodePreconditionFailed,
			"trainer: no items found, load a dataset first")
	}

	if err := t.setProgress(ctx, job, 20, "Preparing movie features"); err != nil {
		return "", err
	}

	useTitles := conv.ParamBool(job.Parameters, "use_titles", true)
	useGenres := conv.ParamBool(job.Parameters, "use_genres", true)

	texts := make([]string, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		text := itemText(item, useTitles, useGenres)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		ids = append(ids, item.ID)
	}
	if len(texts) == 0 {
		return "", core.NewDomainError(core.ModuleTrainer, core.ErrorCodePreconditionFailed,
			"trainer: no items with usable text features")
	}

	vectors, source, err := t.computeEmbeddings(ctx, job, texts)
	if err != nil {
		return "", err
	}

	if err := t.setProgress(ctx, job, 70, "Storing embeddings"); err != nil {
		return "", err
	}
	for i, id := range ids {
		if err := t.Items.UpdateEmbedding(ctx, id, source, core.Embedding{Vector: vectors[i]}); err != nil {
			return "", err
		}
		// 落库同样分块让路
		if (i+1)%t.Defaults.embedBatch() == 0 {
			if err := yield(ctx); err != nil {
				return "", err
			}
		}
	}

	dimension := 0
	if len(vectors) > 0 {
		dimension = len(vectors[0])
	}
	record := &core.ModelRecord{
		ID:          uuid.NewString(),
		Name:        job.ModelName,
		Type:        core.ModelContentBased,
		Description: fmt.Sprintf("Content-based model using %s", source),
		Parameters: map[string]any{
			"embedding_source": source,
			"use_titles":       useTitles,
			"use_genres":       useGenres,
		},
		Metrics: map[string]float64{
			"embedding_dimension": float64(dimension),
			"num_items":           float64(len(ids)),
		},
		TrainingJobID: job.ID,
	}
	if err := t.registerModel(ctx, record); err != nil {
		return "", err
	}
	return record.ID, nil
}

// itemText 构造物品的文本表示：标题 + 空格连接的类型词。
func itemText(item *core.Item, useTitles, useGenres bool) string {
	parts := make([]string, 0, 2)
	if useTitles && item.Title != "" {
		parts = append(parts, item.Title)
	}
	if useGenres && len(item.Genres) > 0 {
		parts = append(parts, strings.Join(item.Genres, " "))
	}
	return strings.Join(parts, " ")
}

// computeEmbeddings 计算文本向量，返回 (向量表, 来源标识)。
// Embedder 未配置或 Load 失败 → TF-IDF 回退，来源记录在模型参数里，
// 下游不需要重新探测用的是哪个来源。
func (t *Trainer) computeEmbeddings(ctx context.Context, job *core.TrainingJob, texts []string) ([][]float64, string, error) {
	if t.Embedder != nil {
		if err := t.Embedder.Load(ctx); err == nil {
			if err := t.setProgress(ctx, job, 30,
				"Computing embeddings using "+t.Embedder.Name()); err != nil {
				return nil, "", err
			}
			vectors, err := t.embedInBatches(ctx, texts)
			if err != nil {
				return nil, "", err
			}
			return vectors, t.Embedder.Name(), nil
		} else {
			t.logger().Warn("embedder unavailable, falling back to TF-IDF",
				zap.String("embedder", t.Embedder.Name()), zap.Error(err))
		}
	}

	if err := t.setProgress(ctx, job, 30, "Computing embeddings using TF-IDF"); err != nil {
		return nil, "", err
	}
	vectorizer := NewTFIDF(t.Defaults.tfidfFeatures())
	return vectorizer.FitTransform(texts), TFIDFSourceName, nil
}

// embedInBatches 按固定批大小调用 Embedder，批间让出调度。
func (t *Trainer) embedInBatches(ctx context.Context, texts []string) ([][]float64, error) {
	batchSize := t.Defaults.embedBatch()
	out := make([][]float64, 0, len(texts))

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := t.Embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vectors) != end-start {
			return nil, core.NewDomainError(core.ModuleTrainer, core.ErrorCodeInternalError,
				fmt.Sprintf("trainer: embedder returned %d vectors for %d texts", len(vectors), end-start))
		}
		out = append(out, vectors...)

		if err := yield(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}
