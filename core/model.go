package core

import "time"

// ModelType 是模型类型，闭集。
type ModelType string

const (
	ModelContentBased  ModelType = "content_based"
	ModelCollaborative ModelType = "collaborative_filtering"
	ModelHybrid        ModelType = "hybrid"
)

// Valid 判断模型类型是否合法。
func (t ModelType) Valid() bool {
	switch t {
	case ModelContentBased, ModelCollaborative, ModelHybrid:
		return true
	}
	return false
}

// ModelRecord 是一次训练产出的模型元数据。
// 同一类型下最多只有一条记录 Active（由 registry.Registry 维护）。
type ModelRecord struct {
	ID            string
	Name          string
	Type          ModelType
	Description   string
	Parameters    map[string]any
	Metrics       map[string]float64
	Active        bool
	TrainingJobID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// JobStatus 是训练任务状态，闭集，只允许前向迁移。
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobComplete   JobStatus = "COMPLETE"
	JobFailed     JobStatus = "FAILED"
)

// Terminal 判断状态是否为终态。
func (s JobStatus) Terminal() bool {
	return s == JobComplete || s == JobFailed
}

// CanTransition 判断 s -> to 是否为合法迁移。
// 合法路径：PENDING → IN_PROGRESS → {COMPLETE, FAILED}；
// PENDING 直接 FAILED 也允许（提交后启动前出错）。
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobPending:
		return to == JobInProgress || to == JobFailed
	case JobInProgress:
		return to == JobComplete || to == JobFailed
	}
	return false
}

// TrainingJob 是一次训练任务的执行记录。
// 由 Submit 创建，只被 Trainer 修改，进入终态后不再变化。
type TrainingJob struct {
	ID          string
	ModelName   string
	ModelType   ModelType
	Status      JobStatus
	Progress    float64 // 0-100，活跃期间单调不减
	Message     string
	Error       string
	ModelID     string // COMPLETE 时非空
	Parameters  map[string]any
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Transition 将任务迁移到新状态，非法迁移返回 INVALID_INPUT。
func (j *TrainingJob) Transition(to JobStatus) error {
	if !j.Status.CanTransition(to) {
		return NewDomainError(ModuleTrainer, ErrorCodeInvalidInput,
			"training job: invalid transition "+string(j.Status)+" -> "+string(to))
	}
	j.Status = to
	if to.Terminal() {
		j.CompletedAt = time.Now().UTC()
	}
	return nil
}

// SetProgress 更新进度。仅 IN_PROGRESS 状态可更新，且不允许回退。
func (j *TrainingJob) SetProgress(p float64, message string) error {
	if j.Status != JobInProgress {
		return NewDomainError(ModuleTrainer, ErrorCodeInvalidInput,
			"training job: progress update on non-active job")
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if p < j.Progress {
		return NewDomainError(ModuleTrainer, ErrorCodeInvalidInput,
			"training job: progress must be non-decreasing")
	}
	j.Progress = p
	if message != "" {
		j.Message = message
	}
	return nil
}
