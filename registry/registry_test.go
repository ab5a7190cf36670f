package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/cinekit/cinekit/core"
	"github.com/cinekit/cinekit/store"
)

func TestActivateDeactivatesOthers(t *testing.T) {
	ctx := context.Background()
	models := store.NewMemoryModelStore()
	r := New(models, nil)

	_ = models.Insert(ctx, &core.ModelRecord{ID: "m1", Type: core.ModelContentBased, Active: true})
	_ = models.Insert(ctx, &core.ModelRecord{ID: "m2", Type: core.ModelContentBased})
	_ = models.Insert(ctx, &core.ModelRecord{ID: "m3", Type: core.ModelCollaborative, Active: true})

	got, err := r.Activate(ctx, "m2")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !got.Active {
		t.Error("目标模型应被激活")
	}

	// 同类型原激活记录被取消
	m1, _ := models.Find(ctx, "m1")
	if m1.Active {
		t.Error("同类型的前任激活记录应被取消")
	}
	// 其他类型不受影响
	m3, _ := models.Find(ctx, "m3")
	if !m3.Active {
		t.Error("其他类型的激活记录不应受影响")
	}
}

func TestActivateMissingModel(t *testing.T) {
	r := New(store.NewMemoryModelStore(), nil)
	if _, err := r.Activate(context.Background(), "ghost"); !core.IsNotFound(err) {
		t.Errorf("激活不存在的模型应返回 NotFound，实际 %v", err)
	}
}

// flakyModelStore 在激活目标的那次 Update 上注入失败。
type flakyModelStore struct {
	core.ModelStore
	failOnID string
}

func (s *flakyModelStore) Update(ctx context.Context, record *core.ModelRecord) error {
	if record.ID == s.failOnID && record.Active {
		return errors.New("write timeout")
	}
	return s.ModelStore.Update(ctx, record)
}

func TestActivateCompensatesOnFailure(t *testing.T) {
	ctx := context.Background()
	backing := store.NewMemoryModelStore()
	_ = backing.Insert(ctx, &core.ModelRecord{ID: "m1", Type: core.ModelContentBased, Active: true})
	_ = backing.Insert(ctx, &core.ModelRecord{ID: "m2", Type: core.ModelContentBased})

	r := New(&flakyModelStore{ModelStore: backing, failOnID: "m2"}, nil)

	if _, err := r.Activate(ctx, "m2"); err == nil {
		t.Fatal("激活应失败")
	}

	// 补偿更新：失败后前任仍是该类型唯一的激活记录
	active, err := backing.FindActive(ctx, core.ModelContentBased)
	if err != nil {
		t.Fatalf("补偿后应仍有激活模型: %v", err)
	}
	if active.ID != "m1" {
		t.Errorf("激活模型 = %s, want m1", active.ID)
	}
}

func TestActivateIfNone(t *testing.T) {
	ctx := context.Background()
	models := store.NewMemoryModelStore()
	r := New(models, nil)

	_ = models.Insert(ctx, &core.ModelRecord{ID: "m1", Type: core.ModelContentBased})
	if err := r.ActivateIfNone(ctx, "m1", core.ModelContentBased); err != nil {
		t.Fatalf("ActivateIfNone: %v", err)
	}
	m1, _ := models.Find(ctx, "m1")
	if !m1.Active {
		t.Error("首个模型应被自动激活")
	}

	// 已有激活模型时不抢占
	_ = models.Insert(ctx, &core.ModelRecord{ID: "m2", Type: core.ModelContentBased})
	if err := r.ActivateIfNone(ctx, "m2", core.ModelContentBased); err != nil {
		t.Fatalf("ActivateIfNone: %v", err)
	}
	m2, _ := models.Find(ctx, "m2")
	if m2.Active {
		t.Error("已有激活模型时不应抢占")
	}
}
