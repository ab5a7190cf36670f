// Package dsl 提供基于 CEL 的候选过滤表达式。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/cinekit/cinekit/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
	celEnvErr  error
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("score", cel.DoubleType),
	)
}

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Filter 是编译后的候选过滤规则，使用 CEL (Common Expression Language) 实现。
// 表达式对每个排好序的候选求值，返回 true 的候选被保留。
//
// 表达式语法（CEL 标准语法）：
//   - 类型过滤：!("Horror" in item.genres)
//   - 年份过滤：item.year >= 1990
//   - 分数过滤：score > 0.3
//   - 组合：item.year >= 1990 && score > 0.1
//
// 表达式在 Compile 时编译一次，Keep 可以被并发调用。
type Filter struct {
	expr string
	prg  cel.Program
}

// Compile 编译一条过滤表达式。空表达式返回 nil Filter（表示不过滤）。
func Compile(expr string) (*Filter, error) {
	if expr == "" {
		return nil, nil
	}

	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env error: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %v", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}

	return &Filter{expr: expr, prg: prg}, nil
}

// Expr 返回原始表达式文本。
func (f *Filter) Expr() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Keep 对单个候选求值。nil Filter 保留一切。
// 表达式运行出错（例如访问不存在的字段）时返回 error，由调用方决定降级策略。
func (f *Filter) Keep(item *core.Item, score float64) (bool, error) {
	if f == nil {
		return true, nil
	}

	out, _, err := f.prg.Eval(buildInput(item, score))
	if err != nil {
		return false, fmt.Errorf("eval error: %v", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(item *core.Item, score float64) map[string]any {
	genres := make([]any, 0, len(item.Genres))
	for _, g := range item.Genres {
		genres = append(genres, g)
	}

	return map[string]any{
		"item": map[string]any{
			"id":     item.ID,
			"title":  item.Title,
			"genres": genres,
			"year":   item.Year,
		},
		"score": score,
	}
}
