package dsl

import (
	"testing"

	"github.com/cinekit/cinekit/core"
)

func TestFilterKeep(t *testing.T) {
	item := &core.Item{
		ID:     "m1",
		Title:  "Alien",
		Genres: []string{"Horror", "Sci-Fi"},
		Year:   1979,
	}

	tests := []struct {
		name    string
		expr    string
		score   float64
		want    bool
		wantErr bool
	}{
		{"empty expr keeps everything", "", 0.0, true, false},
		{"genre exclusion", `!("Horror" in item.genres)`, 0.5, false, false},
		{"genre match", `"Sci-Fi" in item.genres`, 0.5, true, false},
		{"year filter", "item.year >= 1990", 0.5, false, false},
		{"score filter", "score > 0.3", 0.5, true, false},
		{"combined", `item.year >= 1970 && score > 0.1`, 0.5, true, false},
		{"non-boolean result", "item.year", 0.5, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile(%q): %v", tt.expr, err)
			}
			got, err := f.Keep(item, tt.score)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Keep() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Keep() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompileInvalid(t *testing.T) {
	if _, err := Compile("item.year >=="); err == nil {
		t.Error("语法错误应在编译期返回")
	}
}

func TestCompileEmptyReturnsNil(t *testing.T) {
	f, err := Compile("")
	if err != nil {
		t.Fatalf("Compile(\"\"): %v", err)
	}
	if f != nil {
		t.Error("空表达式应返回 nil Filter")
	}
	if f.Expr() != "" {
		t.Error("nil Filter 的 Expr() 应为空")
	}
}
