package vectormath

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"opposite floored to zero", []float64{1, 0}, []float64{-1, 0}, 0.0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0.0},
		{"shape mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0.0},
		{"empty", nil, nil, 0.0},
		{"scaled copies", []float64{1, 1}, []float64{5, 5}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > eps {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSymmetricAndBounded(t *testing.T) {
	a := []float64{0.3, -0.7, 1.2, 0.01}
	b := []float64{1.5, 0.4, -0.2, 0.9}

	ab := Cosine(a, b)
	ba := Cosine(b, a)
	if math.Abs(ab-ba) > eps {
		t.Errorf("对称性不成立: %v vs %v", ab, ba)
	}
	if ab < 0 || ab > 1 {
		t.Errorf("结果越界: %v", ab)
	}
}

func TestMean(t *testing.T) {
	got := Mean([][]float64{{1, 2}, {3, 4}})
	want := []float64{2, 3}
	for i := range want {
		if math.Abs(got[i]-want[i]) > eps {
			t.Errorf("Mean()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if Mean(nil) != nil {
		t.Error("空输入应返回 nil")
	}

	// 维度不一致的向量被跳过
	got = Mean([][]float64{{1, 1}, {9, 9, 9}, {3, 3}})
	want = []float64{2, 2}
	for i := range want {
		if math.Abs(got[i]-want[i]) > eps {
			t.Errorf("Mean()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDot(t *testing.T) {
	if got := Dot([]float64{1, 2, 3}, []float64{4, 5, 6}); got != 32 {
		t.Errorf("Dot() = %v, want 32", got)
	}
	if got := Dot([]float64{1}, []float64{1, 2}); got != 0 {
		t.Errorf("维度不一致应返回 0，实际 %v", got)
	}
}

func TestSigmoid(t *testing.T) {
	if got := Sigmoid(0); math.Abs(got-0.5) > eps {
		t.Errorf("Sigmoid(0) = %v, want 0.5", got)
	}
	if got := Sigmoid(10); got <= 0.999 {
		t.Errorf("Sigmoid(10) = %v, 应接近 1", got)
	}
	if got := Sigmoid(-10); got >= 0.001 {
		t.Errorf("Sigmoid(-10) = %v, 应接近 0", got)
	}
}
