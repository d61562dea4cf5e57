package domain

import "math"

const (
	TextVectorDim   = 768
	VisualVectorDim = 512
)

// Vector — эмбеддинг. nil означает отсутствие сигнала.
type Vector []float32

// IsZero сообщает, что вектор пустой или состоит из нулей.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}

	return true
}

// Usable — вектор ровно нужной размерности и не нулевой.
func (v Vector) Usable(dim int) bool {
	return len(v) == dim && !v.IsZero()
}

// NormalizeVector приводит вектор к размерности dim: короткий дополняется нулями,
// длинный обрезается, пустой становится нулевым. NaN и Inf заменяются нулями.
// repaired = true, если вектор пришлось менять.
func NormalizeVector(v Vector, dim int) (out Vector, repaired bool) {
	out = make(Vector, dim)
	n := copy(out, v)
	repaired = len(v) != dim

	for i := 0; i < n; i++ {
		f := float64(out[i])
		if math.IsNaN(f) || math.IsInf(f, 0) {
			out[i] = 0
			repaired = true
		}
	}

	return out, repaired
}

// SimilarityFromDistance переводит косинусное расстояние [0,2] в оценку [0,1].
func SimilarityFromDistance(d float64) float64 {
	if math.IsNaN(d) {
		return 0
	}

	return clamp01(1 - d)
}

// CosineDistance возвращает 1 - cos(a, b). Для нулевых векторов расстояние равно 1.
func CosineDistance(a, b Vector) float64 {
	n := min(len(a), len(b))

	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}

	if na == 0 || nb == 0 {
		return 1
	}

	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
