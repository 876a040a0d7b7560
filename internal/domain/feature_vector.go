package domain

import (
	"math"

	"github.com/hupe1980/vecgo/distance"
)

// FeatureDim — фиксированная длина отпечатка независимо от способа извлечения.
const FeatureDim = 256

// FeatureVector — L2-нормированный вектор признаков длины FeatureDim.
// Норма равна 1, либо вектор целиком нулевой.
type FeatureVector []float32

// NewFeatureVector приводит произвольный вектор к длине FeatureDim (обрезка или дополнение нулями)
// и нормирует его по L2. Исходный срез не изменяется.
func NewFeatureVector(raw []float32) FeatureVector {
	return Normalize(FitDim(raw))
}

// FitDim возвращает копию raw длины FeatureDim: лишние значения отбрасываются, недостающие заполняются нулями.
func FitDim(raw []float32) []float32 {
	out := make([]float32, FeatureDim)
	copy(out, raw)
	return out
}

// Normalize выполняет L2-нормировку. Сумма квадратов считается в float64,
// иначе на 256 компонентах float32 норма уходит за 1e-6 от единицы.
// Нулевой вектор (и вектор с NaN/Inf) возвращается нулевым.
func Normalize(v []float32) FeatureVector {
	out := make(FeatureVector, len(v))

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return out
	}

	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}

	return out
}

// Norm возвращает евклидову норму вектора.
func (v FeatureVector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func (v FeatureVector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Cosine возвращает косинусную близость двух нормированных векторов.
// Для векторов единичной длины она совпадает со скалярным произведением.
func (v FeatureVector) Cosine(other FeatureVector) float32 {
	if len(v) != len(other) {
		return 0
	}
	return distance.Dot(v, other)
}

// Float32 возвращает вектор в виде []float32 для клиентов индекса.
func (v FeatureVector) Float32() []float32 {
	return []float32(v)
}
