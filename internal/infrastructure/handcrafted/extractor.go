// Package handcrafted считает вектор признаков без обученной модели: статистики цвета, текстуры,
// формы и пространственного распределения яркости.
//
// Векторы этого пакета не сравнимы с векторами модели и не должны попадать в один индекс подобия.
package handcrafted

import (
	"fmt"
	"math"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/decoder"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
)

// family — одно семейство признаков фиксированной ширины.
type family struct {
	name    string
	width   int
	compute func(img *domain.DecodedImage) ([]float64, error)
}

// Segment описывает положение семейства в итоговом векторе.
type Segment struct {
	Name   string
	Offset int
	Width  int
}

// Extractor собирает семейства в один вектор длины domain.FeatureDim.
// Ошибка или паника в одном семействе обнуляет только его участок вектора.
type Extractor struct {
	families []family
	logger   logger.Logger
}

func NewExtractor(logger logger.Logger) *Extractor {
	return &Extractor{
		families: defaultFamilies(),
		logger:   logger,
	}
}

func defaultFamilies() []family {
	return []family{
		{name: "color_stats", width: colorStatsWidth, compute: colorStats},
		{name: "color_histogram", width: colorHistogramWidth, compute: colorHistogram},
		{name: "texture", width: textureWidth, compute: texture},
		{name: "shape", width: shapeWidth, compute: shape},
		{name: "intensity_histogram", width: intensityHistogramWidth, compute: intensityHistogram},
		{name: "spatial_regions", width: spatialRegionsWidth, compute: spatialRegions},
		{name: "color_variance", width: colorVarianceWidth, compute: colorVariance},
	}
}

// Segments возвращает раскладку семейств в векторе.
func (x *Extractor) Segments() []Segment {
	segments := make([]Segment, 0, len(x.families))
	offset := 0
	for _, f := range x.families {
		segments = append(segments, Segment{Name: f.name, Offset: offset, Width: f.width})
		offset += f.width
	}
	return segments
}

// Extract декодирует изображение и возвращает ненормированный вектор длины domain.FeatureDim.
// Ошибкой завершается только невозможность декодирования.
func (x *Extractor) Extract(raw domain.RawImage) ([]float32, error) {
	const op = "handcrafted.Extract"

	img, _, err := decoder.Decode(raw)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return x.ExtractDecoded(img), nil
}

// ExtractDecoded считает признаки уже декодированного изображения.
func (x *Extractor) ExtractDecoded(img *domain.DecodedImage) []float32 {
	features := make([]float32, 0, domain.FeatureDim)

	for _, f := range x.families {
		values, err := x.run(f, img)
		if err != nil {
			x.logger.Debugf("handcrafted family %s failed, using zeros: %v", f.name, err)
			features = append(features, make([]float32, f.width)...)
			continue
		}
		for _, v := range values {
			features = append(features, float32(v))
		}
	}

	return domain.FitDim(features)
}

// run вычисляет семейство и проверяет ширину результата. Паника превращается в ошибку.
func (x *Extractor) run(f family, img *domain.DecodedImage) (values []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			values, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	values, err = f.compute(img)
	if err != nil {
		return nil, err
	}
	if len(values) != f.width {
		return nil, fmt.Errorf("expected %d values, got %d", f.width, len(values))
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite value at %d", i)
		}
	}

	return values, nil
}
