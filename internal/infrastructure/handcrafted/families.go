package handcrafted

import (
	"image"
	"math"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/decoder"
)

const (
	colorStatsWidth         = 6
	colorHistogramWidth     = 3 * colorBins
	textureWidth            = 3
	shapeWidth              = 2
	intensityHistogramWidth = grayBins
	spatialRegionsWidth     = 5
	colorVarianceWidth      = 3

	colorBins = 16
	grayBins  = 32

	// Размеры ресемплинга по семействам
	colorStatsSize    = 128
	colorHistSize     = 64
	textureSize       = 128
	edgeSize          = 64
	intensityHistSize = 64
	regionSize        = 32
	colorVarianceSize = 64

	// edgeThreshold — порог разницы яркостей соседних пикселей (шкала 0..255)
	edgeThreshold = 30
	maxIntensity  = 255.0
)

// colorStats: среднее и стандартное отклонение каналов R, G, B в шкале [0,1].
func colorStats(img *domain.DecodedImage) ([]float64, error) {
	small, err := decoder.Resample(img, colorStatsSize, colorStatsSize)
	if err != nil {
		return nil, err
	}

	stats := decoder.ChannelStats(small)
	out := make([]float64, 0, colorStatsWidth)
	for _, s := range stats {
		out = append(out, s.Mean/maxIntensity, s.Std/maxIntensity)
	}

	return out, nil
}

// colorHistogram: 16 корзин на канал, каждая нормирована числом пикселей.
func colorHistogram(img *domain.DecodedImage) ([]float64, error) {
	small, err := decoder.Resample(img, colorHistSize, colorHistSize)
	if err != nil {
		return nil, err
	}

	out := make([]float64, colorHistogramWidth)
	for i := 0; i < len(small.Pix); i += small.Channels {
		for c := 0; c < 3; c++ {
			out[c*colorBins+bin(float64(small.Pix[i+c]), colorBins)]++
		}
	}

	n := float64(small.Width * small.Height)
	for i := range out {
		out[i] /= n
	}

	return out, nil
}

// texture: средняя величина градиента, средний локальный контраст (3x3) и энтропия яркости.
func texture(img *domain.DecodedImage) ([]float64, error) {
	small, err := decoder.Resample(img, textureSize, textureSize)
	if err != nil {
		return nil, err
	}

	w, h := small.Width, small.Height
	gray := decoder.Gray(small)

	var gradSum float64
	for y := 0; y < h-1; y++ {
		for x := 0; x < w-1; x++ {
			p := gray[y*w+x]
			gx := gray[y*w+x+1] - p
			gy := gray[(y+1)*w+x] - p
			gradSum += math.Sqrt(gx*gx + gy*gy)
		}
	}
	gradient := gradSum / float64(w*h) / maxIntensity

	return []float64{gradient, localContrast(gray, w, h), entropy(histogram(gray, grayBins))}, nil
}

// localContrast — среднее стандартное отклонение яркости в окне 3x3 по внутренним пикселям, в шкале [0,1].
func localContrast(gray []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}

	var total float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var sum, sumSq float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					v := gray[(y+dy)*w+x+dx]
					sum += v
					sumSq += v * v
				}
			}
			mean := sum / 9
			variance := sumSq/9 - mean*mean
			if variance > 0 {
				total += math.Sqrt(variance)
			}
		}
	}

	return total / float64((w-2)*(h-2)) / maxIntensity
}

// entropy — энтропия Шеннона нормированной гистограммы, делённая на log2(числа корзин).
func entropy(hist []float64) float64 {
	var h float64
	for _, p := range hist {
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h / math.Log2(float64(len(hist)))
}

// shape: соотношение сторон исходного изображения и плотность границ на уменьшенной копии.
func shape(img *domain.DecodedImage) ([]float64, error) {
	aspect := float64(img.Width) / float64(img.Height)

	small, err := decoder.Resample(img, edgeSize, edgeSize)
	if err != nil {
		return nil, err
	}

	w, h := small.Width, small.Height
	gray := decoder.Gray(small)

	var edges, pairs int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := gray[y*w+x]
			if x+1 < w {
				pairs++
				if math.Abs(gray[y*w+x+1]-p) > edgeThreshold {
					edges++
				}
			}
			if y+1 < h {
				pairs++
				if math.Abs(gray[(y+1)*w+x]-p) > edgeThreshold {
					edges++
				}
			}
		}
	}

	density := 0.0
	if pairs > 0 {
		density = float64(edges) / float64(pairs)
	}

	return []float64{aspect, density}, nil
}

// intensityHistogram: 32 корзины яркости, нормированные числом пикселей.
func intensityHistogram(img *domain.DecodedImage) ([]float64, error) {
	small, err := decoder.Resample(img, intensityHistSize, intensityHistSize)
	if err != nil {
		return nil, err
	}

	return histogram(decoder.Gray(small), grayBins), nil
}

// spatialRegions: средняя нормированная яркость четырёх квадрантов и центральной области
// половинного размера. Каждая область вырезается из исходника и ресемплится отдельно.
func spatialRegions(img *domain.DecodedImage) ([]float64, error) {
	w, h := img.Width, img.Height
	regions := []image.Rectangle{
		image.Rect(0, 0, w/2, h/2),
		image.Rect(w/2, 0, w, h/2),
		image.Rect(0, h/2, w/2, h),
		image.Rect(w/2, h/2, w, h),
		image.Rect(w/4, h/4, w/4+w/2, h/4+h/2),
	}

	out := make([]float64, 0, spatialRegionsWidth)
	for _, r := range regions {
		region, err := decoder.Crop(img, r)
		if err != nil {
			return nil, err
		}
		region, err = decoder.Resample(region, regionSize, regionSize)
		if err != nil {
			return nil, err
		}
		out = append(out, mean(decoder.Gray(region))/maxIntensity)
	}

	return out, nil
}

// colorVariance: дисперсия E[x²] − E[x]² каждого канала по значениям в [0,1].
func colorVariance(img *domain.DecodedImage) ([]float64, error) {
	small, err := decoder.Resample(img, colorVarianceSize, colorVarianceSize)
	if err != nil {
		return nil, err
	}

	var sum, sumSq [3]float64
	for i := 0; i < len(small.Pix); i += small.Channels {
		for c := 0; c < 3; c++ {
			v := float64(small.Pix[i+c]) / maxIntensity
			sum[c] += v
			sumSq[c] += v * v
		}
	}

	n := float64(small.Width * small.Height)
	out := make([]float64, 0, colorVarianceWidth)
	for c := 0; c < 3; c++ {
		m := sum[c] / n
		out = append(out, math.Max(sumSq[c]/n-m*m, 0))
	}

	return out, nil
}

func histogram(values []float64, bins int) []float64 {
	hist := make([]float64, bins)
	if len(values) == 0 {
		return hist
	}
	for _, v := range values {
		hist[bin(v, bins)]++
	}
	for i := range hist {
		hist[i] /= float64(len(values))
	}
	return hist
}

// bin относит значение 0..255 к одной из bins корзин равной ширины.
func bin(v float64, bins int) int {
	b := int(v * float64(bins) / 256)
	if b < 0 {
		return 0
	}
	if b >= bins {
		return bins - 1
	}
	return b
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
