package decoder

import (
	"fmt"
	"image"
	"math"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/disintegration/imaging"
)

// ChannelStat — среднее и стандартное отклонение канала в шкале 0..255.
type ChannelStat struct {
	Mean float64
	Std  float64
}

// Resample приводит изображение к размеру width x height без сохранения пропорций (билинейный фильтр).
func Resample(img *domain.DecodedImage, width, height int) (*domain.DecodedImage, error) {
	return ResampleWith(img, width, height, imaging.Linear)
}

// ResampleWith приводит изображение к размеру width x height выбранным фильтром.
func ResampleWith(img *domain.DecodedImage, width, height int, filter imaging.ResampleFilter) (*domain.DecodedImage, error) {
	const op = "decoder.Resample"

	if img.Empty() {
		return nil, e.Wrap(op, e.ErrEmptyImage)
	}
	if width <= 0 || height <= 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: target size %dx%d", e.ErrPreprocess, width, height))
	}
	if img.Width == width && img.Height == height {
		return img, nil
	}

	resized := imaging.Resize(ToNRGBA(img), width, height, filter)
	return fromNRGBA(resized, img.HasAlpha()), nil
}

// Crop вырезает прямоугольник rect (в координатах изображения). Пересечение с пустым результатом — ошибка.
func Crop(img *domain.DecodedImage, rect image.Rectangle) (*domain.DecodedImage, error) {
	const op = "decoder.Crop"

	if img.Empty() {
		return nil, e.Wrap(op, e.ErrEmptyImage)
	}

	rect = rect.Intersect(image.Rect(0, 0, img.Width, img.Height))
	if rect.Empty() {
		return nil, e.Wrap(op, e.ErrEmptyRegion)
	}

	cropped := imaging.Crop(ToNRGBA(img), rect)
	return fromNRGBA(cropped, img.HasAlpha()), nil
}

// ChannelStats возвращает среднее и стандартное отклонение по каналам R, G, B.
func ChannelStats(img *domain.DecodedImage) [3]ChannelStat {
	var (
		sum   [3]float64
		sumSq [3]float64
		stats [3]ChannelStat
	)
	if img.Empty() {
		return stats
	}

	n := float64(img.Width * img.Height)
	for i := 0; i < len(img.Pix); i += img.Channels {
		for c := 0; c < 3; c++ {
			v := float64(img.Pix[i+c])
			sum[c] += v
			sumSq[c] += v * v
		}
	}

	for c := 0; c < 3; c++ {
		mean := sum[c] / n
		variance := sumSq[c]/n - mean*mean
		if variance < 0 {
			variance = 0
		}
		stats[c] = ChannelStat{Mean: mean, Std: math.Sqrt(variance)}
	}

	return stats
}

// Gray возвращает яркость каждого пикселя (0..255) построчно, веса ITU-R BT.601.
func Gray(img *domain.DecodedImage) []float64 {
	if img.Empty() {
		return nil
	}

	out := make([]float64, 0, img.Width*img.Height)
	for i := 0; i < len(img.Pix); i += img.Channels {
		out = append(out, Luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2]))
	}

	return out
}

func Luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}
