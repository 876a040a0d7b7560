// Package preprocess готовит декодированное изображение к подаче в модель.
package preprocess

import (
	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/decoder"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/disintegration/imaging"
)

const (
	// DefaultInputSize — сторона квадратного входа модели.
	DefaultInputSize = 224

	channels = 3
	mean     = 0.5
	std      = 0.5
)

// Preprocessor переводит изображение в тензор [1, 3, S, S] со значениями в [-1, 1].
type Preprocessor struct {
	size int
}

func NewPreprocessor(size int) *Preprocessor {
	if size <= 0 {
		size = DefaultInputSize
	}
	return &Preprocessor{size: size}
}

func (p *Preprocessor) InputSize() int {
	return p.size
}

// ToTensor масштабирует изображение до S x S, отбрасывает альфа-канал и раскладывает каналы
// в порядке (канал, строка, столбец). Каждое значение считается как (v/255 - 0.5) / 0.5.
func (p *Preprocessor) ToTensor(img *domain.DecodedImage) (*domain.Tensor, error) {
	const op = "Preprocessor.ToTensor"

	if img.Empty() {
		return nil, e.Wrap(op, e.ErrEmptyImage)
	}

	resized, err := decoder.ResampleWith(img, p.size, p.size, imaging.CatmullRom)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	plane := p.size * p.size
	data := make([]float32, channels*plane)
	for i := 0; i < plane; i++ {
		px := i * resized.Channels
		for c := 0; c < channels; c++ {
			v := float32(resized.Pix[px+c]) / 255
			data[c*plane+i] = (v - mean) / std
		}
	}

	shape := []int64{1, channels, int64(p.size), int64(p.size)}
	return domain.NewTensor(shape, data), nil
}
