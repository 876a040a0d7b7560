// Package decoder декодирует байты изображения в пиксельный буфер фиксированного порядка каналов
// и выполняет ресемплинг, кадрирование и подсчёт статистик по каналам.
// Все функции чистые и не хранят состояния между вызовами.
package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels ограничивает размер декодируемого изображения (примерно 8K x 8K).
const MaxPixels = 64 << 20

// Decode декодирует исходные байты. Формат определяется по сигнатуре.
// Возвращает ошибки, оборачивающие e.ErrPreprocess: неизвестный формат, повреждённые данные, пустой кадр.
func Decode(raw domain.RawImage) (*domain.DecodedImage, string, error) {
	const op = "decoder.Decode"

	if len(raw.Data) == 0 {
		return nil, "", e.Wrap(op, e.ErrEmptyImage)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw.Data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", e.Wrap(op, e.ErrUnsupportedFormat)
		}
		return nil, "", e.Wrap(op, fmt.Errorf("%w: %v", e.ErrPreprocess, err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, e.Wrap(op, e.ErrEmptyImage)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, format, e.Wrap(op, fmt.Errorf("%w: %dx%d exceeds pixel limit", e.ErrPreprocess, cfg.Width, cfg.Height))
	}

	img, _, err := image.Decode(bytes.NewReader(raw.Data))
	if err != nil {
		return nil, format, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrPreprocess, err))
	}

	decoded := FromImage(img)
	if decoded.Empty() {
		return nil, format, e.Wrap(op, e.ErrEmptyImage)
	}

	return decoded, format, nil
}

// FromImage переводит image.Image в DecodedImage.
// Полностью непрозрачные изображения хранятся в RGB, остальные в RGBA (без премультипликации).
func FromImage(img image.Image) *domain.DecodedImage {
	nrgba := imaging.Clone(img)
	return fromNRGBA(nrgba, !isOpaque(img, nrgba))
}

// ToNRGBA восстанавливает image.NRGBA из буфера. Для RGB альфа выставляется в 255.
func ToNRGBA(d *domain.DecodedImage) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, d.Width, d.Height))
	if d.Channels == 4 {
		copy(dst.Pix, d.Pix)
		return dst
	}

	for i, j := 0, 0; i < len(d.Pix); i, j = i+3, j+4 {
		dst.Pix[j] = d.Pix[i]
		dst.Pix[j+1] = d.Pix[i+1]
		dst.Pix[j+2] = d.Pix[i+2]
		dst.Pix[j+3] = 0xff
	}

	return dst
}

func fromNRGBA(src *image.NRGBA, keepAlpha bool) *domain.DecodedImage {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	channels := 3
	if keepAlpha {
		channels = 4
	}

	pix := make([]uint8, 0, w*h*channels)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		if keepAlpha {
			pix = append(pix, row...)
			continue
		}
		for x := 0; x < w*4; x += 4 {
			pix = append(pix, row[x], row[x+1], row[x+2])
		}
	}

	return domain.NewDecodedImage(w, h, channels, pix)
}

func isOpaque(src image.Image, nrgba *image.NRGBA) bool {
	if o, ok := src.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return nrgba.Opaque()
}

// Codec объединяет функции пакета для внедрения в сценарии.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Decode(raw domain.RawImage) (*domain.DecodedImage, string, error) {
	return Decode(raw)
}
