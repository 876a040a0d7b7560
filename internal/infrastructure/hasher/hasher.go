// Package hasher считает хэши изображений: криптографический хэш исходных байтов
// для поиска побайтных дубликатов и перцептивный dHash как дополнительный сигнал почти-дубликатов.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"image"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/decoder"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/corona10/goimagehash"
)

// ContentHash возвращает SHA-256 исходного буфера в hex.
// Никакой нормализации или ресемплинга до хэширования нет: пережатое изображение даст другой хэш.
func ContentHash(data []byte) domain.ContentHash {
	sum := sha256.Sum256(data)
	return domain.ContentHash(hex.EncodeToString(sum[:]))
}

// PerceptualHash считает разностный хэш (dHash) декодированного изображения.
func PerceptualHash(img image.Image) (string, error) {
	const op = "hasher.PerceptualHash"

	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", e.Wrap(op, err)
	}

	return hash.ToString(), nil
}

// PerceptualDistance возвращает расстояние Хэмминга между двумя dHash, полученными из PerceptualHash.
func PerceptualDistance(a, b string) (int, error) {
	const op = "hasher.PerceptualDistance"

	ha, err := goimagehash.ImageHashFromString(a)
	if err != nil {
		return 0, e.Wrap(op, err)
	}
	hb, err := goimagehash.ImageHashFromString(b)
	if err != nil {
		return 0, e.Wrap(op, err)
	}

	dist, err := ha.Distance(hb)
	if err != nil {
		return 0, e.Wrap(op, err)
	}

	return dist, nil
}

// Hasher объединяет функции пакета для внедрения в сценарии.
type Hasher struct{}

func NewHasher() *Hasher {
	return &Hasher{}
}

func (h *Hasher) ContentHash(data []byte) domain.ContentHash {
	return ContentHash(data)
}

// PerceptualHash считает dHash декодированного пиксельного буфера.
func (h *Hasher) PerceptualHash(img *domain.DecodedImage) (string, error) {
	const op = "Hasher.PerceptualHash"

	if img.Empty() {
		return "", e.Wrap(op, e.ErrEmptyImage)
	}
	return PerceptualHash(decoder.ToNRGBA(img))
}

func (h *Hasher) PerceptualDistance(a, b string) (int, error) {
	return PerceptualDistance(a, b)
}
