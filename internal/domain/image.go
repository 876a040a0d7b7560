package domain

// RawImage — исходные байты изображения и заявленный или определённый по сигнатуре формат.
// Буфер принадлежит вызывающему и не изменяется конвейером.
type RawImage struct {
	Data   []byte
	Format string // "jpeg", "png", "webp"... пусто, если формат ещё не определён
}

func NewRawImage(data []byte, format string) RawImage {
	return RawImage{
		Data:   data,
		Format: format,
	}
}

// DecodedImage — декодированный пиксельный буфер.
// Pix хранится построчно, порядок каналов фиксирован: R, G, B[, A].
type DecodedImage struct {
	Width    int
	Height   int
	Channels int // 3 (RGB) или 4 (RGBA)
	Pix      []uint8
}

func NewDecodedImage(width, height, channels int, pix []uint8) *DecodedImage {
	return &DecodedImage{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      pix,
	}
}

// Empty сообщает, что у изображения нет ни одного пикселя.
func (d *DecodedImage) Empty() bool {
	return d == nil || d.Width <= 0 || d.Height <= 0
}

func (d *DecodedImage) HasAlpha() bool {
	return d.Channels == 4
}

// RGB возвращает цветовые компоненты пикселя (x, y) без альфа-канала.
func (d *DecodedImage) RGB(x, y int) (r, g, b uint8) {
	i := (y*d.Width + x) * d.Channels
	return d.Pix[i], d.Pix[i+1], d.Pix[i+2]
}

// Image описывает оригинал изображения, который хранится в S3
type Image struct {
	Bucket    string
	ObjectKey string
	Bytes     []byte
	// Передайте значение -1 в Size, если размер потока неизвестен
	// (внимание: при передаче значения -1 будет выделен большой объем памяти).
	Size        int64
	ContentType string            // Example: "image/jpeg"
	Metadata    map[string]string // пользовательские метаданные объекта
}

func NewImage(bucket string, objectKey string, data []byte, contentType string) *Image {
	return &Image{
		Bucket:      bucket,
		ObjectKey:   objectKey,
		Bytes:       data,
		Size:        int64(len(data)),
		ContentType: contentType,
		Metadata:    map[string]string{},
	}
}
