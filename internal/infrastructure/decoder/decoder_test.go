package decoder

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode_PNG(t *testing.T) {
	data := solidPNG(t, 10, 5, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	img, format, err := Decode(domain.NewRawImage(data, ""))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 10, img.Width)
	assert.Equal(t, 5, img.Height)
	assert.Equal(t, 3, img.Channels)
	assert.Len(t, img.Pix, 10*5*3)

	r, g, b := img.RGB(3, 2)
	assert.Equal(t, [3]uint8{200, 100, 50}, [3]uint8{r, g, b})
}

func TestDecode_KeepsAlpha(t *testing.T) {
	data := solidPNG(t, 4, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 128})

	img, _, err := Decode(domain.NewRawImage(data, "png"))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Channels)
	assert.True(t, img.HasAlpha())
	assert.Equal(t, uint8(128), img.Pix[3])
}

func TestDecode_JPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 8))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	img, format, err := Decode(domain.NewRawImage(buf.Bytes(), ""))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 16, img.Width)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"Empty", nil, e.ErrEmptyImage},
		{"Garbage", []byte("definitely not an image"), e.ErrUnsupportedFormat},
		{"TruncatedPNG", solidPNG(t, 8, 8, color.Black)[:40], e.ErrPreprocess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(domain.NewRawImage(tt.data, ""))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, e.ErrPreprocess)
		})
	}
}

func TestResample(t *testing.T) {
	img, _, err := Decode(domain.NewRawImage(solidPNG(t, 100, 40, color.NRGBA{R: 255, A: 255}), ""))
	require.NoError(t, err)

	out, err := Resample(img, 32, 32)
	require.NoError(t, err)
	assert.Equal(t, 32, out.Width)
	assert.Equal(t, 32, out.Height)
	assert.Len(t, out.Pix, 32*32*3)

	r, g, b := out.RGB(16, 16)
	assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{r, g, b})

	_, err = Resample(img, 0, 10)
	assert.ErrorIs(t, err, e.ErrPreprocess)

	_, err = Resample(&domain.DecodedImage{}, 10, 10)
	assert.ErrorIs(t, err, e.ErrEmptyImage)
}

func TestCrop(t *testing.T) {
	img := domain.NewDecodedImage(4, 2, 3, []uint8{
		0, 0, 0, 10, 10, 10, 20, 20, 20, 30, 30, 30,
		40, 40, 40, 50, 50, 50, 60, 60, 60, 70, 70, 70,
	})

	out, err := Crop(img, image.Rect(2, 0, 4, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Width)
	assert.Equal(t, 2, out.Height)
	assert.Equal(t, []uint8{20, 20, 20, 30, 30, 30, 60, 60, 60, 70, 70, 70}, out.Pix)

	_, err = Crop(img, image.Rect(10, 10, 20, 20))
	assert.ErrorIs(t, err, e.ErrEmptyRegion)
}

func TestChannelStats(t *testing.T) {
	img := domain.NewDecodedImage(2, 1, 3, []uint8{0, 100, 50, 255, 100, 50})

	stats := ChannelStats(img)
	assert.InDelta(t, 127.5, stats[0].Mean, 1e-9)
	assert.InDelta(t, 127.5, stats[0].Std, 1e-9)
	assert.InDelta(t, 100, stats[1].Mean, 1e-9)
	assert.InDelta(t, 0, stats[1].Std, 1e-9)
	assert.InDelta(t, 50, stats[2].Mean, 1e-9)
}

func TestGray(t *testing.T) {
	img := domain.NewDecodedImage(2, 1, 4, []uint8{255, 255, 255, 0, 0, 0, 0, 255})

	gray := Gray(img)
	require.Len(t, gray, 2)
	assert.InDelta(t, 255, gray[0], 1e-9)
	assert.InDelta(t, 0, gray[1], 1e-9)
}

func TestToNRGBA_RoundTrip(t *testing.T) {
	img := domain.NewDecodedImage(1, 2, 3, []uint8{1, 2, 3, 4, 5, 6})

	nrgba := ToNRGBA(img)
	assert.Equal(t, []uint8{1, 2, 3, 255, 4, 5, 6, 255}, nrgba.Pix)
	assert.Equal(t, img, FromImage(nrgba))
}
