package imaging

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{G: 180, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDimensions(t *testing.T) {
	w, h, err := New().Dimensions(pngBytes(t, 40, 30))
	require.NoError(t, err)
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)

	_, _, err = New().Dimensions([]byte("not an image"))
	assert.Error(t, err)
}

func TestThumbnail(t *testing.T) {
	data, ct, err := New().Thumbnail(pngBytes(t, 400, 200), 100)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

// hugePNG is a signature plus a lone IHDR chunk declaring w x h RGBA pixels.
// DecodeConfig accepts it; a full decode would try to allocate w*h*4 bytes.
func hugePNG(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	body := make([]byte, 13)
	binary.BigEndian.PutUint32(body[0:4], w)
	binary.BigEndian.PutUint32(body[4:8], h)
	body[8] = 8 // bit depth
	body[9] = 6 // truecolor with alpha

	chunk := append([]byte("IHDR"), body...)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(body)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestThumbnailRejectsOversizedHeader(t *testing.T) {
	data := hugePNG(16000, 16000)

	w, h, err := New().Dimensions(data)
	require.NoError(t, err)
	assert.Equal(t, 16000, w)
	assert.Equal(t, 16000, h)

	_, _, err = New().Thumbnail(data, 160)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestThumbnailPixelBudget(t *testing.T) {
	small := &Inspector{MaxPixels: 100}
	_, _, err := small.Thumbnail(pngBytes(t, 40, 30), 10)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	roomy := &Inspector{MaxPixels: 1200}
	_, ct, err := roomy.Thumbnail(pngBytes(t, 40, 30), 10)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)
}

func TestFit(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"already small", 50, 20, 100, 50, 20},
		{"landscape", 400, 200, 100, 100, 50},
		{"portrait", 200, 400, 100, 50, 100},
		{"thin strip", 1000, 1, 100, 100, 1},
		{"no limit", 300, 300, 0, 300, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := fit(tt.w, tt.h, tt.max)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}
