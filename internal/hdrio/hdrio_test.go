package hdrio

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{
		"a.exr":     FormatEXR,
		"dir/b.HDR": FormatRGBE,
		"c.rgbe":    FormatRGBE,
		"d.pic":     FormatRGBE,
		"e.tif":     FormatTIFF,
		"f.TIFF":    FormatTIFF,
	} {
		got, err := FormatOf(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatOf("photo.png")
	assert.Error(t, err)
}

func TestImageClampsAt(t *testing.T) {
	m := NewImage(2, 2)
	m.Set(1, 1, 1, 2, 3)

	r, g, b := m.At(5, 9)
	assert.Equal(t, [3]float32{1, 2, 3}, [3]float32{r, g, b})
	r, g, b = m.At(-1, -1)
	assert.Equal(t, [3]float32{0, 0, 0}, [3]float32{r, g, b})
}

func TestHDRRoundTrip(t *testing.T) {
	m := NewImage(3, 2)
	m.Set(0, 0, 0.5, 1.5, 12)
	m.Set(2, 1, 100, 0, 0.25)

	back := FromHDR(m.ToHDR())
	assert.Equal(t, m, back)
}

func TestRGBERoundTrip(t *testing.T) {
	m := NewImage(8, 4)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			m.Set(x, y, 0.5+float32(x), 1+float32(y)*0.5, 8)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeRGBE(&buf, m))

	back, err := DecodeRGBE(&buf)
	require.NoError(t, err)
	require.Equal(t, m.Width, back.Width)
	require.Equal(t, m.Height, back.Height)
	for i, v := range m.Pix {
		assert.InEpsilon(t, v, back.Pix[i], 0.02, "sample %d", i)
	}
}

func TestDecodeTIFF(t *testing.T) {
	src := image.NewRGBA64(image.Rect(0, 0, 4, 3))
	src.SetRGBA64(1, 2, color.RGBA64{R: 0xffff, G: 0x8000, B: 0, A: 0xffff})

	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, src, &tiff.Options{Compression: tiff.Deflate}))

	m, err := DecodeTIFF(&buf)
	require.NoError(t, err)
	r, g, b := m.At(1, 2)
	assert.Equal(t, float32(1), r)
	assert.InDelta(t, 0.5, g, 1e-4)
	assert.Zero(t, b)

	_, err = DecodeTIFF(bytes.NewReader([]byte("II*\x00junk")))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	exr := filepath.Join(dir, "ramp.exr")
	require.NoError(t, os.WriteFile(exr, writeEXR(exrSpec{
		width: 4, height: 2, pixelType: exrPixelHalf, compression: exrCompressionZip,
		channels: []string{"B", "G", "R"}, value: rgbValue,
	}), 0o600))

	m, err := Load(exr)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Width)

	_, err = Load(filepath.Join(dir, "missing.hdr"))
	assert.Error(t, err)

	_, err = Decode(nil, Format("png"))
	assert.Error(t, err)
}
