package jpegr

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

// linearRamp is interleaved linear RGB rising left to right up to peak,
// with a colour cast that changes from top to bottom.
func linearRamp(w, h int, peak float32) []float32 {
	pix := make([]float32, 3*w*h)
	for y := 0; y < h; y++ {
		t := float32(y) / float32(max(h-1, 1))
		for x := 0; x < w; x++ {
			l := 0.02 + peak*float32(x)/float32(max(w-1, 1))
			i := 3 * (y*w + x)
			pix[i] = l * (0.8 + 0.2*t)
			pix[i+1] = l
			pix[i+2] = l * (1 - 0.2*t)
		}
	}
	return pix
}

func flatLinear(w, h int, v float32) []float32 {
	pix := make([]float32, 3*w*h)
	for i := range pix {
		pix[i] = v
	}
	return pix
}

func testHDR(t testing.TB, w, h int, tf ColorTransfer) *UncompressedImage {
	t.Helper()
	img, err := P010FromLinear(w, h, linearRamp(w, h, 4), GamutBT2100, tf)
	require.NoError(t, err)
	return img
}

func sdrRamp(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(20 + 215*x/max(w-1, 1))
			m.SetNRGBA(x, y, color.NRGBA{R: v, G: uint8(int(v) * (h - y) / h), B: 128, A: 255})
		}
	}
	return m
}

func testSDR(t testing.TB, w, h int, g ColorGamut) *UncompressedImage {
	t.Helper()
	img, err := YUV420FromImage(sdrRamp(w, h), g)
	require.NoError(t, err)
	return img
}

func testJPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	data, err := NewStdCodec().Compress(testSDR(t, w, h, GamutBT709), 90)
	require.NoError(t, err)
	return data
}

func testGainMapJPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	gw, gh := GainMapSize(w, h)
	gm := NewUncompressedImage(gw, gh, PixelFormatGray8, GamutUnspecified)
	for i := range gm.Luma {
		gm.Luma[i] = uint8(i % 251)
	}
	data, err := NewStdCodec().Compress(gm, 85)
	require.NoError(t, err)
	return data
}

// failingCodec fails every call.
type failingCodec struct{ err error }

func (c failingCodec) Compress(*UncompressedImage, int) ([]byte, error) { return nil, c.err }
func (c failingCodec) Decompress([]byte) (*UncompressedImage, error)   { return nil, c.err }
