package jpegr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateGainMapDimensions(t *testing.T) {
	for _, tc := range []struct{ w, h int }{
		{w: 8, h: 8},
		{w: 30, h: 18},
		{w: 64, h: 34},
		{w: 2, h: 2},
	} {
		hdr := testHDR(t, tc.w, tc.h, TransferHLG)
		sdr := testSDR(t, tc.w, tc.h, GamutBT709)
		meta := MetadataForTransfer(TransferHLG)

		gm, err := generateGainMap(hdr, sdr, TransferHLG, &meta, 0)
		require.NoError(t, err)

		wantW, wantH := GainMapSize(tc.w, tc.h)
		assert.Equal(t, wantW, gm.Width)
		assert.Equal(t, wantH, gm.Height)
		assert.Equal(t, PixelFormatGray8, gm.Format)

		realW, realH := ceilDiv(tc.w, 4), ceilDiv(tc.h, 4)
		for y := 0; y < gm.Height; y++ {
			for x := realW; x < gm.Width; x++ {
				assert.Equal(t, gm.Luma[y*gm.Width+realW-1], gm.Luma[y*gm.Width+x], "padding at %d,%d", x, y)
			}
		}
		for y := realH; y < gm.Height; y++ {
			assert.Equal(t, gm.Luma[(realH-1)*gm.Width:realH*gm.Width], gm.Luma[y*gm.Width:(y+1)*gm.Width])
		}
	}
}

func TestGenerateGainMapWorkersDeterministic(t *testing.T) {
	hdr := testHDR(t, 96, 40, TransferPQ)
	sdr := testSDR(t, 96, 40, GamutDisplayP3)
	meta := MetadataForTransfer(TransferPQ)

	single, err := generateGainMap(hdr, sdr, TransferPQ, &meta, 1)
	require.NoError(t, err)
	for _, workers := range []int{2, 3, 7, 0} {
		gm, err := generateGainMap(hdr, sdr, TransferPQ, &meta, workers)
		require.NoError(t, err)
		assert.Equal(t, single.Luma, gm.Luma, "workers %d", workers)
	}
}

func TestGenerateGainMapInvalid(t *testing.T) {
	hdr := testHDR(t, 16, 16, TransferHLG)
	sdr := testSDR(t, 16, 16, GamutBT709)
	meta := MetadataForTransfer(TransferHLG)

	_, err := generateGainMap(hdr, testSDR(t, 16, 8, GamutBT709), TransferHLG, &meta, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument, "dimension mismatch")

	_, err = generateGainMap(hdr, sdr, TransferSRGB, &meta, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument, "sdr transfer")

	noGamut := *sdr
	noGamut.Gamut = GamutUnspecified
	_, err = generateGainMap(hdr, &noGamut, TransferHLG, &meta, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument, "unspecified gamut")

	odd := *hdr
	odd.Width = 15
	_, err = generateGainMap(&odd, sdr, TransferHLG, &meta, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument, "odd width")

	short := *hdr
	short.Luma = short.Luma[:10]
	_, err = generateGainMap(&short, sdr, TransferHLG, &meta, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument, "short buffer")

	_, err = generateGainMap(hdr, sdr, TransferHLG, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument, "missing metadata")
}

func decodeLinear(t *testing.T, base, gm *UncompressedImage, meta *GainMapMetadata, boost float32) *UncompressedImage {
	t.Helper()
	dst := NewUncompressedImage(base.Width, base.Height, PixelFormatRGBAHalfFloat, GamutUnspecified)
	require.NoError(t, applyGainMap(base, gm, meta, DecodeOptions{Boost: boost, Format: OutputHDRLinear}, dst, 0))
	return dst
}

func TestGainMapRoundTripFlat(t *testing.T) {
	for _, tf := range []ColorTransfer{TransferHLG, TransferPQ} {
		t.Run(tf.String(), func(t *testing.T) {
			const w, h, level = 16, 12, 3.0
			hdr, err := P010FromLinear(w, h, flatLinear(w, h, level), GamutBT2100, tf)
			require.NoError(t, err)
			meta := MetadataForTransfer(tf)
			sdr := deriveSDR(hdr, tf, meta.MaxContentBoost, 0)

			gm, err := generateGainMap(hdr, sdr, tf, &meta, 0)
			require.NoError(t, err)
			for _, v := range gm.Luma {
				assert.Equal(t, gm.Luma[0], v, "flat input gives a flat map")
			}

			out := decodeLinear(t, sdr, gm, &meta, meta.MaxContentBoost)
			for y := 0; y < h; y += 3 {
				for x := 0; x < w; x += 5 {
					r, g, b, a := RGBAHalfAt(out, x, y)
					assert.InEpsilon(t, level, r, 0.05)
					assert.InEpsilon(t, level, g, 0.05)
					assert.InEpsilon(t, level, b, 0.05)
					assert.Equal(t, float32(1), a)
				}
			}
		})
	}
}

func TestApplyGainMapBoost(t *testing.T) {
	const w, h = 128, 16
	hdr := testHDR(t, w, h, TransferHLG)
	meta := MetadataForTransfer(TransferHLG)
	sdr := deriveSDR(hdr, TransferHLG, meta.MaxContentBoost, 0)
	gm, err := generateGainMap(hdr, sdr, TransferHLG, &meta, 0)
	require.NoError(t, err)

	boosts := []float32{1, 1.5, 2, 3, meta.MaxContentBoost}
	outs := make([]*UncompressedImage, len(boosts))
	for i, b := range boosts {
		outs[i] = decodeLinear(t, sdr, gm, &meta, b)
	}

	t.Run("monotonic", func(t *testing.T) {
		for i := 1; i < len(outs); i++ {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					_, g0, _, _ := RGBAHalfAt(outs[i-1], x, y)
					_, g1, _, _ := RGBAHalfAt(outs[i], x, y)
					require.GreaterOrEqual(t, g1, g0, "boost %v at %d,%d", boosts[i], x, y)
				}
			}
		}
	})

	t.Run("clamped above max", func(t *testing.T) {
		above := decodeLinear(t, sdr, gm, &meta, 2*meta.MaxContentBoost)
		assert.Equal(t, outs[len(outs)-1].Luma, above.Luma)
	})

	t.Run("unit boost is the base", func(t *testing.T) {
		rgba := NewUncompressedImage(w, h, PixelFormatRGBA8888, GamutUnspecified)
		require.NoError(t, applyGainMap(sdr, gm, &meta, DecodeOptions{Boost: 1, Format: OutputSDR}, rgba, 0))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, _, _, _ := RGBAHalfAt(outs[0], x, y)
				want := float64(rgba.Luma[4*(y*w+x)])
				assert.InDelta(t, want, float64(srgbOetf(r))*255, 1, "at %d,%d", x, y)
			}
		}
	})

	t.Run("max boost recovers hdr", func(t *testing.T) {
		hs := newHDRSampler(hdr, TransferHLG, GamutBT2100)
		var sum float64
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b, _ := RGBAHalfAt(outs[len(outs)-1], x, y)
				got := luminance(RGB{R: r, G: g, B: b}, GamutBT2100)
				want := luminance(hs.at(x, y), GamutBT2100)
				sum += math.Abs(float64(got-want)) / float64(want)
			}
		}
		assert.Less(t, sum/float64(w*h), 0.1, "mean relative luminance error")
	})
}

func TestApplyGainMapOutputs(t *testing.T) {
	const w, h = 16, 8
	hdr := testHDR(t, w, h, TransferPQ)
	meta := MetadataForTransfer(TransferPQ)
	sdr := deriveSDR(hdr, TransferPQ, meta.MaxContentBoost, 0)
	gm, err := generateGainMap(hdr, sdr, TransferPQ, &meta, 0)
	require.NoError(t, err)

	for _, f := range []OutputFormat{OutputSDR, OutputHDRLinear, OutputHDRPQ, OutputHDRHLG} {
		t.Run(f.String(), func(t *testing.T) {
			dst := NewUncompressedImage(w, h, outputPixelFormat(f), GamutUnspecified)
			opts := DecodeOptions{Boost: 4, Format: f, Gamut: GamutDisplayP3}
			require.NoError(t, applyGainMap(sdr, gm, &meta, opts, dst, 2))
			assert.Equal(t, GamutDisplayP3, dst.Gamut)
			if f == OutputHDRPQ || f == OutputHDRHLG {
				assert.Equal(t, uint8(3), dst.Luma[3]>>6, "opaque alpha")
			}
		})
	}

	dst := NewUncompressedImage(w, h, PixelFormatRGBAHalfFloat, GamutUnspecified)
	for _, opts := range []DecodeOptions{
		{Boost: 0.5, Format: OutputHDRLinear},
		{Boost: float32(math.NaN()), Format: OutputHDRLinear},
		{Boost: 2, Format: OutputUnspecified},
		{Boost: 2, Format: OutputHDRLinear, Gamut: ColorGamut(17)},
	} {
		assert.ErrorIs(t, applyGainMap(sdr, gm, &meta, opts, dst, 0), ErrInvalidArgument, "%+v", opts)
	}
}

func TestApplyWithoutGainMap(t *testing.T) {
	sdr := testSDR(t, 8, 8, GamutBT709)
	withMap := decodeLinear(t, sdr, nil, nil, 4)
	meta := MetadataForTransfer(TransferHLG)
	atUnit := decodeLinear(t, sdr, nil, &meta, 1)
	assert.Equal(t, withMap.Luma, atUnit.Luma)
}

func TestDeriveSDRHeadroom(t *testing.T) {
	const w, h = 8, 4
	hdr, err := P010FromLinear(w, h, flatLinear(w, h, 4.5), GamutBT709, TransferHLG)
	require.NoError(t, err)
	sdr := deriveSDR(hdr, TransferHLG, 1000.0/203, 0)
	assert.Equal(t, PixelFormatYUV420, sdr.Format)
	assert.Equal(t, GamutBT709, sdr.Gamut)
	v := newYUV420View(sdr)
	y, u, vv := v.at(3, 2)
	assert.Greater(t, y, uint8(200), "bright input stays bright")
	assert.InDelta(t, 128, u, 2)
	assert.InDelta(t, 128, vv, 2)
}
