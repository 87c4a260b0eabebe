package jpegr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferRoundTrip(t *testing.T) {
	for _, tf := range []ColorTransfer{TransferSRGB, TransferLinear, TransferPQ, TransferHLG} {
		t.Run(tf.String(), func(t *testing.T) {
			for _, v := range []float32{0, 0.001, 0.05, 0.18, 0.5, 0.9, 1} {
				lin, err := ToLinear(v, tf)
				require.NoError(t, err)
				back, err := FromLinear(lin, tf)
				require.NoError(t, err)
				assert.InDelta(t, v, back, 1e-3, "signal %v", v)
			}
		})
	}

	_, err := ToLinear(0.5, TransferUnspecified)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = FromLinear(0.5, ColorTransfer(42))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPixelTransfer(t *testing.T) {
	c := RGB{R: 0.2, G: 0.6, B: 0.9}
	for _, g := range []ColorGamut{GamutBT709, GamutDisplayP3, GamutBT2100} {
		for _, tf := range []ColorTransfer{TransferSRGB, TransferLinear, TransferPQ, TransferHLG} {
			lin, err := PixelToLinear(c, g, tf)
			require.NoError(t, err)
			back, err := PixelFromLinear(lin, g, tf)
			require.NoError(t, err)
			assert.InDelta(t, c.R, back.R, 1e-3, "%s %s", g, tf)
			assert.InDelta(t, c.G, back.G, 1e-3, "%s %s", g, tf)
			assert.InDelta(t, c.B, back.B, 1e-3, "%s %s", g, tf)

			if tf != TransferHLG {
				r, err := ToLinear(c.R, tf)
				require.NoError(t, err)
				assert.Equal(t, r, lin.R, "per channel without OOTF")
			}
		}
	}

	// Gray has unit luminance weights in every gamut, the OOTF is a 1.2 power.
	s := hlgInvOetf(0.75)
	gray, err := PixelToLinear(RGB{R: 0.75, G: 0.75, B: 0.75}, GamutDisplayP3, TransferHLG)
	require.NoError(t, err)
	assert.InDelta(t, math.Pow(float64(s), 1.2), gray.G, 1e-4)

	// Luminance weights differ by gamut.
	a, err := PixelToLinear(c, GamutBT709, TransferHLG)
	require.NoError(t, err)
	b, err := PixelToLinear(c, GamutBT2100, TransferHLG)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = PixelToLinear(c, GamutUnspecified, TransferPQ)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = PixelFromLinear(c, ColorGamut(9), TransferPQ)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = PixelToLinear(c, GamutBT709, TransferUnspecified)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestTransferReferencePoints(t *testing.T) {
	assert.InDelta(t, 0.5, hlgOetf(1.0/12), 1e-5)
	assert.InDelta(t, 1, hlgOetf(1), 1e-5)
	assert.InDelta(t, 1, pqEOTF(1), 1e-5)
	// 203 nits is close to 58% of the PQ signal.
	assert.InDelta(t, 0.58, pqInvEOTF(sdrWhiteNits/pqMaxNits), 0.01)
	assert.InDelta(t, 0.214, srgbInvOetf(0.5), 1e-3)
}

func TestConvertGamut(t *testing.T) {
	white := RGB{R: 1, G: 1, B: 1}
	for _, from := range []ColorGamut{GamutBT709, GamutDisplayP3, GamutBT2100} {
		for _, to := range []ColorGamut{GamutBT709, GamutDisplayP3, GamutBT2100} {
			c, err := ConvertGamut(white, from, to)
			require.NoError(t, err)
			assert.InDelta(t, 1, c.R, 1e-4, "%s->%s", from, to)
			assert.InDelta(t, 1, c.G, 1e-4, "%s->%s", from, to)
			assert.InDelta(t, 1, c.B, 1e-4, "%s->%s", from, to)

			red := RGB{R: 0.7, G: 0.2, B: 0.1}
			there, err := ConvertGamut(red, from, to)
			require.NoError(t, err)
			back, err := ConvertGamut(there, to, from)
			require.NoError(t, err)
			assert.InDelta(t, red.R, back.R, 1e-4)
			assert.InDelta(t, red.G, back.G, 1e-4)
			assert.InDelta(t, red.B, back.B, 1e-4)
		}
	}

	// BT.709 red is inside BT.2100.
	c := convertGamut(RGB{R: 1}, GamutBT709, GamutBT2100)
	assert.Less(t, c.R, float32(1))
	assert.Greater(t, c.G, float32(0))

	_, err := ConvertGamut(white, GamutUnspecified, GamutBT709)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLuminanceOfWhite(t *testing.T) {
	for _, g := range []ColorGamut{GamutBT709, GamutDisplayP3, GamutBT2100} {
		assert.InDelta(t, 1, luminance(RGB{R: 1, G: 1, B: 1}, g), 1e-4, g.String())
	}
	assert.InDelta(t, 0.2126, luminance(RGB{R: 1}, GamutBT709), 1e-3)
}

func TestYUVConversions(t *testing.T) {
	for _, c := range []RGB{{}, {R: 1, G: 1, B: 1}, {R: 0.5, G: 0.25, B: 0.75}} {
		y, u, v := rgbToYUV8(c)
		back := yuv8ToRGB(y, u, v)
		assert.InDelta(t, c.R, back.R, 0.02)
		assert.InDelta(t, c.G, back.G, 0.02)
		assert.InDelta(t, c.B, back.B, 0.02)

		k := p010Coeffs(GamutBT2100)
		y10, u10, v10 := rgbToP010(c, k)
		back = p010ToRGB(y10, u10, v10, k)
		assert.InDelta(t, c.R, back.R, 0.01)
		assert.InDelta(t, c.G, back.G, 0.01)
		assert.InDelta(t, c.B, back.B, 0.01)
	}
}

func TestEnumNames(t *testing.T) {
	for g := GamutUnspecified; g <= GamutBT2100; g++ {
		p, err := ParseColorGamut(g.String())
		require.NoError(t, err)
		assert.Equal(t, g, p)
	}
	for tf := TransferUnspecified; tf <= TransferHLG; tf++ {
		p, err := ParseColorTransfer(tf.String())
		require.NoError(t, err)
		assert.Equal(t, tf, p)
	}
	for f := OutputUnspecified; f <= OutputHDRHLG; f++ {
		p, err := ParseOutputFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, p)
	}

	_, err := ParseColorGamut("adobe-rgb")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "gamut(9)", ColorGamut(9).String())
	assert.False(t, math.IsNaN(float64(hlgInvOOTF(RGB{}).R)))
}
