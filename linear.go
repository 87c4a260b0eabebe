package jpegr

import (
	"encoding/binary"
	"image"
	"image/color"
)

// P010FromLinear converts interleaved linear RGB (1.0 = SDR white) into a P010 image encoded
// with an HDR transfer. An odd trailing row or column is dropped.
func P010FromLinear(width, height int, pix []float32, gamut ColorGamut, tf ColorTransfer) (*UncompressedImage, error) {
	if width <= 1 || height <= 1 {
		return nil, invalidArgf("image too small: %dx%d", width, height)
	}
	if len(pix) < width*height*3 {
		return nil, invalidArgf("pixel buffer %d < %d", len(pix), width*height*3)
	}
	if !gamut.concrete() {
		return nil, invalidArgf("gamut %s", gamut)
	}
	if tf != TransferHLG && tf != TransferPQ {
		return nil, invalidArgf("transfer %s is not an HDR transfer", tf)
	}

	w, h := width&^1, height&^1
	out := NewUncompressedImage(w, h, PixelFormatP010, gamut)
	k := p010Coeffs(gamut)
	scale := sdrWhiteNits / peakNits(tf)
	uv := out.chroma()

	encode := func(c RGB) RGB {
		c = RGB{R: max(c.R, 0), G: max(c.G, 0), B: max(c.B, 0)}.scale(scale).clamp01()
		if tf == TransferHLG {
			c = hlgInvOOTF(c)
			return RGB{R: hlgOetf(c.R), G: hlgOetf(c.G), B: hlgOetf(c.B)}
		}
		return RGB{R: pqInvEOTF(c.R), G: pqInvEOTF(c.G), B: pqInvEOTF(c.B)}
	}

	parallelFor(h/2, 0, func(start, end int) {
		for cy := start; cy < end; cy++ {
			for cx := 0; cx < w/2; cx++ {
				var sum RGB
				for d := 0; d < 4; d++ {
					x, y := 2*cx+d%2, 2*cy+d/2
					i := 3 * (y*width + x)
					e := encode(RGB{R: pix[i], G: pix[i+1], B: pix[i+2]})
					yv, _, _ := rgbToP010(e, k)
					binary.LittleEndian.PutUint16(out.Luma[2*(y*w+x):], yv<<6)
					sum = RGB{R: sum.R + e.R, G: sum.G + e.G, B: sum.B + e.B}
				}
				_, u, v := rgbToP010(sum.scale(0.25), k)
				ci := 2 * (cy*w + 2*cx)
				binary.LittleEndian.PutUint16(uv[ci:], u<<6)
				binary.LittleEndian.PutUint16(uv[ci+2:], v<<6)
			}
		}
	})
	return out, nil
}

// YUV420FromImage converts an sRGB encoded image into full range BT.601 YUV420.
// An odd trailing row or column is dropped.
func YUV420FromImage(img image.Image, gamut ColorGamut) (*UncompressedImage, error) {
	b := img.Bounds()
	w, h := b.Dx()&^1, b.Dy()&^1
	if w == 0 || h == 0 {
		return nil, invalidArgf("image too small: %dx%d", b.Dx(), b.Dy())
	}

	if m, ok := img.(*image.YCbCr); ok && m.Bounds().Dx() == w && m.Bounds().Dy() == h {
		out := ycbcrToYUV420(m)
		out.Gamut = gamut
		return out, nil
	}

	out := NewUncompressedImage(w, h, PixelFormatYUV420, gamut)
	ov := newYUV420View(out)
	parallelFor(h/2, 0, func(start, end int) {
		for cy := start; cy < end; cy++ {
			for cx := 0; cx < w/2; cx++ {
				var su, sv int
				for d := 0; d < 4; d++ {
					x, y := 2*cx+d%2, 2*cy+d/2
					c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
					yv, u, v := rgbToYUV8(RGB{R: float32(c.R) / 255, G: float32(c.G) / 255, B: float32(c.B) / 255})
					ov.y[y*ov.ys+x] = yv
					su += int(u)
					sv += int(v)
				}
				ov.u[cy*ov.cs+cx] = uint8((su + 2) / 4)
				ov.v[cy*ov.cs+cx] = uint8((sv + 2) / 4)
			}
		}
	})
	return out, nil
}
