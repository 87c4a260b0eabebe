package jpegr

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// outputPixelFormat is the layout produced for an output format.
func outputPixelFormat(f OutputFormat) PixelFormat {
	switch f {
	case OutputSDR:
		return PixelFormatRGBA8888
	case OutputHDRLinear:
		return PixelFormatRGBAHalfFloat
	case OutputHDRPQ, OutputHDRHLG:
		return PixelFormatRGBA1010102
	default:
		return PixelFormatUnspecified
	}
}

func validateDecodeOptions(opts DecodeOptions) error {
	if math.IsNaN(float64(opts.Boost)) || opts.Boost < 1 {
		return invalidArgf("display boost %v, must be >= 1", opts.Boost)
	}
	if !opts.Format.concrete() {
		return invalidArgf("output format %s", opts.Format)
	}
	if opts.Gamut != GamutUnspecified && !opts.Gamut.concrete() {
		return invalidArgf("output gamut %s", opts.Gamut)
	}
	return nil
}

// axisSampler holds bilinear taps along one axis of the gain map.
type axisSampler struct {
	i0, i1 []int
	t      []float32
}

// newAxisSampler maps n image positions onto mapN gain map samples.
// A map of the size GainMapSize produces uses scale 4 with sample centers at 4m+1.5,
// other sizes are stretched over the image.
func newAxisSampler(n, mapN, expected int) axisSampler {
	scale := float64(defaultGainMapScale)
	span := ceilDiv(n, defaultGainMapScale)
	if mapN != expected {
		scale = float64(n) / float64(mapN)
		span = mapN
	}
	span = clamp(span, 1, mapN)

	s := axisSampler{i0: make([]int, n), i1: make([]int, n), t: make([]float32, n)}
	for p := 0; p < n; p++ {
		f := clamp((float64(p)+0.5)/scale-0.5, 0, float64(span-1))
		i0 := int(f)
		s.i0[p] = i0
		s.i1[p] = min(i0+1, span-1)
		s.t[p] = float32(f - float64(i0))
	}
	return s
}

type gainSampler struct {
	pix    []byte
	stride int
	xs, ys axisSampler
}

func newGainSampler(gm *UncompressedImage, w, h int) *gainSampler {
	ew, eh := GainMapSize(w, h)
	return &gainSampler{
		pix:    gm.Luma,
		stride: gm.lumaStride(),
		xs:     newAxisSampler(w, gm.Width, ew),
		ys:     newAxisSampler(h, gm.Height, eh),
	}
}

// at returns the normalized gain sample at an image position.
func (s *gainSampler) at(x, y int) float32 {
	r0 := s.pix[s.ys.i0[y]*s.stride:]
	r1 := s.pix[s.ys.i1[y]*s.stride:]
	x0, x1, tx := s.xs.i0[x], s.xs.i1[x], s.xs.t[x]
	top := float32(r0[x0]) + (float32(r0[x1])-float32(r0[x0]))*tx
	bottom := float32(r1[x0]) + (float32(r1[x1])-float32(r1[x0]))*tx
	return (top + (bottom-top)*s.ys.t[y]) / 255
}

// applyGainMap reconstructs base (YUV420) with an optional gain map into dst.
// A nil gain map or metadata renders the base at unit gain.
func applyGainMap(base, gm *UncompressedImage, meta *GainMapMetadata, opts DecodeOptions, dst *UncompressedImage, workers int) error {
	if err := validateDecodeOptions(opts); err != nil {
		return err
	}
	if err := validateSDRInput(base); err != nil {
		return err
	}
	outGamut := opts.Gamut
	if outGamut == GamutUnspecified {
		outGamut = base.Gamut
	}

	var (
		gs     *gainSampler
		gc     gainCoder
		weight float32
	)
	if gm != nil && meta != nil && opts.Format != OutputSDR {
		if err := gm.validate("gain map"); err != nil {
			return err
		}
		if gm.Format != PixelFormatGray8 {
			return invalidArgf("gain map must be %s, got %s", PixelFormatGray8, gm.Format)
		}
		if err := meta.Validate(); err != nil {
			return err
		}
		gc = newGainCoder(meta)
		boost := min(opts.Boost, meta.MaxContentBoost)
		weight = gc.boostWeight(boost)
		if weight > 0 {
			gs = newGainSampler(gm, base.Width, base.Height)
		}
	}

	w, h := base.Width, base.Height
	bv := newYUV420View(base)
	bps := dst.Format.bytesPerSample()
	dstStride := dst.lumaStride() * bps

	parallelFor(h, workers, func(start, end int) {
		for y := start; y < end; y++ {
			row := dst.Luma[y*dstStride:]
			for x := 0; x < w; x++ {
				e := yuv8ToRGB(bv.at(x, y)).clamp01()
				px := row[x*bps:]

				if opts.Format == OutputSDR {
					if outGamut != base.Gamut {
						lin := RGB{R: srgbInvOetf(e.R), G: srgbInvOetf(e.G), B: srgbInvOetf(e.B)}
						lin = convertGamut(lin, base.Gamut, outGamut).clamp01()
						e = RGB{R: srgbOetf(lin.R), G: srgbOetf(lin.G), B: srgbOetf(lin.B)}
					}
					putRGBA8888(px, e)
					continue
				}

				c := RGB{R: srgbInvOetf(e.R), G: srgbInvOetf(e.G), B: srgbInvOetf(e.B)}
				if gs != nil {
					c = gc.apply(c, gc.decode(gs.at(x, y)), weight)
				}
				c = convertGamut(c, base.Gamut, outGamut)
				c = RGB{R: max(c.R, 0), G: max(c.G, 0), B: max(c.B, 0)}

				switch opts.Format {
				case OutputHDRLinear:
					putRGBAHalf(px, c)
				case OutputHDRPQ:
					d := c.scale(sdrWhiteNits / pqMaxNits).clamp01()
					putRGBA1010102(px, RGB{R: pqInvEOTF(d.R), G: pqInvEOTF(d.G), B: pqInvEOTF(d.B)})
				case OutputHDRHLG:
					d := hlgInvOOTF(c.scale(sdrWhiteNits / hlgMaxNits).clamp01())
					putRGBA1010102(px, RGB{R: hlgOetf(d.R), G: hlgOetf(d.G), B: hlgOetf(d.B)})
				}
			}
		}
	})
	dst.Gamut = outGamut
	return nil
}

func putRGBA8888(px []byte, c RGB) {
	px[0] = uint8(quantize(c.R, 255))
	px[1] = uint8(quantize(c.G, 255))
	px[2] = uint8(quantize(c.B, 255))
	px[3] = 0xFF
}

func putRGBAHalf(px []byte, c RGB) {
	binary.LittleEndian.PutUint16(px[0:], float16.Fromfloat32(c.R).Bits())
	binary.LittleEndian.PutUint16(px[2:], float16.Fromfloat32(c.G).Bits())
	binary.LittleEndian.PutUint16(px[4:], float16.Fromfloat32(c.B).Bits())
	binary.LittleEndian.PutUint16(px[6:], float16.Fromfloat32(1).Bits())
}

func putRGBA1010102(px []byte, c RGB) {
	v := quantize(c.R, 1023) | quantize(c.G, 1023)<<10 | quantize(c.B, 1023)<<20 | 3<<30
	binary.LittleEndian.PutUint32(px, v)
}

// RGBAHalfAt reads a pixel of a PixelFormatRGBAHalfFloat image as float32.
func RGBAHalfAt(img *UncompressedImage, x, y int) (r, g, b, a float32) {
	px := img.Luma[(y*img.lumaStride()+x)*8:]
	return float16.Frombits(binary.LittleEndian.Uint16(px[0:])).Float32(),
		float16.Frombits(binary.LittleEndian.Uint16(px[2:])).Float32(),
		float16.Frombits(binary.LittleEndian.Uint16(px[4:])).Float32(),
		float16.Frombits(binary.LittleEndian.Uint16(px[6:])).Float32()
}
