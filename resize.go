package jpegr

import (
	"image"
	"math"

	"github.com/nfnt/resize"
	"github.com/sirupsen/logrus"
	"github.com/vearutop/jpegr/internal/jpegx"
)

// Interpolation selects the resampling kernel of Resize.
type Interpolation int

const (
	// InterpolationNearest is nearest-neighbor sampling.
	InterpolationNearest Interpolation = iota
	// InterpolationBilinear is linear sampling.
	InterpolationBilinear
	// InterpolationBicubic is cubic sampling.
	InterpolationBicubic
	// InterpolationMitchellNetravali is Mitchell-Netravali sampling.
	InterpolationMitchellNetravali
	// InterpolationLanczos2 is Lanczos sampling with a=2.
	InterpolationLanczos2
	// InterpolationLanczos3 is Lanczos sampling with a=3.
	InterpolationLanczos3
)

var interpolationNames = map[string]Interpolation{
	"nearest":  InterpolationNearest,
	"bilinear": InterpolationBilinear,
	"bicubic":  InterpolationBicubic,
	"mitchell": InterpolationMitchellNetravali,
	"lanczos2": InterpolationLanczos2,
	"lanczos3": InterpolationLanczos3,
}

// ParseInterpolation maps names like "bilinear" or "lanczos3" to an Interpolation.
func ParseInterpolation(s string) (Interpolation, error) {
	if i, ok := interpolationNames[s]; ok {
		return i, nil
	}
	return 0, invalidArgf("unknown interpolation %q", s)
}

func (i Interpolation) kernel() resize.InterpolationFunction {
	switch i {
	case InterpolationBilinear:
		return resize.Bilinear
	case InterpolationBicubic:
		return resize.Bicubic
	case InterpolationMitchellNetravali:
		return resize.MitchellNetravali
	case InterpolationLanczos2:
		return resize.Lanczos2
	case InterpolationLanczos3:
		return resize.Lanczos3
	default:
		return resize.NearestNeighbor
	}
}

// ResizeOptions controls Resize.
type ResizeOptions struct {
	// Quality of the base JPEG, 0 keeps the estimated quality of the source.
	Quality int
	// GainMapQuality of the gain map JPEG, 0 keeps the estimated quality of the source.
	GainMapQuality int
	Interpolation  Interpolation
}

// Resize scales the base and gain map of a JPEG/R file to width x height and re-muxes
// them with the original metadata, EXIF and ICC profile.
// Dimensions must be even, a plain JPEG is resized without a gain map.
func (j *JpegR) Resize(data []byte, width, height int, opts ResizeOptions) ([]byte, error) {
	const pathway = "resize"
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, invalidArgf("resize target %dx%d must be even and non-zero", width, height)
	}
	if err := checkQuality(opts.Quality); err != nil {
		return nil, err
	}
	if err := checkQuality(opts.GainMapQuality); err != nil {
		return nil, err
	}
	d, err := Demux(data)
	if err != nil {
		return nil, err
	}
	interp := opts.Interpolation.kernel()
	log := j.log.WithFields(logrus.Fields{
		"pathway": pathway,
		"from":    [2]int{d.Width, d.Height},
		"to":      [2]int{width, height},
	})

	img, err := j.codec.Decompress(d.Base)
	if err != nil {
		return nil, &CodecError{Pathway: pathway, Op: "decompress base", Err: err}
	}
	base, err := resizeYUV420(asYUV420(img), width, height, interp)
	if err != nil {
		return nil, err
	}
	baseJPEG, err := j.codec.Compress(base, qualityOr(opts.Quality, d.Base, defaultBaseQuality))
	if err != nil {
		return nil, &CodecError{Pathway: pathway, Op: "compress base", Err: err}
	}

	extras := &Passthrough{Exif: d.Exif, ICC: d.ICC}
	if d.GainMap == nil {
		log.Debug("resizing plain jpeg")
		return withAppSegments(baseJPEG, extras)
	}

	img, err = j.codec.Decompress(d.GainMap)
	if err != nil {
		return nil, &CodecError{Pathway: pathway, Op: "decompress gain map", Err: err}
	}
	gm := resizeGainMap(asGray8(img), d.Width, d.Height, width, height, d.Metadata.Gamma, interp)
	gmJPEG, err := j.codec.Compress(gm, qualityOr(opts.GainMapQuality, d.GainMap, j.gainMapQuality))
	if err != nil {
		return nil, &CodecError{Pathway: pathway, Op: "compress gain map", Err: err}
	}
	log.WithField("map", [2]int{gm.Width, gm.Height}).Debug("resized")

	return Mux(baseJPEG, gmJPEG, d.Metadata, extras)
}

func qualityOr(q int, src []byte, fallback int) int {
	if q > 0 {
		return q
	}
	if h, err := jpegx.ParseHeader(src); err == nil {
		if est := h.EstimateQuality(); est > 0 {
			return est
		}
	}
	return fallback
}

func resizeYUV420(img *UncompressedImage, w, h int, interp resize.InterpolationFunction) (*UncompressedImage, error) {
	v := newYUV420View(img)
	src := &image.YCbCr{
		Y: v.y, Cb: v.u, Cr: v.v,
		YStride: v.ys, CStride: v.cs,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, img.Width, img.Height),
	}
	return YUV420FromImage(resize.Resize(uint(w), uint(h), src, interp), img.Gamut)
}

// resizeGainMap resamples the real area of a gain map to the real area of the target size
// and pads it to the aligned map size. Samples are resampled in the normalized log domain.
func resizeGainMap(gm *UncompressedImage, srcW, srcH, w, h int, gamma float32, interp resize.InterpolationFunction) *UncompressedImage {
	realW, realH := gm.Width, gm.Height
	if ew, eh := GainMapSize(srcW, srcH); ew == gm.Width && eh == gm.Height {
		realW = ceilDiv(srcW, defaultGainMapScale)
		realH = ceilDiv(srcH, defaultGainMapScale)
	}
	dstW, dstH := GainMapSize(w, h)
	outW := ceilDiv(w, defaultGainMapScale)
	outH := ceilDiv(h, defaultGainMapScale)

	src := image.NewGray16(image.Rect(0, 0, realW, realH))
	stride := gm.lumaStride()
	for y := 0; y < realH; y++ {
		for x := 0; x < realW; x++ {
			v := float64(gm.Luma[y*stride+x]) / 255
			if gamma != 1 {
				v = math.Pow(v, 1/float64(gamma))
			}
			px := src.Pix[src.PixOffset(x, y):]
			u := uint16(v*65535 + 0.5)
			px[0], px[1] = uint8(u>>8), uint8(u)
		}
	}
	scaled := resize.Resize(uint(outW), uint(outH), src, interp)

	out := NewUncompressedImage(dstW, dstH, PixelFormatGray8, GamutUnspecified)
	for y := 0; y < dstH; y++ {
		sy := min(y, outH-1)
		for x := 0; x < dstW; x++ {
			sx := min(x, outW-1)
			r, _, _, _ := scaled.At(scaled.Bounds().Min.X+sx, scaled.Bounds().Min.Y+sy).RGBA()
			v := float64(r) / 65535
			if gamma != 1 {
				v = math.Pow(v, float64(gamma))
			}
			out.Luma[y*dstW+x] = uint8(quantize(float32(v), 255))
		}
	}
	return out
}
