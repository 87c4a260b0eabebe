package jpegr

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// RGB is a color sample, linear or encoded depending on context.
type RGB struct {
	R, G, B float32
}

func (c RGB) scale(k float32) RGB {
	return RGB{R: c.R * k, G: c.G * k, B: c.B * k}
}

func (c RGB) clamp01() RGB {
	return RGB{R: clamp01(c.R), G: clamp01(c.G), B: clamp01(c.B)}
}

type matrix3 [3][3]float32

func (m *matrix3) apply(c RGB) RGB {
	return RGB{
		R: m[0][0]*c.R + m[0][1]*c.G + m[0][2]*c.B,
		G: m[1][0]*c.R + m[1][1]*c.G + m[1][2]*c.B,
		B: m[2][0]*c.R + m[2][1]*c.G + m[2][2]*c.B,
	}
}

type chromaticity struct{ x, y float64 }

type primaries struct {
	r, g, b chromaticity
}

var whiteD65 = chromaticity{x: 0.3127, y: 0.3290}

var gamutPrimaries = map[ColorGamut]primaries{
	GamutBT709:     {r: chromaticity{0.64, 0.33}, g: chromaticity{0.30, 0.60}, b: chromaticity{0.15, 0.06}},
	GamutDisplayP3: {r: chromaticity{0.680, 0.320}, g: chromaticity{0.265, 0.690}, b: chromaticity{0.150, 0.060}},
	GamutBT2100:    {r: chromaticity{0.708, 0.292}, g: chromaticity{0.170, 0.797}, b: chromaticity{0.131, 0.046}},
}

// gamutMatrices holds RGB->XYZ and XYZ->RGB per gamut and the direct conversions between gamuts.
type gamutMatrices struct {
	toXYZ   [GamutBT2100 + 1]matrix3
	fromXYZ [GamutBT2100 + 1]matrix3
	convert [GamutBT2100 + 1][GamutBT2100 + 1]matrix3
}

var gamuts = buildGamutMatrices()

func xyzColumn(c chromaticity) []float64 {
	return []float64{c.x / c.y, 1, (1 - c.x - c.y) / c.y}
}

// rgbToXYZMatrix scales the primaries so that RGB(1,1,1) maps to the white point.
func rgbToXYZMatrix(p primaries, white chromaticity) (*mat.Dense, error) {
	cols := [][]float64{xyzColumn(p.r), xyzColumn(p.g), xyzColumn(p.b)}
	prim := mat.NewDense(3, 3, nil)
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			prim.Set(r, c, cols[c][r])
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(prim); err != nil {
		return nil, err
	}
	var s mat.VecDense
	s.MulVec(&inv, mat.NewVecDense(3, xyzColumn(white)))

	m := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, prim.At(r, c)*s.AtVec(c))
		}
	}
	return m, nil
}

func toMatrix3(d mat.Matrix) matrix3 {
	var m matrix3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[r][c] = float32(d.At(r, c))
		}
	}
	return m
}

func buildGamutMatrices() *gamutMatrices {
	gm := &gamutMatrices{}
	dense := make(map[ColorGamut][2]*mat.Dense, len(gamutPrimaries))
	for g, p := range gamutPrimaries {
		toXYZ, err := rgbToXYZMatrix(p, whiteD65)
		if err != nil {
			panic("jpegr: singular primaries for " + g.String())
		}
		var fromXYZ mat.Dense
		if err := fromXYZ.Inverse(toXYZ); err != nil {
			panic("jpegr: singular primaries for " + g.String())
		}
		dense[g] = [2]*mat.Dense{toXYZ, &fromXYZ}
		gm.toXYZ[g] = toMatrix3(toXYZ)
		gm.fromXYZ[g] = toMatrix3(&fromXYZ)
	}
	for from, f := range dense {
		for to, t := range dense {
			var m mat.Dense
			m.Mul(t[1], f[0])
			gm.convert[from][to] = toMatrix3(&m)
		}
	}
	return gm
}

// ConvertGamut converts a linear light color between gamuts.
func ConvertGamut(c RGB, from, to ColorGamut) (RGB, error) {
	if !from.concrete() || !to.concrete() {
		return RGB{}, invalidArgf("gamut conversion %s -> %s", from, to)
	}
	return convertGamut(c, from, to), nil
}

func convertGamut(c RGB, from, to ColorGamut) RGB {
	if from == to {
		return c
	}
	return gamuts.convert[from][to].apply(c)
}

// luminance of a linear color, the Y row of the gamut RGB->XYZ matrix.
func luminance(c RGB, g ColorGamut) float32 {
	row := gamuts.toXYZ[g][1]
	return row[0]*c.R + row[1]*c.G + row[2]*c.B
}

// ToLinear maps one encoded channel value in [0,1] to linear light.
// PQ and HLG results are relative to the curve peak (10000 and 1000 nits), HLG without the OOTF.
// A single channel carries no gamut, use PixelToLinear for the gamut dependent HLG OOTF.
func ToLinear(v float32, tf ColorTransfer) (float32, error) {
	switch tf {
	case TransferSRGB:
		return srgbInvOetf(v), nil
	case TransferLinear:
		return v, nil
	case TransferPQ:
		return pqEOTF(v), nil
	case TransferHLG:
		return hlgInvOetf(v), nil
	default:
		return 0, invalidArgf("transfer %s", tf)
	}
}

// FromLinear is the inverse of ToLinear.
func FromLinear(v float32, tf ColorTransfer) (float32, error) {
	switch tf {
	case TransferSRGB:
		return srgbOetf(v), nil
	case TransferLinear:
		return v, nil
	case TransferPQ:
		return pqInvEOTF(v), nil
	case TransferHLG:
		return hlgOetf(v), nil
	default:
		return 0, invalidArgf("transfer %s", tf)
	}
}

// peakNits is the luminance of linear 1.0 for HDR transfers.
func peakNits(tf ColorTransfer) float32 {
	switch tf {
	case TransferHLG:
		return hlgMaxNits
	case TransferPQ:
		return pqMaxNits
	default:
		return sdrWhiteNits
	}
}

func srgbInvOetf(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return float32(math.Pow(float64((v+0.055)/1.055), 2.4))
}

func srgbOetf(v float32) float32 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*float32(math.Pow(float64(v), 1.0/2.4)) - 0.055
}

const (
	hlgA = 0.17883277
	hlgB = 0.28466892
	hlgC = 0.55991073
)

func hlgOetf(e float32) float32 {
	if e <= 1.0/12 {
		return float32(math.Sqrt(3 * float64(clamp(e, 0, 1))))
	}
	return float32(hlgA*math.Log(12*float64(e)-hlgB) + hlgC)
}

func hlgInvOetf(v float32) float32 {
	if v <= 0.5 {
		return v * v / 3
	}
	return float32((math.Exp((float64(v)-hlgC)/hlgA) + hlgB) / 12)
}

// hlgOOTF maps scene light to display light, both relative to the 1000 nit peak.
func hlgOOTF(c RGB) RGB {
	return hlgSystemGamma(c, GamutBT2100, hlgOOTFGamma-1)
}

func hlgInvOOTF(c RGB) RGB {
	return hlgSystemGamma(c, GamutBT2100, (1-hlgOOTFGamma)/hlgOOTFGamma)
}

// hlgSystemGamma scales c by its luminance in gamut g raised to exp.
func hlgSystemGamma(c RGB, g ColorGamut, exp float64) RGB {
	y := luminance(c, g)
	if y <= 0 {
		return RGB{}
	}
	return c.scale(float32(math.Pow(float64(y), exp)))
}

// PixelToLinear maps an encoded pixel of gamut g to linear light relative to the curve peak.
// HLG includes the OOTF, weighted by the luminance of g. The other curves apply per channel.
func PixelToLinear(c RGB, g ColorGamut, tf ColorTransfer) (RGB, error) {
	if !g.concrete() {
		return RGB{}, invalidArgf("gamut %s", g)
	}
	out, err := mapChannels(c, func(v float32) (float32, error) { return ToLinear(v, tf) })
	if err != nil || tf != TransferHLG {
		return out, err
	}
	return hlgSystemGamma(out, g, hlgOOTFGamma-1), nil
}

// PixelFromLinear is the inverse of PixelToLinear.
func PixelFromLinear(c RGB, g ColorGamut, tf ColorTransfer) (RGB, error) {
	if !g.concrete() {
		return RGB{}, invalidArgf("gamut %s", g)
	}
	if tf == TransferHLG {
		c = hlgSystemGamma(c, g, (1-hlgOOTFGamma)/hlgOOTFGamma)
	}
	return mapChannels(c, func(v float32) (float32, error) { return FromLinear(v, tf) })
}

func mapChannels(c RGB, fn func(float32) (float32, error)) (RGB, error) {
	var (
		out RGB
		err error
	)
	if out.R, err = fn(c.R); err != nil {
		return RGB{}, err
	}
	if out.G, err = fn(c.G); err != nil {
		return RGB{}, err
	}
	out.B, err = fn(c.B)
	return out, err
}

const (
	pqM1 = 2610.0 / 16384
	pqM2 = 2523.0 / 4096 * 128
	pqC1 = 3424.0 / 4096
	pqC2 = 2413.0 / 4096 * 32
	pqC3 = 2392.0 / 4096 * 32
)

func pqEOTF(v float32) float32 {
	p := math.Pow(float64(clamp01(v)), 1/pqM2)
	num := math.Max(p-pqC1, 0)
	return float32(math.Pow(num/(pqC2-pqC3*p), 1/pqM1))
}

func pqInvEOTF(v float32) float32 {
	y := math.Pow(float64(clamp01(v)), pqM1)
	return float32(math.Pow((pqC1+pqC2*y)/(1+pqC3*y), pqM2))
}

// yuvCoeffs are the luma weights of a Y'CbCr matrix.
type yuvCoeffs struct {
	kr, kb float32
}

var (
	yuvBT601  = yuvCoeffs{kr: 0.299, kb: 0.114}
	yuvBT709  = yuvCoeffs{kr: 0.2126, kb: 0.0722}
	yuvBT2020 = yuvCoeffs{kr: 0.2627, kb: 0.0593}
)

// p010Coeffs selects the matrix used for 10-bit input of a gamut.
func p010Coeffs(g ColorGamut) yuvCoeffs {
	switch g {
	case GamutBT709:
		return yuvBT709
	case GamutDisplayP3:
		return yuvBT601
	default:
		return yuvBT2020
	}
}

// toRGB converts normalized Y' in [0,1] and Cb, Cr in [-0.5,0.5].
func (k yuvCoeffs) toRGB(y, cb, cr float32) RGB {
	r := y + 2*(1-k.kr)*cr
	b := y + 2*(1-k.kb)*cb
	g := (y - k.kr*r - k.kb*b) / (1 - k.kr - k.kb)
	return RGB{R: r, G: g, B: b}
}

func (k yuvCoeffs) fromRGB(c RGB) (y, cb, cr float32) {
	y = k.kr*c.R + (1-k.kr-k.kb)*c.G + k.kb*c.B
	cb = (c.B - y) / (2 * (1 - k.kb))
	cr = (c.R - y) / (2 * (1 - k.kr))
	return y, cb, cr
}

// yuv8ToRGB decodes full range BT.601 8-bit samples, the JPEG convention.
func yuv8ToRGB(y, u, v uint8) RGB {
	return yuvBT601.toRGB(float32(y)/255, (float32(u)-128)/255, (float32(v)-128)/255)
}

func rgbToYUV8(c RGB) (uint8, uint8, uint8) {
	y, cb, cr := yuvBT601.fromRGB(c)
	return uint8(quantize(y, 255)), uint8(quantize(cb+128.0/255, 255)), uint8(quantize(cr+128.0/255, 255))
}

// p010ToRGB decodes limited range 10-bit samples.
func p010ToRGB(y, u, v uint16, k yuvCoeffs) RGB {
	return k.toRGB(
		(float32(y)-64)/876,
		(float32(u)-512)/896,
		(float32(v)-512)/896,
	)
}

func rgbToP010(c RGB, k yuvCoeffs) (uint16, uint16, uint16) {
	y, cb, cr := k.fromRGB(c)
	return uint16(clamp(y*876+64+0.5, 0, 1023)),
		uint16(clamp(cb*896+512+0.5, 0, 1023)),
		uint16(clamp(cr*896+512+0.5, 0, 1023))
}
