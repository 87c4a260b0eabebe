package jpegr

import "strconv"

// ColorGamut identifies a supported color gamut.
type ColorGamut int

const (
	GamutUnspecified ColorGamut = iota
	GamutBT709
	GamutDisplayP3
	GamutBT2100
)

func (g ColorGamut) String() string {
	switch g {
	case GamutUnspecified:
		return "unspecified"
	case GamutBT709:
		return "bt709"
	case GamutDisplayP3:
		return "display-p3"
	case GamutBT2100:
		return "bt2100"
	default:
		return "gamut(" + strconv.Itoa(int(g)) + ")"
	}
}

func (g ColorGamut) concrete() bool {
	return g >= GamutBT709 && g <= GamutBT2100
}

// ParseColorGamut maps a name produced by ColorGamut.String back to its value.
func ParseColorGamut(s string) (ColorGamut, error) {
	for g := GamutUnspecified; g <= GamutBT2100; g++ {
		if g.String() == s {
			return g, nil
		}
	}
	return GamutUnspecified, invalidArgf("unknown color gamut %q", s)
}

// ColorTransfer identifies a supported transfer function.
type ColorTransfer int

const (
	TransferUnspecified ColorTransfer = iota
	TransferSRGB
	TransferLinear
	TransferPQ
	TransferHLG
)

func (t ColorTransfer) String() string {
	switch t {
	case TransferUnspecified:
		return "unspecified"
	case TransferSRGB:
		return "srgb"
	case TransferLinear:
		return "linear"
	case TransferPQ:
		return "pq"
	case TransferHLG:
		return "hlg"
	default:
		return "transfer(" + strconv.Itoa(int(t)) + ")"
	}
}

func (t ColorTransfer) concrete() bool {
	return t >= TransferSRGB && t <= TransferHLG
}

// ParseColorTransfer maps a name produced by ColorTransfer.String back to its value.
func ParseColorTransfer(s string) (ColorTransfer, error) {
	for t := TransferUnspecified; t <= TransferHLG; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return TransferUnspecified, invalidArgf("unknown color transfer %q", s)
}

// OutputFormat selects the pixel representation produced by decoding.
type OutputFormat int

const (
	OutputUnspecified OutputFormat = iota
	// OutputSDR is the base rendition as sRGB RGBA8888, the gain map is not applied.
	OutputSDR
	// OutputHDRLinear is linear light RGBA half-float, 1.0 is SDR white.
	OutputHDRLinear
	// OutputHDRPQ is PQ encoded RGBA1010102.
	OutputHDRPQ
	// OutputHDRHLG is HLG encoded RGBA1010102.
	OutputHDRHLG
)

func (f OutputFormat) String() string {
	switch f {
	case OutputUnspecified:
		return "unspecified"
	case OutputSDR:
		return "sdr"
	case OutputHDRLinear:
		return "hdr-linear"
	case OutputHDRPQ:
		return "hdr-pq"
	case OutputHDRHLG:
		return "hdr-hlg"
	default:
		return "output(" + strconv.Itoa(int(f)) + ")"
	}
}

func (f OutputFormat) concrete() bool {
	return f >= OutputSDR && f <= OutputHDRHLG
}

// ParseOutputFormat maps a name produced by OutputFormat.String back to its value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	for f := OutputUnspecified; f <= OutputHDRHLG; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return OutputUnspecified, invalidArgf("unknown output format %q", s)
}

// PixelFormat describes the memory layout of an UncompressedImage.
type PixelFormat int

const (
	PixelFormatUnspecified PixelFormat = iota
	// PixelFormatYUV420 is 8-bit planar I420: Y plane, then U and V planes at half resolution.
	PixelFormatYUV420
	// PixelFormatP010 is 10-bit 4:2:0 in 16-bit little-endian samples with the value in the upper bits,
	// a Y plane followed by an interleaved UV plane.
	PixelFormatP010
	// PixelFormatGray8 is a single 8-bit channel.
	PixelFormatGray8
	// PixelFormatRGBA8888 is packed 8-bit RGBA.
	PixelFormatRGBA8888
	// PixelFormatRGBAHalfFloat is packed little-endian IEEE 754 half-float RGBA.
	PixelFormatRGBAHalfFloat
	// PixelFormatRGBA1010102 is a packed little-endian 32-bit word, R in bits 0-9, A in bits 30-31.
	PixelFormatRGBA1010102
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatUnspecified:
		return "unspecified"
	case PixelFormatYUV420:
		return "yuv420"
	case PixelFormatP010:
		return "p010"
	case PixelFormatGray8:
		return "gray8"
	case PixelFormatRGBA8888:
		return "rgba8888"
	case PixelFormatRGBAHalfFloat:
		return "rgba-half-float"
	case PixelFormatRGBA1010102:
		return "rgba1010102"
	default:
		return "pixel-format(" + strconv.Itoa(int(f)) + ")"
	}
}

// UncompressedImage is a borrowed view over caller owned pixel memory.
//
// Strides are counted in samples of the format (pixels for packed formats), zero means default.
// For YUV420 and P010 a nil Chroma means the chroma planes follow the luma plane in Luma.
type UncompressedImage struct {
	Width  int
	Height int
	Format PixelFormat
	Gamut  ColorGamut

	Luma       []byte
	LumaStride int

	Chroma       []byte
	ChromaStride int
}

// CompressedImage is an encoded single-layer JPEG.
// The gamut is not self-described by the bytes and is tagged by the caller.
type CompressedImage struct {
	Data  []byte
	Gamut ColorGamut
}

// GainMapMetadata describes how gain map samples map to gain factors.
// Boost and capacity values are linear multipliers, 1.0 is SDR.
type GainMapMetadata struct {
	Version         string  `yaml:"version"`
	MinContentBoost float32 `yaml:"minContentBoost"`
	MaxContentBoost float32 `yaml:"maxContentBoost"`
	Gamma           float32 `yaml:"gamma"`
	OffsetSDR       float32 `yaml:"offsetSdr"`
	OffsetHDR       float32 `yaml:"offsetHdr"`
	HDRCapacityMin  float32 `yaml:"hdrCapacityMin"`
	HDRCapacityMax  float32 `yaml:"hdrCapacityMax"`
}

// Passthrough holds opaque blobs carried from encode to the container without interpretation.
type Passthrough struct {
	// Exif is an APP1 payload, "Exif\x00\x00" is prepended on mux when missing.
	Exif []byte
	// ICC is a complete ICC profile, split into ICC_PROFILE chunks on mux.
	ICC []byte
}

// DecodeOptions controls JpegR.Decode.
type DecodeOptions struct {
	// Boost is the requested display boost, must be >= 1, values above MaxContentBoost are clamped.
	Boost float32
	// Format selects the output pixel representation.
	Format OutputFormat
	// Gamut of the output pixels, GamutUnspecified keeps the base image gamut.
	Gamut ColorGamut
}
