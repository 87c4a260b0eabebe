package jpegr

import "encoding/binary"

// bytesPerSample of the luma (or packed) plane.
func (f PixelFormat) bytesPerSample() int {
	switch f {
	case PixelFormatYUV420, PixelFormatGray8:
		return 1
	case PixelFormatP010:
		return 2
	case PixelFormatRGBA8888, PixelFormatRGBA1010102:
		return 4
	case PixelFormatRGBAHalfFloat:
		return 8
	default:
		return 0
	}
}

func (f PixelFormat) subsampled() bool {
	return f == PixelFormatYUV420 || f == PixelFormatP010
}

// FrameSize returns the number of bytes a contiguous, default stride image occupies.
func FrameSize(width, height int, format PixelFormat) int {
	bps := format.bytesPerSample()
	n := width * height * bps
	switch format {
	case PixelFormatYUV420:
		n += 2 * (width / 2) * (height / 2)
	case PixelFormatP010:
		n += width * (height / 2) * bps
	}
	return n
}

// NewUncompressedImage allocates a contiguous image with default strides.
func NewUncompressedImage(width, height int, format PixelFormat, gamut ColorGamut) *UncompressedImage {
	return &UncompressedImage{
		Width:  width,
		Height: height,
		Format: format,
		Gamut:  gamut,
		Luma:   make([]byte, FrameSize(width, height, format)),
	}
}

func (img *UncompressedImage) lumaStride() int {
	if img.LumaStride > 0 {
		return img.LumaStride
	}
	return img.Width
}

func (img *UncompressedImage) chromaStride() int {
	if img.ChromaStride > 0 {
		return img.ChromaStride
	}
	if img.Format == PixelFormatYUV420 {
		return img.lumaStride() / 2
	}
	return img.lumaStride()
}

// chroma returns the chroma bytes, either the separate plane or the tail of Luma.
func (img *UncompressedImage) chroma() []byte {
	if img.Chroma != nil {
		return img.Chroma
	}
	off := img.lumaStride() * img.Height * img.Format.bytesPerSample()
	if off > len(img.Luma) {
		return nil
	}
	return img.Luma[off:]
}

func (img *UncompressedImage) validate(name string) error {
	if img == nil {
		return invalidArgf("%s image missing", name)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return invalidArgf("%s image has zero area: %dx%d", name, img.Width, img.Height)
	}
	bps := img.Format.bytesPerSample()
	if bps == 0 {
		return invalidArgf("%s image pixel format %s", name, img.Format)
	}
	if img.Format.subsampled() && (img.Width%2 != 0 || img.Height%2 != 0) {
		return invalidArgf("%s image dimensions must be even for %s: %dx%d", name, img.Format, img.Width, img.Height)
	}
	ls := img.lumaStride()
	if ls < img.Width {
		return invalidArgf("%s image luma stride %d < width %d", name, ls, img.Width)
	}
	lumaBytes := ls * img.Height * bps
	if len(img.Luma) < lumaBytes {
		return invalidArgf("%s image luma buffer %d < %d", name, len(img.Luma), lumaBytes)
	}
	if !img.Format.subsampled() {
		return nil
	}

	cs := img.chromaStride()
	var minCS, chromaBytes int
	switch img.Format {
	case PixelFormatYUV420:
		minCS = img.Width / 2
		chromaBytes = 2 * cs * (img.Height / 2)
	case PixelFormatP010:
		minCS = img.Width
		chromaBytes = cs * (img.Height / 2) * bps
	}
	if cs < minCS {
		return invalidArgf("%s image chroma stride %d < %d", name, cs, minCS)
	}
	if c := img.chroma(); len(c) < chromaBytes {
		return invalidArgf("%s image chroma buffer %d < %d", name, len(c), chromaBytes)
	}
	return nil
}

// yuv420View addresses the planes of an 8-bit I420 image.
type yuv420View struct {
	w, h int
	y    []byte
	ys   int
	u, v []byte
	cs   int
}

func newYUV420View(img *UncompressedImage) yuv420View {
	cs := img.chromaStride()
	c := img.chroma()
	planeSize := cs * (img.Height / 2)
	return yuv420View{
		w: img.Width, h: img.Height,
		y: img.Luma, ys: img.lumaStride(),
		u: c[:planeSize], v: c[planeSize : 2*planeSize],
		cs: cs,
	}
}

func (v yuv420View) at(x, y int) (uint8, uint8, uint8) {
	ci := (y/2)*v.cs + x/2
	return v.y[y*v.ys+x], v.u[ci], v.v[ci]
}

// p010View addresses the planes of a P010 image.
type p010View struct {
	w, h int
	y    []byte
	ys   int
	uv   []byte
	cs   int
}

func newP010View(img *UncompressedImage) p010View {
	return p010View{
		w: img.Width, h: img.Height,
		y: img.Luma, ys: img.lumaStride(),
		uv: img.chroma(), cs: img.chromaStride(),
	}
}

// at returns 10-bit code values.
func (v p010View) at(x, y int) (uint16, uint16, uint16) {
	yi := 2 * (y*v.ys + x)
	ci := 2 * ((y/2)*v.cs + (x/2)*2)
	return binary.LittleEndian.Uint16(v.y[yi:]) >> 6,
		binary.LittleEndian.Uint16(v.uv[ci:]) >> 6,
		binary.LittleEndian.Uint16(v.uv[ci+2:]) >> 6
}
