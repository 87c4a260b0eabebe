package jpegr

import (
	"image"

	"github.com/pkg/errors"
	"github.com/vearutop/jpegr/internal/jpegx"
)

// Codec compresses and decompresses single-layer JPEG images.
//
// Compress accepts PixelFormatYUV420 and PixelFormatGray8 images.
// Decompress returns PixelFormatYUV420 for color streams and PixelFormatGray8 for grayscale ones,
// the gamut of the result is left unspecified.
type Codec interface {
	Compress(img *UncompressedImage, quality int) ([]byte, error)
	Decompress(data []byte) (*UncompressedImage, error)
}

type stdCodec struct{}

// NewStdCodec returns a Codec backed by the standard library JPEG implementation.
func NewStdCodec() Codec {
	return stdCodec{}
}

func (stdCodec) Compress(img *UncompressedImage, quality int) ([]byte, error) {
	if err := img.validate("codec input"); err != nil {
		return nil, err
	}
	if quality < 0 || quality > 100 {
		return nil, invalidArgf("quality %d out of [0, 100]", quality)
	}
	rect := image.Rect(0, 0, img.Width, img.Height)

	switch img.Format {
	case PixelFormatYUV420:
		v := newYUV420View(img)
		return jpegx.EncodeBytes(&image.YCbCr{
			Y: v.y, Cb: v.u, Cr: v.v,
			YStride: v.ys, CStride: v.cs,
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           rect,
		}, quality)
	case PixelFormatGray8:
		return jpegx.EncodeBytes(&image.Gray{Pix: img.Luma, Stride: img.lumaStride(), Rect: rect}, quality)
	default:
		return nil, invalidArgf("codec cannot compress %s", img.Format)
	}
}

func (stdCodec) Decompress(data []byte) (*UncompressedImage, error) {
	m, err := jpegx.Decode(data)
	if err != nil {
		return nil, err
	}
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()

	switch m := m.(type) {
	case *image.Gray:
		out := NewUncompressedImage(w, h, PixelFormatGray8, GamutUnspecified)
		for y := 0; y < h; y++ {
			copy(out.Luma[y*w:(y+1)*w], m.Pix[m.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return out, nil
	case *image.YCbCr:
		if w%2 != 0 || h%2 != 0 {
			return nil, errors.Errorf("odd image dimensions %dx%d", w, h)
		}
		return ycbcrToYUV420(m), nil
	default:
		return nil, errors.Errorf("unsupported jpeg color model %T", m)
	}
}

// ycbcrToYUV420 copies planes, averaging chroma over 2x2 for non 4:2:0 subsampling.
func ycbcrToYUV420(m *image.YCbCr) *UncompressedImage {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	out := NewUncompressedImage(w, h, PixelFormatYUV420, GamutUnspecified)
	ov := newYUV420View(out)

	for y := 0; y < h; y++ {
		copy(ov.y[y*w:(y+1)*w], m.Y[m.YOffset(b.Min.X, b.Min.Y+y):])
	}
	if m.SubsampleRatio == image.YCbCrSubsampleRatio420 && b.Min.X%2 == 0 && b.Min.Y%2 == 0 {
		for cy := 0; cy < h/2; cy++ {
			off := m.COffset(b.Min.X, b.Min.Y+2*cy)
			copy(ov.u[cy*ov.cs:cy*ov.cs+w/2], m.Cb[off:])
			copy(ov.v[cy*ov.cs:cy*ov.cs+w/2], m.Cr[off:])
		}
		return out
	}
	for cy := 0; cy < h/2; cy++ {
		for cx := 0; cx < w/2; cx++ {
			var su, sv int
			for d := 0; d < 4; d++ {
				off := m.COffset(b.Min.X+2*cx+d%2, b.Min.Y+2*cy+d/2)
				su += int(m.Cb[off])
				sv += int(m.Cr[off])
			}
			ov.u[cy*ov.cs+cx] = uint8((su + 2) / 4)
			ov.v[cy*ov.cs+cx] = uint8((sv + 2) / 4)
		}
	}
	return out
}

// asYUV420 expands a grayscale decode to YUV420 with neutral chroma.
func asYUV420(img *UncompressedImage) *UncompressedImage {
	if img.Format != PixelFormatGray8 {
		return img
	}
	out := NewUncompressedImage(img.Width, img.Height, PixelFormatYUV420, img.Gamut)
	for y := 0; y < img.Height; y++ {
		copy(out.Luma[y*img.Width:(y+1)*img.Width], img.Luma[y*img.lumaStride():])
	}
	for i := img.Width * img.Height; i < len(out.Luma); i++ {
		out.Luma[i] = 128
	}
	return out
}

// asGray8 keeps the luma plane of a color decode.
func asGray8(img *UncompressedImage) *UncompressedImage {
	if img.Format != PixelFormatYUV420 {
		return img
	}
	out := NewUncompressedImage(img.Width, img.Height, PixelFormatGray8, GamutUnspecified)
	for y := 0; y < img.Height; y++ {
		copy(out.Luma[y*img.Width:(y+1)*img.Width], img.Luma[y*img.lumaStride():])
	}
	return out
}
