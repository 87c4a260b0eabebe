// Package hdrio loads linear HDR images from OpenEXR, Radiance RGBE and TIFF files.
package hdrio

import (
	"bytes"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
)

// Image is interleaved linear RGB, 1.0 is SDR reference white.
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

// NewImage allocates a black image.
func NewImage(w, h int) *Image {
	return &Image{Width: w, Height: h, Pix: make([]float32, 3*w*h)}
}

// At returns the color at a position clamped to the image bounds.
func (m *Image) At(x, y int) (r, g, b float32) {
	x = min(max(x, 0), m.Width-1)
	y = min(max(y, 0), m.Height-1)
	i := 3 * (y*m.Width + x)
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// Set stores a color.
func (m *Image) Set(x, y int, r, g, b float32) {
	i := 3 * (y*m.Width + x)
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = r, g, b
}

// Format names an HDR file format.
type Format string

const (
	FormatEXR  Format = "exr"
	FormatRGBE Format = "hdr"
	FormatTIFF Format = "tiff"
)

// FormatOf guesses the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exr":
		return FormatEXR, nil
	case ".hdr", ".rgbe", ".pic":
		return FormatRGBE, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	default:
		return "", errors.Errorf("unknown hdr format of %q", path)
	}
}

// Load reads an HDR file, the format is chosen by extension.
func Load(path string) (*Image, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, "read hdr file")
	}
	return Decode(data, f)
}

// Decode reads an HDR image of a known format.
func Decode(data []byte, f Format) (*Image, error) {
	switch f {
	case FormatEXR:
		return DecodeEXR(data)
	case FormatRGBE:
		return DecodeRGBE(bytes.NewReader(data))
	case FormatTIFF:
		return DecodeTIFF(bytes.NewReader(data))
	default:
		return nil, errors.Errorf("unsupported hdr format %q", f)
	}
}

// DecodeRGBE reads a Radiance picture.
func DecodeRGBE(r io.Reader) (*Image, error) {
	m, err := rgbe.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode rgbe")
	}
	hm, ok := m.(hdr.Image)
	if !ok {
		return nil, errors.Errorf("rgbe decoder returned %T", m)
	}
	return FromHDR(hm), nil
}

// FromHDR copies an hdr.Image.
func FromHDR(m hdr.Image) *Image {
	b := m.Bounds()
	out := NewImage(b.Dx(), b.Dy())
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			r, g, bl, _ := m.HDRAt(b.Min.X+x, b.Min.Y+y).HDRRGBA()
			out.Set(x, y, float32(r), float32(g), float32(bl))
		}
	}
	return out
}

// ToHDR wraps the pixels into an hdr.Image for hdr codecs and tools.
func (m *Image) ToHDR() hdr.Image {
	out := hdr.NewRGB(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			r, g, b := m.At(x, y)
			out.SetRGB(x, y, hdrcolor.RGB{R: float64(r), G: float64(g), B: float64(b)})
		}
	}
	return out
}

// EncodeRGBE writes a Radiance picture.
func EncodeRGBE(w io.Writer, m *Image) error {
	return errors.Wrap(rgbe.Encode(w, m.ToHDR()), "encode rgbe")
}

// DecodeTIFF reads an integer TIFF, samples are treated as linear with full scale at SDR white.
func DecodeTIFF(r io.Reader) (*Image, error) {
	m, err := tiff.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode tiff")
	}
	b := m.Bounds()
	if b.Empty() {
		return nil, errors.New("empty tiff image")
	}
	out := NewImage(b.Dx(), b.Dy())
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			r, g, bl, _ := m.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.Set(x, y, float32(r)/0xffff, float32(g)/0xffff, float32(bl)/0xffff)
		}
	}
	return out, nil
}
