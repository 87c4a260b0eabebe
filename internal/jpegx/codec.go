// Package jpegx wraps the standard JPEG codec and adds header inspection.
package jpegx

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"

	"github.com/pkg/errors"
)

// Encode writes img as a baseline JPEG.
// *image.YCbCr with 4:2:0 subsampling and *image.Gray are written without color conversion.
func Encode(w io.Writer, img image.Image, quality int) error {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		return errors.Wrap(err, "jpeg encode")
	}
	return nil
}

// EncodeBytes is Encode into a new buffer.
func EncodeBytes(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decodes a JPEG stream into *image.YCbCr, *image.Gray or *image.CMYK.
func Decode(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "jpeg decode")
	}
	return img, nil
}
