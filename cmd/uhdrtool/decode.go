package main

import (
	"bufio"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vearutop/jpegr"
	"github.com/vearutop/jpegr/internal/hdrio"
)

var decodeFlags struct {
	format string
	boost  float32
	gamut  string
}

var decodeCmd = &cobra.Command{
	Use:   "decode <input.jpg> <output>",
	Short: "Render a JPEG/R file",
	Long: `Render a JPEG/R file.

sdr output is written as an image by extension (.png, .jpg, .tif),
hdr-linear output is written as Radiance .hdr, hdr-pq and hdr-hlg
are written as raw RGBA1010102 words.`,
	Args: cobra.ExactArgs(2),
	RunE: runDecode,
}

func init() {
	f := decodeCmd.Flags()
	f.StringVar(&decodeFlags.format, "format", "", "sdr, hdr-linear, hdr-pq or hdr-hlg (default from config)")
	f.Float32Var(&decodeFlags.boost, "boost", 0, "display boost, >= 1 (default from config)")
	f.StringVar(&decodeFlags.gamut, "gamut", "", "output gamut, empty keeps the base gamut")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(_ *cobra.Command, args []string) error {
	format, err := jpegr.ParseOutputFormat(stringOr(decodeFlags.format, cfg.Decode.Format))
	if err != nil {
		return err
	}
	opts := jpegr.DecodeOptions{Format: format, Boost: decodeFlags.boost}
	if opts.Boost == 0 {
		opts.Boost = cfg.Decode.Boost
	}
	if g := stringOr(decodeFlags.gamut, cfg.Decode.Gamut); g != "" {
		if opts.Gamut, err = jpegr.ParseColorGamut(g); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(filepath.Clean(args[0]))
	if err != nil {
		return errors.Wrap(err, "read input")
	}
	img, meta, err := newJpegR(cfg.Encode.GainMapQuality).Decode(data, opts)
	if err != nil {
		return err
	}

	fields := logrus.Fields{"width": img.Width, "height": img.Height, "format": format.String()}
	if meta != nil {
		fields["max_content_boost"] = meta.MaxContentBoost
	}
	log.WithFields(fields).Info("decoded")

	return writeDecoded(args[1], img)
}

func writeDecoded(path string, img *jpegr.UncompressedImage) error {
	switch img.Format {
	case jpegr.PixelFormatRGBA8888:
		m := &image.NRGBA{Pix: img.Luma, Stride: 4 * img.Width, Rect: image.Rect(0, 0, img.Width, img.Height)}
		return errors.Wrap(imaging.Save(m, path), "save image")
	case jpegr.PixelFormatRGBAHalfFloat:
		m := hdrio.NewImage(img.Width, img.Height)
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				r, g, b, _ := jpegr.RGBAHalfAt(img, x, y)
				m.Set(x, y, r, g, b)
			}
		}
		f, err := os.Create(filepath.Clean(path))
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		w := bufio.NewWriter(f)
		if err := hdrio.EncodeRGBE(w, m); err != nil {
			_ = f.Close()
			return err
		}
		if err := w.Flush(); err != nil {
			_ = f.Close()
			return errors.Wrap(err, "write output")
		}
		return errors.Wrap(f.Close(), "close output")
	default:
		return errors.Wrap(os.WriteFile(path, img.Luma, 0o600), "write output")
	}
}
