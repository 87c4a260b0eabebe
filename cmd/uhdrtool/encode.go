package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vearutop/jpegr"
	"github.com/vearutop/jpegr/internal/hdrio"
)

var encodeFlags struct {
	width, height  int
	transfer       string
	gamut          string
	quality        int
	gainMapQuality int
	sdr            string
	base           string
	sdrGamut       string
	exif           string
	icc            string
}

var encodeCmd = &cobra.Command{
	Use:   "encode <hdr-input> <output.jpg>",
	Short: "Encode an HDR image (.p010, .exr, .hdr, .tiff) into JPEG/R",
	Args:  cobra.ExactArgs(2),
	RunE:  runEncode,
}

func init() {
	f := encodeCmd.Flags()
	f.IntVar(&encodeFlags.width, "width", 0, "width of raw input")
	f.IntVar(&encodeFlags.height, "height", 0, "height of raw input")
	f.StringVar(&encodeFlags.transfer, "transfer", "", "HDR transfer: hlg or pq (default from config)")
	f.StringVar(&encodeFlags.gamut, "gamut", "", "HDR gamut: bt709, display-p3, bt2100 (default from config)")
	f.IntVarP(&encodeFlags.quality, "quality", "q", -1, "base JPEG quality (default from config)")
	f.IntVar(&encodeFlags.gainMapQuality, "gain-map-quality", -1, "gain map JPEG quality (default from config)")
	f.StringVar(&encodeFlags.sdr, "sdr", "", "SDR rendition: raw .yuv (YUV420) or any image file")
	f.StringVar(&encodeFlags.base, "base", "", "compressed SDR base JPEG, kept verbatim with its EXIF and ICC")
	f.StringVar(&encodeFlags.sdrGamut, "sdr-gamut", "bt709", "gamut of the SDR rendition")
	f.StringVar(&encodeFlags.exif, "exif", "", "EXIF payload file to embed")
	f.StringVar(&encodeFlags.icc, "icc", "", "ICC profile file to embed")
	rootCmd.AddCommand(encodeCmd)
}

func intOr(v, fallback int) int {
	if v < 0 {
		return fallback
	}
	return v
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func runEncode(_ *cobra.Command, args []string) error {
	ef := encodeFlags
	tf, err := jpegr.ParseColorTransfer(stringOr(ef.transfer, cfg.Encode.Transfer))
	if err != nil {
		return err
	}
	gamut, err := jpegr.ParseColorGamut(stringOr(ef.gamut, cfg.Encode.Gamut))
	if err != nil {
		return err
	}
	sdrGamut, err := jpegr.ParseColorGamut(ef.sdrGamut)
	if err != nil {
		return err
	}
	quality := intOr(ef.quality, cfg.Encode.Quality)
	if err := checkEncodeInputs(ef.base, ef.exif, ef.icc); err != nil {
		return err
	}

	hdr, err := loadHDR(args[0], ef.width, ef.height, gamut, tf)
	if err != nil {
		return err
	}
	extras, err := loadPassthrough(ef.exif, ef.icc)
	if err != nil {
		return err
	}

	var req jpegr.EncodeRequest
	switch {
	case ef.base != "":
		base, err := os.ReadFile(filepath.Clean(ef.base))
		if err != nil {
			return errors.Wrap(err, "read base")
		}
		var sdr *jpegr.UncompressedImage
		if ef.sdr != "" {
			if sdr, err = loadSDR(ef.sdr, hdr.Width, hdr.Height, sdrGamut); err != nil {
				return err
			}
		}
		req = jpegr.EncodeHDRAndCompressedSDR{
			HDR:      hdr,
			SDR:      sdr,
			Base:     jpegr.CompressedImage{Data: base, Gamut: sdrGamut},
			Transfer: tf,
			Quality:  quality,
		}
	case ef.sdr != "":
		sdr, err := loadSDR(ef.sdr, hdr.Width, hdr.Height, sdrGamut)
		if err != nil {
			return err
		}
		req = jpegr.EncodeHDRAndSDR{HDR: hdr, SDR: sdr, Transfer: tf, Quality: quality, Passthrough: extras}
	default:
		req = jpegr.EncodeHDR{HDR: hdr, Transfer: tf, Quality: quality, Passthrough: extras}
	}

	out, err := newJpegR(intOr(ef.gainMapQuality, cfg.Encode.GainMapQuality)).Encode(req)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"output": args[1],
		"bytes":  len(out),
		"width":  hdr.Width,
		"height": hdr.Height,
	}).Info("encoded")
	return errors.Wrap(os.WriteFile(args[1], out, 0o600), "write output")
}

// checkEncodeInputs rejects passthrough files for a base JPEG, which is kept with its own segments.
func checkEncodeInputs(base, exif, icc string) error {
	if base != "" && (exif != "" || icc != "") {
		return errors.New("--exif and --icc can not be combined with --base")
	}
	return nil
}

// loadHDR reads raw P010 by size or converts a linear HDR file.
func loadHDR(path string, w, h int, gamut jpegr.ColorGamut, tf jpegr.ColorTransfer) (*jpegr.UncompressedImage, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".p010" || ext == ".raw" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, errors.Wrap(err, "read hdr input")
		}
		if want := jpegr.FrameSize(w, h, jpegr.PixelFormatP010); w <= 0 || h <= 0 || len(data) != want {
			return nil, errors.Errorf("raw p010 input of %d bytes does not match %dx%d", len(data), w, h)
		}
		return &jpegr.UncompressedImage{Width: w, Height: h, Format: jpegr.PixelFormatP010, Gamut: gamut, Luma: data}, nil
	}

	img, err := hdrio.Load(path)
	if err != nil {
		return nil, err
	}
	return jpegr.P010FromLinear(img.Width, img.Height, img.Pix, gamut, tf)
}

// loadSDR reads raw YUV420 or decodes an image file and resizes it to the HDR size.
func loadSDR(path string, w, h int, gamut jpegr.ColorGamut) (*jpegr.UncompressedImage, error) {
	if strings.EqualFold(filepath.Ext(path), ".yuv") {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, errors.Wrap(err, "read sdr input")
		}
		if want := jpegr.FrameSize(w, h, jpegr.PixelFormatYUV420); len(data) != want {
			return nil, errors.Errorf("raw yuv420 input of %d bytes does not match %dx%d", len(data), w, h)
		}
		return &jpegr.UncompressedImage{Width: w, Height: h, Format: jpegr.PixelFormatYUV420, Gamut: gamut, Luma: data}, nil
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "open sdr input")
	}
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		log.WithFields(logrus.Fields{"from": b.Size(), "to": [2]int{w, h}}).Debug("fitting sdr to hdr size")
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	return jpegr.YUV420FromImage(img, gamut)
}

func loadPassthrough(exifPath, iccPath string) (*jpegr.Passthrough, error) {
	var p jpegr.Passthrough
	var err error
	if exifPath != "" {
		if p.Exif, err = os.ReadFile(filepath.Clean(exifPath)); err != nil {
			return nil, errors.Wrap(err, "read exif")
		}
	}
	if iccPath != "" {
		if p.ICC, err = os.ReadFile(filepath.Clean(iccPath)); err != nil {
			return nil, errors.Wrap(err, "read icc")
		}
	}
	return &p, nil
}
