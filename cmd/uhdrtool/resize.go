package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vearutop/jpegr"
)

var resizeFlags struct {
	width, height  int
	quality        int
	gainMapQuality int
	interpolation  string
}

var resizeCmd = &cobra.Command{
	Use:   "resize <input.jpg> <output.jpg>",
	Short: "Resize a JPEG/R file keeping its gain map",
	Args:  cobra.ExactArgs(2),
	RunE:  runResize,
}

func init() {
	f := resizeCmd.Flags()
	f.IntVar(&resizeFlags.width, "width", 0, "target width, 0 keeps the aspect ratio")
	f.IntVar(&resizeFlags.height, "height", 0, "target height, 0 keeps the aspect ratio")
	f.IntVarP(&resizeFlags.quality, "quality", "q", 0, "base JPEG quality, 0 keeps the source quality")
	f.IntVar(&resizeFlags.gainMapQuality, "gain-map-quality", 0, "gain map JPEG quality, 0 keeps the source quality")
	f.StringVar(&resizeFlags.interpolation, "interpolation", "lanczos3",
		"nearest, bilinear, bicubic, mitchell, lanczos2 or lanczos3")
	rootCmd.AddCommand(resizeCmd)
}

// targetSize fills a zero dimension from the aspect ratio and rounds both to even values.
func targetSize(srcW, srcH, w, h int) (int, int, error) {
	switch {
	case w <= 0 && h <= 0:
		return 0, 0, errors.New("width or height is required")
	case w <= 0:
		w = int(float64(srcW) * float64(h) / float64(srcH))
	case h <= 0:
		h = int(float64(srcH) * float64(w) / float64(srcW))
	}
	w, h = max(w&^1, 2), max(h&^1, 2)
	return w, h, nil
}

func runResize(_ *cobra.Command, args []string) error {
	interp, err := jpegr.ParseInterpolation(resizeFlags.interpolation)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Clean(args[0]))
	if err != nil {
		return errors.Wrap(err, "read input")
	}
	info, err := jpegr.ReadInfo(data)
	if err != nil {
		return err
	}
	w, h, err := targetSize(info.Width, info.Height, resizeFlags.width, resizeFlags.height)
	if err != nil {
		return err
	}

	out, err := newJpegR(cfg.Encode.GainMapQuality).Resize(data, w, h, jpegr.ResizeOptions{
		Quality:        resizeFlags.quality,
		GainMapQuality: resizeFlags.gainMapQuality,
		Interpolation:  interp,
	})
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"from":  [2]int{info.Width, info.Height},
		"to":    [2]int{w, h},
		"bytes": len(out),
	}).Info("resized")
	return errors.Wrap(os.WriteFile(args[1], out, 0o600), "write output")
}
