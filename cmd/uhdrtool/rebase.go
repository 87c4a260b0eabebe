package main

import (
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vearutop/jpegr"
)

var rebaseFlags struct {
	quality        int
	gainMapQuality int
	gamut          string
}

var rebaseCmd = &cobra.Command{
	Use:   "rebase <input.jpg> <new-sdr-image> <output.jpg>",
	Short: "Replace the SDR rendition and recompute the gain map",
	Args:  cobra.ExactArgs(3),
	RunE:  runRebase,
}

func init() {
	f := rebaseCmd.Flags()
	f.IntVarP(&rebaseFlags.quality, "quality", "q", 0, "base JPEG quality, 0 uses the default")
	f.IntVar(&rebaseFlags.gainMapQuality, "gain-map-quality", 0, "gain map JPEG quality, 0 uses the config")
	f.StringVar(&rebaseFlags.gamut, "gamut", "bt709", "gamut of the new SDR image")
	rootCmd.AddCommand(rebaseCmd)
}

func runRebase(_ *cobra.Command, args []string) error {
	gamut, err := jpegr.ParseColorGamut(rebaseFlags.gamut)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Clean(args[0]))
	if err != nil {
		return errors.Wrap(err, "read input")
	}
	img, err := imaging.Open(args[1], imaging.AutoOrientation(true))
	if err != nil {
		return errors.Wrap(err, "open sdr image")
	}
	sdr, err := jpegr.YUV420FromImage(img, gamut)
	if err != nil {
		return err
	}

	out, err := newJpegR(cfg.Encode.GainMapQuality).Rebase(data, sdr, jpegr.RebaseOptions{
		Quality:        rebaseFlags.quality,
		GainMapQuality: rebaseFlags.gainMapQuality,
	})
	if err != nil {
		return err
	}
	log.WithField("output", args[2]).WithField("bytes", len(out)).Info("rebased")
	return errors.Wrap(os.WriteFile(args[2], out, 0o600), "write output")
}
