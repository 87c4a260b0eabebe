package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vearutop/jpegr"
	"gopkg.in/yaml.v3"
)

var infoCmd = &cobra.Command{
	Use:   "info <input.jpg>",
	Short: "Print dimensions, digests and gain map metadata as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var detectCmd = &cobra.Command{
	Use:   "detect <input.jpg>...",
	Short: "Report which files carry a gain map",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDetect,
}

func init() {
	rootCmd.AddCommand(infoCmd, detectCmd)
}

type infoReport struct {
	File          string                 `yaml:"file"`
	Width         int                    `yaml:"width"`
	Height        int                    `yaml:"height"`
	Gamut         string                 `yaml:"gamut"`
	BaseSize      int                    `yaml:"baseSize"`
	BaseDigest    string                 `yaml:"baseDigest,omitempty"`
	GainMap       bool                   `yaml:"gainMap"`
	GainMapWidth  int                    `yaml:"gainMapWidth,omitempty"`
	GainMapHeight int                    `yaml:"gainMapHeight,omitempty"`
	GainMapSize   int                    `yaml:"gainMapSize,omitempty"`
	GainMapDigest string                 `yaml:"gainMapDigest,omitempty"`
	ExifSize      int                    `yaml:"exifSize,omitempty"`
	ICCSize       int                    `yaml:"iccSize,omitempty"`
	Metadata      *jpegr.GainMapMetadata `yaml:"metadata,omitempty"`
	Error         string                 `yaml:"error,omitempty"`
}

func digest(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}

func runInfo(_ *cobra.Command, args []string) error {
	data, err := os.ReadFile(filepath.Clean(args[0]))
	if err != nil {
		return errors.Wrap(err, "read input")
	}

	info, ierr := jpegr.ReadInfo(data)
	r := infoReport{
		File:          args[0],
		Width:         info.Width,
		Height:        info.Height,
		Gamut:         info.Gamut.String(),
		BaseSize:      info.BaseSize,
		GainMap:       info.HasGainMap,
		GainMapWidth:  info.GainMapWidth,
		GainMapHeight: info.GainMapHeight,
		GainMapSize:   info.GainMapSize,
		ExifSize:      len(info.Exif),
		ICCSize:       len(info.ICC),
		Metadata:      info.Metadata,
	}
	if ierr != nil {
		r.Error = ierr.Error()
	} else if d, err := jpegr.Demux(data); err == nil {
		r.BaseDigest = digest(d.Base)
		r.GainMapDigest = digest(d.GainMap)
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "encode report")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "encode report")
	}
	return ierr
}

func runDetect(_ *cobra.Command, args []string) error {
	for _, path := range args {
		ok, err := detectFile(path)
		if err != nil {
			log.WithError(err).WithField("file", path).Error("detect failed")
			continue
		}
		fmt.Printf("%s\t%t\n", path, ok)
	}
	return nil
}

func detectFile(path string) (bool, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return false, errors.Wrap(err, "open input")
	}
	defer func() {
		_ = f.Close()
	}()
	return jpegr.Detect(bufio.NewReader(f))
}
