package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vearutop/jpegr"
	"gopkg.in/yaml.v3"
)

const (
	baseFile     = "base.jpg"
	gainMapFile  = "gainmap.jpg"
	metadataFile = "metadata.yaml"
	exifFile     = "exif.bin"
	iccFile      = "profile.icc"
)

var demuxCmd = &cobra.Command{
	Use:   "demux <input.jpg> <dir>",
	Short: "Split a JPEG/R file into base, gain map, metadata, EXIF and ICC files",
	Args:  cobra.ExactArgs(2),
	RunE:  runDemux,
}

var muxCmd = &cobra.Command{
	Use:   "mux <dir> <output.jpg>",
	Short: "Assemble a JPEG/R file from the files written by demux",
	Args:  cobra.ExactArgs(2),
	RunE:  runMux,
}

func init() {
	rootCmd.AddCommand(demuxCmd, muxCmd)
}

func runDemux(_ *cobra.Command, args []string) error {
	data, err := os.ReadFile(filepath.Clean(args[0]))
	if err != nil {
		return errors.Wrap(err, "read input")
	}
	d, err := jpegr.Demux(data)
	if err != nil {
		return err
	}

	dir := args[1]
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrap(err, "create output dir")
	}

	files := map[string][]byte{
		baseFile:    d.Base,
		gainMapFile: d.GainMap,
		exifFile:    d.Exif,
		iccFile:     d.ICC,
	}
	if d.Metadata != nil {
		meta, err := yaml.Marshal(d.Metadata)
		if err != nil {
			return errors.Wrap(err, "marshal metadata")
		}
		files[metadataFile] = meta
	}
	for name, b := range files {
		if len(b) == 0 {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), b, 0o600); err != nil {
			return errors.Wrapf(err, "write %s", name)
		}
		log.WithField("file", name).WithField("bytes", len(b)).Debug("written")
	}
	log.WithField("dir", dir).WithField("gain_map", d.GainMap != nil).Info("demuxed")
	return nil
}

// readOptional returns nil for a missing file.
func readOptional(path string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return b, errors.Wrapf(err, "read %s", filepath.Base(path))
}

func runMux(_ *cobra.Command, args []string) error {
	dir := args[0]
	base, err := os.ReadFile(filepath.Join(dir, baseFile))
	if err != nil {
		return errors.Wrap(err, "read base")
	}

	var parts [4][]byte
	for i, name := range []string{gainMapFile, metadataFile, exifFile, iccFile} {
		if parts[i], err = readOptional(filepath.Join(dir, name)); err != nil {
			return err
		}
	}

	var meta *jpegr.GainMapMetadata
	if parts[1] != nil {
		meta = &jpegr.GainMapMetadata{}
		if err := yaml.Unmarshal(parts[1], meta); err != nil {
			return errors.Wrap(err, "parse metadata")
		}
	}

	var extras *jpegr.Passthrough
	if parts[0] != nil {
		extras = &jpegr.Passthrough{Exif: parts[2], ICC: parts[3]}
	}
	// A plain base already carries its own segments.
	out, err := jpegr.Mux(base, parts[0], meta, extras)
	if err != nil {
		return err
	}
	log.WithField("output", args[1]).WithField("bytes", len(out)).Info("muxed")
	return errors.Wrap(os.WriteFile(args[1], out, 0o600), "write output")
}
