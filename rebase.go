package jpegr

import "github.com/sirupsen/logrus"

// RebaseOptions controls Rebase.
type RebaseOptions struct {
	// Quality of the new base JPEG, 0 uses the default.
	Quality int
	// GainMapQuality of the recomputed gain map, 0 uses the quality of the JpegR.
	GainMapQuality int
}

// Rebase replaces the SDR rendition of a JPEG/R file with sdr and recomputes the gain map,
// so that the HDR reconstruction at full boost stays as close to the original as the metadata allows.
// The metadata, EXIF and ICC profile are kept, the profile is regenerated when the gamut changes.
func (j *JpegR) Rebase(data []byte, sdr *UncompressedImage, opts RebaseOptions) ([]byte, error) {
	const pathway = "rebase"
	if err := validateSDRInput(sdr); err != nil {
		return nil, err
	}
	if err := checkQuality(opts.Quality); err != nil {
		return nil, err
	}
	if err := checkQuality(opts.GainMapQuality); err != nil {
		return nil, err
	}
	d, err := Demux(data)
	if err != nil {
		return nil, err
	}
	if d.GainMap == nil {
		return nil, invalidArgf("input has no gain map")
	}
	if err := d.Metadata.Validate(); err != nil {
		return nil, err
	}
	if sdr.Width != d.Width || sdr.Height != d.Height {
		return nil, invalidArgf("sdr %dx%d does not match %dx%d", sdr.Width, sdr.Height, d.Width, d.Height)
	}

	img, err := j.codec.Decompress(d.Base)
	if err != nil {
		return nil, &CodecError{Pathway: pathway, Op: "decompress base", Err: err}
	}
	oldBase := asYUV420(img)
	oldBase.Gamut = gamutFromICCProfile(d.ICC)
	img, err = j.codec.Decompress(d.GainMap)
	if err != nil {
		return nil, &CodecError{Pathway: pathway, Op: "decompress gain map", Err: err}
	}
	oldMap := asGray8(img)

	gm := rebaseGainMap(oldBase, oldMap, sdr, d.Metadata, j.workers)
	j.log.WithFields(logrus.Fields{
		"pathway":   pathway,
		"width":     d.Width,
		"height":    d.Height,
		"old_gamut": oldBase.Gamut.String(),
		"new_gamut": sdr.Gamut.String(),
	}).Debug("gain map rebased")

	quality := opts.Quality
	if quality == 0 {
		quality = defaultBaseQuality
	}
	baseJPEG, err := j.codec.Compress(sdr, quality)
	if err != nil {
		return nil, &CodecError{Pathway: pathway, Op: "compress base", Err: err}
	}
	gmQuality := opts.GainMapQuality
	if gmQuality == 0 {
		gmQuality = j.gainMapQuality
	}
	gmJPEG, err := j.codec.Compress(gm, gmQuality)
	if err != nil {
		return nil, &CodecError{Pathway: pathway, Op: "compress gain map", Err: err}
	}

	extras := &Passthrough{Exif: d.Exif, ICC: d.ICC}
	if sdr.Gamut != oldBase.Gamut {
		extras.ICC = nil
	}
	return Mux(baseJPEG, gmJPEG, d.Metadata, withGamutProfile(extras, sdr.Gamut))
}

// rebaseGainMap reconstructs the block luminance of the HDR rendition from the old base and map
// and encodes it against the new base with the same metadata.
func rebaseGainMap(oldBase, oldMap, sdr *UncompressedImage, meta *GainMapMetadata, workers int) *UncompressedImage {
	w, h := sdr.Width, sdr.Height
	gc := newGainCoder(meta)
	gs := newGainSampler(oldMap, w, h)
	ov := newYUV420View(oldBase)
	nv := newYUV420View(sdr)

	return blockGainMap(w, h, workers, func(x0, y0, x1, y1 int) uint8 {
		var hdrY, sdrY float32
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				c := gc.apply(sdrLinearAt(ov, x, y), gc.decode(gs.at(x, y)), 1)
				c = convertGamut(c, oldBase.Gamut, sdr.Gamut)
				hdrY += max(luminance(c, sdr.Gamut), 0)
				sdrY += luminance(sdrLinearAt(nv, x, y), sdr.Gamut)
			}
		}
		n := float32((y1 - y0) * (x1 - x0))
		return gc.encode(sdrY/n, hdrY/n)
	})
}
