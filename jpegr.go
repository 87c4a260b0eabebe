package jpegr

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/vearutop/jpegr/internal/jpegx"
)

// JpegR encodes and decodes JPEG/R images.
// It holds no mutable state and is safe for concurrent use.
type JpegR struct {
	codec          Codec
	log            logrus.FieldLogger
	workers        int
	gainMapQuality int
}

// Option configures JpegR.
type Option func(j *JpegR)

// WithCodec replaces the single-layer JPEG codec.
func WithCodec(c Codec) Option {
	return func(j *JpegR) {
		j.codec = c
	}
}

// WithLogger sets a logger for debug output of pathways.
func WithLogger(l logrus.FieldLogger) Option {
	return func(j *JpegR) {
		j.log = l
	}
}

// WithWorkers limits the number of goroutines used per call, 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(j *JpegR) {
		j.workers = n
	}
}

// WithGainMapQuality sets the JPEG quality of the gain map image.
func WithGainMapQuality(q int) Option {
	return func(j *JpegR) {
		j.gainMapQuality = q
	}
}

// New creates a JpegR with the standard library codec unless configured otherwise.
func New(options ...Option) *JpegR {
	j := &JpegR{
		codec:          NewStdCodec(),
		gainMapQuality: defaultGainMapQuality,
	}
	for _, o := range options {
		o(j)
	}
	if j.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		j.log = l
	}
	return j
}

// EncodeRequest is one of EncodeHDR, EncodeHDRAndSDR, EncodeHDRAndCompressedSDR or EncodeCompressed.
type EncodeRequest interface {
	pathway() string
}

// EncodeHDR derives the SDR rendition from the HDR image by tone mapping.
type EncodeHDR struct {
	// HDR is a P010 image.
	HDR      *UncompressedImage
	Transfer ColorTransfer
	// Quality of the base JPEG in [0, 100].
	Quality     int
	Passthrough *Passthrough
}

// EncodeHDRAndSDR uses a caller provided SDR rendition, the base JPEG is compressed from it.
type EncodeHDRAndSDR struct {
	HDR *UncompressedImage
	// SDR is a YUV420 image of the same size as HDR.
	SDR         *UncompressedImage
	Transfer    ColorTransfer
	Quality     int
	Passthrough *Passthrough
}

// EncodeHDRAndCompressedSDR keeps a caller provided base JPEG verbatim.
// SDR pixels are used for the gain map when set, Base is decompressed otherwise.
type EncodeHDRAndCompressedSDR struct {
	HDR      *UncompressedImage
	SDR      *UncompressedImage
	Base     CompressedImage
	Transfer ColorTransfer
	// Quality must be in [0, 100] but is otherwise unused, the base is not recompressed.
	Quality int
}

// EncodeCompressed assembles already compressed base and gain map images.
type EncodeCompressed struct {
	Base        CompressedImage
	GainMap     CompressedImage
	Metadata    *GainMapMetadata
	Passthrough *Passthrough
}

func (EncodeHDR) pathway() string                 { return "hdr" }
func (EncodeHDRAndSDR) pathway() string           { return "hdr+sdr" }
func (EncodeHDRAndCompressedSDR) pathway() string { return "hdr+compressed-sdr" }
func (EncodeCompressed) pathway() string          { return "compressed" }

func checkQuality(q int) error {
	if q < 0 || q > 100 {
		return invalidArgf("quality %d out of [0, 100]", q)
	}
	return nil
}

// Encode produces a JPEG/R file.
func (j *JpegR) Encode(req EncodeRequest) ([]byte, error) {
	if req == nil {
		return nil, invalidArgf("encode request missing")
	}
	log := j.log.WithField("pathway", req.pathway())

	switch r := req.(type) {
	case EncodeHDR:
		return j.encodeRaw(log, r.pathway(), r.HDR, nil, r.Transfer, r.Quality, r.Passthrough)
	case *EncodeHDR:
		return j.encodeRaw(log, r.pathway(), r.HDR, nil, r.Transfer, r.Quality, r.Passthrough)
	case EncodeHDRAndSDR:
		return j.encodeRaw(log, r.pathway(), r.HDR, r.SDR, r.Transfer, r.Quality, r.Passthrough)
	case *EncodeHDRAndSDR:
		return j.encodeRaw(log, r.pathway(), r.HDR, r.SDR, r.Transfer, r.Quality, r.Passthrough)
	case EncodeHDRAndCompressedSDR:
		return j.encodeCompressedSDR(log, &r)
	case *EncodeHDRAndCompressedSDR:
		return j.encodeCompressedSDR(log, r)
	case EncodeCompressed:
		return j.encodeCompressed(log, &r)
	case *EncodeCompressed:
		return j.encodeCompressed(log, r)
	default:
		return nil, invalidArgf("unsupported encode request %T", req)
	}
}

// EncodeInto writes the JPEG/R file into dst and returns its length.
func (j *JpegR) EncodeInto(req EncodeRequest, dst []byte) (int, error) {
	out, err := j.Encode(req)
	if err != nil {
		return 0, err
	}
	if len(out) > len(dst) {
		return 0, bufferTooSmallf("encoded size %d exceeds destination %d", len(out), len(dst))
	}
	return copy(dst, out), nil
}

// gainMapFor computes and compresses the gain map of an HDR and SDR pair.
func (j *JpegR) gainMapFor(log logrus.FieldLogger, pathway string, hdr, sdr *UncompressedImage, tf ColorTransfer, meta *GainMapMetadata) ([]byte, error) {
	gm, err := generateGainMap(hdr, sdr, tf, meta, j.workers)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"map_width":  gm.Width,
		"map_height": gm.Height,
	}).Debug("gain map generated")

	data, err := j.codec.Compress(gm, j.gainMapQuality)
	if err != nil {
		return nil, &CodecError{Pathway: pathway, Op: "compress gain map", Err: err}
	}
	return data, nil
}

func (j *JpegR) encodeRaw(log logrus.FieldLogger, pathway string, hdr, sdr *UncompressedImage, tf ColorTransfer, quality int, extras *Passthrough) ([]byte, error) {
	if err := validateHDRInput(hdr, tf); err != nil {
		return nil, err
	}
	if err := checkQuality(quality); err != nil {
		return nil, err
	}
	if err := checkQuality(j.gainMapQuality); err != nil {
		return nil, err
	}
	meta := MetadataForTransfer(tf)
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	if sdr == nil {
		sdr = deriveSDR(hdr, tf, meta.MaxContentBoost, j.workers)
	} else if err := validateSDRInput(sdr); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"width":     hdr.Width,
		"height":    hdr.Height,
		"transfer":  tf.String(),
		"hdr_gamut": hdr.Gamut.String(),
		"sdr_gamut": sdr.Gamut.String(),
		"max_boost": meta.MaxContentBoost,
	}).Debug("encoding")

	gm, err := j.gainMapFor(log, pathway, hdr, sdr, tf, &meta)
	if err != nil {
		return nil, err
	}
	base, err := j.codec.Compress(sdr, quality)
	if err != nil {
		return nil, &CodecError{Pathway: pathway, Op: "compress base", Err: err}
	}

	return Mux(base, gm, &meta, withGamutProfile(extras, sdr.Gamut))
}

// withGamutProfile fills a missing ICC profile with one describing the base gamut.
func withGamutProfile(extras *Passthrough, g ColorGamut) *Passthrough {
	var p Passthrough
	if extras != nil {
		p = *extras
	}
	if len(p.ICC) == 0 {
		p.ICC = iccProfileForGamut(g)
	}
	return &p
}

func (j *JpegR) encodeCompressedSDR(log logrus.FieldLogger, r *EncodeHDRAndCompressedSDR) ([]byte, error) {
	pathway := r.pathway()
	if err := validateHDRInput(r.HDR, r.Transfer); err != nil {
		return nil, err
	}
	if err := checkJPEG("base", r.Base.Data); err != nil {
		return nil, err
	}
	if err := checkQuality(r.Quality); err != nil {
		return nil, err
	}
	if err := checkQuality(j.gainMapQuality); err != nil {
		return nil, err
	}
	hdr, err := jpegx.ParseHeader(r.Base.Data)
	if err != nil {
		return nil, invalidArgf("base: %v", err)
	}
	if hdr.Width != r.HDR.Width || hdr.Height != r.HDR.Height {
		return nil, invalidArgf("base %dx%d does not match hdr %dx%d", hdr.Width, hdr.Height, r.HDR.Width, r.HDR.Height)
	}
	if !r.Base.Gamut.concrete() {
		return nil, invalidArgf("base gamut %s", r.Base.Gamut)
	}
	meta := MetadataForTransfer(r.Transfer)
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	sdr := r.SDR
	if sdr == nil {
		img, err := j.codec.Decompress(r.Base.Data)
		if err != nil {
			return nil, &CodecError{Pathway: pathway, Op: "decompress base", Err: err}
		}
		sdr = asYUV420(img)
		sdr.Gamut = r.Base.Gamut
	}
	log.WithFields(logrus.Fields{
		"width":     r.HDR.Width,
		"height":    r.HDR.Height,
		"transfer":  r.Transfer.String(),
		"base_size": len(r.Base.Data),
	}).Debug("encoding")

	gm, err := j.gainMapFor(log, pathway, r.HDR, sdr, r.Transfer, &meta)
	if err != nil {
		return nil, err
	}

	var extras *Passthrough
	if _, app2, err := headerSegments(r.Base.Data); err == nil && collectICCProfile(app2) == nil {
		extras = withGamutProfile(nil, r.Base.Gamut)
	}
	return Mux(r.Base.Data, gm, &meta, extras)
}

func (j *JpegR) encodeCompressed(log logrus.FieldLogger, r *EncodeCompressed) ([]byte, error) {
	if len(r.GainMap.Data) == 0 {
		return nil, invalidArgf("gain map image missing")
	}
	log.WithFields(logrus.Fields{
		"base_size":     len(r.Base.Data),
		"gain_map_size": len(r.GainMap.Data),
	}).Debug("muxing")
	return Mux(r.Base.Data, r.GainMap.Data, r.Metadata, r.Passthrough)
}

// Decode renders a JPEG/R file, a plain JPEG decodes as if its gain were 1.
// The returned metadata is nil without a gain map.
func (j *JpegR) Decode(data []byte, opts DecodeOptions) (*UncompressedImage, *GainMapMetadata, error) {
	if err := validateDecodeOptions(opts); err != nil {
		return nil, nil, err
	}
	d, err := Demux(data)
	if err != nil {
		return nil, nil, err
	}
	base, gm, err := j.decompressLayers(d, opts)
	if err != nil {
		return nil, nil, err
	}
	// Sized by the decoded base, the header alone is not trusted for allocation.
	dst := NewUncompressedImage(base.Width, base.Height, outputPixelFormat(opts.Format), GamutUnspecified)
	if err := j.render(base, gm, d.Metadata, opts, dst); err != nil {
		return nil, nil, err
	}
	return dst, d.Metadata, nil
}

// DecodeInto renders into caller owned memory, dst.Luma must hold FrameSize bytes of the output.
// Width, Height, Format and Gamut of dst are set.
func (j *JpegR) DecodeInto(data []byte, opts DecodeOptions, dst *UncompressedImage) (*GainMapMetadata, error) {
	if dst == nil {
		return nil, invalidArgf("destination image missing")
	}
	if err := validateDecodeOptions(opts); err != nil {
		return nil, err
	}
	d, err := Demux(data)
	if err != nil {
		return nil, err
	}
	format := outputPixelFormat(opts.Format)
	if need := FrameSize(d.Width, d.Height, format); len(dst.Luma) < need {
		return nil, bufferTooSmallf("decoded size %d exceeds destination %d", need, len(dst.Luma))
	}
	base, gm, err := j.decompressLayers(d, opts)
	if err != nil {
		return nil, err
	}
	dst.Width, dst.Height, dst.Format = d.Width, d.Height, format
	dst.LumaStride, dst.Chroma, dst.ChromaStride = 0, nil, 0
	if err := j.render(base, gm, d.Metadata, opts, dst); err != nil {
		return nil, err
	}
	return d.Metadata, nil
}

// decompressLayers decodes the base and, unless SDR output is requested, the gain map.
func (j *JpegR) decompressLayers(d *Demuxed, opts DecodeOptions) (base, gm *UncompressedImage, err error) {
	const pathway = "decode"
	img, err := j.codec.Decompress(d.Base)
	if err != nil {
		return nil, nil, &CodecError{Pathway: pathway, Op: "decompress base", Err: err}
	}
	base = asYUV420(img)
	base.Gamut = gamutFromICCProfile(d.ICC)
	if base.Width != d.Width || base.Height != d.Height {
		return nil, nil, &CodecError{Pathway: pathway, Op: "decompress base",
			Err: parseErrorf("decoded %dx%d, header %dx%d", base.Width, base.Height, d.Width, d.Height)}
	}

	if d.GainMap != nil && opts.Format != OutputSDR {
		img, err := j.codec.Decompress(d.GainMap)
		if err != nil {
			return nil, nil, &CodecError{Pathway: pathway, Op: "decompress gain map", Err: err}
		}
		gm = asGray8(img)
	}
	return base, gm, nil
}

func (j *JpegR) render(base, gm *UncompressedImage, meta *GainMapMetadata, opts DecodeOptions, dst *UncompressedImage) error {
	j.log.WithFields(logrus.Fields{
		"pathway":      "decode",
		"width":        base.Width,
		"height":       base.Height,
		"base_gamut":   base.Gamut.String(),
		"format":       opts.Format.String(),
		"boost":        opts.Boost,
		"has_gain_map": gm != nil,
	}).Debug("decoding")

	return applyGainMap(base, gm, meta, opts, dst, j.workers)
}

// Info describes a JPEG/R file without decompressing pixels.
func (j *JpegR) Info(data []byte) (*Info, error) {
	return ReadInfo(data)
}
