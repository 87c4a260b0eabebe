package jpegr

import (
	"bytes"

	"github.com/vearutop/jpegr/internal/jpegx"
)

// Demuxed is a JPEG/R file split into its parts.
type Demuxed struct {
	// Base is the primary JPEG as it was passed to Mux, for a plain JPEG the input itself.
	Base []byte
	// GainMap is the secondary JPEG as it was passed to Mux, nil for a plain JPEG.
	GainMap []byte
	// Metadata describes GainMap, nil when GainMap is nil.
	Metadata *GainMapMetadata
	// Exif is the APP1 payload of the primary image, including the "Exif\x00\x00" header.
	Exif []byte
	// ICC is the reassembled ICC profile of the primary image.
	ICC []byte

	Width  int
	Height int
}

// Info describes a JPEG/R file without decompressing it.
type Info struct {
	Width  int
	Height int
	// Gamut is derived from the ICC profile, BT.709 without one.
	Gamut ColorGamut

	HasGainMap    bool
	GainMapWidth  int
	GainMapHeight int
	Metadata      *GainMapMetadata

	BaseSize    int
	GainMapSize int
	Exif        []byte
	ICC         []byte
}

func checkJPEG(name string, data []byte) error {
	if len(data) < 4 || data[0] != markerStart || data[1] != markerSOI {
		return invalidArgf("%s is not a JPEG stream", name)
	}
	return nil
}

func exifPayload(exif []byte) []byte {
	if len(exif) == 0 || bytes.HasPrefix(exif, exifSig) {
		return exif
	}
	out := make([]byte, 0, len(exifSig)+len(exif))
	out = append(out, exifSig...)
	return append(out, exif...)
}

// Mux assembles a JPEG/R file from a base JPEG and an optional gain map JPEG.
//
// Both streams are copied verbatim after their SOI marker. Without a gain map
// the result is a copy of base, passthrough segments are rejected then because
// Demux could not tell them apart from the segments of base.
func Mux(base, gainMap []byte, meta *GainMapMetadata, extras *Passthrough) ([]byte, error) {
	if err := checkJPEG("base", base); err != nil {
		return nil, err
	}
	if extras == nil {
		extras = &Passthrough{}
	}
	if gainMap == nil {
		if len(extras.Exif) > 0 || len(extras.ICC) > 0 {
			return nil, invalidArgf("exif or icc passthrough requires a gain map")
		}
		return append([]byte(nil), base...), nil
	}
	exif, icc, err := passthroughSegments(extras)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	writeSOI := func() {
		out.WriteByte(markerStart)
		out.WriteByte(markerSOI)
	}

	if err := checkJPEG("gain map", gainMap); err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, invalidArgf("gain map metadata missing")
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	secondaryXMP := generateXmpSecondary(meta)
	secondaryISO, err := buildIsoPayload(meta)
	if err != nil {
		return nil, invalidArgf("iso metadata: %v", err)
	}
	secondaryImageSize := 2 + appSize(secondaryXMP) + appSize(secondaryISO) + len(gainMap) - 2
	primaryXMP := generateXmpPrimary(secondaryImageSize)

	writeSOI()
	if len(exif) > 0 {
		writeAppSegment(&out, markerAPP1, exif)
	}
	writeAppSegment(&out, markerAPP1, primaryXMP)
	writeAppSegment(&out, markerAPP2, buildIsoVersionOnly())
	for _, seg := range icc {
		writeAppSegment(&out, markerAPP2, seg)
	}

	mpfLen := 2 + 2 + calculateMpfSize()
	primaryImageSize := out.Len() + mpfLen + len(base) - 2
	// Offsets are relative to the TIFF header after the MPF signature.
	secondaryOffset := primaryImageSize - out.Len() - 8
	writeAppSegment(&out, markerAPP2, generateMpf(primaryImageSize, 0, secondaryImageSize, secondaryOffset))
	out.Write(base[2:])

	writeSOI()
	writeAppSegment(&out, markerAPP1, secondaryXMP)
	writeAppSegment(&out, markerAPP2, secondaryISO)
	out.Write(gainMap[2:])

	return out.Bytes(), nil
}

func passthroughSegments(extras *Passthrough) (exif []byte, icc [][]byte, err error) {
	exif = exifPayload(extras.Exif)
	if len(exif) > maxSegmentPayload {
		return nil, nil, invalidArgf("exif of %d bytes does not fit a segment", len(exif))
	}
	icc, err = iccChunks(extras.ICC)
	if err != nil {
		return nil, nil, invalidArgf("%v", err)
	}
	return exif, icc, nil
}

// withAppSegments inserts EXIF and ICC segments right after the SOI of a plain JPEG.
func withAppSegments(base []byte, extras *Passthrough) ([]byte, error) {
	if err := checkJPEG("base", base); err != nil {
		return nil, err
	}
	exif, icc, err := passthroughSegments(extras)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.Grow(len(base) + len(exif) + len(extras.ICC) + 64)
	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
	if len(exif) > 0 {
		writeAppSegment(&out, markerAPP1, exif)
	}
	for _, seg := range icc {
		writeAppSegment(&out, markerAPP2, seg)
	}
	out.Write(base[2:])
	return out.Bytes(), nil
}

// Demux splits a JPEG/R file into the streams and metadata given to Mux.
// A plain JPEG yields the input as base and no gain map.
func Demux(data []byte) (*Demuxed, error) {
	d := &Demuxed{}
	if err := demux(data, d); err != nil {
		return nil, err
	}
	return d, nil
}

// demux fills d as far as parsing succeeds.
func demux(data []byte, d *Demuxed) error {
	if len(data) == 0 {
		return parseErrorf("empty input")
	}
	ranges, err := scanJPEGs(data)
	if err != nil {
		return parseErrorf("%v", err)
	}
	primary := data[ranges[0][0]:ranges[0][1]]

	hdr, err := jpegx.ParseHeader(primary)
	if err != nil {
		return parseErrorf("primary image: %v", err)
	}
	d.Width, d.Height = hdr.Width, hdr.Height

	app1, app2, err := headerSegments(primary)
	if err != nil {
		return parseErrorf("primary image: %v", err)
	}
	d.Exif = findPrefixed(app1, exifSig)
	d.ICC = collectICCProfile(app2)

	d.Base = primary
	mpfEnd := -1
	_ = walkHeader(primary, 0, func(s segment) bool {
		if s.marker == markerAPP2 && bytes.HasPrefix(s.payload, mpfSig) {
			mpfEnd = s.end
			return false
		}
		return true
	})
	if mpfEnd > 0 {
		base := make([]byte, 0, 2+len(primary)-mpfEnd)
		base = append(base, markerStart, markerSOI)
		d.Base = append(base, primary[mpfEnd:]...)
	}

	if len(ranges) < 2 {
		return nil
	}
	secondary := data[ranges[1][0]:ranges[1][1]]

	var h gainMapHeader
	bodyStart := 2
	err = walkHeader(secondary, 0, func(s segment) bool {
		if !h.add(s.marker, s.payload) {
			return false
		}
		bodyStart = s.end
		return true
	})
	if err != nil {
		return parseErrorf("gain map image: %v", err)
	}

	var metaErr error
	d.Metadata, metaErr = h.metadata()
	switch {
	case metaErr != nil:
		return parseErrorf("gain map metadata: %v", metaErr)
	case d.Metadata != nil:
	case mpfEnd < 0:
		// Two concatenated JPEGs without gain map metadata.
		return nil
	default:
		return parseErrorf("gain map metadata missing")
	}

	gm := make([]byte, 0, 2+len(secondary)-bodyStart)
	gm = append(gm, markerStart, markerSOI)
	d.GainMap = append(gm, secondary[bodyStart:]...)
	return nil
}

// gainMapHeader collects the metadata segments leading a gain map image.
type gainMapHeader struct {
	xmp, iso []byte
}

// add records an XMP or ISO 21496-1 segment and reports whether it was one.
func (h *gainMapHeader) add(marker byte, payload []byte) bool {
	switch {
	case marker == markerAPP1 && bytes.HasPrefix(payload, xmpPrefix):
		h.xmp = payload
	case marker == markerAPP2 && bytes.HasPrefix(payload, isoPrefix):
		h.iso = payload
	default:
		return false
	}
	return true
}

// metadata decodes the gain map parameters, nil without any.
// ISO 21496-1 takes precedence, XMP is used when it is missing or unreadable.
func (h *gainMapHeader) metadata() (*GainMapMetadata, error) {
	var (
		meta *GainMapMetadata
		err  error
	)
	if len(h.iso) > len(isoPrefix)+isoVersionSize {
		meta, err = decodeGainmapMetadataISO(h.iso[len(isoPrefix):])
	}
	if meta == nil && h.xmp != nil && hasGainMapParams(h.xmp) {
		meta, err = parseXMP(h.xmp)
	}
	return meta, err
}

// ReadInfo inspects a JPEG/R file without decompressing it.
// On malformed input it returns an ErrContainerParse error together with the fields parsed so far.
func ReadInfo(data []byte) (*Info, error) {
	d := &Demuxed{}
	err := demux(data, d)

	info := &Info{
		Width:    d.Width,
		Height:   d.Height,
		Gamut:    gamutFromICCProfile(d.ICC),
		Metadata: d.Metadata,
		BaseSize: len(d.Base),
		Exif:     d.Exif,
		ICC:      d.ICC,
	}
	if d.GainMap != nil {
		info.HasGainMap = true
		info.GainMapSize = len(d.GainMap)
		hdr, herr := jpegx.ParseHeader(d.GainMap)
		if herr != nil && err == nil {
			err = parseErrorf("gain map image: %v", herr)
		}
		if herr == nil {
			info.GainMapWidth, info.GainMapHeight = hdr.Width, hdr.Height
		}
	}
	return info, err
}
