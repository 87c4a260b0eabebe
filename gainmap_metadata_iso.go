package jpegr

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	isoIsMultiChannelMask = 1 << 7
	isoUseBaseColorMask   = 1 << 6
	isoCommonDenomMask    = 1 << 3
	isoBackwardDirMask    = 1 << 2
)

// isoVersionSize is the length of a version-only ISO 21496-1 payload (min and writer version).
const isoVersionSize = 4

// gainmapMetadataFrac is the rational form of GainMapMetadata stored by ISO 21496-1.
// Gain map bounds and headrooms are log2 values.
type gainmapMetadataFrac struct {
	GainMapMinN      int32
	GainMapMinD      uint32
	GainMapMaxN      int32
	GainMapMaxD      uint32
	GainMapGammaN    uint32
	GainMapGammaD    uint32
	BaseOffsetN      int32
	BaseOffsetD      uint32
	AltOffsetN       int32
	AltOffsetD       uint32
	BaseHdrHeadroomN uint32
	BaseHdrHeadroomD uint32
	AltHdrHeadroomN  uint32
	AltHdrHeadroomD  uint32

	BackwardDirection bool
	UseBaseColorSpace bool
}

func decodeGainmapMetadataISO(data []byte) (*GainMapMetadata, error) {
	var frac gainmapMetadataFrac
	if err := frac.decode(data); err != nil {
		return nil, err
	}
	return frac.toFloat()
}

func encodeGainmapMetadataISO(meta *GainMapMetadata) ([]byte, error) {
	var frac gainmapMetadataFrac
	if err := frac.fromFloat(meta); err != nil {
		return nil, err
	}
	return frac.encode(), nil
}

// buildIsoPayload returns the APP2 payload with namespace prefix.
func buildIsoPayload(meta *GainMapMetadata) ([]byte, error) {
	encoded, err := encodeGainmapMetadataISO(meta)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(isoPrefix)+len(encoded))
	payload = append(payload, isoPrefix...)
	return append(payload, encoded...), nil
}

func buildIsoVersionOnly() []byte {
	payload := append([]byte{}, isoPrefix...)
	return append(payload, 0, 0, 0, 0)
}

type isoReader struct {
	in  []byte
	pos int
	err error
}

func (r *isoReader) u8() uint8 {
	if r.err != nil || r.pos+1 > len(r.in) {
		r.err = errors.New("iso metadata truncated")
		return 0
	}
	v := r.in[r.pos]
	r.pos++
	return v
}

func (r *isoReader) u16() uint16 {
	if r.err != nil || r.pos+2 > len(r.in) {
		r.err = errors.New("iso metadata truncated")
		return 0
	}
	v := binary.BigEndian.Uint16(r.in[r.pos:])
	r.pos += 2
	return v
}

func (r *isoReader) u32() uint32 {
	if r.err != nil || r.pos+4 > len(r.in) {
		r.err = errors.New("iso metadata truncated")
		return 0
	}
	v := binary.BigEndian.Uint32(r.in[r.pos:])
	r.pos += 4
	return v
}

func (r *isoReader) s32() int32 { return int32(r.u32()) }

type isoChannel struct {
	minN, maxN, baseOffN, altOffN int32
	minD, maxD, baseOffD, altOffD uint32
	gammaN, gammaD                uint32
}

func (m *gainmapMetadataFrac) decode(in []byte) error {
	r := &isoReader{in: in}
	if minVer := r.u16(); r.err == nil && minVer != 0 {
		return errors.Errorf("unsupported iso min_version %d", minVer)
	}
	r.u16()
	flags := r.u8()
	if r.err != nil {
		return r.err
	}

	channelCount := 1
	if flags&isoIsMultiChannelMask != 0 {
		channelCount = 3
	}
	m.UseBaseColorSpace = flags&isoUseBaseColorMask != 0
	m.BackwardDirection = flags&isoBackwardDirMask != 0
	useCommon := flags&isoCommonDenomMask != 0

	channels := make([]isoChannel, channelCount)
	if useCommon {
		common := r.u32()
		m.BaseHdrHeadroomD, m.AltHdrHeadroomD = common, common
		m.BaseHdrHeadroomN = r.u32()
		m.AltHdrHeadroomN = r.u32()
		for c := range channels {
			ch := &channels[c]
			ch.minN, ch.minD = r.s32(), common
			ch.maxN, ch.maxD = r.s32(), common
			ch.gammaN, ch.gammaD = r.u32(), common
			ch.baseOffN, ch.baseOffD = r.s32(), common
			ch.altOffN, ch.altOffD = r.s32(), common
		}
	} else {
		m.BaseHdrHeadroomN, m.BaseHdrHeadroomD = r.u32(), r.u32()
		m.AltHdrHeadroomN, m.AltHdrHeadroomD = r.u32(), r.u32()
		for c := range channels {
			ch := &channels[c]
			ch.minN, ch.minD = r.s32(), r.u32()
			ch.maxN, ch.maxD = r.s32(), r.u32()
			ch.gammaN, ch.gammaD = r.u32(), r.u32()
			ch.baseOffN, ch.baseOffD = r.s32(), r.u32()
			ch.altOffN, ch.altOffD = r.s32(), r.u32()
		}
	}
	if r.err != nil {
		return r.err
	}
	for _, ch := range channels[1:] {
		if ch != channels[0] {
			return errors.New("multi-channel gain map metadata is not supported")
		}
	}

	ch := channels[0]
	m.GainMapMinN, m.GainMapMinD = ch.minN, ch.minD
	m.GainMapMaxN, m.GainMapMaxD = ch.maxN, ch.maxD
	m.GainMapGammaN, m.GainMapGammaD = ch.gammaN, ch.gammaD
	m.BaseOffsetN, m.BaseOffsetD = ch.baseOffN, ch.baseOffD
	m.AltOffsetN, m.AltOffsetD = ch.altOffN, ch.altOffD
	return nil
}

func (m *gainmapMetadataFrac) encode() []byte {
	const minVersion uint16 = 0
	const writerVersion uint16 = 0

	flags := uint8(0)
	if m.UseBaseColorSpace {
		flags |= isoUseBaseColorMask
	}
	if m.BackwardDirection {
		flags |= isoBackwardDirMask
	}

	denom := m.BaseHdrHeadroomD
	useCommon := m.AltHdrHeadroomD == denom && m.GainMapMinD == denom && m.GainMapMaxD == denom &&
		m.GainMapGammaD == denom && m.BaseOffsetD == denom && m.AltOffsetD == denom
	if useCommon {
		flags |= isoCommonDenomMask
	}

	out := make([]byte, 0, 64)
	out = binary.BigEndian.AppendUint16(out, minVersion)
	out = binary.BigEndian.AppendUint16(out, writerVersion)
	out = append(out, flags)

	u32 := func(v uint32) { out = binary.BigEndian.AppendUint32(out, v) }
	s32 := func(v int32) { u32(uint32(v)) }

	if useCommon {
		u32(denom)
		u32(m.BaseHdrHeadroomN)
		u32(m.AltHdrHeadroomN)
		s32(m.GainMapMinN)
		s32(m.GainMapMaxN)
		u32(m.GainMapGammaN)
		s32(m.BaseOffsetN)
		s32(m.AltOffsetN)
		return out
	}

	u32(m.BaseHdrHeadroomN)
	u32(m.BaseHdrHeadroomD)
	u32(m.AltHdrHeadroomN)
	u32(m.AltHdrHeadroomD)
	s32(m.GainMapMinN)
	u32(m.GainMapMinD)
	s32(m.GainMapMaxN)
	u32(m.GainMapMaxD)
	u32(m.GainMapGammaN)
	u32(m.GainMapGammaD)
	s32(m.BaseOffsetN)
	u32(m.BaseOffsetD)
	s32(m.AltOffsetN)
	u32(m.AltOffsetD)
	return out
}

func ratio(n float64, d uint32) (float64, error) {
	if d == 0 {
		return 0, errors.New("zero denominator in iso metadata")
	}
	return n / float64(d), nil
}

func (m *gainmapMetadataFrac) toFloat() (*GainMapMetadata, error) {
	vals := []struct {
		n float64
		d uint32
	}{
		{float64(m.GainMapMinN), m.GainMapMinD},
		{float64(m.GainMapMaxN), m.GainMapMaxD},
		{float64(m.GainMapGammaN), m.GainMapGammaD},
		{float64(m.BaseOffsetN), m.BaseOffsetD},
		{float64(m.AltOffsetN), m.AltOffsetD},
		{float64(m.BaseHdrHeadroomN), m.BaseHdrHeadroomD},
		{float64(m.AltHdrHeadroomN), m.AltHdrHeadroomD},
	}
	f := make([]float64, len(vals))
	for i, v := range vals {
		r, err := ratio(v.n, v.d)
		if err != nil {
			return nil, err
		}
		f[i] = r
	}
	return &GainMapMetadata{
		Version:         jpegrVersion,
		MinContentBoost: float32(math.Exp2(f[0])),
		MaxContentBoost: float32(math.Exp2(f[1])),
		Gamma:           float32(f[2]),
		OffsetSDR:       float32(f[3]),
		OffsetHDR:       float32(f[4]),
		HDRCapacityMin:  float32(math.Exp2(f[5])),
		HDRCapacityMax:  float32(math.Exp2(f[6])),
	}, nil
}

// fromFloat converts metadata to fractions. Logarithms are taken in float64 so that
// decoding restores the original float32 values.
func (m *gainmapMetadataFrac) fromFloat(from *GainMapMetadata) error {
	if from == nil {
		return errors.New("gainmap metadata missing")
	}
	m.BackwardDirection = false
	m.UseBaseColorSpace = true

	var err error
	signed := func(v float64, n *int32, d *uint32) {
		if err == nil {
			err = floatToSignedFraction(v, n, d)
		}
	}
	unsigned := func(v float64, n *uint32, d *uint32) {
		if err == nil {
			err = floatToUnsignedFraction(v, n, d)
		}
	}
	signed(math.Log2(float64(from.MinContentBoost)), &m.GainMapMinN, &m.GainMapMinD)
	signed(math.Log2(float64(from.MaxContentBoost)), &m.GainMapMaxN, &m.GainMapMaxD)
	unsigned(float64(from.Gamma), &m.GainMapGammaN, &m.GainMapGammaD)
	signed(float64(from.OffsetSDR), &m.BaseOffsetN, &m.BaseOffsetD)
	signed(float64(from.OffsetHDR), &m.AltOffsetN, &m.AltOffsetD)
	unsigned(math.Log2(float64(from.HDRCapacityMin)), &m.BaseHdrHeadroomN, &m.BaseHdrHeadroomD)
	unsigned(math.Log2(float64(from.HDRCapacityMax)), &m.AltHdrHeadroomN, &m.AltHdrHeadroomD)
	return err
}

func floatToSignedFraction(v float64, numerator *int32, denominator *uint32) error {
	const maxInt32 = int32(^uint32(0) >> 1)
	num, den, ok := floatToUnsignedFractionImpl(math.Abs(v), uint32(maxInt32))
	if !ok {
		return errors.Errorf("failed to encode %v as signed fraction", v)
	}
	n := int32(num)
	if v < 0 {
		n = -n
	}
	*numerator = n
	*denominator = den
	return nil
}

func floatToUnsignedFraction(v float64, numerator *uint32, denominator *uint32) error {
	num, den, ok := floatToUnsignedFractionImpl(v, ^uint32(0))
	if !ok {
		return errors.Errorf("failed to encode %v as unsigned fraction", v)
	}
	*numerator = num
	*denominator = den
	return nil
}

// floatToUnsignedFractionImpl finds a continued fraction approximation with numerator <= maxNumerator.
func floatToUnsignedFractionImpl(v float64, maxNumerator uint32) (uint32, uint32, bool) {
	if math.IsNaN(v) || v < 0 || v > float64(maxNumerator) {
		return 0, 0, false
	}
	var maxD uint64
	if v <= 1 {
		maxD = uint64(^uint32(0))
	} else {
		maxD = uint64(math.Floor(float64(maxNumerator) / v))
	}

	den := uint32(1)
	prevD := uint32(0)
	currentV := v - math.Floor(v)
	const maxIter = 39
	for iter := 0; iter < maxIter; iter++ {
		numeratorDouble := float64(den) * v
		if numeratorDouble > float64(maxNumerator) {
			return 0, 0, false
		}
		num := uint32(math.Round(numeratorDouble))
		if numeratorDouble == float64(num) || currentV == 0 {
			return num, den, true
		}
		currentV = 1.0 / currentV
		newD := float64(prevD) + math.Floor(currentV)*float64(den)
		if newD > float64(maxD) {
			return num, den, true
		}
		prevD = den
		if newD > float64(^uint32(0)) {
			return 0, 0, false
		}
		den = uint32(newD)
		currentV -= math.Floor(currentV)
	}
	return uint32(math.Round(float64(den) * v)), den, true
}
