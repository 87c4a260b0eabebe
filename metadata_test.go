package jpegr

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertMetadataNear(t *testing.T, want, got *GainMapMetadata) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.Version, got.Version)
	assert.InEpsilon(t, want.MinContentBoost, got.MinContentBoost, 1e-5)
	assert.InEpsilon(t, want.MaxContentBoost, got.MaxContentBoost, 1e-5)
	assert.InEpsilon(t, want.Gamma, got.Gamma, 1e-5)
	assert.InDelta(t, want.OffsetSDR, got.OffsetSDR, 1e-6)
	assert.InDelta(t, want.OffsetHDR, got.OffsetHDR, 1e-6)
	assert.InEpsilon(t, want.HDRCapacityMin, got.HDRCapacityMin, 1e-5)
	assert.InEpsilon(t, want.HDRCapacityMax, got.HDRCapacityMax, 1e-5)
}

func metadataCases() map[string]GainMapMetadata {
	custom := GainMapMetadata{
		Version:         jpegrVersion,
		MinContentBoost: 0.75,
		MaxContentBoost: 6.3,
		Gamma:           2.2,
		OffsetSDR:       0,
		OffsetHDR:       0.001,
		HDRCapacityMin:  1,
		HDRCapacityMax:  5.5,
	}
	return map[string]GainMapMetadata{
		"hlg":    MetadataForTransfer(TransferHLG),
		"pq":     MetadataForTransfer(TransferPQ),
		"custom": custom,
	}
}

func TestISOMetadataRoundTrip(t *testing.T) {
	for name, meta := range metadataCases() {
		meta := meta
		t.Run(name, func(t *testing.T) {
			payload, err := buildIsoPayload(&meta)
			require.NoError(t, err)
			require.True(t, bytes.HasPrefix(payload, isoPrefix))
			assert.Greater(t, len(payload), len(isoPrefix)+isoVersionSize)

			got, err := decodeGainmapMetadataISO(payload[len(isoPrefix):])
			require.NoError(t, err)
			assertMetadataNear(t, &meta, got)
		})
	}
}

func TestISOMetadataCommonDenominator(t *testing.T) {
	frac := gainmapMetadataFrac{}
	frac.GainMapMinN, frac.GainMapMaxN, frac.GainMapGammaN = 0, 2, 1
	frac.BaseOffsetN, frac.AltOffsetN = 0, 0
	frac.BaseHdrHeadroomN, frac.AltHdrHeadroomN = 0, 2
	frac.GainMapMinD, frac.GainMapMaxD, frac.GainMapGammaD = 1, 1, 1
	frac.BaseOffsetD, frac.AltOffsetD = 1, 1
	frac.BaseHdrHeadroomD, frac.AltHdrHeadroomD = 1, 1

	data := frac.encode()
	assert.NotZero(t, data[4]&isoCommonDenomMask)

	got, err := decodeGainmapMetadataISO(data)
	require.NoError(t, err)
	assert.Equal(t, float32(4), got.MaxContentBoost)
	assert.Equal(t, float32(4), got.HDRCapacityMax)
	assert.Equal(t, float32(1), got.MinContentBoost)
}

func TestISOMetadataInvalid(t *testing.T) {
	meta := MetadataForTransfer(TransferHLG)
	data, err := encodeGainmapMetadataISO(&meta)
	require.NoError(t, err)

	_, err = decodeGainmapMetadataISO(data[:len(data)-3])
	assert.Error(t, err, "truncated")

	badVersion := append([]byte{}, data...)
	binary.BigEndian.PutUint16(badVersion, 1)
	_, err = decodeGainmapMetadataISO(badVersion)
	assert.Error(t, err, "min version")

	_, err = encodeGainmapMetadataISO(nil)
	assert.Error(t, err)

	negativeCapacity := meta
	negativeCapacity.HDRCapacityMin = 0.5
	_, err = encodeGainmapMetadataISO(&negativeCapacity)
	assert.Error(t, err, "headroom is unsigned")
}

func TestFloatToFraction(t *testing.T) {
	for _, v := range []float64{0, 1, 0.5, 1.0 / 64, 2.2, 2.3017, -1.5, 1e-6} {
		var n int32
		var d uint32
		require.NoError(t, floatToSignedFraction(v, &n, &d), "%v", v)
		require.NotZero(t, d)
		assert.InDelta(t, v, float64(n)/float64(d), 1e-9, "%v", v)
	}

	var n, d uint32
	assert.Error(t, floatToUnsignedFraction(-1, &n, &d))
	assert.Error(t, floatToUnsignedFraction(5e9, &n, &d))
}

func TestXMPRoundTrip(t *testing.T) {
	for name, meta := range metadataCases() {
		meta := meta
		t.Run(name, func(t *testing.T) {
			xmp := generateXmpSecondary(&meta)
			require.True(t, hasGainMapParams(xmp))
			got, err := parseXMP(xmp)
			require.NoError(t, err)
			assertMetadataNear(t, &meta, got)
		})
	}
}

func TestXMPPrimaryDirectory(t *testing.T) {
	xmp := generateXmpPrimary(12345)
	assert.True(t, bytes.HasPrefix(xmp, xmpPrefix))
	assert.Contains(t, string(xmp), `Item:Length="12345"`)
	assert.Contains(t, string(xmp), `Item:Semantic="GainMap"`)
	assert.False(t, hasGainMapParams(xmp))
}

func TestParseXMPElementForm(t *testing.T) {
	body := `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF><rdf:Description>
  <hdrgm:Version>1.0</hdrgm:Version>
  <hdrgm:GainMapMax>2</hdrgm:GainMapMax>
  <hdrgm:HDRCapacityMax> 2 </hdrgm:HDRCapacityMax>
  <hdrgm:Gamma>1.5</hdrgm:Gamma>
</rdf:Description></rdf:RDF></x:xmpmeta>`
	meta, err := parseXMP(append(append([]byte{}, xmpPrefix...), body...))
	require.NoError(t, err)
	assert.Equal(t, "1.0", meta.Version)
	assert.InDelta(t, 4, meta.MaxContentBoost, 1e-6)
	assert.InDelta(t, 4, meta.HDRCapacityMax, 1e-6)
	assert.InDelta(t, 1.5, meta.Gamma, 1e-6)
	assert.Equal(t, float32(1), meta.MinContentBoost, "default")
	assert.Equal(t, float32(defaultOffset), meta.OffsetSDR, "default")
}

func TestParseXMPInvalid(t *testing.T) {
	wrap := func(attrs string) []byte {
		return append(append([]byte{}, xmpPrefix...), `<rdf:Description `+attrs+`/>`...)
	}
	for name, xmp := range map[string][]byte{
		"no namespace":   []byte(`<rdf:Description hdrgm:Version="1.0"/>`),
		"no version":     wrap(`hdrgm:GainMapMax="2" hdrgm:HDRCapacityMax="2"`),
		"no max":         wrap(`hdrgm:Version="1.0" hdrgm:HDRCapacityMax="2"`),
		"no capacity":    wrap(`hdrgm:Version="1.0" hdrgm:GainMapMax="2"`),
		"bad number":     wrap(`hdrgm:Version="1.0" hdrgm:GainMapMax="two" hdrgm:HDRCapacityMax="2"`),
		"hdr base":       wrap(`hdrgm:Version="1.0" hdrgm:GainMapMax="2" hdrgm:HDRCapacityMax="2" hdrgm:BaseRenditionIsHDR="True"`),
	} {
		_, err := parseXMP(xmp)
		assert.Error(t, err, name)
	}
}

func TestMPFRoundTrip(t *testing.T) {
	payload := generateMpf(1000, 0, 500, 940)
	assert.Len(t, payload, calculateMpfSize())

	info, err := parseMPF(payload)
	require.NoError(t, err)
	assert.Equal(t, mpfInfo{primarySize: 1000, secondarySize: 500, secondaryOffset: 940}, info)

	_, err = parseMPF(payload[:20])
	assert.Error(t, err)
	_, err = parseMPF([]byte("MPF\x00XX\x00\x2a\x00\x00\x00\x08"))
	assert.Error(t, err)
}

func TestMPFLittleEndian(t *testing.T) {
	be := generateMpf(2000, 0, 300, 1800)
	le := make([]byte, len(be))
	copy(le, be[:len(mpfSig)])
	tiff := be[len(mpfSig):]
	out := le[len(mpfSig):]
	out[0], out[1] = 'I', 'I'
	binary.LittleEndian.PutUint16(out[2:], 0x2A)
	binary.LittleEndian.PutUint32(out[4:], binary.BigEndian.Uint32(tiff[4:]))
	binary.LittleEndian.PutUint16(out[8:], binary.BigEndian.Uint16(tiff[8:]))
	pos := 10
	for i := 0; i < mpfTagCount; i++ {
		binary.LittleEndian.PutUint16(out[pos:], binary.BigEndian.Uint16(tiff[pos:]))
		binary.LittleEndian.PutUint16(out[pos+2:], binary.BigEndian.Uint16(tiff[pos+2:]))
		binary.LittleEndian.PutUint32(out[pos+4:], binary.BigEndian.Uint32(tiff[pos+4:]))
		copy(out[pos+8:pos+12], tiff[pos+8:pos+12])
		if binary.BigEndian.Uint16(tiff[pos:]) != mpfVersionTag {
			binary.LittleEndian.PutUint32(out[pos+8:], binary.BigEndian.Uint32(tiff[pos+8:]))
		}
		pos += mpfTagSize
	}
	binary.LittleEndian.PutUint32(out[pos:], 0)
	pos += 4
	for i := 0; i < mpfNumPictures; i++ {
		for k := 0; k < 3; k++ {
			binary.LittleEndian.PutUint32(out[pos+4*k:], binary.BigEndian.Uint32(tiff[pos+4*k:]))
		}
		pos += mpfEntrySize
	}

	info, err := parseMPF(le)
	require.NoError(t, err)
	assert.Equal(t, mpfInfo{primarySize: 2000, secondarySize: 300, secondaryOffset: 1800}, info)
}
