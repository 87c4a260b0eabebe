package jpegr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGainMapSize(t *testing.T) {
	for _, tc := range []struct {
		w, h       int
		wantW, wantH int
	}{
		{w: 2, h: 2, wantW: 16, wantH: 2},
		{w: 4, h: 4, wantW: 16, wantH: 2},
		{w: 100, h: 50, wantW: 32, wantH: 14},
		{w: 1920, h: 1080, wantW: 480, wantH: 270},
		{w: 4032, h: 3024, wantW: 1008, wantH: 756},
		{w: 66, h: 10, wantW: 32, wantH: 4},
	} {
		w, h := GainMapSize(tc.w, tc.h)
		assert.Equal(t, tc.wantW, w, "%dx%d", tc.w, tc.h)
		assert.Equal(t, tc.wantH, h, "%dx%d", tc.w, tc.h)
		assert.Zero(t, w%gainMapWidthAlign)
		assert.Zero(t, h%2)
	}
}

func TestMetadataForTransfer(t *testing.T) {
	hlg := MetadataForTransfer(TransferHLG)
	assert.InDelta(t, 1000.0/203, hlg.MaxContentBoost, 1e-5)
	assert.Equal(t, hlg.MaxContentBoost, hlg.HDRCapacityMax)
	assert.Equal(t, float32(1), hlg.MinContentBoost)
	assert.Equal(t, float32(1.0/64), hlg.OffsetSDR)
	assert.NoError(t, hlg.Validate())

	pq := MetadataForTransfer(TransferPQ)
	assert.InDelta(t, 10000.0/203, pq.MaxContentBoost, 1e-4)
	assert.NoError(t, pq.Validate())

	for _, tf := range []ColorTransfer{TransferSRGB, TransferLinear, TransferUnspecified} {
		m := MetadataForTransfer(tf)
		assert.Zero(t, m.MaxContentBoost)
		assert.ErrorIs(t, m.Validate(), ErrInvalidArgument, tf.String())
	}
}

func TestGainMapMetadataValidate(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	for _, tc := range []struct {
		name   string
		modify func(m *GainMapMetadata)
		ok     bool
	}{
		{name: "default", modify: func(*GainMapMetadata) {}, ok: true},
		{name: "min equals max", modify: func(m *GainMapMetadata) { m.MaxContentBoost = 1 }, ok: true},
		{name: "max below min", modify: func(m *GainMapMetadata) { m.MinContentBoost = 5 }},
		{name: "zero min", modify: func(m *GainMapMetadata) { m.MinContentBoost = 0 }},
		{name: "nan max", modify: func(m *GainMapMetadata) { m.MaxContentBoost = nan }},
		{name: "inf max", modify: func(m *GainMapMetadata) { m.MaxContentBoost = inf }},
		{name: "zero gamma", modify: func(m *GainMapMetadata) { m.Gamma = 0 }},
		{name: "negative offset", modify: func(m *GainMapMetadata) { m.OffsetHDR = -1 }},
		{name: "capacity below one", modify: func(m *GainMapMetadata) { m.HDRCapacityMin = 0.5 }},
		{name: "capacity inverted", modify: func(m *GainMapMetadata) { m.HDRCapacityMax = 1; m.HDRCapacityMin = 2 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := MetadataForTransfer(TransferHLG)
			tc.modify(&m)
			if tc.ok {
				assert.NoError(t, m.Validate())
			} else {
				assert.ErrorIs(t, m.Validate(), ErrInvalidArgument)
			}
		})
	}

	var m *GainMapMetadata
	assert.ErrorIs(t, m.Validate(), ErrInvalidArgument)
}

func TestGainCoder(t *testing.T) {
	meta := GainMapMetadata{
		MinContentBoost: 1, MaxContentBoost: 4, Gamma: 1,
		OffsetSDR: 1.0 / 64, OffsetHDR: 1.0 / 64,
		HDRCapacityMin: 1, HDRCapacityMax: 4,
	}
	gc := newGainCoder(&meta)

	assert.Equal(t, uint8(0), gc.encode(0.5, 0.5))
	assert.Equal(t, uint8(0), gc.encode(0.5, 0.1), "gain below min is clamped")
	assert.Equal(t, uint8(255), gc.encode(0.1, 10), "gain above max is clamped")

	for _, hdr := range []float32{1, 1.5, 2, 3, 3.9} {
		want := log2f((hdr + meta.OffsetHDR) / (1 + meta.OffsetSDR))
		got := gc.decode(float32(gc.encode(1, hdr)) / 255)
		assert.InDelta(t, want, got, 2.0/255, "hdr %v", hdr)
	}

	assert.Equal(t, float32(0), gc.boostWeight(1))
	assert.InDelta(t, 0.5, gc.boostWeight(2), 1e-6)
	assert.Equal(t, float32(1), gc.boostWeight(4))
	assert.Equal(t, float32(1), gc.boostWeight(8))

	c := RGB{R: 0.5, G: 0.5, B: 0.5}
	assert.Equal(t, c, gc.apply(c, 2, 0))
	assert.InDelta(t, (0.5+1.0/64)*4-1.0/64, gc.apply(c, 2, 1).G, 1e-5)

	flat := newGainCoder(&GainMapMetadata{MinContentBoost: 2, MaxContentBoost: 2, Gamma: 1})
	assert.Equal(t, float32(0), flat.boostWeight(3))
	assert.Equal(t, uint8(0), flat.encode(1, 2))
}

func TestGainCoderGamma(t *testing.T) {
	meta := MetadataForTransfer(TransferPQ)
	meta.Gamma = 2.2
	gc := newGainCoder(&meta)

	for _, s := range []uint8{0, 17, 128, 200, 255} {
		l := gc.decode(float32(s) / 255)
		assert.Equal(t, s, gc.encode(1, exp2f(l)*(1+meta.OffsetSDR)-meta.OffsetHDR), "sample %d", s)
	}
}
