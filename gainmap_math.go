package jpegr

import (
	"math"
)

// MetadataForTransfer returns the gain map metadata used when encoding content of the given transfer.
// The headroom is fixed per transfer: peak nits over SDR white for HLG and PQ, zero otherwise.
func MetadataForTransfer(tf ColorTransfer) GainMapMetadata {
	var maxBoost float32
	switch tf {
	case TransferHLG:
		maxBoost = hlgMaxNits / sdrWhiteNits
	case TransferPQ:
		maxBoost = pqMaxNits / sdrWhiteNits
	}
	return GainMapMetadata{
		Version:         jpegrVersion,
		MinContentBoost: 1,
		MaxContentBoost: maxBoost,
		Gamma:           defaultGamma,
		OffsetSDR:       defaultOffset,
		OffsetHDR:       defaultOffset,
		HDRCapacityMin:  1,
		HDRCapacityMax:  maxBoost,
	}
}

func finitePositive(v float32) bool {
	return v > 0 && !math.IsInf(float64(v), 0) && !math.IsNaN(float64(v))
}

// Validate checks the metadata invariants.
func (m *GainMapMetadata) Validate() error {
	if m == nil {
		return invalidArgf("gain map metadata missing")
	}
	if !finitePositive(m.MinContentBoost) || !finitePositive(m.MaxContentBoost) {
		return invalidArgf("content boost must be finite and positive: min %v, max %v", m.MinContentBoost, m.MaxContentBoost)
	}
	if m.MaxContentBoost < m.MinContentBoost {
		return invalidArgf("max content boost %v < min content boost %v", m.MaxContentBoost, m.MinContentBoost)
	}
	if !finitePositive(m.Gamma) {
		return invalidArgf("gamma must be finite and positive: %v", m.Gamma)
	}
	if math.IsNaN(float64(m.OffsetSDR)) || math.IsNaN(float64(m.OffsetHDR)) || m.OffsetSDR < 0 || m.OffsetHDR < 0 {
		return invalidArgf("offsets must be non-negative: sdr %v, hdr %v", m.OffsetSDR, m.OffsetHDR)
	}
	if m.HDRCapacityMin < 1 || m.HDRCapacityMax < m.HDRCapacityMin || !finitePositive(m.HDRCapacityMax) {
		return invalidArgf("hdr capacity range [%v, %v]", m.HDRCapacityMin, m.HDRCapacityMax)
	}
	return nil
}

// gainCoder holds the log domain bounds of a metadata set.
type gainCoder struct {
	log2Min, log2Max float32
	gamma            float32
	offSDR, offHDR   float32
}

func newGainCoder(m *GainMapMetadata) gainCoder {
	return gainCoder{
		log2Min: log2f(m.MinContentBoost),
		log2Max: log2f(m.MaxContentBoost),
		gamma:   m.Gamma,
		offSDR:  m.OffsetSDR,
		offHDR:  m.OffsetHDR,
	}
}

// encode maps SDR and HDR linear luminance (SDR white = 1) to an 8-bit gain sample.
func (gc gainCoder) encode(sdr, hdr float32) uint8 {
	gain := log2f((hdr + gc.offHDR) / (sdr + gc.offSDR))
	if math.IsNaN(float64(gain)) {
		gain = gc.log2Min
	}
	gain = clamp(gain, gc.log2Min, gc.log2Max)
	denom := gc.log2Max - gc.log2Min
	if denom == 0 {
		return 0
	}
	norm := (gain - gc.log2Min) / denom
	if gc.gamma != 1 {
		norm = float32(math.Pow(float64(norm), float64(gc.gamma)))
	}
	return uint8(quantize(norm, 255))
}

// decode maps a normalized gain sample to log2 gain.
func (gc gainCoder) decode(norm float32) float32 {
	if gc.gamma != 1 {
		norm = float32(math.Pow(float64(norm), float64(1/gc.gamma)))
	}
	return gc.log2Min + norm*(gc.log2Max-gc.log2Min)
}

// boostWeight is the fraction of the gain applied for a display boost, in [0,1].
func (gc gainCoder) boostWeight(boost float32) float32 {
	denom := gc.log2Max - gc.log2Min
	if denom <= 0 {
		return 0
	}
	return clamp01((log2f(boost) - gc.log2Min) / denom)
}

// apply scales a linear color by 2^(gainLog*weight) around the offsets.
func (gc gainCoder) apply(c RGB, gainLog, weight float32) RGB {
	if weight == 0 {
		return c
	}
	f := exp2f(gainLog * weight)
	return RGB{
		R: (c.R+gc.offSDR)*f - gc.offHDR,
		G: (c.G+gc.offSDR)*f - gc.offHDR,
		B: (c.B+gc.offSDR)*f - gc.offHDR,
	}
}

// GainMapSize returns the gain map dimensions for an image: a quarter of the size,
// width aligned up to 16 and height rounded up to even.
func GainMapSize(width, height int) (int, int) {
	w := alignUp(ceilDiv(width, defaultGainMapScale), gainMapWidthAlign)
	h := alignUp(ceilDiv(height, defaultGainMapScale), 2)
	return w, h
}
