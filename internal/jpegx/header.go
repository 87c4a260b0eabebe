package jpegx

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Header is the frame description and quantization tables of a JPEG stream.
type Header struct {
	Width       int
	Height      int
	Components  int
	Precision   int
	Progressive bool
	// Sampling holds horizontal and vertical factors of up to three components.
	Sampling [3][2]byte

	// Quant holds the first two 8-bit quantization tables in zig-zag order.
	Quant    [2][blockSize]byte
	HasQuant [2]bool
}

// ParseHeader reads marker segments up to the first scan.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != soiMarker {
		return nil, errors.New("missing SOI marker")
	}
	h := &Header{}
	hasFrame := false
	pos := 2
	for pos+3 < len(data) {
		if data[pos] != 0xFF {
			pos++
			continue
		}
		for pos < len(data) && data[pos] == 0xFF {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++
		if marker == sosMarker || marker == eoiMarker {
			break
		}
		if marker == soiMarker || (marker >= rst0Marker && marker <= rst7Marker) {
			continue
		}
		if pos+1 >= len(data) {
			return nil, errors.New("truncated marker")
		}
		segLen := int(binary.BigEndian.Uint16(data[pos:]))
		if segLen < 2 || pos+segLen > len(data) {
			return nil, errors.Errorf("invalid segment length %d", segLen)
		}
		seg := data[pos+2 : pos+segLen]
		switch {
		case marker == dqtMarker:
			if err := parseDQT(seg, h); err != nil {
				return nil, err
			}
		case marker >= sof0Marker && marker <= 0xcf && marker != dhtMarker && marker != dacMarker && marker != 0xc8:
			if err := parseSOF(seg, h); err != nil {
				return nil, err
			}
			h.Progressive = marker == sof2Marker || marker == 0xc6 || marker == 0xca || marker == 0xce
			hasFrame = true
		}
		pos += segLen
	}
	if !hasFrame {
		return nil, errors.New("missing SOF marker")
	}
	return h, nil
}

func parseDQT(seg []byte, h *Header) error {
	pos := 0
	for pos < len(seg) {
		pq := seg[pos] >> 4
		tq := seg[pos] & 0x0F
		pos++
		n := blockSize
		if pq != 0 {
			n = 2 * blockSize
		}
		if pos+n > len(seg) {
			return errors.New("truncated dqt table")
		}
		if pq == 0 && tq < 2 {
			copy(h.Quant[tq][:], seg[pos:pos+blockSize])
			h.HasQuant[tq] = true
		}
		pos += n
	}
	return nil
}

func parseSOF(seg []byte, h *Header) error {
	if len(seg) < 6 {
		return errors.New("truncated sof")
	}
	h.Precision = int(seg[0])
	h.Height = int(binary.BigEndian.Uint16(seg[1:]))
	h.Width = int(binary.BigEndian.Uint16(seg[3:]))
	h.Components = int(seg[5])
	if h.Components < 1 {
		return errors.New("invalid component count")
	}
	if h.Width == 0 || h.Height == 0 {
		return errors.Errorf("invalid frame size %dx%d", h.Width, h.Height)
	}
	pos := 6
	for i := 0; i < h.Components && i < 3; i++ {
		if pos+3 > len(seg) {
			return errors.New("truncated sof components")
		}
		samp := seg[pos+1]
		h.Sampling[i] = [2]byte{samp >> 4, samp & 0x0F}
		pos += 3
	}
	if h.Components == 1 {
		h.Sampling[0] = [2]byte{1, 1}
	}
	return nil
}

// EstimateQuality finds the IJG quality whose scaled luminance table is closest to the stored one.
// It returns 0 when no luminance table is present.
func (h *Header) EstimateQuality() int {
	if !h.HasQuant[0] {
		return 0
	}
	best, bestDiff := 0, -1
	for q := 1; q <= 100; q++ {
		table := scaledQuant(0, q)
		diff := 0
		for i, v := range table {
			d := int(v) - int(h.Quant[0][i])
			if d < 0 {
				d = -d
			}
			diff += d
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = q, diff
		}
	}
	return best
}

// scaledQuant reproduces the quality scaling of image/jpeg.
func scaledQuant(table, quality int) [blockSize]byte {
	scale := 200 - quality*2
	if quality < 50 {
		scale = 5000 / quality
	}
	var out [blockSize]byte
	for i, v := range unscaledQuant[table] {
		x := (int(v)*scale + 50) / 100
		if x < 1 {
			x = 1
		} else if x > 255 {
			x = 255
		}
		out[i] = byte(x)
	}
	return out
}
