package hdrio

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

const exrMagic = 20000630

// maxPixels bounds allocations for untrusted headers.
const maxPixels = 1 << 28

const (
	exrFlagTiled     = 0x200
	exrFlagDeep      = 0x800
	exrFlagMultipart = 0x1000
)

const (
	exrCompressionNone = 0
	exrCompressionZips = 2
	exrCompressionZip  = 3
)

const (
	exrPixelUint  = 0
	exrPixelHalf  = 1
	exrPixelFloat = 2
)

// exrLinesPerBlock by compression.
var exrLinesPerBlock = map[byte]int{
	exrCompressionNone: 1,
	exrCompressionZips: 1,
	exrCompressionZip:  16,
}

type exrChannel struct {
	name      string
	pixelType int32
	xSampling int32
	ySampling int32
	// target is the RGB index the channel feeds, 3 for luminance, -1 when unused.
	target int
}

func (c exrChannel) bytesPerSample() int {
	if c.pixelType == exrPixelHalf {
		return 2
	}
	return 4
}

// exrReader reads little-endian values and keeps the first error.
type exrReader struct {
	r   *bytes.Reader
	err error
}

func (er *exrReader) fail(err error) {
	if er.err == nil {
		er.err = err
	}
}

func (er *exrReader) u32() uint32 {
	var b [4]byte
	if er.err != nil {
		return 0
	}
	if _, err := io.ReadFull(er.r, b[:]); err != nil {
		er.fail(errors.Wrap(err, "exr truncated"))
		return 0
	}
	return binary.LittleEndian.Uint32(b[:])
}

func (er *exrReader) i32() int32 { return int32(er.u32()) }

func (er *exrReader) u64() uint64 {
	lo := uint64(er.u32())
	return lo | uint64(er.u32())<<32
}

func (er *exrReader) cstring() string {
	var sb strings.Builder
	for er.err == nil {
		b, err := er.r.ReadByte()
		if err != nil {
			er.fail(errors.Wrap(err, "exr truncated string"))
			break
		}
		if b == 0 {
			break
		}
		sb.WriteByte(b)
	}
	return sb.String()
}

func (er *exrReader) bytes(n int) []byte {
	if er.err != nil {
		return nil
	}
	if n < 0 || n > er.r.Len() {
		er.fail(errors.Errorf("exr payload of %d bytes out of range", n))
		return nil
	}
	out := make([]byte, n)
	_, _ = io.ReadFull(er.r, out)
	return out
}

type exrHeader struct {
	channels    []exrChannel
	dataWindow  [4]int32
	hasWindow   bool
	compression byte
}

// DecodeEXR reads a single-part scanline OpenEXR file with NONE, ZIPS or ZIP compression.
func DecodeEXR(data []byte) (*Image, error) {
	er := &exrReader{r: bytes.NewReader(data)}
	if er.u32() != exrMagic {
		return nil, errors.New("not an OpenEXR file")
	}
	version := er.u32()
	switch {
	case version&exrFlagTiled != 0:
		return nil, errors.New("tiled OpenEXR not supported")
	case version&exrFlagDeep != 0:
		return nil, errors.New("deep OpenEXR not supported")
	case version&exrFlagMultipart != 0:
		return nil, errors.New("multipart OpenEXR not supported")
	}

	h, err := readEXRHeader(er)
	if err != nil {
		return nil, err
	}
	width := int(h.dataWindow[2]-h.dataWindow[0]) + 1
	height := int(h.dataWindow[3]-h.dataWindow[1]) + 1
	if width <= 0 || height <= 0 || int64(width)*int64(height) > maxPixels {
		return nil, errors.Errorf("invalid OpenEXR data window %v", h.dataWindow)
	}

	blockLines := exrLinesPerBlock[h.compression]
	offsets := make([]uint64, ceilDiv(height, blockLines))
	for i := range offsets {
		offsets[i] = er.u64()
	}
	if er.err != nil {
		return nil, er.err
	}

	out := NewImage(width, height)
	for _, off := range offsets {
		if off == 0 || off >= uint64(len(data)) {
			return nil, errors.Errorf("invalid OpenEXR block offset %d", off)
		}
		if _, err := er.r.Seek(int64(off), io.SeekStart); err != nil {
			return nil, errors.Wrap(err, "seek OpenEXR block")
		}
		startY := int(er.i32() - h.dataWindow[1])
		raw := er.bytes(int(er.i32()))
		if er.err != nil {
			return nil, er.err
		}
		if startY < 0 || startY >= height {
			return nil, errors.Errorf("OpenEXR scanline %d out of bounds", startY)
		}
		lines := min(blockLines, height-startY)

		unpacked, err := exrUnpack(h.compression, raw, exrBlockSize(width, lines, h.channels))
		if err != nil {
			return nil, err
		}
		if err := exrScatter(out, h.channels, startY, lines, unpacked); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readEXRHeader(er *exrReader) (*exrHeader, error) {
	h := &exrHeader{}
	for er.err == nil {
		name := er.cstring()
		if name == "" {
			break
		}
		typ := er.cstring()
		payload := er.bytes(int(er.i32()))
		if er.err != nil {
			break
		}

		switch name {
		case "channels":
			if typ != "chlist" {
				return nil, errors.Errorf("unexpected channels attribute type %q", typ)
			}
			ch, err := parseEXRChannels(payload)
			if err != nil {
				return nil, err
			}
			h.channels = ch
		case "dataWindow":
			if typ != "box2i" || len(payload) != 16 {
				return nil, errors.New("invalid dataWindow attribute")
			}
			for i := range h.dataWindow {
				h.dataWindow[i] = int32(binary.LittleEndian.Uint32(payload[4*i:]))
			}
			h.hasWindow = true
		case "compression":
			if typ != "compression" || len(payload) < 1 {
				return nil, errors.New("invalid compression attribute")
			}
			h.compression = payload[0]
		}
	}
	if er.err != nil {
		return nil, er.err
	}

	if len(h.channels) == 0 {
		return nil, errors.New("OpenEXR missing channels")
	}
	if !h.hasWindow {
		return nil, errors.New("OpenEXR missing dataWindow")
	}
	if _, ok := exrLinesPerBlock[h.compression]; !ok {
		return nil, errors.Errorf("unsupported OpenEXR compression %d", h.compression)
	}
	used := false
	for _, ch := range h.channels {
		if ch.xSampling != 1 || ch.ySampling != 1 {
			return nil, errors.New("OpenEXR subsampled channels are not supported")
		}
		used = used || ch.target >= 0
	}
	if !used {
		return nil, errors.New("OpenEXR missing R/G/B or Y channels")
	}
	return h, nil
}

func parseEXRChannels(data []byte) ([]exrChannel, error) {
	er := &exrReader{r: bytes.NewReader(data)}
	var channels []exrChannel
	for er.err == nil {
		name := er.cstring()
		if name == "" {
			break
		}
		ch := exrChannel{name: name, pixelType: er.i32(), target: -1}
		// pLinear and reserved bytes.
		er.bytes(4)
		ch.xSampling = er.i32()
		ch.ySampling = er.i32()
		if er.err != nil {
			break
		}
		if ch.pixelType != exrPixelHalf && ch.pixelType != exrPixelFloat && ch.pixelType != exrPixelUint {
			return nil, errors.Errorf("unsupported OpenEXR pixel type %d", ch.pixelType)
		}
		switch strings.ToUpper(name) {
		case "R":
			ch.target = 0
		case "G":
			ch.target = 1
		case "B":
			ch.target = 2
		case "Y":
			ch.target = 3
		}
		channels = append(channels, ch)
	}
	if er.err != nil {
		return nil, er.err
	}
	return channels, nil
}

func exrBlockSize(width, lines int, channels []exrChannel) int {
	total := 0
	for _, ch := range channels {
		total += width * lines * ch.bytesPerSample()
	}
	return total
}

// exrUnpack inflates a ZIP block and undoes the predictor and byte interleaving.
// Blocks that did not shrink are stored raw.
func exrUnpack(compression byte, data []byte, expected int) ([]byte, error) {
	if compression == exrCompressionNone || len(data) == expected {
		if len(data) != expected {
			return nil, errors.Errorf("OpenEXR block of %d bytes, expected %d", len(data), expected)
		}
		return data, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "inflate OpenEXR block")
	}
	defer zr.Close()

	buf, err := io.ReadAll(io.LimitReader(zr, int64(expected)+1))
	if err != nil {
		return nil, errors.Wrap(err, "inflate OpenEXR block")
	}
	if len(buf) != expected {
		return nil, errors.Errorf("OpenEXR block inflated to %d bytes, expected %d", len(buf), expected)
	}
	for i := 1; i < len(buf); i++ {
		buf[i] = byte(int(buf[i]) + int(buf[i-1]) - 128)
	}
	half := (len(buf) + 1) / 2
	out := make([]byte, len(buf))
	for i := range out {
		if i%2 == 0 {
			out[i] = buf[i/2]
		} else {
			out[i] = buf[half+i/2]
		}
	}
	return out, nil
}

// exrScatter stores the channel lines of a block, channels are ordered by name within each line.
func exrScatter(dst *Image, channels []exrChannel, startY, lines int, data []byte) error {
	width := dst.Width
	offset := 0
	for row := 0; row < lines; row++ {
		y := startY + row
		for _, ch := range channels {
			n := width * ch.bytesPerSample()
			if offset+n > len(data) {
				return errors.New("OpenEXR block truncated")
			}
			line := data[offset : offset+n]
			offset += n
			if ch.target < 0 {
				continue
			}
			for x := 0; x < width; x++ {
				v := exrSample(ch.pixelType, line, x)
				i := 3 * (y*width + x)
				if ch.target == 3 {
					dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = v, v, v
				} else {
					dst.Pix[i+ch.target] = v
				}
			}
		}
	}
	return nil
}

func exrSample(pixelType int32, line []byte, x int) float32 {
	switch pixelType {
	case exrPixelHalf:
		return float16.Frombits(binary.LittleEndian.Uint16(line[2*x:])).Float32()
	case exrPixelFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(line[4*x:]))
	default:
		return float32(binary.LittleEndian.Uint32(line[4*x:]))
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
