package jpegr

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	markerStart = 0xFF
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP1  = 0xE1
	markerAPP2  = 0xE2
	markerTEM   = 0x01
	markerRST0  = 0xD0
	markerRST7  = 0xD7
)

// maxSegmentPayload is the largest payload a marker segment length can describe.
const maxSegmentPayload = 0xFFFF - 2

const (
	xmpNamespace = "http://ns.adobe.com/xap/1.0/"
	isoNamespace = "urn:iso:std:iso:ts:21496:-1"
)

var (
	exifSig   = []byte{'E', 'x', 'i', 'f', 0, 0}
	iccSig    = []byte{'I', 'C', 'C', '_', 'P', 'R', 'O', 'F', 'I', 'L', 'E', 0}
	xmpPrefix = append([]byte(xmpNamespace), 0)
	isoPrefix = append([]byte(isoNamespace), 0)
)

// iccChunkPayload is the profile bytes carried per ICC_PROFILE segment.
const iccChunkPayload = maxSegmentPayload - 14

// segment is a marker segment of a JPEG header.
type segment struct {
	marker  byte
	start   int // offset of the 0xFF byte
	end     int // offset after the payload
	payload []byte
}

func isStandalone(marker byte) bool {
	return marker == markerTEM || (marker >= markerRST0 && marker <= markerRST7)
}

// walkHeader visits the marker segments following SOI at data[start:] until SOS or EOI.
// Iteration stops early when fn returns false.
func walkHeader(data []byte, start int, fn func(s segment) bool) error {
	if start+1 >= len(data) || data[start] != markerStart || data[start+1] != markerSOI {
		return errors.New("missing SOI")
	}
	pos := start + 2
	for pos+3 < len(data) {
		if data[pos] != markerStart {
			pos++
			continue
		}
		segStart := pos
		for pos < len(data) && data[pos] == markerStart {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++
		if marker == markerSOS || marker == markerEOI {
			return nil
		}
		if marker == markerSOI || isStandalone(marker) {
			continue
		}
		if pos+1 >= len(data) {
			return errors.New("truncated marker")
		}
		segLen := int(binary.BigEndian.Uint16(data[pos:]))
		if segLen < 2 || pos+segLen > len(data) {
			return errors.Errorf("invalid segment length %d for marker 0x%02X", segLen, marker)
		}
		s := segment{marker: marker, start: segStart, end: pos + segLen, payload: data[pos+2 : pos+segLen]}
		if !fn(s) {
			return nil
		}
		pos = s.end
	}
	return errors.New("truncated header")
}

func scanJPEGs(data []byte) ([][2]int, error) {
	if ranges, ok := scanJPEGsByMPF(data); ok {
		return ranges, nil
	}
	var ranges [][2]int
	i := 0
	for i+1 < len(data) {
		if data[i] == markerStart && data[i+1] == markerSOI {
			end, err := findJPEGEnd(data, i)
			if err != nil {
				if len(ranges) > 0 {
					break
				}
				return nil, err
			}
			ranges = append(ranges, [2]int{i, end})
			i = end
			continue
		}
		i++
	}
	if len(ranges) == 0 {
		return nil, errors.New("no JPEG images found")
	}
	return ranges, nil
}

func scanJPEGsByMPF(data []byte) ([][2]int, bool) {
	primarySize, secondarySize, secondaryOffset, ok := findMPFInfo(data)
	if !ok || primarySize < 2 || secondarySize < 2 {
		return nil, false
	}
	secondaryEnd := secondaryOffset + secondarySize
	if primarySize > len(data) || secondaryEnd > len(data) || secondaryOffset < primarySize {
		return nil, false
	}
	if data[secondaryOffset] != markerStart || data[secondaryOffset+1] != markerSOI {
		return nil, false
	}
	return [][2]int{{0, primarySize}, {secondaryOffset, secondaryEnd}}, true
}

// findMPFInfo locates the MPF segment of the primary image and returns absolute image positions.
func findMPFInfo(data []byte) (primarySize, secondarySize, secondaryOffset int, ok bool) {
	_ = walkHeader(data, 0, func(s segment) bool {
		if s.marker != markerAPP2 || !bytes.HasPrefix(s.payload, mpfSig) {
			return true
		}
		info, err := parseMPF(s.payload)
		if err != nil {
			return false
		}
		tiffHeaderAbs := s.end - len(s.payload) + len(mpfSig)
		primarySize = info.primarySize
		secondarySize = info.secondarySize
		secondaryOffset = tiffHeaderAbs + info.secondaryOffset
		ok = true
		return false
	})
	return primarySize, secondarySize, secondaryOffset, ok
}

func findJPEGEnd(data []byte, start int) (int, error) {
	if start+1 >= len(data) || data[start] != markerStart || data[start+1] != markerSOI {
		return 0, errors.New("not a JPEG SOI")
	}
	pos := start + 2
	inScan := false
	for pos+1 < len(data) {
		if !inScan {
			if data[pos] != markerStart {
				pos++
				continue
			}
			for pos < len(data) && data[pos] == markerStart {
				pos++
			}
			if pos >= len(data) {
				break
			}
			marker := data[pos]
			pos++
			switch {
			case marker == markerEOI:
				return pos, nil
			case marker == markerSOI || isStandalone(marker):
				continue
			}
			if pos+1 >= len(data) {
				return 0, errors.New("truncated marker segment")
			}
			segLen := int(binary.BigEndian.Uint16(data[pos:]))
			if segLen < 2 {
				return 0, errors.New("invalid marker length")
			}
			pos += segLen
			inScan = marker == markerSOS
			continue
		}

		if data[pos] != markerStart {
			pos++
			continue
		}
		next := data[pos+1]
		switch {
		case next == markerStart:
			pos++
		case next == 0x00 || (next >= markerRST0 && next <= markerRST7):
			pos += 2
		case next == markerEOI:
			return pos + 2, nil
		default:
			// A table or progressive scan header between scans.
			inScan = false
		}
	}
	return 0, errors.New("no EOI found")
}

// headerSegments returns the APP1 and APP2 payloads of a JPEG header.
func headerSegments(jpegData []byte) (app1 [][]byte, app2 [][]byte, err error) {
	err = walkHeader(jpegData, 0, func(s segment) bool {
		switch s.marker {
		case markerAPP1:
			app1 = append(app1, s.payload)
		case markerAPP2:
			app2 = append(app2, s.payload)
		}
		return true
	})
	return app1, app2, err
}

func findPrefixed(segs [][]byte, prefix []byte) []byte {
	for _, seg := range segs {
		if bytes.HasPrefix(seg, prefix) {
			return seg
		}
	}
	return nil
}

// collectICCProfile reassembles ICC_PROFILE chunks ordered by sequence number.
// Only the first profile is kept when several are present.
func collectICCProfile(app2 [][]byte) []byte {
	var (
		chunks [][]byte
		total  int
	)
	for _, p := range app2 {
		if len(p) <= len(iccSig)+2 || !bytes.HasPrefix(p, iccSig) {
			continue
		}
		seq, n := int(p[len(iccSig)]), int(p[len(iccSig)+1])
		if chunks == nil {
			if n == 0 {
				continue
			}
			chunks = make([][]byte, n)
		}
		if n != len(chunks) || seq < 1 || seq > n || chunks[seq-1] != nil {
			continue
		}
		chunks[seq-1] = p[len(iccSig)+2:]
		total += len(chunks[seq-1])
	}
	if chunks == nil {
		return nil
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// iccChunks splits a profile into ICC_PROFILE APP2 payloads.
func iccChunks(profile []byte) ([][]byte, error) {
	if len(profile) == 0 {
		return nil, nil
	}
	n := ceilDiv(len(profile), iccChunkPayload)
	if n > 255 {
		return nil, errors.Errorf("icc profile too large: %d bytes", len(profile))
	}
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		part := profile[i*iccChunkPayload : min((i+1)*iccChunkPayload, len(profile))]
		p := make([]byte, 0, len(iccSig)+2+len(part))
		p = append(p, iccSig...)
		p = append(p, byte(i+1), byte(n))
		p = append(p, part...)
		out = append(out, p)
	}
	return out, nil
}

func writeAppSegment(out *bytes.Buffer, marker byte, payload []byte) {
	out.WriteByte(markerStart)
	out.WriteByte(marker)
	length := uint16(len(payload) + 2)
	out.WriteByte(byte(length >> 8))
	out.WriteByte(byte(length))
	out.Write(payload)
}

func appSize(payload []byte) int {
	if len(payload) == 0 {
		return 0
	}
	return 4 + len(payload)
}
