package jpegr

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// Detect reports whether r holds a JPEG/R stream, reading only up to the gain map header.
// It applies the metadata rules of Demux, so a second image without readable
// gain map metadata is not JPEG/R.
// A truncated stream is reported as not JPEG/R, read failures are returned.
func Detect(r io.Reader) (bool, error) {
	ok, err := detect(markerReader{br: bufio.NewReader(r)})
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return false, nil
	}
	return ok, err
}

func detect(mr markerReader) (bool, error) {
	if err := mr.findSOI(); err != nil {
		return false, err
	}
	if err := mr.skipImage(); err != nil {
		return false, err
	}
	if err := mr.findSOI(); err != nil {
		return false, err
	}

	var h gainMapHeader
	for {
		marker, err := mr.next()
		if err != nil {
			return false, err
		}
		if marker == markerSOI || isStandalone(marker) {
			continue
		}
		if marker != markerAPP1 && marker != markerAPP2 {
			break
		}
		payload, err := mr.payload()
		if err != nil {
			return false, err
		}
		if !h.add(marker, payload) {
			break
		}
	}
	meta, err := h.metadata()
	return meta != nil && err == nil, nil
}

// markerReader walks JPEG markers of a stream.
type markerReader struct {
	br *bufio.Reader
}

// findSOI consumes input up to and including the next SOI marker.
func (m markerReader) findSOI() error {
	var prev byte
	for {
		b, err := m.br.ReadByte()
		if err != nil {
			return err
		}
		if prev == markerStart && b == markerSOI {
			return nil
		}
		prev = b
	}
}

// next returns the next marker, stepping over entropy coded data, fill bytes,
// stuffed zeros and restart markers.
func (m markerReader) next() (byte, error) {
	for {
		b, err := m.br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != markerStart {
			continue
		}
		for b == markerStart {
			if b, err = m.br.ReadByte(); err != nil {
				return 0, err
			}
		}
		if b == 0 || (b >= markerRST0 && b <= markerRST7) {
			continue
		}
		return b, nil
	}
}

func (m markerReader) length() (int, error) {
	var buf [2]byte
	if _, err := io.ReadFull(m.br, buf[:]); err != nil {
		return 0, err
	}
	n := int(buf[0])<<8 | int(buf[1])
	if n < 2 {
		return 0, parseErrorf("invalid segment length %d", n)
	}
	return n - 2, nil
}

func (m markerReader) payload() ([]byte, error) {
	n, err := m.length()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	_, err = io.ReadFull(m.br, buf)
	return buf, err
}

func (m markerReader) skip() error {
	n, err := m.length()
	if err != nil {
		return err
	}
	_, err = m.br.Discard(n)
	return err
}

// skipImage consumes the image following an SOI up to and including its EOI.
func (m markerReader) skipImage() error {
	for {
		marker, err := m.next()
		if err != nil {
			return err
		}
		switch {
		case marker == markerEOI:
			return nil
		case marker == markerSOI || isStandalone(marker):
		default:
			if err := m.skip(); err != nil {
				return err
			}
		}
	}
}
