package jpegr

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	mpfNumPictures = 2
	mpfEndianSize  = 4
	mpfTagCount    = 3
	mpfTagSize     = 12

	mpfTypeLong      = 0x4
	mpfTypeUndefined = 0x7

	mpfVersionTag          = 0xB000
	mpfVersionCount        = 4
	mpfNumberOfImagesTag   = 0xB001
	mpfNumberOfImagesCount = 1
	mpfEntryTag            = 0xB002
	mpfEntrySize           = 16

	mpfAttrFormatJpeg  = 0x0000000
	mpfAttrTypePrimary = 0x030000
)

var (
	mpfSig       = []byte{'M', 'P', 'F', 0}
	mpfBigEndian = []byte{0x4D, 0x4D, 0x00, 0x2A}
	mpfVersion   = []byte{'0', '1', '0', '0'}
)

func calculateMpfSize() int {
	return len(mpfSig) + mpfEndianSize + 4 + 2 + mpfTagCount*mpfTagSize + 4 + mpfNumPictures*mpfEntrySize
}

// generateMpf builds the MPF APP2 payload. Offsets are relative to the TIFF header
// that follows the MPF signature, the primary image offset is 0 by convention.
func generateMpf(primarySize, primaryOffset, secondarySize, secondaryOffset int) []byte {
	buf := make([]byte, 0, calculateMpfSize())
	putU16 := func(v uint16) { buf = binary.BigEndian.AppendUint16(buf, v) }
	putU32 := func(v uint32) { buf = binary.BigEndian.AppendUint32(buf, v) }

	buf = append(buf, mpfSig...)
	buf = append(buf, mpfBigEndian...)

	indexIfdOffset := uint32(mpfEndianSize + len(mpfSig))
	putU32(indexIfdOffset)

	putU16(mpfTagCount)

	putU16(mpfVersionTag)
	putU16(mpfTypeUndefined)
	putU32(mpfVersionCount)
	buf = append(buf, mpfVersion...)

	putU16(mpfNumberOfImagesTag)
	putU16(mpfTypeLong)
	putU32(mpfNumberOfImagesCount)
	putU32(mpfNumPictures)

	putU16(mpfEntryTag)
	putU16(mpfTypeUndefined)
	putU32(mpfEntrySize * mpfNumPictures)
	mpEntryOffset := uint32(8 + 2 + mpfTagCount*mpfTagSize + 4)
	putU32(mpEntryOffset)

	// Attribute IFD offset.
	putU32(0)

	putU32(mpfAttrFormatJpeg | mpfAttrTypePrimary)
	putU32(uint32(primarySize))
	putU32(uint32(primaryOffset))
	putU16(0)
	putU16(0)

	putU32(mpfAttrFormatJpeg)
	putU32(uint32(secondarySize))
	putU32(uint32(secondaryOffset))
	putU16(0)
	putU16(0)

	return buf
}

type mpfInfo struct {
	primarySize     int
	secondarySize   int
	secondaryOffset int
}

func parseMPF(payload []byte) (mpfInfo, error) {
	if len(payload) < len(mpfSig)+8 || !bytes.HasPrefix(payload, mpfSig) {
		return mpfInfo{}, errors.New("mpf signature missing")
	}
	tiff := payload[len(mpfSig):]
	var order binary.ByteOrder
	switch {
	case tiff[0] == 0x4D && tiff[1] == 0x4D:
		order = binary.BigEndian
	case tiff[0] == 0x49 && tiff[1] == 0x49:
		order = binary.LittleEndian
	default:
		return mpfInfo{}, errors.New("mpf endian invalid")
	}
	if order.Uint16(tiff[2:4]) != 0x002A {
		return mpfInfo{}, errors.New("mpf tiff magic invalid")
	}
	ifdPos := int(order.Uint32(tiff[4:8]))
	if ifdPos < 0 || ifdPos+2 > len(tiff) {
		return mpfInfo{}, errors.New("mpf ifd offset invalid")
	}
	tagCount := int(order.Uint16(tiff[ifdPos : ifdPos+2]))
	ifdPos += 2
	entryOffset := -1
	for i := 0; i < tagCount; i++ {
		if ifdPos+mpfTagSize > len(tiff) {
			return mpfInfo{}, errors.New("mpf ifd truncated")
		}
		tag := order.Uint16(tiff[ifdPos : ifdPos+2])
		typ := order.Uint16(tiff[ifdPos+2 : ifdPos+4])
		count := order.Uint32(tiff[ifdPos+4 : ifdPos+8])
		value := order.Uint32(tiff[ifdPos+8 : ifdPos+12])
		if tag == mpfEntryTag && typ == mpfTypeUndefined && count >= mpfEntrySize {
			entryOffset = int(value)
			break
		}
		ifdPos += mpfTagSize
	}
	if entryOffset < 0 || entryOffset+mpfEntrySize*mpfNumPictures > len(tiff) {
		return mpfInfo{}, errors.New("mpf entry offset invalid")
	}
	entryPos := entryOffset
	var info mpfInfo
	for i := 0; i < mpfNumPictures; i++ {
		attr := order.Uint32(tiff[entryPos : entryPos+4])
		size := int(order.Uint32(tiff[entryPos+4 : entryPos+8]))
		offset := int(order.Uint32(tiff[entryPos+8 : entryPos+12]))
		if attr&mpfAttrTypePrimary != 0 {
			info.primarySize = size
		} else {
			info.secondarySize = size
			info.secondaryOffset = offset
		}
		entryPos += mpfEntrySize
	}
	if info.primarySize == 0 || info.secondarySize == 0 {
		return mpfInfo{}, errors.New("mpf sizes missing")
	}
	return info, nil
}
