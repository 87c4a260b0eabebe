package jpegr

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"unicode/utf16"

	"gonum.org/v1/gonum/mat"
)

const iccHeaderSize = 128

// bradfordD65ToD50 adapts D65 relative XYZ to the D50 profile connection space.
var bradfordD65ToD50 = mat.NewDense(3, 3, []float64{
	1.0478112, 0.0228866, -0.0501270,
	0.0295424, 0.9904844, -0.0170491,
	-0.0092345, 0.0150436, 0.7521316,
})

var iccDescriptions = map[ColorGamut]string{
	GamutBT709:     "sRGB",
	GamutDisplayP3: "Display P3",
	GamutBT2100:    "Rec2020",
}

type iccTag struct {
	sig  string
	data []byte
}

// iccProfileForGamut builds a minimal ICC v4 display profile with an sRGB tone curve,
// the description names the gamut so gamutFromICCProfile can recover it.
func iccProfileForGamut(g ColorGamut) []byte {
	desc, ok := iccDescriptions[g]
	if !ok {
		return nil
	}
	toXYZ, err := rgbToXYZMatrix(gamutPrimaries[g], whiteD65)
	if err != nil {
		return nil
	}
	var pcs mat.Dense
	pcs.Mul(bradfordD65ToD50, toXYZ)

	colorant := func(c int) []byte {
		return iccXYZ(pcs.At(0, c), pcs.At(1, c), pcs.At(2, c))
	}
	trc := iccParaSRGB()
	tags := []iccTag{
		{sig: "desc", data: iccMLUC(desc)},
		{sig: "cprt", data: iccMLUC("No copyright")},
		{sig: "wtpt", data: iccXYZ(0.9642, 1.0, 0.8249)},
		{sig: "rXYZ", data: colorant(0)},
		{sig: "gXYZ", data: colorant(1)},
		{sig: "bXYZ", data: colorant(2)},
		{sig: "rTRC", data: trc},
		{sig: "gTRC", data: trc},
		{sig: "bTRC", data: trc},
	}

	tableSize := 4 + 12*len(tags)
	offset := iccHeaderSize + tableSize
	table := make([]byte, 0, tableSize)
	table = binary.BigEndian.AppendUint32(table, uint32(len(tags)))
	var body []byte
	for _, t := range tags {
		table = append(table, t.sig...)
		table = binary.BigEndian.AppendUint32(table, uint32(offset+len(body)))
		table = binary.BigEndian.AppendUint32(table, uint32(len(t.data)))
		body = append(body, t.data...)
		for len(body)%4 != 0 {
			body = append(body, 0)
		}
	}

	size := offset + len(body)
	out := make([]byte, iccHeaderSize, size)
	binary.BigEndian.PutUint32(out[0:], uint32(size))
	binary.BigEndian.PutUint32(out[8:], 0x04300000)
	copy(out[12:], "mntr")
	copy(out[16:], "RGB ")
	copy(out[20:], "XYZ ")
	copy(out[36:], "acsp")
	copy(out[68:], iccXYZ(0.9642, 1.0, 0.8249)[8:])
	out = append(out, table...)
	return append(out, body...)
}

func s15Fixed16(v float64) uint32 {
	return uint32(int32(math.Round(v * 65536)))
}

func iccXYZ(x, y, z float64) []byte {
	b := make([]byte, 0, 20)
	b = append(b, "XYZ "...)
	b = append(b, 0, 0, 0, 0)
	b = binary.BigEndian.AppendUint32(b, s15Fixed16(x))
	b = binary.BigEndian.AppendUint32(b, s15Fixed16(y))
	return binary.BigEndian.AppendUint32(b, s15Fixed16(z))
}

func iccMLUC(s string) []byte {
	text := utf16.Encode([]rune(s))
	b := make([]byte, 0, 28+2*len(text))
	b = append(b, "mluc"...)
	b = append(b, 0, 0, 0, 0)
	b = binary.BigEndian.AppendUint32(b, 1)
	b = binary.BigEndian.AppendUint32(b, 12)
	b = append(b, "enUS"...)
	b = binary.BigEndian.AppendUint32(b, uint32(2*len(text)))
	b = binary.BigEndian.AppendUint32(b, 28)
	for _, c := range text {
		b = binary.BigEndian.AppendUint16(b, c)
	}
	return b
}

// iccParaSRGB is a parametric curve of type 3 matching the sRGB EOTF.
func iccParaSRGB() []byte {
	b := make([]byte, 0, 32)
	b = append(b, "para"...)
	b = append(b, 0, 0, 0, 0)
	b = binary.BigEndian.AppendUint16(b, 3)
	b = append(b, 0, 0)
	for _, v := range []float64{2.4, 1 / 1.055, 0.055 / 1.055, 1 / 12.92, 0.04045} {
		b = binary.BigEndian.AppendUint32(b, s15Fixed16(v))
	}
	return b
}

// iccDescription returns the text of the desc tag for v2 'desc' and v4 'mluc' encodings.
func iccDescription(profile []byte) string {
	if len(profile) < iccHeaderSize+4 {
		return ""
	}
	n := int(binary.BigEndian.Uint32(profile[iccHeaderSize:]))
	for i := 0; i < n; i++ {
		e := iccHeaderSize + 4 + 12*i
		if e+12 > len(profile) {
			return ""
		}
		if string(profile[e:e+4]) != "desc" {
			continue
		}
		off := int(binary.BigEndian.Uint32(profile[e+4:]))
		size := int(binary.BigEndian.Uint32(profile[e+8:]))
		if off < 0 || size < 12 || off+size > len(profile) {
			return ""
		}
		tag := profile[off : off+size]
		switch string(tag[:4]) {
		case "desc":
			l := int(binary.BigEndian.Uint32(tag[8:]))
			if 12+l > len(tag) {
				return ""
			}
			return string(bytes.TrimRight(tag[12:12+l], "\x00"))
		case "mluc":
			if len(tag) < 28 {
				return ""
			}
			l := int(binary.BigEndian.Uint32(tag[20:]))
			o := int(binary.BigEndian.Uint32(tag[24:]))
			if o+l > len(tag) || l%2 != 0 {
				return ""
			}
			u := make([]uint16, l/2)
			for k := range u {
				u[k] = binary.BigEndian.Uint16(tag[o+2*k:])
			}
			return string(utf16.Decode(u))
		}
		return ""
	}
	return ""
}

// gamutFromICCProfile guesses the gamut of a base image from its ICC profile description.
func gamutFromICCProfile(profile []byte) ColorGamut {
	if len(profile) == 0 {
		return GamutBT709
	}
	text := []byte(strings.ToLower(iccDescription(profile)))
	if len(text) == 0 {
		text = bytes.ToLower(profile)
	}
	switch {
	case bytes.Contains(text, []byte("display p3")) || bytes.Contains(text, []byte("dci-p3")):
		return GamutDisplayP3
	case bytes.Contains(text, []byte("2020")) || bytes.Contains(text, []byte("2100")):
		return GamutBT2100
	default:
		return GamutBT709
	}
}
