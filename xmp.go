package jpegr

import (
	"bytes"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	reVersion    = hdrgmField("Version")
	reGainMapMin = hdrgmField("GainMapMin")
	reGainMapMax = hdrgmField("GainMapMax")
	reGamma      = hdrgmField("Gamma")
	reOffsetSDR  = hdrgmField("OffsetSDR")
	reOffsetHDR  = hdrgmField("OffsetHDR")
	reHDRCapMin  = hdrgmField("HDRCapacityMin")
	reHDRCapMax  = hdrgmField("HDRCapacityMax")
	reBaseIsHDR  = hdrgmField("BaseRenditionIsHDR")
)

// hdrgmField matches both the attribute form and the element form of an hdrgm property.
func hdrgmField(name string) *regexp.Regexp {
	return regexp.MustCompile(`hdrgm:` + name + `(?:\s*=\s*"([^"]+)"|>\s*([^<\s]+)\s*<)`)
}

const xmpHeader = `<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="jpegr">
  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
`

const xmpFooter = `  </rdf:RDF>
</x:xmpmeta>`

// generateXmpPrimary describes the container directory, secondarySize is the full gain map image size.
func generateXmpPrimary(secondarySize int) []byte {
	var b bytes.Buffer
	b.Write(xmpPrefix)
	b.WriteString(xmpHeader)
	b.WriteString(`    <rdf:Description
        xmlns:Container="http://ns.google.com/photos/1.0/container/"
        xmlns:Item="http://ns.google.com/photos/1.0/container/item/"
        xmlns:hdrgm="http://ns.adobe.com/hdr-gain-map/1.0/"
        hdrgm:Version="` + jpegrVersion + `">
      <Container:Directory>
        <rdf:Seq>
          <rdf:li rdf:parseType="Resource">
            <Container:Item Item:Semantic="Primary" Item:Mime="image/jpeg"/>
          </rdf:li>
          <rdf:li rdf:parseType="Resource">
            <Container:Item Item:Semantic="GainMap" Item:Mime="image/jpeg" Item:Length="`)
	b.WriteString(strconv.Itoa(secondarySize))
	b.WriteString(`"/>
          </rdf:li>
        </rdf:Seq>
      </Container:Directory>
    </rdf:Description>
`)
	b.WriteString(xmpFooter)
	return b.Bytes()
}

// generateXmpSecondary carries the gain map parameters, boosts and capacities are stored as log2.
func generateXmpSecondary(meta *GainMapMetadata) []byte {
	log2 := func(v float32) string { return strconv.FormatFloat(math.Log2(float64(v)), 'g', -1, 64) }
	plain := func(v float32) string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }

	var b bytes.Buffer
	b.Write(xmpPrefix)
	b.WriteString(xmpHeader)
	b.WriteString(`    <rdf:Description
        xmlns:hdrgm="http://ns.adobe.com/hdr-gain-map/1.0/"
        hdrgm:Version="` + jpegrVersion + `"
        hdrgm:GainMapMin="` + log2(meta.MinContentBoost) + `"
        hdrgm:GainMapMax="` + log2(meta.MaxContentBoost) + `"
        hdrgm:Gamma="` + plain(meta.Gamma) + `"
        hdrgm:OffsetSDR="` + plain(meta.OffsetSDR) + `"
        hdrgm:OffsetHDR="` + plain(meta.OffsetHDR) + `"
        hdrgm:HDRCapacityMin="` + log2(meta.HDRCapacityMin) + `"
        hdrgm:HDRCapacityMax="` + log2(meta.HDRCapacityMax) + `"
        hdrgm:BaseRenditionIsHDR="False"/>
`)
	b.WriteString(xmpFooter)
	return b.Bytes()
}

// hasGainMapParams reports whether an XMP packet carries gain map parameters rather than only a directory.
func hasGainMapParams(app1 []byte) bool {
	return reGainMapMax.Match(app1)
}

func parseXMP(app1 []byte) (*GainMapMetadata, error) {
	if len(app1) < len(xmpPrefix)+1 || !bytes.HasPrefix(app1, xmpPrefix) {
		return nil, errors.New("xmp namespace mismatch")
	}
	xml := string(app1[len(xmpPrefix):])

	meta := &GainMapMetadata{
		Version:         jpegrVersion,
		MinContentBoost: 1,
		MaxContentBoost: 1,
		Gamma:           defaultGamma,
		OffsetSDR:       defaultOffset,
		OffsetHDR:       defaultOffset,
		HDRCapacityMin:  1,
		HDRCapacityMax:  1,
	}

	getStr := func(re *regexp.Regexp) (string, bool) {
		m := re.FindStringSubmatch(xml)
		if m == nil {
			return "", false
		}
		if m[1] != "" {
			return strings.TrimSpace(m[1]), true
		}
		return m[2], true
	}
	getFloat := func(re *regexp.Regexp, dst *float32, log bool) error {
		str, ok := getStr(re)
		if !ok {
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return errors.Wrapf(err, "xmp %s", re.String())
		}
		if log {
			v = math.Exp2(v)
		}
		*dst = float32(v)
		return nil
	}

	v, ok := getStr(reVersion)
	if !ok {
		return nil, errors.New("xmp missing version")
	}
	meta.Version = v
	if _, ok := getStr(reGainMapMax); !ok {
		return nil, errors.New("xmp missing GainMapMax")
	}
	if _, ok := getStr(reHDRCapMax); !ok {
		return nil, errors.New("xmp missing HDRCapacityMax")
	}

	for _, f := range []struct {
		re  *regexp.Regexp
		dst *float32
		log bool
	}{
		{reGainMapMin, &meta.MinContentBoost, true},
		{reGainMapMax, &meta.MaxContentBoost, true},
		{reGamma, &meta.Gamma, false},
		{reOffsetSDR, &meta.OffsetSDR, false},
		{reOffsetHDR, &meta.OffsetHDR, false},
		{reHDRCapMin, &meta.HDRCapacityMin, true},
		{reHDRCapMax, &meta.HDRCapacityMax, true},
	} {
		if err := getFloat(f.re, f.dst, f.log); err != nil {
			return nil, err
		}
	}
	if v, ok := getStr(reBaseIsHDR); ok && strings.EqualFold(v, "True") {
		return nil, errors.New("base rendition HDR not supported")
	}
	return meta, nil
}
