package jpegr

// hdrSampler reads P010 pixels as linear light relative to SDR white in a target gamut.
type hdrSampler struct {
	view      p010View
	k         yuvCoeffs
	tf        ColorTransfer
	from, to  ColorGamut
	nitsScale float32
}

func newHDRSampler(img *UncompressedImage, tf ColorTransfer, to ColorGamut) *hdrSampler {
	return &hdrSampler{
		view:      newP010View(img),
		k:         p010Coeffs(img.Gamut),
		tf:        tf,
		from:      img.Gamut,
		to:        to,
		nitsScale: peakNits(tf) / sdrWhiteNits,
	}
}

func (s *hdrSampler) at(x, y int) RGB {
	yv, u, v := s.view.at(x, y)
	e := p010ToRGB(yv, u, v, s.k).clamp01()
	var c RGB
	switch s.tf {
	case TransferHLG:
		c = hlgOOTF(RGB{R: hlgInvOetf(e.R), G: hlgInvOetf(e.G), B: hlgInvOetf(e.B)})
	case TransferPQ:
		c = RGB{R: pqEOTF(e.R), G: pqEOTF(e.G), B: pqEOTF(e.B)}
	default:
		c = e
	}
	c = convertGamut(c, s.from, s.to).scale(s.nitsScale)
	return RGB{R: max(c.R, 0), G: max(c.G, 0), B: max(c.B, 0)}
}

func sdrLinearAt(v yuv420View, x, y int) RGB {
	e := yuv8ToRGB(v.at(x, y)).clamp01()
	return RGB{R: srgbInvOetf(e.R), G: srgbInvOetf(e.G), B: srgbInvOetf(e.B)}
}

func validateHDRInput(hdr *UncompressedImage, tf ColorTransfer) error {
	if err := hdr.validate("hdr"); err != nil {
		return err
	}
	if hdr.Format != PixelFormatP010 {
		return invalidArgf("hdr image must be %s, got %s", PixelFormatP010, hdr.Format)
	}
	if !hdr.Gamut.concrete() {
		return invalidArgf("hdr image gamut %s", hdr.Gamut)
	}
	if tf != TransferHLG && tf != TransferPQ {
		return invalidArgf("hdr transfer %s has no headroom", tf)
	}
	return nil
}

func validateSDRInput(sdr *UncompressedImage) error {
	if err := sdr.validate("sdr"); err != nil {
		return err
	}
	if sdr.Format != PixelFormatYUV420 {
		return invalidArgf("sdr image must be %s, got %s", PixelFormatYUV420, sdr.Format)
	}
	if !sdr.Gamut.concrete() {
		return invalidArgf("sdr image gamut %s", sdr.Gamut)
	}
	return nil
}

// generateGainMap computes a Gray8 gain map from an HDR P010 image and its SDR YUV420 rendition.
// Luminance is averaged over the pixels of each block that exist.
func generateGainMap(hdr, sdr *UncompressedImage, tf ColorTransfer, meta *GainMapMetadata, workers int) (*UncompressedImage, error) {
	if err := validateHDRInput(hdr, tf); err != nil {
		return nil, err
	}
	if err := validateSDRInput(sdr); err != nil {
		return nil, err
	}
	if hdr.Width != sdr.Width || hdr.Height != sdr.Height {
		return nil, invalidArgf("hdr %dx%d and sdr %dx%d dimensions differ", hdr.Width, hdr.Height, sdr.Width, sdr.Height)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	hs := newHDRSampler(hdr, tf, sdr.Gamut)
	sv := newYUV420View(sdr)
	gc := newGainCoder(meta)

	return blockGainMap(hdr.Width, hdr.Height, workers, func(x0, y0, x1, y1 int) uint8 {
		var hdrY, sdrY float32
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				hdrY += luminance(hs.at(x, y), sdr.Gamut)
				sdrY += luminance(sdrLinearAt(sv, x, y), sdr.Gamut)
			}
		}
		n := float32((y1 - y0) * (x1 - x0))
		return gc.encode(sdrY/n, hdrY/n)
	}), nil
}

// blockGainMap fills a Gray8 map of GainMapSize(w, h) with one sample per 4x4 block of the image.
// Blocks at the right and bottom edges are clipped to the image,
// map cells past the image repeat the last real block.
func blockGainMap(w, h, workers int, block func(x0, y0, x1, y1 int) uint8) *UncompressedImage {
	mapW, mapH := GainMapSize(w, h)
	realW := ceilDiv(w, defaultGainMapScale)
	realH := ceilDiv(h, defaultGainMapScale)
	out := NewUncompressedImage(mapW, mapH, PixelFormatGray8, GamutUnspecified)

	parallelFor(realH, workers, func(start, end int) {
		for by := start; by < end; by++ {
			y0 := by * defaultGainMapScale
			y1 := min(y0+defaultGainMapScale, h)
			row := out.Luma[by*mapW : (by+1)*mapW]
			for bx := 0; bx < realW; bx++ {
				x0 := bx * defaultGainMapScale
				row[bx] = block(x0, y0, min(x0+defaultGainMapScale, w), y1)
			}
			for mx := realW; mx < mapW; mx++ {
				row[mx] = row[realW-1]
			}
		}
	})
	last := out.Luma[(realH-1)*mapW : realH*mapW]
	for my := realH; my < mapH; my++ {
		copy(out.Luma[my*mapW:(my+1)*mapW], last)
	}
	return out
}

// deriveSDR tone maps an HDR image to an SDR YUV420 rendition in the same gamut.
// Luminance is compressed with extended Reinhard using the headroom as white point.
func deriveSDR(hdr *UncompressedImage, tf ColorTransfer, headroom float32, workers int) *UncompressedImage {
	w, h := hdr.Width, hdr.Height
	out := NewUncompressedImage(w, h, PixelFormatYUV420, hdr.Gamut)
	ov := newYUV420View(out)
	hs := newHDRSampler(hdr, tf, hdr.Gamut)
	white2 := headroom * headroom

	parallelFor(h/2, workers, func(start, end int) {
		for cy := start; cy < end; cy++ {
			for cx := 0; cx < w/2; cx++ {
				var sumU, sumV int
				for dy := 0; dy < 2; dy++ {
					for dx := 0; dx < 2; dx++ {
						x, y := 2*cx+dx, 2*cy+dy
						c := hs.at(x, y)
						l := luminance(c, hdr.Gamut)
						if l > 0 {
							c = c.scale((1 + l/white2) / (1 + l))
						}
						c = c.clamp01()
						yv, u, v := rgbToYUV8(RGB{R: srgbOetf(c.R), G: srgbOetf(c.G), B: srgbOetf(c.B)})
						ov.y[y*ov.ys+x] = yv
						sumU += int(u)
						sumV += int(v)
					}
				}
				ov.u[cy*ov.cs+cx] = uint8((sumU + 2) / 4)
				ov.v[cy*ov.cs+cx] = uint8((sumV + 2) / 4)
			}
		}
	})
	return out
}
