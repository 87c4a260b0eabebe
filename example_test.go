package jpegr_test

import (
	"bytes"
	"fmt"
	"os"

	"github.com/vearutop/jpegr"
)

func ExampleJpegR_Encode() {
	const w, h = 64, 32

	pix := make([]float32, 3*w*h)
	for i := range pix {
		pix[i] = 2.5
	}
	hdr, err := jpegr.P010FromLinear(w, h, pix, jpegr.GamutBT2100, jpegr.TransferHLG)
	if err != nil {
		fmt.Println(err)
		return
	}

	j := jpegr.New(jpegr.WithGainMapQuality(90))
	data, err := j.Encode(jpegr.EncodeHDR{HDR: hdr, Transfer: jpegr.TransferHLG, Quality: 90})
	if err != nil {
		fmt.Println(err)
		return
	}

	img, meta, err := j.Decode(data, jpegr.DecodeOptions{Boost: 2, Format: jpegr.OutputHDRPQ})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(img.Width, img.Height, img.Format, img.Gamut)
	fmt.Printf("max boost %.3f\n", meta.MaxContentBoost)

	// Output:
	// 64 32 rgba1010102 bt2100
	// max boost 4.926
}

func ExampleDemux() {
	data, err := os.ReadFile("photo.jpg")
	if err != nil {
		return
	}
	d, err := jpegr.Demux(data)
	if err != nil {
		return
	}
	if d.GainMap == nil {
		return
	}
	// Rewrap the parts without the EXIF block.
	_, _ = jpegr.Mux(d.Base, d.GainMap, d.Metadata, &jpegr.Passthrough{ICC: d.ICC})
}

func ExampleDetect() {
	ok, err := jpegr.Detect(bytes.NewReader([]byte{0xFF, 0xD8, 0xFF, 0xD9}))
	fmt.Println(ok, err)

	// Output:
	// false <nil>
}

func ExampleReadInfo() {
	data, err := os.ReadFile("photo.jpg")
	if err != nil {
		return
	}
	info, err := jpegr.ReadInfo(data)
	if err != nil {
		return
	}
	fmt.Println(info.Width, info.Height, info.HasGainMap)
}

func ExampleJpegR_Resize() {
	data, err := os.ReadFile("photo.jpg")
	if err != nil {
		return
	}
	_, _ = jpegr.New().Resize(data, 800, 600, jpegr.ResizeOptions{Interpolation: jpegr.InterpolationLanczos2})
}
