package jpegr

const (
	sdrWhiteNits = 203.0
	pqMaxNits    = 10000.0
	hlgMaxNits   = 1000.0
)

const (
	defaultGainMapScale   = 4
	gainMapWidthAlign     = 16
	defaultBaseQuality    = 95
	defaultGainMapQuality = 85
	defaultGamma          = 1.0
	defaultOffset         = 1.0 / 64.0
	hlgOOTFGamma          = 1.2
)

const (
	jpegrVersion = "1.0"
)
