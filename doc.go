// Package jpegr implements a dual-layer HDR/SDR JPEG codec (JPEG/R, also known as UltraHDR).
//
// A JPEG/R file is a regular SDR JPEG base image followed by a single channel gain map JPEG,
// indexed by an MPF segment and described by XMP (hdrgm) and ISO 21496-1 metadata.
// SDR viewers display the base image, HDR-aware decoders combine both layers at a display boost.
//
// Pixel math (gain map computation and application) and container multiplexing live in this package,
// the single-layer JPEG coder is a pluggable Codec with an image/jpeg backed default.
package jpegr
