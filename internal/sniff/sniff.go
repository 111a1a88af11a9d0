// Package sniff classifies encoded image buffers by their leading signature
// bytes, and reads just enough of a WebP RIFF header to tell the bitstream
// variant and the VP8X feature flags apart.
package sniff

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Format identifies an image container.
type Format int

const (
	Unknown Format = iota
	WebP
	PNG
	JPEG
	GIF
	BMP
	TIFF
)

// String returns the name used by image.RegisterFormat for the container.
func (f Format) String() string {
	switch f {
	case WebP:
		return "webp"
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	case GIF:
		return "gif"
	case BMP:
		return "bmp"
	case TIFF:
		return "tiff"
	default:
		return "unknown"
	}
}

// Variant identifies the bitstream carried by a WebP container.
type Variant int

const (
	VariantUndefined Variant = iota
	VariantLossy             // VP8
	VariantLossless          // VP8L
	VariantExtended          // VP8X
)

// String returns a human-readable variant name.
func (v Variant) String() string {
	switch v {
	case VariantLossy:
		return "lossy"
	case VariantLossless:
		return "lossless"
	case VariantExtended:
		return "extended"
	default:
		return "undefined"
	}
}

// VP8X feature flags (first byte of the VP8X chunk payload).
const (
	animationFlag = 0x02
	alphaFlag     = 0x10
)

// Container structure sizes.
const (
	riffHeaderSize  = 12 // "RIFF" + size + "WEBP"
	chunkHeaderSize = 8  // FourCC + size
	vp8xChunkSize   = 10
)

var (
	ErrTruncated   = errors.New("sniff: truncated header")
	ErrNotWebP     = errors.New("sniff: not a RIFF/WEBP container")
	ErrUnsupported = errors.New("sniff: unsupported first chunk")
)

var (
	sigPNG    = []byte("\x89PNG\r\n\x1a\n")
	sigJPEG   = []byte{0xff, 0xd8, 0xff}
	sigGIF87  = []byte("GIF87a")
	sigGIF89  = []byte("GIF89a")
	sigBMP    = []byte("BM")
	sigTIFFLE = []byte("II*\x00")
	sigTIFFBE = []byte("MM\x00*")
)

// Detect returns the container format of data, or Unknown.
func Detect(data []byte) Format {
	switch {
	case isRIFFWebP(data):
		return WebP
	case bytes.HasPrefix(data, sigPNG):
		return PNG
	case bytes.HasPrefix(data, sigJPEG):
		return JPEG
	case bytes.HasPrefix(data, sigGIF87), bytes.HasPrefix(data, sigGIF89):
		return GIF
	case bytes.HasPrefix(data, sigTIFFLE), bytes.HasPrefix(data, sigTIFFBE):
		return TIFF
	case bytes.HasPrefix(data, sigBMP):
		return BMP
	default:
		return Unknown
	}
}

func isRIFFWebP(data []byte) bool {
	return len(data) >= riffHeaderSize &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// WebPHeader is the subset of a WebP header the sniffer understands.
type WebPHeader struct {
	Variant  Variant
	HasAlpha bool // VP8X alpha flag; always false for simple files
	Animated bool // VP8X animation flag
}

// ParseWebP reads the first chunk of a RIFF/WEBP container.
func ParseWebP(data []byte) (WebPHeader, error) {
	if !isRIFFWebP(data) {
		if len(data) < riffHeaderSize {
			return WebPHeader{}, ErrTruncated
		}
		return WebPHeader{}, ErrNotWebP
	}
	buf := data[riffHeaderSize:]
	if len(buf) < chunkHeaderSize {
		return WebPHeader{}, ErrTruncated
	}

	var h WebPHeader
	switch string(buf[0:4]) {
	case "VP8 ":
		h.Variant = VariantLossy
	case "VP8L":
		h.Variant = VariantLossless
	case "VP8X":
		h.Variant = VariantExtended
		size := binary.LittleEndian.Uint32(buf[4:8])
		if size < vp8xChunkSize || len(buf) < chunkHeaderSize+vp8xChunkSize {
			return WebPHeader{}, ErrTruncated
		}
		flags := buf[chunkHeaderSize]
		h.HasAlpha = flags&alphaFlag != 0
		h.Animated = flags&animationFlag != 0
	default:
		return WebPHeader{}, ErrUnsupported
	}
	return h, nil
}
