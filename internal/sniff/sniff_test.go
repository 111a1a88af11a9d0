package sniff

import (
	"errors"
	"testing"
)

func riff(chunk string, payload ...byte) []byte {
	b := []byte("RIFF\x00\x00\x00\x00WEBP")
	b = append(b, chunk...)
	size := len(payload)
	b = append(b, byte(size), byte(size>>8), byte(size>>16), byte(size>>24))
	return append(b, payload...)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"empty", nil, Unknown},
		{"text", []byte("hello, world"), Unknown},
		{"webp", riff("VP8L", 0x2f, 0, 0, 0, 0), WebP},
		{"riff_not_webp", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), Unknown},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), PNG},
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10}, JPEG},
		{"gif87", []byte("GIF87a\x01\x00"), GIF},
		{"gif89", []byte("GIF89a\x01\x00"), GIF},
		{"bmp", []byte("BM\x00\x00\x00\x00"), BMP},
		{"tiff_le", []byte("II*\x00\x08\x00\x00\x00"), TIFF},
		{"tiff_be", []byte("MM\x00*\x00\x00\x00\x08"), TIFF},
		{"short_riff", []byte("RIFF"), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.data); got != tt.want {
				t.Errorf("Detect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatString(t *testing.T) {
	if WebP.String() != "webp" || PNG.String() != "png" || Unknown.String() != "unknown" {
		t.Errorf("unexpected names: %s %s %s", WebP, PNG, Unknown)
	}
}

func TestWebP_Variants(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		variant  Variant
		alpha    bool
		animated bool
	}{
		{"lossy", riff("VP8 ", 0, 0, 0), VariantLossy, false, false},
		{"lossless", riff("VP8L", 0x2f), VariantLossless, false, false},
		{"extended_plain", riff("VP8X", make([]byte, 10)...), VariantExtended, false, false},
		{"extended_alpha", riff("VP8X", append([]byte{0x10}, make([]byte, 9)...)...), VariantExtended, true, false},
		{"extended_anim", riff("VP8X", append([]byte{0x12}, make([]byte, 9)...)...), VariantExtended, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseWebP(tt.data)
			if err != nil {
				t.Fatal(err)
			}
			if h.Variant != tt.variant {
				t.Errorf("variant = %v, want %v", h.Variant, tt.variant)
			}
			if h.HasAlpha != tt.alpha {
				t.Errorf("alpha = %v, want %v", h.HasAlpha, tt.alpha)
			}
			if h.Animated != tt.animated {
				t.Errorf("animated = %v, want %v", h.Animated, tt.animated)
			}
		})
	}
}

func TestWebP_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"header_only", []byte("RIFF\x00\x00\x00\x00WEBP"), ErrTruncated},
		{"not_webp", []byte("RIFF\x00\x00\x00\x00WAVEfmt \x00\x00\x00\x00"), ErrNotWebP},
		{"unknown_chunk", riff("ABCD", 0), ErrUnsupported},
		{"short_vp8x", riff("VP8X", 0x10, 0), ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWebP(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
