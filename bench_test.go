package webp2png

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/deepteams/webp"
)

func loadTestWebP(b *testing.B, lossless bool) []byte {
	b.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x % 256),
				G: uint8(y % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.EncoderOptions{Lossless: lossless, Quality: 75}); err != nil {
		b.Fatal(err)
	}
	return buf.Bytes()
}

func benchmarkConvert(b *testing.B, lossless bool, level CompressionLevel) {
	in := loadTestWebP(b, lossless)
	conv := New(WithCompression(level))
	b.SetBytes(int64(len(in)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := conv.Convert(in); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkConvertLossy(b *testing.B)     { benchmarkConvert(b, false, DefaultCompression) }
func BenchmarkConvertLossless(b *testing.B)  { benchmarkConvert(b, true, DefaultCompression) }
func BenchmarkConvertBestSpeed(b *testing.B) { benchmarkConvert(b, false, BestSpeed) }

func BenchmarkConvertParallel(b *testing.B) {
	in := loadTestWebP(b, false)
	conv := New()
	b.SetBytes(int64(len(in)))
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := conv.Convert(in); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func BenchmarkInspect(b *testing.B) {
	in := loadTestWebP(b, true)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Inspect(in); err != nil {
			b.Fatal(err)
		}
	}
}
