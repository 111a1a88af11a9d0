// Package testutil synthesizes image fixtures for tests. Fixtures are built
// in memory with the WebP encoder so no binary testdata is checked in.
package testutil

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/deepteams/webp"
	"github.com/deepteams/webp/animation"
	"github.com/stretchr/testify/require"
)

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// Gradient returns a w x h gradient. With alpha set, the alpha channel
// varies along the diagonal.
func Gradient(w, h int, alpha bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if alpha {
				a = uint8(64 + (x+y)*191/(w+h))
			}
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 128,
				A: a,
			})
		}
	}
	return img
}

// WebP encodes img as a still WebP file.
func WebP(t testing.TB, img image.Image, lossless bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	opts := &webp.EncoderOptions{Lossless: lossless, Quality: 75, Method: 0, Exact: true}
	require.NoError(t, webp.Encode(&buf, img, opts))
	return buf.Bytes()
}

// AnimatedWebP encodes frames as a lossless animated WebP on a w x h canvas.
func AnimatedWebP(t testing.TB, w, h int, frames ...image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := animation.NewEncoder(&buf, w, h, &animation.EncodeOptions{Lossless: true, Quality: 75})
	for _, f := range frames {
		require.NoError(t, enc.AddFrame(f, 100*time.Millisecond))
	}
	require.NoError(t, enc.Close())
	return buf.Bytes()
}

// PNG encodes img with the standard encoder.
func PNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// DecodePNG decodes data strictly as PNG.
func DecodePNG(t testing.TB, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err, "output must be a standalone PNG stream")
	return img
}

// DecodeWebP decodes data directly with the WebP decoder.
func DecodeWebP(t testing.TB, data []byte) image.Image {
	t.Helper()
	img, err := webp.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

// RequireSamePixels fails unless want and got have the same dimensions and
// identical non-premultiplied 8-bit pixel values.
func RequireSamePixels(t testing.TB, want, got image.Image) {
	t.Helper()
	wb, gb := want.Bounds(), got.Bounds()
	require.Equal(t, wb.Dx(), gb.Dx(), "width")
	require.Equal(t, wb.Dy(), gb.Dy(), "height")
	for y := 0; y < wb.Dy(); y++ {
		for x := 0; x < wb.Dx(); x++ {
			wc := color.NRGBAModel.Convert(want.At(wb.Min.X+x, wb.Min.Y+y)).(color.NRGBA)
			gc := color.NRGBAModel.Convert(got.At(gb.Min.X+x, gb.Min.Y+y)).(color.NRGBA)
			if wc != gc {
				require.Failf(t, "pixel mismatch", "at (%d,%d): want %v, got %v", x, y, wc, gc)
			}
		}
	}
}

// WriteFiles writes each name -> data pair into dir.
func WriteFiles(t testing.TB, dir string, files map[string][]byte) {
	t.Helper()
	for name, data := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
}

// Zip writes a zip archive at path holding files, in name order.
func Zip(t testing.TB, path string, files map[string][]byte) string {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}
