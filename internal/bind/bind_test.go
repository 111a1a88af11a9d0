package bind

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/deepteams/webp2png"
	"github.com/deepteams/webp2png/internal/testutil"
)

var exts = []string{".webp", ".png", ".jpg"}

func pages(t *testing.T) map[string][]byte {
	t.Helper()
	return map[string][]byte{
		"02.webp": testutil.WebP(t, testutil.Gradient(16, 8, true), true),
		"01.png":  testutil.PNG(t, testutil.Solid(10, 20, color.NRGBA{R: 255, A: 255})),
		"skip.md": []byte("x"),
	}
}

func requirePDF(t *testing.T, data []byte) {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, []byte("%PDF-1.7")), "missing PDF header")
	assert.True(t, bytes.HasSuffix(data, []byte("\n%%EOF\n")), "missing end-of-file trailer")
	assert.Contains(t, string(data), "startxref")
}

func TestCollectAndBind_Dir(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, pages(t))

	got, err := Collect(dir, exts)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, filepath.Join(dir, "01.png"), got[0].Name)

	var buf bytes.Buffer
	err = Bind(context.Background(), webp2png.New(), &buf, got, Options{
		Title:  "chapter",
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	requirePDF(t, buf.Bytes())
	assert.Contains(t, buf.String(), "chapter")
}

func TestCollect_Zip(t *testing.T) {
	zp := testutil.Zip(t, filepath.Join(t.TempDir(), "vol.zip"), pages(t))

	got, err := Collect(zp, exts)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "01.png", got[0].Name)
	assert.Equal(t, "02.webp", got[1].Name)
}

func TestCollect_Empty(t *testing.T) {
	_, err := Collect(t.TempDir(), exts)
	assert.True(t, errors.Is(err, ErrNoPages))
}

func TestBind_NoPages(t *testing.T) {
	err := Bind(context.Background(), webp2png.New(), &bytes.Buffer{}, nil, Options{})
	assert.True(t, errors.Is(err, ErrNoPages))
}

func TestBind_DecodeFailure(t *testing.T) {
	var buf bytes.Buffer
	err := Bind(context.Background(), webp2png.New(), &buf, []Page{
		{Name: "a.webp", Data: testutil.WebP(t, testutil.Solid(2, 2, color.NRGBA{A: 255}), true)},
		{Name: "b.webp", Data: []byte("broken")},
	}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, webp2png.ErrDecode))
	assert.Contains(t, err.Error(), "b.webp")
	assert.Zero(t, buf.Len(), "nothing is written before every page decodes")
}

func TestBind_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Bind(ctx, webp2png.New(), &bytes.Buffer{}, []Page{{Name: "a", Data: []byte("x")}}, Options{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBind_DPIScalesPages(t *testing.T) {
	data := testutil.WebP(t, testutil.Solid(144, 72, color.NRGBA{B: 255, A: 255}), true)

	var at72, at144 bytes.Buffer
	p := []Page{{Name: "p", Data: data}}
	require.NoError(t, Bind(context.Background(), webp2png.New(), &at72, p, Options{}))
	require.NoError(t, Bind(context.Background(), webp2png.New(), &at144, p, Options{DPI: 144}))

	requirePDF(t, at72.Bytes())
	requirePDF(t, at144.Bytes())
	assert.NotEqual(t, at72.Bytes(), at144.Bytes())
}

func TestFixTrailer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single percent", "startxref\n42\n%EOF\n", "startxref\n42\n%%EOF\n"},
		{"already valid", "startxref\n42\n%%EOF\n", "startxref\n42\n%%EOF\n"},
		{"no trailer", "garbage", "garbage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(fixTrailer([]byte(tt.in))))
		})
	}
}
