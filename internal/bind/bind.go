// Package bind assembles decoded images into a PDF, one page per image.
package bind

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sort"

	"github.com/wudi/pdfkit/builder"
	"github.com/wudi/pdfkit/ir/semantic"
	"github.com/wudi/pdfkit/writer"
	"go.uber.org/zap"

	"github.com/deepteams/webp2png"
	"github.com/deepteams/webp2png/internal/logging"
	"github.com/deepteams/webp2png/internal/source"
)

// ErrNoPages is returned when there is nothing to bind.
var ErrNoPages = errors.New("bind: no pages")

// DefaultDPI maps one image pixel to one PDF point.
const DefaultDPI = 72.0

// Producer is written to the document info dictionary.
const Producer = "webp2png"

var (
	shortTrailer = []byte("\n%EOF\n")
	eofTrailer   = []byte("\n%%EOF\n")
)

// Decoder is the validated decode stage of the transcoder.
// *webp2png.Converter satisfies it.
type Decoder interface {
	Decode(input []byte) (image.Image, *webp2png.Info, error)
}

// Page is one encoded image to place on its own page.
type Page struct {
	Name string
	Data []byte
}

// Options configures Bind.
type Options struct {
	// DPI scales pixels to points as px*72/DPI. Values <= 0 mean DefaultDPI.
	DPI float64

	// Title is written to the document info dictionary when set.
	Title string

	// Compression is the zlib level for content streams (0 = none).
	Compression int

	Logger *zap.Logger
}

// Collect reads every file with an extension in exts from a directory or
// .zip archive, sorted by path.
func Collect(src string, exts []string) ([]Page, error) {
	set, err := source.Open(src, exts)
	if err != nil {
		return nil, fmt.Errorf("bind: %w", err)
	}
	defer set.Close()

	pages := make([]Page, 0, len(set.Entries))
	for _, e := range set.Entries {
		data, err := e.ReadAll(0)
		if err != nil {
			return nil, fmt.Errorf("bind: %w", err)
		}
		pages = append(pages, Page{Name: e.Path, Data: data})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPages, src)
	}
	return pages, nil
}

// Bind decodes pages in name order and writes them to w as a PDF 1.7
// document. Each page is sized to its image. Transparent pixels are kept as
// a soft mask. The first page that fails to decode aborts the document.
func Bind(ctx context.Context, dec Decoder, w io.Writer, pages []Page, opts Options) error {
	if len(pages) == 0 {
		return ErrNoPages
	}
	log := logging.OrNop(opts.Logger)
	dpi := opts.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	scale := 72 / dpi

	sorted := make([]Page, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	b := builder.NewBuilder()
	for _, p := range sorted {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, info, err := dec.Decode(p.Data)
		if err != nil {
			return fmt.Errorf("bind: page %s: %w", p.Name, err)
		}
		pw := float64(info.Width) * scale
		ph := float64(info.Height) * scale
		b.NewPage(pw, ph).
			DrawImage(builder.FromImage(img), 0, 0, pw, ph, builder.ImageOptions{}).
			Finish()
		log.Debug("page added",
			zap.String("page", p.Name),
			zap.String("format", info.Format),
			zap.Int("width", info.Width),
			zap.Int("height", info.Height))
	}

	b.SetInfo(&semantic.DocumentInfo{Title: opts.Title, Producer: Producer, Creator: Producer})
	doc, err := b.Build()
	if err != nil {
		return fmt.Errorf("bind: building document: %w", err)
	}

	cfg := writer.Config{Version: writer.PDF17, Compression: opts.Compression, Deterministic: true}
	var buf bytes.Buffer
	if err := writer.NewWriter().Write(ctx, doc, &buf, cfg); err != nil {
		return fmt.Errorf("bind: writing pdf: %w", err)
	}
	if _, err := w.Write(fixTrailer(buf.Bytes())); err != nil {
		return fmt.Errorf("bind: writing pdf: %w", err)
	}
	log.Info("pdf written", zap.Int("pages", len(sorted)), zap.Float64("dpi", dpi))
	return nil
}

// fixTrailer rewrites a single-percent end-of-file marker to %%EOF. The
// marker follows startxref, so no byte offsets move.
func fixTrailer(data []byte) []byte {
	if !bytes.HasSuffix(data, shortTrailer) {
		return data
	}
	out := make([]byte, 0, len(data)+1)
	out = append(out, data[:len(data)-len(shortTrailer)]...)
	return append(out, eofTrailer...)
}
