package webp2png

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // Register decoders for sniffed non-WebP input.
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/deepteams/webp"
	"github.com/deepteams/webp/animation"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/deepteams/webp2png/internal/pool"
	"github.com/deepteams/webp2png/internal/sniff"
)

// DefaultMaxPixels bounds width*height of accepted images (256 Mpx, about
// 1 GiB of NRGBA pixel memory).
const DefaultMaxPixels = 1 << 28

// CompressionLevel selects the zlib effort of the PNG encoder. It never
// affects decoded pixel values.
type CompressionLevel = png.CompressionLevel

const (
	DefaultCompression = png.DefaultCompression
	NoCompression      = png.NoCompression
	BestSpeed          = png.BestSpeed
	BestCompression    = png.BestCompression
)

// ParseCompression maps a configuration name to a CompressionLevel:
// "default", "none", "speed" or "best".
func ParseCompression(s string) (CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return DefaultCompression, nil
	case "none":
		return NoCompression, nil
	case "speed", "fast":
		return BestSpeed, nil
	case "best":
		return BestCompression, nil
	default:
		return DefaultCompression, fmt.Errorf("webp2png: unknown compression %q (use default/none/speed/best)", s)
	}
}

type options struct {
	compression CompressionLevel
	strict      bool
	maxPixels   int
	verify      bool
}

// Option configures a Converter.
type Option func(*options)

// WithCompression sets the PNG compression level.
func WithCompression(level CompressionLevel) Option {
	return func(o *options) { o.compression = level }
}

// WithStrictWebP rejects every container other than RIFF/WEBP with a
// DecodeError wrapping ErrNotWebP. By default any sniffed format is accepted.
func WithStrictWebP(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithMaxPixels sets the width*height limit. Values <= 0 restore
// DefaultMaxPixels.
func WithMaxPixels(n int) Option {
	return func(o *options) {
		if n <= 0 {
			n = DefaultMaxPixels
		}
		o.maxPixels = n
	}
}

// WithVerify controls whether the encoded PNG header is read back and its
// dimensions compared with the source grid. Enabled by default.
func WithVerify(verify bool) Option {
	return func(o *options) { o.verify = verify }
}

// Converter transcodes encoded images to PNG. The zero value is not usable;
// create one with New. A Converter is safe for concurrent use.
type Converter struct {
	opts options
	enc  *png.Encoder
}

// New returns a Converter configured by opts.
func New(opts ...Option) *Converter {
	o := options{
		compression: DefaultCompression,
		maxPixels:   DefaultMaxPixels,
		verify:      true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Converter{
		opts: o,
		enc: &png.Encoder{
			CompressionLevel: o.compression,
			BufferPool:       &pool.PNGBuffers{},
		},
	}
}

var defaultConverter = New()

// Result is a successful transcode: the PNG bytes and the source header.
type Result struct {
	Output []byte
	Source Info
}

// Convert transcodes input to PNG with the default converter.
func Convert(input []byte) ([]byte, error) {
	return defaultConverter.Convert(input)
}

// Convert transcodes input to a standalone PNG stream. On failure it returns
// a nil slice and a *DecodeError or *EncodeError. input is not retained or
// modified; the returned slice is owned by the caller.
func (c *Converter) Convert(input []byte) ([]byte, error) {
	res, err := c.Transcode(input)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// Transcode is Convert plus the source image header.
func (c *Converter) Transcode(input []byte) (*Result, error) {
	img, info, err := c.Decode(input)
	if err != nil {
		return nil, err
	}
	out, err := c.encode(img)
	if err != nil {
		return nil, err
	}
	return &Result{Output: out, Source: *info}, nil
}

// ConvertContext is Convert for callers that need to stop waiting.
// See TranscodeContext.
func (c *Converter) ConvertContext(ctx context.Context, input []byte) ([]byte, error) {
	res, err := c.TranscodeContext(ctx, input)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// TranscodeContext runs Transcode on its own goroutine and returns ctx.Err()
// as soon as ctx is done. Decoding and encoding are CPU-bound and are not
// interrupted: an abandoned conversion runs to completion and its result is
// discarded.
func (c *Converter) TranscodeContext(ctx context.Context, input []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := c.Transcode(input)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.res, o.err
	}
}

// Decode runs the validated decode stage alone: it sniffs and checks the
// header, decodes the pixel grid, and verifies the grid matches the header
// dimensions. Animated WebP yields its first composited canvas frame.
func (c *Converter) Decode(input []byte) (image.Image, *Info, error) {
	info, format, err := c.inspect(input)
	if err != nil {
		return nil, nil, err
	}

	img, err := decodePixels(input, format == sniff.WebP && info.Animated)
	if err != nil {
		return nil, nil, &DecodeError{Format: info.Format, Err: err}
	}
	if img == nil {
		return nil, nil, &DecodeError{Format: info.Format, Err: webp.ErrNoFrames}
	}

	if format == sniff.GIF {
		img = gifCanvas(img, info.Width, info.Height)
	}

	b := img.Bounds()
	if b.Dx() != info.Width || b.Dy() != info.Height {
		return nil, nil, &DecodeError{
			Format: info.Format,
			Err: fmt.Errorf("%w: header %dx%d, decoded %dx%d",
				ErrDimensionMismatch, info.Width, info.Height, b.Dx(), b.Dy()),
		}
	}
	return img, info, nil
}

func decodePixels(input []byte, animated bool) (img image.Image, err error) {
	defer recoverAs("image decoder", &err)
	if animated {
		return decodeFirstFrame(input)
	}
	img, _, err = image.Decode(bytes.NewReader(input))
	return img, err
}

// decodeFirstFrame composites the first frame of an animated WebP onto its
// canvas, so the result has the canvas dimensions the header reports.
func decodeFirstFrame(input []byte) (image.Image, error) {
	anim, err := animation.DecodeBytes(input)
	if err != nil {
		return nil, err
	}
	if len(anim.Frames) == 0 {
		return nil, webp.ErrNoFrames
	}
	// The first frame is always a keyframe; nothing later is needed.
	anim.Frames = anim.Frames[:1]
	if err := anim.DecodeFrames(); err != nil {
		return nil, err
	}
	dec, err := animation.NewAnimDecoder(anim)
	if err != nil {
		return nil, err
	}
	frame, _, err := dec.NextFrame()
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// gifCanvas places a GIF's first frame on its w x h logical screen. The
// decoder returns only the frame rectangle, which may be smaller than the
// screen the header reports. Pixels outside the frame are transparent.
// Frames that already cover the screen, or that do not fit it, are
// returned unchanged.
func gifCanvas(frame image.Image, w, h int) image.Image {
	b := frame.Bounds()
	screen := image.Rect(0, 0, w, h)
	if b == screen || !b.In(screen) {
		return frame
	}
	canvas := image.NewNRGBA(screen)
	draw.Draw(canvas, b, frame, b.Min, draw.Src)
	return canvas
}

// encode writes img as PNG into a pooled scratch buffer and copies the
// result out, so pooled memory never escapes to the caller.
func (c *Converter) encode(img image.Image) (out []byte, err error) {
	b := img.Bounds()
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &EncodeError{Width: b.Dx(), Height: b.Dy(), Err: &panicError{stage: "png encoder", value: r}}
		}
	}()

	buf := pool.GetBuffer(pool.SizeHint(b.Dx(), b.Dy()))
	defer pool.PutBuffer(buf)

	if err := c.enc.Encode(buf, img); err != nil {
		return nil, &EncodeError{Width: b.Dx(), Height: b.Dy(), Err: err}
	}
	out = make([]byte, buf.Len())
	copy(out, buf.Bytes())

	if c.opts.verify {
		cfg, err := png.DecodeConfig(bytes.NewReader(out))
		if err != nil {
			return nil, &EncodeError{Width: b.Dx(), Height: b.Dy(), Err: fmt.Errorf("verify: %w", err)}
		}
		if cfg.Width != b.Dx() || cfg.Height != b.Dy() {
			return nil, &EncodeError{
				Width: b.Dx(), Height: b.Dy(),
				Err: fmt.Errorf("%w: png header %dx%d", ErrDimensionMismatch, cfg.Width, cfg.Height),
			}
		}
	}
	return out, nil
}
