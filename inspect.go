package webp2png

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/deepteams/webp"

	"github.com/deepteams/webp2png/internal/sniff"
)

// Info describes an encoded image as read from its header.
type Info struct {
	Format   string `json:"format"`            // sniffed container: webp, png, jpeg, gif, bmp, tiff
	Variant  string `json:"variant,omitempty"` // WebP only: lossy, lossless, extended
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	HasAlpha bool   `json:"has_alpha"`
	Animated bool   `json:"animated"`
	Frames   int    `json:"frames"`
}

// Inspect reads the header of input with the default converter.
func Inspect(input []byte) (*Info, error) {
	return defaultConverter.Inspect(input)
}

// Inspect reads the container header of input without decoding pixel data.
// It applies the same acceptance rules as Convert, so an input Inspect
// rejects is one Convert would reject with the same DecodeError.
func (c *Converter) Inspect(input []byte) (*Info, error) {
	info, _, err := c.inspect(input)
	return info, err
}

func (c *Converter) inspect(input []byte) (*Info, sniff.Format, error) {
	if len(input) == 0 {
		return nil, sniff.Unknown, &DecodeError{Format: sniff.Unknown.String(), Err: ErrEmptyInput}
	}

	format := sniff.Detect(input)
	name := format.String()
	if format == sniff.Unknown {
		return nil, format, &DecodeError{Format: name, Err: image.ErrFormat}
	}
	if c.opts.strict && format != sniff.WebP {
		return nil, format, &DecodeError{Format: name, Err: ErrNotWebP}
	}

	info := &Info{Format: name, Frames: 1}
	if format == sniff.WebP {
		if err := inspectWebP(input, info); err != nil {
			return nil, format, &DecodeError{Format: name, Err: err}
		}
	} else {
		cfg, err := decodeConfig(input)
		if err != nil {
			return nil, format, &DecodeError{Format: name, Err: err}
		}
		info.Width, info.Height = cfg.Width, cfg.Height
		info.HasAlpha = modelHasAlpha(cfg.ColorModel)
	}

	if err := c.checkDimensions(info.Width, info.Height); err != nil {
		return nil, format, &DecodeError{Format: name, Err: err}
	}
	return info, format, nil
}

func inspectWebP(input []byte, info *Info) error {
	feat, err := getFeatures(input)
	if err != nil {
		// Prefer the container-level diagnosis (truncated, not RIFF/WEBP)
		// when there is one.
		if _, herr := sniff.ParseWebP(input); herr != nil {
			return herr
		}
		return err
	}
	info.Variant = feat.Format
	info.Width, info.Height = feat.Width, feat.Height
	info.HasAlpha = feat.HasAlpha
	info.Animated = feat.HasAnimation
	if feat.FrameCount > 0 {
		info.Frames = feat.FrameCount
	}
	return nil
}

// checkDimensions rejects grids that are empty or larger than maxPixels
// before any pixel memory is allocated.
func (c *Converter) checkDimensions(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", w, h)
	}
	if uint64(w)*uint64(h) > uint64(c.opts.maxPixels) {
		return fmt.Errorf("%w: %dx%d > %d pixels", ErrTooLarge, w, h, c.opts.maxPixels)
	}
	return nil
}

func getFeatures(input []byte) (feat *webp.Features, err error) {
	defer recoverAs("webp header parser", &err)
	return webp.GetFeatures(bytes.NewReader(input))
}

func decodeConfig(input []byte) (cfg image.Config, err error) {
	defer recoverAs("image header parser", &err)
	cfg, _, err = image.DecodeConfig(bytes.NewReader(input))
	return cfg, err
}

// recoverAs converts a panic in a third-party codec into an error.
func recoverAs(stage string, err *error) {
	if r := recover(); r != nil {
		*err = &panicError{stage: stage, value: r}
	}
}

// modelHasAlpha reports whether images of color model m can carry
// non-opaque pixels.
func modelHasAlpha(m color.Model) bool {
	switch m {
	case color.NRGBAModel, color.NRGBA64Model, color.RGBAModel, color.RGBA64Model,
		color.AlphaModel, color.Alpha16Model:
		return true
	}
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}
