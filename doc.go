// Package webp2png transcodes encoded images, WebP in particular, into
// standalone PNG streams.
//
// The conversion is a pure container transcode: the decoded pixel grid is
// re-encoded losslessly with no resize, crop or color change, so decoding the
// PNG yields exactly the pixels the input decodes to. Input is sniffed by
// signature rather than trusted by name; besides WebP (lossy, lossless,
// extended and animated, via github.com/deepteams/webp) the PNG, JPEG, GIF,
// BMP and TIFF containers are accepted unless strict mode is enabled.
//
// Every failure is reported as a *DecodeError (the input is not a usable
// image) or an *EncodeError (the grid could not be written as PNG), and a
// failed call never returns bytes.
//
// Basic usage:
//
//	png, err := webp2png.Convert(webpBytes)
//
// With options:
//
//	conv := webp2png.New(webp2png.WithStrictWebP(true), webp2png.WithCompression(webp2png.BestCompression))
//	res, err := conv.Transcode(webpBytes)
//
// A Converter holds no per-call state and is safe for concurrent use.
package webp2png
