package webp2png

import (
	"errors"
	"fmt"
)

// Classification sentinels. Every error returned by a Converter matches
// exactly one of them under errors.Is.
var (
	ErrDecode = errors.New("webp2png: decode failed")
	ErrEncode = errors.New("webp2png: encode failed")
)

// Causes wrapped by DecodeError and EncodeError.
var (
	ErrEmptyInput        = errors.New("webp2png: empty input")
	ErrNotWebP           = errors.New("webp2png: input is not a WebP container")
	ErrTooLarge          = errors.New("webp2png: image dimensions exceed limit")
	ErrDimensionMismatch = errors.New("webp2png: decoded bounds do not match header")
)

// Kind classifies a conversion failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindDecode
	KindEncode
)

// String returns the error class name.
func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "DecodeError"
	case KindEncode:
		return "EncodeError"
	default:
		return "Unknown"
	}
}

// KindOf reports which class err belongs to.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrEncode):
		return KindEncode
	default:
		return KindUnknown
	}
}

// DecodeError reports that the input could not be parsed as a supported
// image. It is a caller-side problem: a different input may succeed.
type DecodeError struct {
	Format string // sniffed container, "unknown" when no signature matched
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("webp2png: decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecode) true for any *DecodeError.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// EncodeError reports that a decoded grid could not be written as PNG. It
// signals a resource or encoder limitation, not bad input.
type EncodeError struct {
	Width, Height int
	Err           error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("webp2png: encode %dx%d png: %v", e.Width, e.Height, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrEncode) true for any *EncodeError.
func (e *EncodeError) Is(target error) bool { return target == ErrEncode }

// panicError wraps a value recovered from a third-party codec.
type panicError struct {
	stage string
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", p.stage, p.value)
}
