// Package pool provides bucketed sync.Pool instances for the PNG encode path.
// Scratch buffers are organized by size class to minimize waste; buffers
// larger than the biggest class are never retained.
package pool

import (
	"bytes"
	"image/png"
	"sync"
)

// Size classes for bucketed pools.
const (
	Size64K  = 65536
	Size1M   = 1048576
	Size16M  = 16777216
	Size64M  = 67108864
	maxClass = Size64M
)

var sizes = [4]int{Size64K, Size1M, Size16M, Size64M}

var buffers [4]sync.Pool

// bucketIndex returns the pool index for a given size.
func bucketIndex(size int) int {
	switch {
	case size <= Size64K:
		return 0
	case size <= Size1M:
		return 1
	case size <= Size16M:
		return 2
	default:
		return 3
	}
}

// SizeHint estimates the PNG output size for a width x height grid: the
// raw 4-byte-per-pixel payload halved, clamped to the largest size class.
func SizeHint(width, height int) int {
	n := width * height * 2
	if n <= 0 || n > maxClass {
		return maxClass
	}
	return n
}

// GetBuffer returns an empty buffer with capacity for at least sizeHint
// bytes when that fits a size class. The caller must call PutBuffer when done
// and must not retain the buffer's bytes after that.
func GetBuffer(sizeHint int) *bytes.Buffer {
	idx := bucketIndex(sizeHint)
	if v := buffers[idx].Get(); v != nil {
		b := v.(*bytes.Buffer)
		b.Reset()
		return b
	}
	b := new(bytes.Buffer)
	grow := sizeHint
	if grow > sizes[idx] {
		grow = sizes[idx]
	}
	b.Grow(grow)
	return b
}

// PutBuffer returns a buffer to the pool. Buffers that grew past the largest
// size class are dropped so a single huge image does not pin memory.
func PutBuffer(b *bytes.Buffer) {
	c := b.Cap()
	if c == 0 || c > maxClass {
		return
	}
	b.Reset()
	buffers[putIndex(c)].Put(b)
}

// putIndex returns the largest size class whose minimum capacity c meets, so
// every buffer in bucket i holds at least sizes[i] bytes (bucket 0 excepted).
func putIndex(c int) int {
	for i := len(sizes) - 1; i > 0; i-- {
		if c >= sizes[i] {
			return i
		}
	}
	return 0
}

// PNGBuffers implements png.EncoderBufferPool on top of sync.Pool. It is
// safe for concurrent use, so one png.Encoder may be shared across goroutines.
type PNGBuffers struct {
	p sync.Pool
}

var _ png.EncoderBufferPool = (*PNGBuffers)(nil)

// Get returns a pooled encoder buffer, or nil to let the encoder allocate.
func (b *PNGBuffers) Get() *png.EncoderBuffer {
	v := b.p.Get()
	if v == nil {
		return nil
	}
	return v.(*png.EncoderBuffer)
}

// Put returns an encoder buffer to the pool.
func (b *PNGBuffers) Put(eb *png.EncoderBuffer) {
	b.p.Put(eb)
}
