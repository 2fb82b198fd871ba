package screen

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
)

// Frame is the display resource for one received still. It holds the decoded
// image plus rendered forms of it, and must be released exactly once; after
// Release it renders as empty.
type Frame struct {
	mu       sync.Mutex
	img      image.Image
	size     image.Point
	released bool
	cache    map[image.Point]string
}

// DecodeFrame decodes a JPEG still into a Frame.
func DecodeFrame(data []byte) (*Frame, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return NewFrame(img), nil
}

// NewFrame wraps an already decoded image.
func NewFrame(img image.Image) *Frame {
	return &Frame{
		img:  img,
		size: img.Bounds().Size(),
	}
}

// Size returns the image dimensions in pixels.
func (f *Frame) Size() image.Point {
	return f.size
}

// Release drops the image and every rendering of it. It reports whether this
// call did the release; later calls are no-ops.
func (f *Frame) Release() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return false
	}
	f.released = true
	f.img = nil
	f.cache = nil
	return true
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// Render returns the frame as half-block cells fitted into cols x rows,
// caching the result per size.
func (f *Frame) Render(cols, rows int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released || cols <= 0 || rows <= 0 {
		return ""
	}

	key := image.Pt(cols, rows)
	if out, ok := f.cache[key]; ok {
		return out
	}
	out := renderHalfBlocks(f.img, cols, rows)
	if f.cache == nil {
		f.cache = make(map[image.Point]string)
	}
	f.cache[key] = out
	return out
}
