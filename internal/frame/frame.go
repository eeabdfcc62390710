package frame

import "github.com/pkg/errors"

// Frame is one 2-D intensity image. Pix is row-major with len(Pix) ==
// Height*Width. Frames are immutable once produced: a source hands one off
// and never touches it again, so consumers may hold it without copying.
type Frame struct {
	Height int
	Width  int
	Pix    []float32
}

// New allocates an empty frame of the given dimensions.
func New(height, width int) *Frame {
	return &Frame{
		Height: height,
		Width:  width,
		Pix:    make([]float32, height*width),
	}
}

// FromPix wraps an existing pixel slice. The slice is owned by the frame
// from here on.
func FromPix(height, width int, pix []float32) (*Frame, error) {
	if len(pix) != height*width {
		return nil, errors.Errorf("pixel count %d does not match %dx%d", len(pix), height, width)
	}
	return &Frame{Height: height, Width: width, Pix: pix}, nil
}

// At returns the intensity sample at row y, column x.
func (f *Frame) At(y, x int) float32 {
	return f.Pix[y*f.Width+x]
}
