package output

import (
	"image/png"
	"io"

	"github.com/framescope/framescope/internal/frame"
)

// EncodePNG writes fr to w as an 8-bit grayscale PNG.
func EncodePNG(w io.Writer, fr *frame.Frame) error {
	return png.Encode(w, Render(fr))
}
