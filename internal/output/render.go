package output

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/framescope/framescope/internal/frame"
)

// Render converts an intensity frame to an 8-bit grayscale image,
// autoscaling the value range so dim sensor data stays visible. A flat frame
// renders black.
func Render(fr *frame.Frame) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, fr.Width, fr.Height))

	lo, hi := fr.Pix[0], fr.Pix[0]
	for _, v := range fr.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	span := hi - lo
	if span == 0 {
		return img
	}
	for i, v := range fr.Pix {
		img.Pix[i] = uint8((v - lo) / span * 255)
	}
	return img
}

// Downscale shrinks img so its width is at most maxWidth, preserving aspect
// ratio. Images at or under the limit are returned unchanged.
func Downscale(img *image.Gray, maxWidth int) *image.Gray {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := b.Dy() * maxWidth / b.Dx()
	out := image.NewGray(image.Rect(0, 0, maxWidth, h))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), img, b, draw.Src, nil)
	return out
}
