package output

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/framescope/framescope/internal/frame"
)

func TestRenderAutoscales(t *testing.T) {
	fr := frame.New(1, 3)
	fr.Pix[0] = 10
	fr.Pix[1] = 20
	fr.Pix[2] = 30

	img := Render(fr)
	require.Equal(t, uint8(0), img.Pix[0])
	require.Equal(t, uint8(127), img.Pix[1])
	require.Equal(t, uint8(255), img.Pix[2])
}

func TestRenderFlatFrameIsBlack(t *testing.T) {
	fr := frame.New(2, 2)
	for i := range fr.Pix {
		fr.Pix[i] = 7
	}
	img := Render(fr)
	for _, p := range img.Pix {
		require.Equal(t, uint8(0), p)
	}
}

func TestDownscale(t *testing.T) {
	fr := frame.New(100, 200)
	img := Render(fr)

	small := Downscale(img, 50)
	require.Equal(t, 50, small.Bounds().Dx())
	require.Equal(t, 25, small.Bounds().Dy())

	same := Downscale(img, 400)
	require.Same(t, img, same)

	native := Downscale(img, 0)
	require.Same(t, img, native)
}
