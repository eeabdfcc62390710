// Package stats computes intensity statistics over rectangular regions of
// interest. It is a read-only consumer of the live view slot: it follows the
// generation counter and never touches the capture or recording paths.
package stats

import (
	"math"

	"github.com/pkg/errors"

	"github.com/framescope/framescope/internal/frame"
)

// ROI is a named rectangular region in frame coordinates.
type ROI struct {
	Name   string `json:"name" yaml:"name"`
	X      int    `json:"x" yaml:"x"`
	Y      int    `json:"y" yaml:"y"`
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
}

// Validate rejects regions with no area.
func (r ROI) Validate() error {
	if r.Name == "" {
		return errors.New("roi needs a name")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return errors.Errorf("roi %q has no area", r.Name)
	}
	return nil
}

// Result is the statistics of one region over one frame.
type Result struct {
	ROI        string  `json:"roi"`
	Generation uint64  `json:"generation"`
	Count      int     `json:"count"`
	Mean       float64 `json:"mean"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Std        float64 `json:"std"`
}

// Compute evaluates r over fr, clipping the region to the frame bounds.
// A region entirely outside the frame yields a zero-count result.
func Compute(r ROI, fr *frame.Frame) Result {
	res := Result{ROI: r.Name}

	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1, y1 := min(r.X+r.Width, fr.Width), min(r.Y+r.Height, fr.Height)
	if x0 >= x1 || y0 >= y1 {
		return res
	}

	var sum, sumSq float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for y := y0; y < y1; y++ {
		row := fr.Pix[y*fr.Width+x0 : y*fr.Width+x1]
		for _, v := range row {
			f := float64(v)
			sum += f
			sumSq += f * f
			if f < lo {
				lo = f
			}
			if f > hi {
				hi = f
			}
		}
	}

	n := (x1 - x0) * (y1 - y0)
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}

	res.Count = n
	res.Mean = mean
	res.Min = lo
	res.Max = hi
	res.Std = math.Sqrt(variance)
	return res
}
