package stats

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framescope/framescope/internal/frame"
)

func gradientFrame(h, w int) *frame.Frame {
	fr := frame.New(h, w)
	for i := range fr.Pix {
		fr.Pix[i] = float32(i)
	}
	return fr
}

func TestComputeFullFrame(t *testing.T) {
	fr := gradientFrame(2, 2) // values 0,1,2,3
	res := Compute(ROI{Name: "all", Width: 2, Height: 2}, fr)

	require.Equal(t, 4, res.Count)
	require.InDelta(t, 1.5, res.Mean, 1e-9)
	require.InDelta(t, 0.0, res.Min, 1e-9)
	require.InDelta(t, 3.0, res.Max, 1e-9)
	require.InDelta(t, 1.1180339887, res.Std, 1e-6)
}

func TestComputeSubRegion(t *testing.T) {
	fr := gradientFrame(4, 4)
	// Bottom-right 2x2: values 10,11,14,15.
	res := Compute(ROI{Name: "br", X: 2, Y: 2, Width: 2, Height: 2}, fr)

	require.Equal(t, 4, res.Count)
	require.InDelta(t, 12.5, res.Mean, 1e-9)
	require.InDelta(t, 10, res.Min, 1e-9)
	require.InDelta(t, 15, res.Max, 1e-9)
}

func TestComputeClipsToFrame(t *testing.T) {
	fr := gradientFrame(2, 2)
	// Region extends past the frame; only the overlap counts.
	res := Compute(ROI{Name: "clip", X: 1, Y: 1, Width: 10, Height: 10}, fr)
	require.Equal(t, 1, res.Count)
	require.InDelta(t, 3, res.Mean, 1e-9)

	out := Compute(ROI{Name: "out", X: 5, Y: 5, Width: 2, Height: 2}, fr)
	require.Equal(t, 0, out.Count)
}

func TestROIValidate(t *testing.T) {
	require.Error(t, ROI{Width: 1, Height: 1}.Validate())
	require.Error(t, ROI{Name: "flat", Width: 0, Height: 3}.Validate())
	require.NoError(t, ROI{Name: "ok", Width: 1, Height: 1}.Validate())
}

func TestSetPersistence(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Add(ROI{Name: "b", X: 1, Y: 2, Width: 3, Height: 4}))
	require.NoError(t, s.Add(ROI{Name: "a", Width: 1, Height: 1}))
	require.Error(t, s.Add(ROI{Name: "", Width: 1, Height: 1}))

	path := filepath.Join(t.TempDir(), "rois.yaml")
	require.NoError(t, s.SaveFile(path))

	loaded := NewSet()
	require.NoError(t, loaded.LoadFile(path))
	rois := loaded.List()
	require.Len(t, rois, 2)
	require.Equal(t, "a", rois[0].Name)
	require.Equal(t, "b", rois[1].Name)
	require.Equal(t, 3, rois[1].Width)

	loaded.Remove("a")
	require.Len(t, loaded.List(), 1)
	loaded.Remove("a") // no-op
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.LoadFile(filepath.Join(t.TempDir(), "nope.yaml")))
	require.Empty(t, s.List())
}

func TestLoadInvalidFileKeepsSet(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Add(ROI{Name: "keep", Width: 2, Height: 2}))

	// A valid entry followed by a nameless one: the load must fail without
	// replacing any of the existing regions.
	path := filepath.Join(t.TempDir(), "rois.yaml")
	bad := "- name: first\n  width: 1\n  height: 1\n- name: \"\"\n  width: 1\n  height: 1\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0644))

	require.Error(t, s.LoadFile(path))
	rois := s.List()
	require.Len(t, rois, 1)
	require.Equal(t, "keep", rois[0].Name)
}

func TestCollectorFollowsGenerations(t *testing.T) {
	var slot frame.Latest
	set := NewSet()
	require.NoError(t, set.Add(ROI{Name: "all", Width: 2, Height: 2}))

	c := NewCollector(&slot, set, 5*time.Millisecond)
	results := c.Subscribe()
	defer c.Unsubscribe(results)
	c.Start()
	defer c.Stop()

	fr := gradientFrame(2, 2)
	slot.Write(fr)

	select {
	case batch := <-results:
		require.Len(t, batch, 1)
		require.Equal(t, "all", batch[0].ROI)
		require.EqualValues(t, 1, batch[0].Generation)
		require.InDelta(t, 1.5, batch[0].Mean, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("no stats delivered")
	}

	// Same generation is not recomputed; a new write is.
	slot.Write(gradientFrame(2, 2))
	select {
	case batch := <-results:
		require.EqualValues(t, 2, batch[0].Generation)
	case <-time.After(2 * time.Second):
		t.Fatal("no stats for second frame")
	}
}
