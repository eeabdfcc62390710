package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/framescope/framescope/internal/frame"
)

func testFrame(t *testing.T, h, w int, base float32) *frame.Frame {
	t.Helper()
	fr := frame.New(h, w)
	for i := range fr.Pix {
		fr.Pix[i] = base + float32(i)
	}
	return fr
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	fi, err := os.Stat(path)
	require.NoError(t, err)
	return fi.Size()
}

func TestOpenPreallocatesInitialCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.fsr")
	s, err := Open(path, 4, 6, 10, 5)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, 0, s.Length())
	require.Equal(t, 10, s.Capacity())
	require.EqualValues(t, headerSize+10*4*6*4, fileSize(t, path))
}

func TestAppendOrderAndRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.fsr")
	s, err := Open(path, 3, 3, 8, 4)
	require.NoError(t, err)

	const n = 6
	for i := 0; i < n; i++ {
		require.NoError(t, s.Append(testFrame(t, 3, 3, float32(i*100))))
	}
	require.Equal(t, n, s.Length())
	require.NoError(t, s.Close())

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, n, r.Len())
	require.Equal(t, 3, r.Height())
	require.Equal(t, 3, r.Width())
	for i := 0; i < n; i++ {
		fr, err := r.ReadFrame(i)
		require.NoError(t, err)
		require.Equal(t, testFrame(t, 3, 3, float32(i*100)).Pix, fr.Pix)
	}

	_, err = r.ReadFrame(n)
	require.Error(t, err)
	_, err = r.ReadFrame(-1)
	require.Error(t, err)
}

func TestGrowthIsChunkedAndMonotonic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.fsr")
	const initial, chunk = 4, 3
	s, err := Open(path, 2, 2, initial, chunk)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 20; i++ {
		// Growth fires exactly when length == capacity, by one chunk.
		wantCap := s.Capacity()
		if s.Length() == wantCap {
			wantCap += chunk
		}
		require.NoError(t, s.Append(testFrame(t, 2, 2, 0)))
		require.Equal(t, wantCap, s.Capacity())
		require.GreaterOrEqual(t, s.Capacity(), s.Length())

		// capacity = initial + k*chunk for some k >= 0.
		require.Equal(t, 0, (s.Capacity()-initial)%chunk)
	}
}

func TestGrowthBoundaryExact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.fsr")
	s, err := Open(path, 1, 1, 2000, 1000)
	require.NoError(t, err)
	defer s.Close()

	fr := testFrame(t, 1, 1, 0)
	for i := 0; i < 2000; i++ {
		require.NoError(t, s.Append(fr))
	}
	require.Equal(t, 2000, s.Capacity())

	require.NoError(t, s.Append(fr))
	require.Equal(t, 3000, s.Capacity())
	require.Equal(t, 2001, s.Length())
}

func TestFailedGrowKeepsBookkeeping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.fsr")
	s, err := Open(path, 1, 1, 2, 2)
	require.NoError(t, err)

	fr := testFrame(t, 1, 1, 0)
	require.NoError(t, s.Append(fr))
	require.NoError(t, s.Append(fr))

	// Pull the file out from under the store so the grow at the capacity
	// boundary fails. Length and capacity must keep their pre-call values.
	require.NoError(t, s.f.Close())

	err = s.Append(fr)
	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, OpGrow, serr.Op)
	require.Equal(t, 2, s.Length())
	require.Equal(t, 2, s.Capacity())
}

func TestCloseTruncatesToLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.fsr")
	s, err := Open(path, 2, 2, 100, 50)
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		require.NoError(t, s.Append(testFrame(t, 2, 2, 0)))
	}
	require.NoError(t, s.Close())

	require.EqualValues(t, headerSize+7*2*2*4, fileSize(t, path))

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 7, r.Len())
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.fsr")
	s, err := Open(path, 2, 2, 4, 2)
	require.NoError(t, err)
	require.NoError(t, s.Append(testFrame(t, 2, 2, 0)))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.Equal(t, 1, s.Length())
}

func TestAppendAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.fsr")
	s, err := Open(path, 2, 2, 4, 2)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Append(testFrame(t, 2, 2, 0))
	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, OpWrite, serr.Op)
	require.Equal(t, 0, s.Length())
}

func TestAppendDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.fsr")
	s, err := Open(path, 2, 2, 4, 2)
	require.NoError(t, err)
	defer s.Close()

	err = s.Append(testFrame(t, 3, 2, 0))
	require.ErrorIs(t, err, ErrDimensionMismatch)
	require.Equal(t, 0, s.Length())
}

func TestOpenExistingDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.fsr")
	s, err := Open(path, 2, 2, 4, 2)
	require.NoError(t, err)
	require.NoError(t, s.Append(testFrame(t, 2, 2, 0)))
	require.NoError(t, s.Close())

	_, err = Open(path, 5, 5, 4, 2)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestOpenResumeExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.fsr")
	s, err := Open(path, 2, 2, 4, 2)
	require.NoError(t, err)
	require.NoError(t, s.Append(testFrame(t, 2, 2, 7)))
	require.NoError(t, s.Close())

	s2, err := Open(path, 2, 2, 4, 2)
	require.NoError(t, err)
	require.Equal(t, 1, s2.Length())
	require.NoError(t, s2.Append(testFrame(t, 2, 2, 9)))
	require.NoError(t, s2.Close())

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 2, r.Len())
	fr, err := r.ReadFrame(1)
	require.NoError(t, err)
	require.Equal(t, testFrame(t, 2, 2, 9).Pix, fr.Pix)
}

func TestOpenUnwritablePath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "rec.fsr"), 2, 2, 4, 2)
	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, OpOpen, serr.Op)
}

func TestOpenFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.fsr")
	require.NoError(t, os.WriteFile(path, []byte("this is not a recording"), 0644))

	_, err := OpenFile(path)
	require.Error(t, err)
}

func TestReaderCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.fsr")
	s, err := Open(path, 2, 2, 4, 2)
	require.NoError(t, err)
	require.NoError(t, s.Append(testFrame(t, 2, 2, 0)))
	require.NoError(t, s.Close())

	r, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}
