package frame

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLatestEmpty(t *testing.T) {
	var l Latest
	f, gen := l.Read()
	require.Nil(t, f)
	require.EqualValues(t, 0, gen)
	require.EqualValues(t, 0, l.Generation())
}

func TestLatestGenerationIncrements(t *testing.T) {
	var l Latest
	for i := 1; i <= 5; i++ {
		l.Write(New(2, 2))
		_, gen := l.Read()
		require.EqualValues(t, i, gen)
	}
}

func TestLatestReadReturnsNewest(t *testing.T) {
	var l Latest
	first := New(2, 2)
	second := New(2, 2)
	second.Pix[0] = 42

	l.Write(first)
	l.Write(second)

	f, gen := l.Read()
	require.Same(t, second, f)
	require.EqualValues(t, 2, gen)

	// Read does not mutate.
	f2, gen2 := l.Read()
	require.Same(t, second, f2)
	require.EqualValues(t, 2, gen2)
}

func TestLatestConcurrentReaders(t *testing.T) {
	var l Latest
	const writes = 1000

	var wg sync.WaitGroup
	stop := make(chan struct{})
	violations := make(chan string, 4)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var lastGen uint64
			for {
				select {
				case <-stop:
					return
				default:
				}
				f, gen := l.Read()
				if gen == 0 {
					if f != nil {
						violations <- "frame without generation"
						return
					}
					continue
				}
				// Generation never goes backwards for a single reader,
				// and the frame matches the generation it was written at.
				if gen < lastGen {
					violations <- "generation went backwards"
					return
				}
				if uint64(f.Pix[0]) != gen {
					violations <- "torn read: frame does not match generation"
					return
				}
				lastGen = gen
			}
		}()
	}

	for i := 1; i <= writes; i++ {
		f := New(1, 1)
		f.Pix[0] = float32(i)
		l.Write(f)
	}
	close(stop)
	wg.Wait()

	select {
	case v := <-violations:
		t.Fatal(v)
	default:
	}

	_, gen := l.Read()
	require.EqualValues(t, writes, gen)
}
