package memscrivener

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goldenwitch/coven/scrivener"
)

func TestScrivener_DenseMonotonicPositions(t *testing.T) {
	s := New[string]()
	ctx := context.Background()

	var positions []scrivener.Position
	for i := 0; i < 100; i++ {
		pos, err := s.Write(ctx, "x")
		require.NoError(t, err)
		positions = append(positions, pos)
	}

	for i, pos := range positions {
		require.Equal(t, scrivener.Position(i+1), pos)
	}
}

func TestScrivener_WriteRejectsNilEntry(t *testing.T) {
	s := New[*string]()
	_, err := s.Write(context.Background(), nil)
	require.ErrorIs(t, err, scrivener.ErrInvalidArgument)
}

// TestScrivener_S1_ConcurrentWritersTailContiguity is scenario S1 from the
// spec: two writers append 3 entries each concurrently; a tailer from
// anchor 0 must observe all 6, positions 1..6 strictly increasing, no gaps.
func TestScrivener_S1_ConcurrentWritersTailContiguity(t *testing.T) {
	s := New[string]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, v := range []string{"a", "b", "c"} {
			_, err := s.Write(ctx, v)
			require.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for _, v := range []string{"d", "e", "f"} {
			_, err := s.Write(ctx, v)
			require.NoError(t, err)
		}
	}()
	wg.Wait()

	var got []string
	var positions []int
	for pos, entry := range s.Tail(ctx, 0) {
		got = append(got, entry)
		positions = append(positions, int(pos))
		if len(got) == 6 {
			break
		}
	}

	require.ElementsMatch(t, []string{"a", "b", "c", "d", "e", "f"}, got)
	require.True(t, sort.IntsAreSorted(positions))
	for i, p := range positions {
		require.Equal(t, i+1, p)
	}
}

func TestScrivener_TailContiguityFromNonZeroAnchor(t *testing.T) {
	s := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 5; i++ {
		_, err := s.Write(ctx, i)
		require.NoError(t, err)
	}

	var got []int
	for pos, entry := range s.Tail(ctx, 2) {
		got = append(got, entry)
		require.GreaterOrEqual(t, int(pos), 3)
		if len(got) == 3 {
			break
		}
	}
	require.Equal(t, []int{2, 3, 4}, got)
}

func TestScrivener_TailMaxPositionIsEmpty(t *testing.T) {
	s := New[int]()
	ctx := context.Background()
	_, _ = s.Write(ctx, 1)

	for range s.Tail(ctx, scrivener.MaxPosition) {
		t.Fatal(`expected empty sequence`)
	}
}

func TestScrivener_ReadBackwardSnapshot(t *testing.T) {
	s := New[int]()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Write(ctx, i*10)
		require.NoError(t, err)
	}

	_, err := s.Write(ctx, 999) // position 6; excluded by the before=4 bound below regardless
	require.NoError(t, err)

	var got []int
	for _, entry := range s.ReadBackward(ctx, 4) {
		got = append(got, entry)
	}
	// positions 1,2,3 -> entries 0,10,20, descending by position => 20,10,0
	require.Equal(t, []int{20, 10, 0}, got)
}

func TestScrivener_WaitForCorrectness(t *testing.T) {
	s := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, v := range []int{1, 2, 3, 4, 5} {
		_, err := s.Write(ctx, v)
		require.NoError(t, err)
	}

	pos, entry, err := s.WaitFor(ctx, 1, func(v int) bool { return v%2 == 0 })
	require.NoError(t, err)
	require.Equal(t, scrivener.Position(2), pos) // first even value strictly after position 1 is 2, at position 2
	require.Equal(t, 2, entry)
}

func TestScrivener_WaitForBlocksUntilWrite(t *testing.T) {
	s := New[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	var pos scrivener.Position
	var entry string
	var err error
	go func() {
		defer close(done)
		pos, entry, err = s.WaitFor(ctx, 0, func(v string) bool { return v == "target" })
	}()

	time.Sleep(20 * time.Millisecond)
	_, werr := s.Write(ctx, "noise")
	require.NoError(t, werr)
	_, werr = s.Write(ctx, "target")
	require.NoError(t, werr)

	<-done
	require.NoError(t, err)
	require.Equal(t, scrivener.Position(2), pos)
	require.Equal(t, "target", entry)
}

func TestScrivener_WaitForRejectsMaxPosition(t *testing.T) {
	s := New[int]()
	_, _, err := s.WaitFor(context.Background(), scrivener.MaxPosition, func(int) bool { return true })
	require.ErrorIs(t, err, scrivener.ErrInvalidArgument)
}

func TestScrivener_WaitForCancellation(t *testing.T) {
	s := New[int]()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, _, err := s.WaitFor(ctx, 0, func(int) bool { return false })
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, scrivener.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal(`WaitFor did not observe cancellation`)
	}
}
