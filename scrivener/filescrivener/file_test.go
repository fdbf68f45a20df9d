package filescrivener

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goldenwitch/coven/scrivener"
)

type testEntry struct {
	Value string `json:"value"`
}

func testCodec() scrivener.Codec[testEntry] {
	return scrivener.NewTaggedCodec[testEntry](
		func(testEntry) string { return `test` },
		map[string]reflect.Type{`test`: reflect.TypeOf(testEntry{})},
	)
}

func TestScrivener_WriteThenReadBack(t *testing.T) {
	dir := t.TempDir()
	s, err := Open[testEntry](dir, testCodec())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	pos, err := s.Write(ctx, testEntry{Value: `hello`})
	require.NoError(t, err)
	require.Equal(t, scrivener.Position(1), pos)

	pos2, err := s.Write(ctx, testEntry{Value: `world`})
	require.NoError(t, err)
	require.Equal(t, scrivener.Position(2), pos2)

	var got []string
	ctx2, cancel := context.WithCancel(ctx)
	for _, e := range s.Tail(ctx2, 0) {
		got = append(got, e.Value)
		if len(got) == 2 {
			cancel()
			break
		}
	}
	require.Equal(t, []string{`hello`, `world`}, got)
}

// TestScrivener_S2_PositionContinuityAcrossProcesses is scenario S2: a
// writer writes "x","y", then a fresh Scrivener over the same directory
// (simulating a new process) writes "z" and gets position 3.
func TestScrivener_S2_PositionContinuityAcrossProcesses(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := Open[testEntry](dir, testCodec())
	require.NoError(t, err)
	_, err = s1.Write(ctx, testEntry{Value: `x`})
	require.NoError(t, err)
	_, err = s1.Write(ctx, testEntry{Value: `y`})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open[testEntry](dir, testCodec())
	require.NoError(t, err)
	defer s2.Close()

	pos, err := s2.Write(ctx, testEntry{Value: `z`})
	require.NoError(t, err)
	require.Equal(t, scrivener.Position(3), pos)
}

func TestScrivener_ReadBackwardSkipsNothingValid(t *testing.T) {
	dir := t.TempDir()
	s, err := Open[testEntry](dir, testCodec())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for _, v := range []string{`a`, `b`, `c`} {
		_, err := s.Write(ctx, testEntry{Value: v})
		require.NoError(t, err)
	}

	var got []string
	for _, e := range s.ReadBackward(ctx, scrivener.MaxPosition) {
		got = append(got, e.Value)
	}
	require.Equal(t, []string{`c`, `b`, `a`}, got)
}

func TestScrivener_WaitForAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open[testEntry](dir, testCodec())
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan struct{})
	var pos scrivener.Position
	go func() {
		defer close(done)
		pos, _, err = s.WaitFor(ctx, 0, func(e testEntry) bool { return e.Value == `target` })
	}()

	time.Sleep(30 * time.Millisecond)
	_, werr := s.Write(ctx, testEntry{Value: `noise`})
	require.NoError(t, werr)
	_, werr = s.Write(ctx, testEntry{Value: `target`})
	require.NoError(t, werr)

	<-done
	require.NoError(t, err)
	require.Equal(t, scrivener.Position(2), pos)
}
