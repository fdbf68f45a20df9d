package shatter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goldenwitch/coven/daemon"
	"github.com/goldenwitch/coven/policy"
	"github.com/goldenwitch/coven/scrivener"
	"github.com/goldenwitch/coven/scrivener/memscrivener"
)

type sourceEntry string
type chunkEntry string
type doneEntry struct{ Source string }

func testConfig(journal scrivener.Scrivener[any]) Config[any, string, string, string] {
	return Config[any, string, string, string]{
		Journal: journal,
		AsSource: func(e any) (string, bool) {
			if s, ok := e.(sourceEntry); ok {
				return string(s), true
			}
			return ``, false
		},
		Shatter: policy.NewShatterPolicy(func(s string) []string {
			out := make([]string, 0, len(s))
			for _, r := range s {
				out = append(out, string(r))
			}
			return out
		}),
		ToChunkEntry:      func(c string) any { return chunkEntry(c) },
		CompletionFactory: func(s string) string { return s },
		ToCompletionEntry: func(x string) any { return doneEntry{Source: x} },
	}
}

func TestShatter_ExplodesIntoChunksThenMarker(t *testing.T) {
	journal := memscrivener.New[any]()
	ctx := context.Background()

	d := New(`explode`, testConfig(journal))
	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.WaitFor(ctx, daemon.StatusRunning))

	_, err := journal.Write(ctx, sourceEntry(`ab`))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		var markers int
		for _, e := range journal.ReadBackward(ctx, scrivener.MaxPosition) {
			if _, ok := e.(doneEntry); ok {
				markers++
			}
		}
		return markers == 1
	}, time.Second, 5*time.Millisecond)

	var got []any
	for _, e := range journal.ReadBackward(ctx, scrivener.MaxPosition) {
		got = append([]any{e}, got...)
	}
	// the source itself, then its two chunks in order, then the marker
	require.Equal(t, []any{
		sourceEntry(`ab`),
		chunkEntry(`a`),
		chunkEntry(`b`),
		doneEntry{Source: `ab`},
	}, got)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(shutdownCtx))
}

func TestShatter_DoesNotReplayEntriesWrittenBeforeStart(t *testing.T) {
	journal := memscrivener.New[any]()
	ctx := context.Background()

	_, err := journal.Write(ctx, sourceEntry(`pre`))
	require.NoError(t, err)

	d := New(`late-join`, testConfig(journal))
	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.WaitFor(ctx, daemon.StatusRunning))

	_, err = journal.Write(ctx, sourceEntry(`ab`))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		var markers int
		for _, e := range journal.ReadBackward(ctx, scrivener.MaxPosition) {
			if _, ok := e.(doneEntry); ok {
				markers++
			}
		}
		return markers == 1
	}, time.Second, 5*time.Millisecond)

	var markers []doneEntry
	for _, e := range journal.ReadBackward(ctx, scrivener.MaxPosition) {
		if marker, ok := e.(doneEntry); ok {
			markers = append([]doneEntry{marker}, markers...)
		}
	}
	require.Equal(t, []doneEntry{{Source: `ab`}}, markers)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(shutdownCtx))
}
