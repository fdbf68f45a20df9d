package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOnCompletionOnly_NeverEmits(t *testing.T) {
	p := OnCompletionOnly[string]()
	require.Equal(t, 1, p.MinLookback())
	require.False(t, p.ShouldEmit(Window[string]{Chunks: []string{`a`, `b`, `c`}}))
}

func TestCountThreshold_EmitsAtThreshold(t *testing.T) {
	p := CountThreshold[string](3)
	require.Equal(t, 3, p.MinLookback())
	require.False(t, p.ShouldEmit(Window[string]{Chunks: []string{`a`, `b`}}))
	require.True(t, p.ShouldEmit(Window[string]{Chunks: []string{`a`, `b`, `c`}}))
}

func TestOr_MinLookbackIsMaxOfChildren(t *testing.T) {
	p := Or[string](CountThreshold[string](2), CountThreshold[string](5))
	require.Equal(t, 5, p.MinLookback())
}

func TestOr_EmitsIfAnyChildWould(t *testing.T) {
	base := time.Now()
	idle := IdleTimeout[string](1, time.Millisecond, func() time.Time { return base.Add(time.Second) })
	p := Or[string](CountThreshold[string](100), idle)

	w := Window[string]{Chunks: []string{`a`}, LastEmit: base}
	require.True(t, p.ShouldEmit(w))
}

func TestBatchTransmuter_FunctionAdapter(t *testing.T) {
	bt := NewBatchTransmuter(func(chunks []string) (string, *string) {
		joined := ``
		for _, c := range chunks {
			joined += c
		}
		return joined, nil
	})
	out, rem := bt.Transmute([]string{`a`, `b`, `c`})
	require.Equal(t, `abc`, out)
	require.Nil(t, rem)
}

func TestShatterPolicy_FunctionAdapter(t *testing.T) {
	sp := NewShatterPolicy(func(s string) []rune {
		return []rune(s)
	})
	require.Equal(t, []rune{'a', 'b'}, sp.Shatter(`ab`))
}
