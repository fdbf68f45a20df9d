package wake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGate_BroadcastWakesWaiters(t *testing.T) {
	g := New()

	const n = 8
	woken := make(chan int, n)
	for i := 0; i < n; i++ {
		ch := g.Wait()
		go func(i int) {
			<-ch
			woken <- i
		}(i)
	}

	g.Broadcast()

	deadline := time.After(time.Second)
	seen := 0
	for seen < n {
		select {
		case <-woken:
			seen++
		case <-deadline:
			t.Fatalf(`only %d/%d waiters woke`, seen, n)
		}
	}
}

func TestGate_WaitAfterBroadcastIsFreshGeneration(t *testing.T) {
	g := New()
	g.Broadcast()

	ch := g.Wait()
	select {
	case <-ch:
		t.Fatal(`new generation must not already be closed`)
	default:
	}

	g.Broadcast()
	require.Eventually(t, func() bool {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}
