package stagehand

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestProcessState(capacity int) *ProcessState {
	p := NewProcess(NewProcessRef(), "test", func() Handler { return HandlerFrom(func(Event) bool { return true }, func(Event) Flow { return Unit() }) })
	return newProcessState(p, capacity)
}

func TestProcessState_TryPutRespectsCapacity(t *testing.T) {
	ps := newTestProcessState(2)
	require.True(t, ps.tryPut(Deliver{}))
	require.True(t, ps.tryPut(Deliver{}))
	require.False(t, ps.tryPut(Deliver{}))
}

func TestProcessState_TryTakeFIFO(t *testing.T) {
	ps := newTestProcessState(2)
	first := Deliver{Envelope: Envelope{Sender: NamedProcessRef("a")}}
	second := Deliver{Envelope: Envelope{Sender: NamedProcessRef("b")}}
	require.True(t, ps.tryPut(first))
	require.True(t, ps.tryPut(second))

	got, ok := ps.tryTake()
	require.True(t, ok)
	require.Equal(t, first, got)

	got, ok = ps.tryTake()
	require.True(t, ok)
	require.Equal(t, second, got)

	_, ok = ps.tryTake()
	require.False(t, ok)
}

func TestProcessState_AcquireIsExclusive(t *testing.T) {
	ps := newTestProcessState(1)
	require.True(t, ps.acquire())
	require.False(t, ps.acquire())
	require.True(t, ps.release())
	require.True(t, ps.acquire())
}

func TestProcessState_ReleaseFailsWhenMailboxNonEmpty(t *testing.T) {
	ps := newTestProcessState(1)
	require.True(t, ps.acquire())
	require.True(t, ps.tryPut(Deliver{}))
	require.False(t, ps.release(), "release must refuse to relinquish ownership while work is pending")
	_, ok := ps.tryTake()
	require.True(t, ok)
	require.True(t, ps.release())
}

func TestProcessState_StopIsOneShot(t *testing.T) {
	ps := newTestProcessState(1)
	require.True(t, ps.stop())
	require.False(t, ps.stop())
	require.True(t, ps.isStopped())
}

func TestProcessState_InterruptCompletesSignal(t *testing.T) {
	ps := newTestProcessState(1)
	require.False(t, ps.isInterrupted())
	ps.interrupt()
	require.True(t, ps.isInterrupted())
	require.True(t, ps.interruption.IsSet())
	ps.interrupt() // idempotent, must not panic on double-close
}

// TestProcessState_NoLostWakeup drives concurrent producers and a single
// drainer against acquire/release and asserts every produced item is
// eventually observed exactly once — the invariant the shared mutex in
// tryPut/tryTake/acquire/release exists to guarantee.
func TestProcessState_NoLostWakeup(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 200).Draw(rt, "n")
		ps := newTestProcessState(n)

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				ps.tryPut(Deliver{Envelope: Envelope{Sender: NamedProcessRef(string(rune('a' + i%26)))}})
			}()
		}
		wg.Wait()

		seen := 0
		for {
			if !ps.acquire() {
				rt.Fatalf("acquire failed on an uncontended state")
			}
			for {
				_, ok := ps.tryTake()
				if !ok {
					break
				}
				seen++
			}
			if ps.release() {
				break
			}
		}
		require.Equal(t, n, seen)
	})
}
