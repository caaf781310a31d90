package stagehand

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type pingEvent struct{ n int }
type pongEvent struct{ n int }

func TestOn_MatchesOnlyItsType(t *testing.T) {
	var applied int
	h := On(func(e pingEvent) Flow {
		applied = e.n
		return Unit()
	})

	require.True(t, h.Defined(pingEvent{n: 1}))
	require.False(t, h.Defined(pongEvent{n: 1}))

	h.Apply(pingEvent{n: 7})
	require.Equal(t, 7, applied)
}

func TestAnd_DefinedOnlyWhenBothAre(t *testing.T) {
	var order []string
	a := On(func(e pingEvent) Flow { order = append(order, "a"); return Unit() })
	b := On(func(e pingEvent) Flow { order = append(order, "b"); return Unit() })
	c := On(func(e pongEvent) Flow { order = append(order, "c"); return Unit() })

	ab := And(a, b)
	require.True(t, ab.Defined(pingEvent{}))
	require.False(t, ab.Defined(pongEvent{}))

	ab.Apply(pingEvent{})
	require.Equal(t, []string{"a", "b"}, order)

	ac := And(a, c)
	require.False(t, ac.Defined(pingEvent{}))
	require.False(t, ac.Defined(pongEvent{}))
}

func TestOr_FirstWinsWhenBothDefined(t *testing.T) {
	var winner string
	a := On(func(e pingEvent) Flow { winner = "a"; return Unit() })
	b := On(func(e pingEvent) Flow { winner = "b"; return Unit() })

	or := Or(a, b)
	require.True(t, or.Defined(pingEvent{}))
	or.Apply(pingEvent{})
	require.Equal(t, "a", winner)
}

func TestOr_FallsThroughToSecond(t *testing.T) {
	a := On(func(e pongEvent) Flow { return Unit() })
	var got int
	b := On(func(e pingEvent) Flow { got = e.n; return Unit() })

	or := Or(a, b)
	require.True(t, or.Defined(pingEvent{n: 3}))
	or.Apply(pingEvent{n: 3})
	require.Equal(t, 3, got)

	require.False(t, or.Defined(42))
}
