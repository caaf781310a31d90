package stagehand

// Handler is a partial function from Event to Flow: Defined reports
// whether the handler reacts to e at all, Apply produces the flow to
// run when it does. Composition (And/Or) builds larger partial
// functions out of smaller ones without requiring a single combined
// type switch.
type Handler interface {
	Defined(e Event) bool
	Apply(e Event) Flow
}

type handlerFunc struct {
	defined func(Event) bool
	apply   func(Event) Flow
}

func (h handlerFunc) Defined(e Event) bool { return h.defined(e) }
func (h handlerFunc) Apply(e Event) Flow   { return h.apply(e) }

// HandlerFrom builds a Handler from an explicit (matches, apply) pair.
func HandlerFrom(matches func(Event) bool, apply func(Event) Flow) Handler {
	return handlerFunc{defined: matches, apply: apply}
}

// On builds a Handler defined only for events of type T.
func On[T Event](apply func(T) Flow) Handler {
	return handlerFunc{
		defined: func(e Event) bool {
			_, ok := e.(T)
			return ok
		},
		apply: func(e Event) Flow {
			return apply(e.(T))
		},
	}
}

// And composes two handlers into one defined where both are, applying
// both (in order) on the same event via Seq.
func And(a, b Handler) Handler {
	return handlerFunc{
		defined: func(e Event) bool { return a.Defined(e) && b.Defined(e) },
		apply: func(e Event) Flow {
			return Seq(a.Apply(e), b.Apply(e))
		},
	}
}

// Or composes two handlers into one defined where either is; a wins
// when both are defined.
func Or(a, b Handler) Handler {
	return handlerFunc{
		defined: func(e Event) bool { return a.Defined(e) || b.Defined(e) },
		apply: func(e Event) Flow {
			if a.Defined(e) {
				return a.Apply(e)
			}
			return b.Apply(e)
		},
	}
}
