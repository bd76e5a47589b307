package smt

// Interval is an integer range [Lo, Hi], with HasLo/HasHi marking unbounded
// sides. Used for the range-propagation half of the engine (§4.4) and to
// bound enumeration during CheckSat.
type Interval struct {
	HasLo, HasHi bool
	Lo, Hi       int64
}

func fullInterval() Interval { return Interval{} }

func (iv Interval) intersect(other Interval) Interval {
	out := iv

	if other.HasLo && (!out.HasLo || other.Lo > out.Lo) {
		out.HasLo = true
		out.Lo = other.Lo
	}

	if other.HasHi && (!out.HasHi || other.Hi < out.Hi) {
		out.HasHi = true
		out.Hi = other.Hi
	}

	return out
}

// empty reports whether the interval can contain no integer, i.e. a direct
// unsatisfiability witness for the common "x < 0 and x >= 0" contradictory-
// literal pattern (§4.4).
func (iv Interval) empty() bool {
	return iv.HasLo && iv.HasHi && iv.Lo > iv.Hi
}

// bounded clamps an unbounded side to [-defaultBound, defaultBound] so
// enumeration over it terminates.
func (iv Interval) bounded(defaultBound int64) Interval {
	out := iv

	if !out.HasLo {
		out.HasLo = true
		out.Lo = -defaultBound
	}

	if !out.HasHi {
		out.HasHi = true
		out.Hi = defaultBound
	}

	return out
}
