package state

// UnknownReason explains why a StateChange could not be resolved to a known
// delta. Known is not really "unknown" — it marks a StateChange that is
// either empty or carries a concrete (m, x) delta.
type UnknownReason int

const (
	Known UnknownReason = iota
	Unknown
	SuspectInstruction
	MultipleReturnStates
	IndirectJump
	StackManipulation
	Recursion
	MutableCode
)

// String names the reason for logging and the query surface.
func (r UnknownReason) String() string {
	switch r {
	case Known:
		return "Known"
	case Unknown:
		return "Unknown"
	case SuspectInstruction:
		return "SuspectInstruction"
	case MultipleReturnStates:
		return "MultipleReturnStates"
	case IndirectJump:
		return "IndirectJump"
	case StackManipulation:
		return "StackManipulation"
	case Recursion:
		return "Recursion"
	case MutableCode:
		return "MutableCode"
	default:
		return "Invalid"
	}
}

// Change is a three-valued delta to the m/x flags caused by the execution of
// a subroutine: each of M, X is either unset (nil, not changed) or points to
// the new flag value. A non-Known Reason marks the delta unknown, in which
// case M and X are ignored regardless of their contents.
type Change struct {
	M      *bool
	X      *bool
	Reason UnknownReason
}

// Empty returns a known, empty state change: the subroutine changes nothing.
func Empty() Change {
	return Change{Reason: Known}
}

// FromUnknown returns a state change carrying only an UnknownReason.
func FromUnknown(reason UnknownReason) Change {
	return Change{Reason: reason}
}

// FromValues returns a known state change with the given m/x deltas, either
// of which may be nil to mean "unset".
func FromValues(m, x *bool) Change {
	return Change{M: m, X: x, Reason: Known}
}

// Unknown reports whether this delta is unknown (non-Known reason); when
// true, M and X carry no information.
func (c Change) Unknown() bool {
	return c.Reason != Known
}

// IsEmpty reports whether the change carries no information at all: it is
// known and both deltas are unset.
func (c Change) IsEmpty() bool {
	return !c.Unknown() && c.M == nil && c.X == nil
}

// Set applies the 1-bits of mask as "set to true" deltas, leaving flags not
// named by mask untouched. Mirrors SEP's effect on a StateChange.
func (c Change) Set(mask byte) Change {
	if mask&MFlag != 0 {
		t := true
		c.M = &t
	}
	if mask&XFlag != 0 {
		t := true
		c.X = &t
	}
	return c
}

// Reset applies the 1-bits of mask as "set to false" deltas, leaving flags
// not named by mask untouched. Mirrors REP's effect on a StateChange.
func (c Change) Reset(mask byte) Change {
	if mask&MFlag != 0 {
		f := false
		c.M = &f
	}
	if mask&XFlag != 0 {
		f := false
		c.X = &f
	}
	return c
}

// ApplyInference elides deltas that the given inference shows to be no-ops:
// a delta that sets a flag to the value it is already known to have on
// subroutine entry changes nothing observable and is cleared.
func (c Change) ApplyInference(inference Change) Change {
	if c.M != nil && inference.M != nil && *c.M == *inference.M {
		c.M = nil
	}
	if c.X != nil && inference.X != nil && *c.X == *inference.X {
		c.X = nil
	}
	return c
}

// Simplify elides deltas that equal the given current state, since setting a
// flag to the value it already has is not an observable change.
func (c Change) Simplify(s State) Change {
	if c.M != nil && *c.M == s.M {
		c.M = nil
	}
	if c.X != nil && *c.X == s.X {
		c.X = nil
	}
	return c
}

// Key is the comparable, hashable projection of a Change used for equality
// and for deduplicating sets of changes: (m, x) when Known, or just the
// Reason when unknown.
type Key struct {
	unknown bool
	reason  UnknownReason
	m, x    boolState
}

type boolState int

const (
	unset boolState = iota
	isFalse
	isTrue
)

func toBoolState(b *bool) boolState {
	if b == nil {
		return unset
	}
	if *b {
		return isTrue
	}
	return isFalse
}

// Key returns the comparable projection of this Change suitable for use as a
// map key or for deduplicating a set of Changes: equality/hashing is over
// (m', x') when Known, or over reason when Unknown.
func (c Change) Key() Key {
	if c.Unknown() {
		return Key{unknown: true, reason: c.Reason}
	}
	return Key{m: toBoolState(c.M), x: toBoolState(c.X)}
}

// Equal reports whether two changes carry the same delta: (m', x') when
// both Known, Reason when both Unknown.
func (c Change) Equal(other Change) bool {
	return c.Key() == other.Key()
}

// String renders the change for logging and diagnostics.
func (c Change) String() string {
	if c.Unknown() {
		return c.Reason.String()
	}
	out := "m="
	out += optBoolString(c.M)
	out += " x="
	out += optBoolString(c.X)
	return out
}

func optBoolString(b *bool) string {
	if b == nil {
		return "unset"
	}
	if *b {
		return "1"
	}
	return "0"
}
