package rational

import "fmt"

// TimeRange is a half-open interval [In, Out) of rational time.
// It scopes cache invalidation and describes the region an audio buffer or
// cached render output covers.
//
// The In <= Out invariant is maintained by NewTimeRange, which swaps
// reversed endpoints rather than rejecting them.
type TimeRange struct {
	in  Rational
	out Rational
}

// NewTimeRange returns the range [in, out). Reversed endpoints are swapped.
func NewTimeRange(in, out Rational) TimeRange {
	if out.Less(in) {
		in, out = out, in
	}
	return TimeRange{in: in, out: out}
}

// NewTimeRangeWithLength returns the range [in, in+length).
func NewTimeRangeWithLength(in, length Rational) TimeRange {
	return NewTimeRange(in, in.Add(length))
}

// In returns the inclusive start of the range.
func (t TimeRange) In() Rational { return t.in }

// Out returns the exclusive end of the range.
func (t TimeRange) Out() Rational { return t.out }

// Length returns Out - In.
func (t TimeRange) Length() Rational { return t.out.Sub(t.in) }

// IsEmpty reports whether the range covers no time.
func (t TimeRange) IsEmpty() bool { return t.in.Equal(t.out) }

// Contains reports whether the instant r lies inside the half-open range.
func (t TimeRange) Contains(r Rational) bool {
	return t.in.LessEq(r) && r.Less(t.out)
}

// Overlaps reports whether t and o share any instant. Half-open semantics:
// adjacent ranges ([0,1) and [1,2)) do not overlap.
func (t TimeRange) Overlaps(o TimeRange) bool {
	return t.in.Less(o.out) && o.in.Less(t.out)
}

// Touches reports whether t and o overlap or are exactly adjacent. Used when
// coalescing invalidation ranges, where merging adjacent ranges avoids
// redundant eviction sweeps.
func (t TimeRange) Touches(o TimeRange) bool {
	return t.in.LessEq(o.out) && o.in.LessEq(t.out)
}

// Combine returns the smallest range containing both t and o.
func (t TimeRange) Combine(o TimeRange) TimeRange {
	return TimeRange{
		in:  Min(t.in, o.in),
		out: Max(t.out, o.out),
	}
}

// String returns the range formatted as "[in, out)".
func (t TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", t.in, t.out)
}

// CoalesceRanges merges every overlapping or adjacent range in rs into its
// union, returning the minimal set of disjoint ranges. Invalidation ranges
// accumulated while a render pass is in flight are combined with this before
// a single eviction sweep.
func CoalesceRanges(rs []TimeRange) []TimeRange {
	if len(rs) <= 1 {
		return rs
	}

	merged := make([]TimeRange, 0, len(rs))
	for _, r := range rs {
		absorbed := false
		for i := range merged {
			if merged[i].Touches(r) {
				merged[i] = merged[i].Combine(r)
				absorbed = true
				break
			}
		}
		if !absorbed {
			merged = append(merged, r)
		}
	}

	// A merge can bridge two previously disjoint entries; repeat until the
	// set stops shrinking.
	if len(merged) < len(rs) {
		return CoalesceRanges(merged)
	}
	return merged
}
