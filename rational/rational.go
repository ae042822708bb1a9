// Package rational provides exact rational arithmetic for frame-accurate
// time positions and durations.
//
// Floating-point time accumulates drift over long timelines; a 29.97 fps
// clip positioned by float64 seconds lands off its frame boundary after
// enough edits. Rational keeps every position and duration as an exact
// fraction so equality and ordering stay frame-accurate regardless of
// timebase.
package rational

import (
	"fmt"
	"time"
)

// Rational is an exact fraction representing a time instant or duration.
// The zero value is 0/1.
//
// Rational is an immutable value type: arithmetic returns new values and is
// safe for concurrent use. Invariants: the denominator is always positive
// and the fraction is always normalized (reduced, sign carried by the
// numerator).
type Rational struct {
	num int64
	den int64
}

// New returns the normalized rational num/den.
// A zero denominator yields the invalid rational; check with IsNaN.
func New(num, den int64) Rational {
	if den == 0 {
		return Rational{1, 0}
	}
	if den < 0 {
		num, den = -num, -den
	}
	if g := gcd(abs64(num), den); g > 1 {
		num /= g
		den /= g
	}
	if num == 0 {
		den = 1
	}
	return Rational{num, den}
}

// FromInt returns the rational n/1.
func FromInt(n int64) Rational { return Rational{n, 1} }

// FromDuration converts a time.Duration to an exact rational in seconds.
func FromDuration(d time.Duration) Rational {
	return New(d.Nanoseconds(), int64(time.Second))
}

// Num returns the numerator.
func (r Rational) Num() int64 { return r.num }

// Den returns the denominator. The zero value reports 1; only the invalid
// rational reports 0.
func (r Rational) Den() int64 {
	if r.den == 0 && r.num == 0 {
		return 1
	}
	return r.den
}

// IsNaN reports whether r is the invalid rational produced by a zero
// denominator input. Arithmetic on an invalid rational is undefined; callers
// are expected to reject it at the boundary.
func (r Rational) IsNaN() bool { return r.den == 0 && r.num != 0 }

// IsZero reports whether r equals zero.
func (r Rational) IsZero() bool { return r.num == 0 }

// Add returns r + o.
func (r Rational) Add(o Rational) Rational {
	return New(r.num*o.denOr1()+o.num*r.denOr1(), r.denOr1()*o.denOr1())
}

// Sub returns r - o.
func (r Rational) Sub(o Rational) Rational {
	return New(r.num*o.denOr1()-o.num*r.denOr1(), r.denOr1()*o.denOr1())
}

// Mul returns r * o.
func (r Rational) Mul(o Rational) Rational {
	return New(r.num*o.num, r.denOr1()*o.denOr1())
}

// Div returns r / o. Dividing by zero yields the invalid rational.
func (r Rational) Div(o Rational) Rational {
	return New(r.num*o.denOr1(), r.denOr1()*o.num)
}

// Neg returns -r.
func (r Rational) Neg() Rational { return Rational{-r.num, r.denOr1()} }

// Cmp compares r and o, returning -1, 0, or +1.
func (r Rational) Cmp(o Rational) int {
	// Cross-multiplication keeps the comparison exact.
	a := r.num * o.denOr1()
	b := o.num * r.denOr1()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports whether r < o.
func (r Rational) Less(o Rational) bool { return r.Cmp(o) < 0 }

// LessEq reports whether r <= o.
func (r Rational) LessEq(o Rational) bool { return r.Cmp(o) <= 0 }

// Equal reports whether r and o represent the same value.
func (r Rational) Equal(o Rational) bool { return r.Cmp(o) == 0 }

// Min returns the smaller of a and b.
func Min(a, b Rational) Rational {
	if a.Less(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Rational) Rational {
	if a.Less(b) {
		return b
	}
	return a
}

// FlooredDiv returns floor(r / o) as an integer. Used to convert a time
// position into a frame or sample index for a given timebase.
func (r Rational) FlooredDiv(o Rational) int64 {
	num := r.num * o.denOr1()
	den := r.denOr1() * o.num
	if den < 0 {
		num, den = -num, -den
	}
	q := num / den
	if num%den != 0 && num < 0 {
		q--
	}
	return q
}

// Float returns the closest float64 approximation. For display only; all
// positioning math stays rational.
func (r Rational) Float() float64 {
	return float64(r.num) / float64(r.denOr1())
}

// ToDuration returns the closest time.Duration approximation.
func (r Rational) ToDuration() time.Duration {
	return time.Duration(r.Float() * float64(time.Second))
}

// String returns the fraction formatted as "num/den".
func (r Rational) String() string {
	if r.IsNaN() {
		return "NaN"
	}
	return fmt.Sprintf("%d/%d", r.num, r.denOr1())
}

// denOr1 treats the zero value's denominator as 1 so the zero Rational
// behaves as exact zero in arithmetic.
func (r Rational) denOr1() int64 {
	if r.den == 0 {
		return 1
	}
	return r.den
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}
