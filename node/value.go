// Package node implements the compositing graph: nodes are vertices with
// typed named inputs, stored in an arena keyed by stable IDs, and evaluation
// recursively pulls upstream values to produce a texture or audio buffer for
// a timeline position.
package node

import (
	"github.com/marlinedit/marlin/footage"
	"github.com/marlinedit/marlin/gpu"
	"github.com/marlinedit/marlin/media"
	"github.com/marlinedit/marlin/rational"
)

// DataType identifies what a Value carries. TypeNone doubles as the absent
// sentinel: an unset input, a missing frame, or a connection type mismatch
// all evaluate to a TypeNone value, and callers render nothing.
type DataType uint8

const (
	TypeNone DataType = iota
	TypeTexture
	TypeSamples
	TypeMatrix
	TypeFloat
	TypeString
	TypeRational
	TypeFootage
)

// String returns the type name.
func (t DataType) String() string {
	switch t {
	case TypeTexture:
		return "texture"
	case TypeSamples:
		return "samples"
	case TypeMatrix:
		return "matrix"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeRational:
		return "rational"
	case TypeFootage:
		return "footage"
	default:
		return "none"
	}
}

// Value is the tagged variant evaluation produces and literals hold. The
// zero value is absent.
type Value struct {
	typ DataType

	texture  *gpu.Texture
	samples  *media.SampleBuffer
	matrix   gpu.Matrix4
	float    float64
	str      string
	rational rational.Rational
	footage  *footage.Footage
}

// TextureValue wraps a texture handle. A nil texture is absent.
func TextureValue(t *gpu.Texture) Value {
	if t == nil {
		return Value{}
	}
	return Value{typ: TypeTexture, texture: t}
}

// SamplesValue wraps an audio buffer. A nil buffer is absent.
func SamplesValue(s *media.SampleBuffer) Value {
	if s == nil {
		return Value{}
	}
	return Value{typ: TypeSamples, samples: s}
}

// MatrixValue wraps a transform matrix.
func MatrixValue(m gpu.Matrix4) Value { return Value{typ: TypeMatrix, matrix: m} }

// FloatValue wraps a scalar.
func FloatValue(f float64) Value { return Value{typ: TypeFloat, float: f} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{typ: TypeString, str: s} }

// RationalValue wraps a rational number.
func RationalValue(r rational.Rational) Value { return Value{typ: TypeRational, rational: r} }

// FootageValue wraps a footage reference. Nil footage is absent.
func FootageValue(f *footage.Footage) Value {
	if f == nil {
		return Value{}
	}
	return Value{typ: TypeFootage, footage: f}
}

// Type returns the carried type, TypeNone when absent.
func (v Value) Type() DataType { return v.typ }

// IsAbsent reports whether the value carries nothing.
func (v Value) IsAbsent() bool { return v.typ == TypeNone }

// Texture returns the texture handle, nil when the value is not a texture.
func (v Value) Texture() *gpu.Texture {
	if v.typ != TypeTexture {
		return nil
	}
	return v.texture
}

// Samples returns the audio buffer, nil when the value is not samples.
func (v Value) Samples() *media.SampleBuffer {
	if v.typ != TypeSamples {
		return nil
	}
	return v.samples
}

// Matrix returns the matrix, identity when the value is not a matrix.
func (v Value) Matrix() gpu.Matrix4 {
	if v.typ != TypeMatrix {
		return gpu.Identity()
	}
	return v.matrix
}

// Float returns the scalar, 0 when the value is not a float.
func (v Value) Float() float64 {
	if v.typ != TypeFloat {
		return 0
	}
	return v.float
}

// String returns the string, empty when the value is not a string.
func (v Value) String() string {
	if v.typ != TypeString {
		return ""
	}
	return v.str
}

// Rational returns the rational, zero when the value is not a rational.
func (v Value) Rational() rational.Rational {
	if v.typ != TypeRational {
		return rational.Rational{}
	}
	return v.rational
}

// Footage returns the footage reference, nil when the value is not footage.
func (v Value) Footage() *footage.Footage {
	if v.typ != TypeFootage {
		return nil
	}
	return v.footage
}
