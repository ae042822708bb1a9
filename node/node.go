package node

import (
	"github.com/marlinedit/marlin/gpu"
	"github.com/marlinedit/marlin/rational"
)

// Kind is the node variant. Evaluation switches exhaustively over it.
type Kind uint8

const (
	// KindMedia decodes footage into a texture or audio samples.
	KindMedia Kind = iota

	// KindBlend composites a blend texture over a base texture by a factor.
	KindBlend

	// KindTransform draws its input through a matrix.
	KindTransform

	// KindSpeed remaps the evaluation time of everything upstream.
	KindSpeed

	// KindViewer is the output binding point; it passes its input through.
	KindViewer
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindMedia:
		return "media"
	case KindBlend:
		return "blend"
	case KindTransform:
		return "transform"
	case KindSpeed:
		return "speed"
	case KindViewer:
		return "viewer"
	default:
		return "unknown"
	}
}

// Input parameter names per kind.
const (
	InputFootage    = "footage"    // media: TypeFootage
	InputColorSpace = "colorspace" // media: TypeString, source space name
	InputBase       = "base"       // blend: TypeTexture
	InputBlend      = "blend"      // blend: TypeTexture
	InputFactor     = "factor"     // blend: TypeFloat in [0, 1]
	InputTexture    = "texture"    // transform, speed, viewer: TypeTexture
	InputMatrix     = "matrix"     // transform: TypeMatrix
	InputSpeed      = "speed"      // speed: TypeRational multiplier
)

// Param is one named input. It holds a literal value and, when connected,
// the ID of the upstream node whose output supplies it instead.
type Param struct {
	Name    string
	Type    DataType
	Literal Value

	conn ID
}

// IsConnected reports whether an upstream node feeds this input.
func (p *Param) IsConnected() bool { return p.conn != InvalidNode }

// Connection returns the upstream node ID, InvalidNode when unconnected.
func (p *Param) Connection() ID { return p.conn }

// Node is a graph vertex. Nodes never own their neighbors; edges live in
// the params as upstream IDs and the graph arena owns all vertices.
type Node struct {
	id     ID
	kind   Kind
	label  string
	params []Param
}

// ID returns the arena ID.
func (n *Node) ID() ID { return n.id }

// Kind returns the node variant.
func (n *Node) Kind() Kind { return n.kind }

// Label returns the display label.
func (n *Node) Label() string { return n.label }

// Param returns the named input, nil when the kind has no such input.
func (n *Node) Param(name string) *Param {
	for i := range n.params {
		if n.params[i].Name == name {
			return &n.params[i]
		}
	}
	return nil
}

// Params returns the inputs in declaration order.
func (n *Node) Params() []Param { return n.params }

// SetLiteral stores a literal on the named input. A literal of the wrong
// type is stored as-is and evaluates to absent, matching connection
// mismatch behavior.
func (n *Node) SetLiteral(name string, v Value) bool {
	p := n.Param(name)
	if p == nil {
		return false
	}
	p.Literal = v
	return true
}

// paramsFor declares the inputs of each kind.
func paramsFor(kind Kind) []Param {
	switch kind {
	case KindMedia:
		return []Param{
			{Name: InputFootage, Type: TypeFootage},
			{Name: InputColorSpace, Type: TypeString, Literal: StringValue("srgb")},
		}
	case KindBlend:
		return []Param{
			{Name: InputBase, Type: TypeTexture},
			{Name: InputBlend, Type: TypeTexture},
			{Name: InputFactor, Type: TypeFloat, Literal: FloatValue(1)},
		}
	case KindTransform:
		return []Param{
			{Name: InputTexture, Type: TypeTexture},
			{Name: InputMatrix, Type: TypeMatrix, Literal: MatrixValue(gpu.Identity())},
		}
	case KindSpeed:
		return []Param{
			{Name: InputTexture, Type: TypeTexture},
			{Name: InputSpeed, Type: TypeRational, Literal: RationalValue(rational.FromInt(1))},
		}
	case KindViewer:
		return []Param{
			{Name: InputTexture, Type: TypeTexture},
		}
	default:
		return nil
	}
}
