// Package colorspace converts decoded frames from their source color space
// into the scene-linear working reference space the compositing graph
// operates in.
//
// Transforms exist in two renditions: a CPU path that mutates full-float
// frame data in place (online rendering, accuracy-favoring) and a WGSL
// snippet the GPU blit pipeline folds into its fragment shader (offline
// rendering, performance-favoring). The two are intentionally not bit-equal;
// the render mode selects which trade-off applies.
package colorspace

import (
	"fmt"
	"math"
	"sync"

	"github.com/marlinedit/marlin/media"
)

// Role names the reference space a transform targets.
type Role string

// RoleSceneLinear is the working space of the compositing graph: linear
// light, Rec.709 primaries.
const RoleSceneLinear Role = "scene_linear"

// lutSize is the resolution of the transfer-function lookup table built at
// transform construction. 4096 entries keep 8- and 10-bit sources exact.
const lutSize = 4096

// Service wraps a named source color space and role into a reusable
// transform. Construction of the underlying processor is deferred to first
// use and cached: building a transform is expensive relative to per-frame
// conversion, and a media node may never reach the color stage (absent
// footage).
type Service struct {
	space string
	role  Role

	once sync.Once
	proc *Processor
	err  error
}

// NewService creates a service converting from the named source space to
// the given role. The transform itself is built lazily.
func NewService(space string, role Role) *Service {
	return &Service{space: space, role: role}
}

// Space returns the source color space name.
func (s *Service) Space() string { return s.space }

// Processor returns the lazily-built transform, constructing it on first
// call. An unknown space or role fails here, not in NewService.
func (s *Service) Processor() (*Processor, error) {
	s.once.Do(func() {
		s.proc, s.err = newProcessor(s.space, s.role)
	})
	return s.proc, s.err
}

// ConvertFrame transforms frame data in place to the reference space.
// The frame must be RGBA32F (convert first; CPU transforms need full float).
// Alpha is passed through untouched.
func (s *Service) ConvertFrame(f *media.Frame) error {
	if f == nil {
		return fmt.Errorf("colorspace: nil frame")
	}
	if f.Format() != media.FormatRGBA32F {
		return fmt.Errorf("colorspace: ConvertFrame requires %s, got %s", media.FormatRGBA32F, f.Format())
	}
	proc, err := s.Processor()
	if err != nil {
		return err
	}
	proc.apply(f)
	return nil
}

// ShaderSnippet returns the WGSL function the GPU blit pipeline uses to
// perform this transform in its fragment shader on the offline path.
func (s *Service) ShaderSnippet() (string, error) {
	proc, err := s.Processor()
	if err != nil {
		return "", err
	}
	return proc.shader, nil
}

// Processor is a built color transform: a linearization curve plus the
// matching shader rendition.
type Processor struct {
	lut    [lutSize + 1]float32
	extend func(float64) float64 // out-of-LUT values (HDR overshoot)
	shader string
}

func newProcessor(space string, role Role) (*Processor, error) {
	if role != RoleSceneLinear {
		return nil, fmt.Errorf("colorspace: unknown role %q", role)
	}

	var curve func(float64) float64
	var shader string
	switch space {
	case "srgb":
		curve = srgbToLinear
		shader = srgbShader
	case "rec709":
		curve = rec709ToLinear
		shader = rec709Shader
	case "linear":
		curve = func(v float64) float64 { return v }
		shader = linearShader
	default:
		return nil, fmt.Errorf("colorspace: unknown color space %q", space)
	}

	p := &Processor{extend: curve, shader: shader}
	for i := 0; i <= lutSize; i++ {
		p.lut[i] = float32(curve(float64(i) / lutSize))
	}
	return p, nil
}

// apply runs the transform over every pixel, alpha untouched.
func (p *Processor) apply(f *media.Frame) {
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			r, g, b, a := f.Float32At(x, y)
			f.SetFloat32At(x, y, p.linearize(r), p.linearize(g), p.linearize(b), a)
		}
	}
}

// linearize converts one encoded channel value to linear light. In-gamut
// values go through the LUT with interpolation; values outside [0, 1] fall
// back to the exact curve so HDR overshoot is preserved.
func (p *Processor) linearize(v float32) float32 {
	if v < 0 || v > 1 {
		return float32(p.extend(float64(v)))
	}
	pos := float64(v) * lutSize
	i := int(pos)
	if i >= lutSize {
		return p.lut[lutSize]
	}
	frac := float32(pos - float64(i))
	return p.lut[i] + (p.lut[i+1]-p.lut[i])*frac
}

// srgbToLinear is the IEC 61966-2-1 EOTF inverse, mirrored for negatives.
func srgbToLinear(v float64) float64 {
	if v < 0 {
		return -srgbToLinear(-v)
	}
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// rec709ToLinear is the BT.709 OETF inverse, mirrored for negatives.
func rec709ToLinear(v float64) float64 {
	if v < 0 {
		return -rec709ToLinear(-v)
	}
	if v < 0.081 {
		return v / 4.5
	}
	return math.Pow((v+0.099)/1.099, 1/0.45)
}

const srgbShader = `fn to_linear(c: vec3<f32>) -> vec3<f32> {
    let lo = c / 12.92;
    let hi = pow((c + vec3<f32>(0.055)) / 1.055, vec3<f32>(2.4));
    return select(hi, lo, c <= vec3<f32>(0.04045));
}`

const rec709Shader = `fn to_linear(c: vec3<f32>) -> vec3<f32> {
    let lo = c / 4.5;
    let hi = pow((c + vec3<f32>(0.099)) / 1.099, vec3<f32>(1.0 / 0.45));
    return select(hi, lo, c < vec3<f32>(0.081));
}`

const linearShader = `fn to_linear(c: vec3<f32>) -> vec3<f32> {
    return c;
}`
