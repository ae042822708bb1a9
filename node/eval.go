package node

import (
	"fmt"
	"log/slog"

	marlin "github.com/marlinedit/marlin"
	"github.com/marlinedit/marlin/colorspace"
	"github.com/marlinedit/marlin/decoder"
	"github.com/marlinedit/marlin/footage"
	"github.com/marlinedit/marlin/gpu"
	"github.com/marlinedit/marlin/media"
	"github.com/marlinedit/marlin/rational"
)

// Value resolves the output of a node at a time. Absent results (no
// footage, no frame at the time, type mismatch) return a zero Value and a
// nil error; errors are reserved for real failures such as GPU allocation.
//
// Evaluation mutates resources through ctx: it may create and destroy
// decoder instances, textures, and pipelines.
func (g *Graph) Value(ctx *RenderContext, id ID, t rational.Rational) (Value, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value(ctx, id, t)
}

func (g *Graph) value(ctx *RenderContext, id ID, t rational.Rational) (Value, error) {
	n := g.nodes[id]
	if n == nil {
		return Value{}, nil
	}
	switch n.kind {
	case KindMedia:
		return g.evalMedia(ctx, n, t)
	case KindBlend:
		return g.evalBlend(ctx, n, t)
	case KindTransform:
		return g.evalTransform(ctx, n, t)
	case KindSpeed:
		return g.evalSpeed(ctx, n, t)
	case KindViewer:
		return g.input(ctx, n, InputTexture, t)
	default:
		return Value{}, nil
	}
}

// input resolves one named input: the upstream output when connected, the
// literal otherwise. A value whose type does not match the input's declared
// type resolves to absent, not an error.
func (g *Graph) input(ctx *RenderContext, n *Node, name string, t rational.Rational) (Value, error) {
	p := n.Param(name)
	if p == nil {
		return Value{}, nil
	}
	if p.IsConnected() {
		v, err := g.value(ctx, p.conn, t)
		if err != nil {
			return Value{}, err
		}
		if v.Type() != p.Type {
			return Value{}, nil
		}
		return v, nil
	}
	if p.Literal.Type() != p.Type {
		return Value{}, nil
	}
	return p.Literal, nil
}

// evalMedia decodes the node's footage at t and blits the frame into a
// working-resolution texture.
//
// Online mode converts the frame to full float and applies the color
// transform on the CPU before upload; offline mode uploads the decoded
// frame as-is and folds the transform into the blit shader.
func (g *Graph) evalMedia(ctx *RenderContext, n *Node, t rational.Rational) (Value, error) {
	fv, err := g.input(ctx, n, InputFootage, t)
	if err != nil || fv.IsAbsent() {
		return Value{}, err
	}
	ftg := fv.Footage()

	stream := firstStream(ftg, footage.StreamVideo)
	if stream == nil {
		return Value{}, nil
	}

	st := ctx.state(n.id)
	if st.dec == nil || st.decoderID != ftg.DecoderID() || st.footageID != ftg.ID() {
		if st.dec != nil {
			st.dec.Close()
		}
		st.dec = decoder.CreateFromID(ftg.DecoderID())
		st.decoderID = ftg.DecoderID()
		st.footageID = ftg.ID()
		if st.dec == nil {
			marlin.Logger().Warn("node: no decoder for footage",
				slog.String("decoder_id", ftg.DecoderID()), slog.String("footage", ftg.ID()))
			return Value{}, nil
		}
		if err := st.dec.SetStream(stream); err != nil {
			return Value{}, fmt.Errorf("node: bind stream: %w", err)
		}
	}

	frame, err := st.dec.Retrieve(t)
	if err != nil {
		return Value{}, fmt.Errorf("node: retrieve frame: %w", err)
	}
	if frame == nil {
		return Value{}, nil
	}

	svc := g.colorService(ctx, n, st)

	if ctx.params.Mode == media.ModeOnline {
		frame, err = media.ConvertPixelFormat(frame, media.FormatRGBA32F)
		if err != nil {
			return Value{}, err
		}
		if err := svc.ConvertFrame(frame); err != nil {
			return Value{}, fmt.Errorf("node: color transform: %w", err)
		}
	}

	if st.internal != nil && !st.internal.Matches(frame.Width(), frame.Height(), frame.Format()) {
		st.internal.Destroy()
	}
	if st.internal == nil {
		st.internal = gpu.NewTexture(ctx.adapter)
	}
	if !st.internal.IsCreated() {
		if err := st.internal.Create(frame.Width(), frame.Height(), frame.Format(), frame.Data()); err != nil {
			return Value{}, err
		}
	} else if err := st.internal.Upload(frame.Data()); err != nil {
		return Value{}, err
	}

	var pipeSvc *colorspace.Service
	if ctx.params.Mode == media.ModeOffline {
		pipeSvc = svc
	}
	pipe, err := ctx.pipeline(pipeSvc, ctx.params.Mode)
	if err != nil {
		return Value{}, fmt.Errorf("node: blit pipeline: %w", err)
	}

	out, err := ctx.newPassTexture()
	if err != nil {
		return Value{}, err
	}
	if err := ctx.adapter.Blit(gpu.BlitParams{
		Pipeline:  pipe,
		Source:    st.internal.ID(),
		Dest:      out.ID(),
		Transform: gpu.Identity(),
		Opacity:   gpu.FullOpacity,
	}); err != nil {
		out.Destroy()
		return Value{}, err
	}
	return TextureValue(out), nil
}

// colorService returns the node's cached color service, rebuilding it when
// the colorspace input changed.
func (g *Graph) colorService(ctx *RenderContext, n *Node, st *nodeState) *colorspace.Service {
	space := "srgb"
	if p := n.Param(InputColorSpace); p != nil && p.Literal.Type() == TypeString {
		if s := p.Literal.String(); s != "" {
			space = s
		}
	}
	if st.color == nil || st.colorSpace != space {
		st.color = colorspace.NewService(space, colorspace.RoleSceneLinear)
		st.colorSpace = space
	}
	return st.color
}

// evalBlend composites the blend input over the base input by factor.
// Factor zero returns the base untouched without evaluating the overlay.
// When either side is absent the other passes through.
func (g *Graph) evalBlend(ctx *RenderContext, n *Node, t rational.Rational) (Value, error) {
	factorV, err := g.input(ctx, n, InputFactor, t)
	if err != nil {
		return Value{}, err
	}
	factor := factorV.Float()

	base, err := g.input(ctx, n, InputBase, t)
	if err != nil {
		return Value{}, err
	}
	if factor == 0 {
		return base, nil
	}

	overlay, err := g.input(ctx, n, InputBlend, t)
	if err != nil {
		return Value{}, err
	}
	if base.IsAbsent() {
		return overlay, nil
	}
	if overlay.IsAbsent() {
		return base, nil
	}

	pipe, err := ctx.pipeline(nil, ctx.params.Mode)
	if err != nil {
		return Value{}, err
	}
	out, err := ctx.newPassTexture()
	if err != nil {
		return Value{}, err
	}
	for _, draw := range []gpu.BlitParams{
		{Pipeline: pipe, Source: base.Texture().ID(), Dest: out.ID(), Transform: gpu.Identity(), Opacity: gpu.FullOpacity},
		{Pipeline: pipe, Source: overlay.Texture().ID(), Dest: out.ID(), Transform: gpu.Identity(), Opacity: float32(factor)},
	} {
		if err := ctx.adapter.Blit(draw); err != nil {
			out.Destroy()
			return Value{}, err
		}
	}
	return TextureValue(out), nil
}

// evalTransform draws the input texture through the matrix input.
func (g *Graph) evalTransform(ctx *RenderContext, n *Node, t rational.Rational) (Value, error) {
	in, err := g.input(ctx, n, InputTexture, t)
	if err != nil || in.IsAbsent() {
		return Value{}, err
	}
	mv, err := g.input(ctx, n, InputMatrix, t)
	if err != nil {
		return Value{}, err
	}

	pipe, err := ctx.pipeline(nil, ctx.params.Mode)
	if err != nil {
		return Value{}, err
	}
	out, err := ctx.newPassTexture()
	if err != nil {
		return Value{}, err
	}
	if err := ctx.adapter.Blit(gpu.BlitParams{
		Pipeline:  pipe,
		Source:    in.Texture().ID(),
		Dest:      out.ID(),
		Transform: mv.Matrix(),
		Opacity:   gpu.FullOpacity,
	}); err != nil {
		out.Destroy()
		return Value{}, err
	}
	return TextureValue(out), nil
}

// evalSpeed evaluates its input at a remapped time: upstream sees
// t * speed, so a speed of 2/1 plays the source twice as fast.
func (g *Graph) evalSpeed(ctx *RenderContext, n *Node, t rational.Rational) (Value, error) {
	speedV, err := g.input(ctx, n, InputSpeed, t)
	if err != nil {
		return Value{}, err
	}
	speed := speedV.Rational()
	if speedV.IsAbsent() || speed.IsNaN() {
		speed = rational.FromInt(1)
	}
	return g.input(ctx, n, InputTexture, t.Mul(speed))
}

// firstStream returns the footage's first stream of the wanted type, nil
// when it has none.
func firstStream(f *footage.Footage, typ footage.StreamType) *footage.Stream {
	for i := 0; i < f.StreamCount(); i++ {
		if s := f.Stream(i); s != nil && s.Type() == typ {
			return s
		}
	}
	return nil
}
