package node

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/marlinedit/marlin/decoder"
	"github.com/marlinedit/marlin/footage"
	"github.com/marlinedit/marlin/media"
	"github.com/marlinedit/marlin/rational"
)

// Samples resolves the audio covering rng at a node's output. Audio flows
// through the same edges as video: blend mixes, speed remaps the range,
// transform and viewer pass through. Absent audio returns (nil, nil) and
// the backend renders silence.
func (g *Graph) Samples(ctx *RenderContext, id ID, rng rational.TimeRange, params media.AudioParams) (*media.SampleBuffer, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.samples(ctx, id, rng, params)
}

func (g *Graph) samples(ctx *RenderContext, id ID, rng rational.TimeRange, params media.AudioParams) (*media.SampleBuffer, error) {
	n := g.nodes[id]
	if n == nil {
		return nil, nil
	}
	switch n.kind {
	case KindMedia:
		return g.mediaSamples(ctx, n, rng, params)
	case KindBlend:
		return g.blendSamples(ctx, n, rng, params)
	case KindSpeed:
		speed := rational.FromInt(1)
		if p := n.Param(InputSpeed); p != nil && p.Literal.Type() == TypeRational && !p.Literal.Rational().IsNaN() {
			speed = p.Literal.Rational()
		}
		inner := rational.NewTimeRange(rng.In().Mul(speed), rng.Out().Mul(speed))
		src, err := g.connSamples(ctx, n, InputTexture, inner, params)
		if err != nil || src == nil {
			return nil, err
		}
		return retimeSamples(src, rng, speed, params)
	case KindTransform, KindViewer:
		return g.connSamples(ctx, n, InputTexture, rng, params)
	default:
		return nil, nil
	}
}

// connSamples follows a connection for audio. Literals never carry audio,
// so an unconnected input is silent.
func (g *Graph) connSamples(ctx *RenderContext, n *Node, input string, rng rational.TimeRange, params media.AudioParams) (*media.SampleBuffer, error) {
	p := n.Param(input)
	if p == nil || !p.IsConnected() {
		return nil, nil
	}
	return g.samples(ctx, p.conn, rng, params)
}

func (g *Graph) mediaSamples(ctx *RenderContext, n *Node, rng rational.TimeRange, params media.AudioParams) (*media.SampleBuffer, error) {
	fv, err := g.input(ctx, n, InputFootage, rng.In())
	if err != nil || fv.IsAbsent() {
		return nil, err
	}
	ftg := fv.Footage()
	stream := firstStream(ftg, footage.StreamAudio)
	if stream == nil {
		return nil, nil
	}

	st := ctx.state(n.id)
	if st.audioDec == nil || st.audioDecoderID != ftg.DecoderID() || st.audioFootageID != ftg.ID() {
		if st.audioDec != nil {
			st.audioDec.Close()
		}
		st.audioDec = decoder.CreateFromID(ftg.DecoderID())
		st.audioDecoderID = ftg.DecoderID()
		st.audioFootageID = ftg.ID()
		if st.audioDec == nil {
			return nil, nil
		}
		if err := st.audioDec.SetStream(stream); err != nil {
			return nil, fmt.Errorf("node: bind audio stream: %w", err)
		}
	}
	return st.audioDec.RetrieveAudio(rng, params)
}

// blendSamples mixes the blend input into the base input scaled by factor.
func (g *Graph) blendSamples(ctx *RenderContext, n *Node, rng rational.TimeRange, params media.AudioParams) (*media.SampleBuffer, error) {
	factor := 1.0
	if p := n.Param(InputFactor); p != nil && p.Literal.Type() == TypeFloat {
		factor = p.Literal.Float()
	}

	base, err := g.connSamples(ctx, n, InputBase, rng, params)
	if err != nil {
		return nil, err
	}
	if factor == 0 {
		return base, nil
	}
	overlay, err := g.connSamples(ctx, n, InputBlend, rng, params)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return scaleSamples(overlay, factor), nil
	}
	if overlay == nil {
		return base, nil
	}

	out, err := media.NewSampleBuffer(params, rng)
	if err != nil {
		return nil, err
	}
	mixInto(out, base, 1)
	mixInto(out, overlay, factor)
	return out, nil
}

// retimeSamples maps a buffer rendered for the speed-adjusted source range
// back onto the requested output range, so every node returns a buffer
// covering the range it was asked for. Nearest-sample mapping; pitch
// follows rate, as with tape-style retiming.
func retimeSamples(src *media.SampleBuffer, rng rational.TimeRange, speed rational.Rational, params media.AudioParams) (*media.SampleBuffer, error) {
	if speed.Equal(rational.FromInt(1)) {
		return src, nil
	}
	out, err := media.NewSampleBuffer(params, rng)
	if err != nil {
		return nil, err
	}
	frame := params.Channels * params.Format.BytesPerSample()
	if frame <= 0 {
		return out, nil
	}
	od, sd := out.Data(), src.Data()
	for k := 0; k < len(od)/frame; k++ {
		// Output sample k sits at rng.In + k/rate; the source sample for it
		// is k*speed frames into the remapped buffer.
		j := rational.FromInt(int64(k)).Mul(speed).FlooredDiv(rational.FromInt(1))
		off := int(j) * frame
		if off < 0 || off+frame > len(sd) {
			continue
		}
		copy(od[k*frame:(k+1)*frame], sd[off:off+frame])
	}
	return out, nil
}

func scaleSamples(b *media.SampleBuffer, factor float64) *media.SampleBuffer {
	if b == nil || factor == 1 {
		return b
	}
	out, err := media.NewSampleBuffer(b.Params(), b.Range())
	if err != nil {
		return b
	}
	mixInto(out, b, factor)
	return out
}

// mixInto adds src scaled by gain into dst sample by sample. Integer
// formats clip at full scale instead of wrapping.
func mixInto(dst, src *media.SampleBuffer, gain float64) {
	dd, sd := dst.Data(), src.Data()
	n := len(dd)
	if len(sd) < n {
		n = len(sd)
	}
	switch dst.Params().Format {
	case media.SampleFormatS16:
		for off := 0; off+1 < n; off += 2 {
			sum := float64(int16(binary.LittleEndian.Uint16(dd[off:]))) +
				gain*float64(int16(binary.LittleEndian.Uint16(sd[off:])))
			binary.LittleEndian.PutUint16(dd[off:], uint16(clipS16(sum)))
		}
	case media.SampleFormatF32:
		for off := 0; off+3 < n; off += 4 {
			sum := math.Float32frombits(binary.LittleEndian.Uint32(dd[off:])) +
				float32(gain)*math.Float32frombits(binary.LittleEndian.Uint32(sd[off:]))
			binary.LittleEndian.PutUint32(dd[off:], math.Float32bits(sum))
		}
	}
}

func clipS16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
