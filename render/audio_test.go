package render

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/marlinedit/marlin/decoder"
	"github.com/marlinedit/marlin/footage"
	"github.com/marlinedit/marlin/media"
	"github.com/marlinedit/marlin/node"
	"github.com/marlinedit/marlin/rational"
)

func audioParams() media.AudioParams {
	return media.AudioParams{SampleRate: 48000, Channels: 2, Format: media.SampleFormatS16}
}

func toneFootage() *footage.Footage {
	f := footage.New("tone-1", "Tone", decoder.ToneID)
	f.AddAudioStream(48000, 2, rational.FromInt(10), "en")
	return f
}

func testAudioBackend(t *testing.T, opts ...Option) (*AudioBackend, *node.Graph) {
	t.Helper()
	g := node.NewGraph()
	m := g.AddNode(node.KindMedia, "tone")
	if err := g.SetLiteral(m, node.InputFootage, node.FootageValue(toneFootage())); err != nil {
		t.Fatal(err)
	}
	viewer := g.AddNode(node.KindViewer, "viewer")
	if err := g.Connect(m, viewer, node.InputTexture); err != nil {
		t.Fatal(err)
	}

	b, err := NewAudioBackend(g, audioParams(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	b.ViewerNodeChanged(viewer)
	t.Cleanup(b.Close)
	return b, g
}

func TestRenderRangeProducesTone(t *testing.T) {
	b, _ := testAudioBackend(t)

	rng := rational.NewTimeRange(rational.Rational{}, rational.FromInt(1))
	buf, err := b.RenderRange(context.Background(), rng)
	if err != nil {
		t.Fatalf("RenderRange: %v", err)
	}
	if want := audioParams().TimeToBytes(rational.FromInt(1)); int64(len(buf.Data())) != want {
		t.Errorf("buffer = %d bytes, want %d", len(buf.Data()), want)
	}
	if buf.IsSilent() {
		t.Error("tone footage should produce audible samples")
	}
}

func TestRenderRangeCachesChunks(t *testing.T) {
	b, _ := testAudioBackend(t)
	ctx := context.Background()

	if _, err := b.RenderRange(ctx, rational.NewTimeRange(rational.Rational{}, rational.FromInt(2))); err != nil {
		t.Fatal(err)
	}
	if b.chunks.Len() != 2 {
		t.Fatalf("chunk cache len = %d, want 2", b.chunks.Len())
	}

	// [1,3) reuses chunk 1 and renders chunk 2.
	if _, err := b.RenderRange(ctx, rational.NewTimeRange(rational.FromInt(1), rational.FromInt(3))); err != nil {
		t.Fatal(err)
	}
	if b.chunks.Len() != 3 {
		t.Errorf("chunk cache len = %d, want 3", b.chunks.Len())
	}
	if stats := b.CacheStats(); stats.Hits == 0 {
		t.Errorf("stats = %+v, want a chunk hit", stats)
	}
}

func TestRenderRangeUnalignedAssembly(t *testing.T) {
	b, _ := testAudioBackend(t)
	ctx := context.Background()
	params := audioParams()

	full, err := b.RenderRange(ctx, rational.NewTimeRange(rational.Rational{}, rational.FromInt(2)))
	if err != nil {
		t.Fatal(err)
	}
	part, err := b.RenderRange(ctx, rational.NewTimeRange(rational.New(1, 2), rational.New(3, 2)))
	if err != nil {
		t.Fatal(err)
	}

	lo := params.TimeToBytes(rational.New(1, 2))
	hi := params.TimeToBytes(rational.New(3, 2))
	if !bytes.Equal(part.Data(), full.Data()[lo:hi]) {
		t.Error("unaligned request must splice the same bytes as the aligned render")
	}
}

func TestAudioSetParametersWhileRenderingFails(t *testing.T) {
	b, _ := testAudioBackend(t)

	b.beginRender()
	if err := b.SetParameters(audioParams()); !errors.Is(err, ErrRendering) {
		t.Errorf("SetParameters while rendering = %v, want ErrRendering", err)
	}
	b.endRender()

	p := audioParams()
	p.SampleRate = 44100
	if err := b.SetParameters(p); err != nil {
		t.Fatal(err)
	}
	if got := b.Params().SampleRate; got != 44100 {
		t.Errorf("SampleRate = %d, want 44100", got)
	}
}

func TestAudioInvalidateCacheEvictsOverlappingChunks(t *testing.T) {
	b, _ := testAudioBackend(t)

	if _, err := b.RenderRange(context.Background(), rational.NewTimeRange(rational.Rational{}, rational.FromInt(3))); err != nil {
		t.Fatal(err)
	}
	if b.chunks.Len() != 3 {
		t.Fatalf("chunk cache len = %d, want 3", b.chunks.Len())
	}

	b.InvalidateCache(rational.FromInt(1), rational.FromInt(2))
	if b.chunks.Len() != 2 {
		t.Errorf("chunk cache len = %d, want only chunk 1 evicted", b.chunks.Len())
	}
}

func TestAudioRenderRangeNoViewer(t *testing.T) {
	g := node.NewGraph()
	b, err := NewAudioBackend(g, audioParams())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	rng := rational.NewTimeRange(rational.Rational{}, rational.FromInt(1))
	if _, err := b.RenderRange(context.Background(), rng); !errors.Is(err, ErrNoViewer) {
		t.Errorf("RenderRange without viewer = %v, want ErrNoViewer", err)
	}
}

func TestAudioUnconnectedViewerIsSilent(t *testing.T) {
	g := node.NewGraph()
	viewer := g.AddNode(node.KindViewer, "viewer")
	b, err := NewAudioBackend(g, audioParams())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	b.ViewerNodeChanged(viewer)

	rng := rational.NewTimeRange(rational.Rational{}, rational.FromInt(1))
	buf, err := b.RenderRange(context.Background(), rng)
	if err != nil {
		t.Fatal(err)
	}
	if !buf.IsSilent() {
		t.Error("unconnected viewer must render silence")
	}
}

func TestRenderRangeThroughFractionalSpeed(t *testing.T) {
	g := node.NewGraph()
	m := g.AddNode(node.KindMedia, "tone")
	if err := g.SetLiteral(m, node.InputFootage, node.FootageValue(toneFootage())); err != nil {
		t.Fatal(err)
	}
	sp := g.AddNode(node.KindSpeed, "half")
	if err := g.Connect(m, sp, node.InputTexture); err != nil {
		t.Fatal(err)
	}
	if err := g.SetLiteral(sp, node.InputSpeed, node.RationalValue(rational.New(1, 2))); err != nil {
		t.Fatal(err)
	}
	viewer := g.AddNode(node.KindViewer, "viewer")
	if err := g.Connect(sp, viewer, node.InputTexture); err != nil {
		t.Fatal(err)
	}

	b, err := NewAudioBackend(g, audioParams())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	b.ViewerNodeChanged(viewer)

	rng := rational.NewTimeRange(rational.Rational{}, rational.FromInt(1))
	buf, err := b.RenderRange(context.Background(), rng)
	if err != nil {
		t.Fatalf("RenderRange: %v", err)
	}
	if want := audioParams().TimeToBytes(rational.FromInt(1)); int64(len(buf.Data())) != want {
		t.Errorf("buffer = %d bytes, want %d", len(buf.Data()), want)
	}
	if buf.IsSilent() {
		t.Error("retimed tone should be audible")
	}
}

func TestAudioParallelWorkersAgree(t *testing.T) {
	serial, _ := testAudioBackend(t, WithWorkers(1))
	parallel, _ := testAudioBackend(t, WithWorkers(4))
	ctx := context.Background()

	rng := rational.NewTimeRange(rational.Rational{}, rational.FromInt(6))
	a, err := serial.RenderRange(ctx, rng)
	if err != nil {
		t.Fatal(err)
	}
	c, err := parallel.RenderRange(ctx, rng)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Data(), c.Data()) {
		t.Error("worker count must not change output bytes")
	}
}
