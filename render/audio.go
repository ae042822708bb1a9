package render

import (
	"context"
	"fmt"
	"hash"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	marlin "github.com/marlinedit/marlin"
	"github.com/marlinedit/marlin/cache"
	"github.com/marlinedit/marlin/media"
	"github.com/marlinedit/marlin/node"
	"github.com/marlinedit/marlin/rational"
)

// audioChunk is the cache granule of the audio backend: whole seconds of
// PCM. Requests are assembled from chunk overlaps, so scrubbing and looped
// playback hit the same entries regardless of request alignment.
var audioChunk = rational.FromInt(1)

// audioEntry is one cached chunk: the rendered buffer and the whole-second
// range it covers.
type audioEntry struct {
	buf *media.SampleBuffer
	rng rational.TimeRange
}

// AudioBackend renders interleaved PCM from a node graph and caches it by
// content hash in one-second chunks.
//
// Audio evaluation never touches the GPU, so chunks render in parallel on a
// small fixed pool of worker contexts. Each context carries its own decoder
// state; a chunk borrows one for the duration of its evaluation.
type AudioBackend struct {
	core

	graph  *node.Graph
	params media.AudioParams

	workers int
	ctxPool chan *node.RenderContext

	chunks *cache.ShardedCache[string, audioEntry]
	flight singleflight.Group
}

// NewAudioBackend binds a graph to working audio parameters. Bind an output
// node with ViewerNodeChanged before rendering.
func NewAudioBackend(g *node.Graph, params media.AudioParams, opts ...Option) (*AudioBackend, error) {
	if !params.IsValid() {
		return nil, fmt.Errorf("render: invalid audio params %+v", params)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	b := &AudioBackend{
		graph:   g,
		params:  params,
		workers: o.workers,
		ctxPool: make(chan *node.RenderContext, o.workers),
		chunks:  cache.NewSharded[string, audioEntry](o.cacheCapacity, cache.StringHasher),
	}
	for range o.workers {
		// Audio evaluation reads samples only; the contexts carry decoder
		// state and never allocate GPU resources.
		b.ctxPool <- node.NewRenderContext(nil, media.VideoParams{})
	}
	b.core.evict = b.evictRange
	b.core.clear = b.chunks.Clear
	return b, nil
}

// Params returns the working audio parameters.
func (b *AudioBackend) Params() media.AudioParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.params
}

// SetParameters replaces the working buffer layout and drops the whole
// cache. Returns ErrRendering while renders are in flight.
func (b *AudioBackend) SetParameters(params media.AudioParams) error {
	if !params.IsValid() {
		return fmt.Errorf("render: invalid audio params %+v", params)
	}
	b.mu.Lock()
	if b.active > 0 {
		b.mu.Unlock()
		return ErrRendering
	}
	b.params = params
	b.mu.Unlock()

	b.invalidateAll()
	return nil
}

// RenderRange returns interleaved PCM covering [rng.In, rng.Out). Chunks
// render in parallel; cached chunks are reused and concurrent requests for
// the same chunk share one computation. A failed chunk leaves silence in
// its region and the first failure is returned after the group drains.
func (b *AudioBackend) RenderRange(ctx context.Context, rng rational.TimeRange) (*media.SampleBuffer, error) {
	if b.Viewer() == node.InvalidNode {
		return nil, ErrNoViewer
	}
	params := b.Params()
	out, err := media.NewSampleBuffer(params, rng)
	if err != nil {
		return nil, err
	}
	if rng.IsEmpty() {
		return out, nil
	}

	digest := b.contentDigest(b.graph, b.hashParams)
	first := rng.In().FlooredDiv(audioChunk)
	last := rng.Out().FlooredDiv(audioChunk)
	if rational.FromInt(last).Mul(audioChunk).Equal(rng.Out()) {
		last--
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := first; i <= last; i++ {
		g.Go(func() error {
			chunkRange := rational.NewTimeRangeWithLength(
				rational.FromInt(i).Mul(audioChunk), audioChunk)
			key := fmt.Sprintf("%x:a%d", digest, i)
			buf, err := b.renderChunk(gctx, key, chunkRange)
			if err != nil {
				return err
			}
			b.copyChunk(out, buf, rng, chunkRange)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// renderChunk returns one whole-second chunk, from cache when possible. A
// nil buffer means the chunk is silent.
func (b *AudioBackend) renderChunk(ctx context.Context, key string, rng rational.TimeRange) (*media.SampleBuffer, error) {
	if e, ok := b.chunks.Get(key); ok {
		return e.buf, nil
	}

	v, err, _ := b.flight.Do(key, func() (any, error) {
		b.beginRender()
		defer b.endRender()

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rctx := <-b.ctxPool
		buf, err := b.graph.Samples(rctx, b.Viewer(), rng, b.Params())
		b.ctxPool <- rctx
		if err != nil {
			b.chunks.Delete(key)
			marlin.Logger().Warn("render: audio chunk failed, silence fallback",
				slog.String("range", rng.String()),
				slog.Any("error", err))
			return nil, err
		}

		b.chunks.Set(key, audioEntry{buf: buf, rng: rng})
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	buf, _ := v.(*media.SampleBuffer)
	return buf, nil
}

// copyChunk copies the overlap of a rendered chunk into the output buffer.
// Chunks cover disjoint regions of the output, so workers write without
// coordination.
func (b *AudioBackend) copyChunk(out, chunk *media.SampleBuffer, rng, chunkRange rational.TimeRange) {
	if chunk == nil {
		// Silent chunk; the output buffer is already zeroed.
		return
	}
	params := out.Params()
	lo := rational.Max(rng.In(), chunkRange.In())
	hi := rational.Min(rng.Out(), chunkRange.Out())
	if !lo.Less(hi) {
		return
	}
	n := params.TimeToBytes(hi.Sub(lo))
	src := params.TimeToBytes(lo.Sub(chunkRange.In()))
	dst := params.TimeToBytes(lo.Sub(rng.In()))
	// Decoders outside the built-in set may return buffers shorter than the
	// chunk; copy what exists and leave the rest silent.
	if avail := int64(len(chunk.Data())) - src; avail < n {
		n = avail
	}
	if avail := int64(len(out.Data())) - dst; avail < n {
		n = avail
	}
	if n <= 0 {
		return
	}
	copy(out.Data()[dst:dst+n], chunk.Data()[src:src+n])
}

// CacheStats returns output cache statistics.
func (b *AudioBackend) CacheStats() cache.Stats {
	return b.chunks.Stats()
}

// Close releases the worker contexts and drops the cache.
func (b *AudioBackend) Close() {
	for range b.workers {
		rctx := <-b.ctxPool
		rctx.Close()
	}
	b.chunks.Clear()
}

func (b *AudioBackend) evictRange(rng rational.TimeRange) {
	removed := b.chunks.DeleteFunc(func(_ string, e audioEntry) bool {
		return e.rng.Overlaps(rng)
	})
	if removed > 0 {
		marlin.Logger().Debug("render: invalidated audio cache entries",
			slog.String("range", rng.String()),
			slog.Int("removed", removed))
	}
}

func (b *AudioBackend) hashParams(h hash.Hash) {
	p := b.Params()
	hashInt64(h, int64(p.SampleRate))
	hashInt64(h, int64(p.Channels))
	hashInt64(h, int64(p.Format))
}
