package render

import (
	"context"
	"fmt"
	"hash"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	marlin "github.com/marlinedit/marlin"
	"github.com/marlinedit/marlin/cache"
	"github.com/marlinedit/marlin/gpu"
	"github.com/marlinedit/marlin/media"
	"github.com/marlinedit/marlin/node"
	"github.com/marlinedit/marlin/rational"
)

// frameEntry is one cached video output: the rendered frame and the time
// range it covers, kept so range invalidation can find it.
type frameEntry struct {
	frame *media.Frame
	rng   rational.TimeRange
}

// VideoBackend renders frames from a node graph through a GPU adapter and
// caches them by content hash.
//
// All GPU work runs under one lock: the render context owns device-side
// state and is not safe for concurrent passes. Cache reads for different
// times stay concurrent; computation of a single key is shared among
// concurrent requesters instead of duplicated.
type VideoBackend struct {
	core

	graph *node.Graph
	rctx  *node.RenderContext

	// gpuMu serializes passes on the shared render context.
	gpuMu  sync.Mutex
	params media.VideoParams

	frames *cache.ShardedCache[string, frameEntry]
	flight singleflight.Group
}

// NewVideoBackend binds a graph and adapter to working video parameters.
// Bind an output node with ViewerNodeChanged before rendering.
func NewVideoBackend(g *node.Graph, adapter gpu.Adapter, params media.VideoParams, opts ...Option) (*VideoBackend, error) {
	if !params.IsValid() {
		return nil, fmt.Errorf("render: invalid video params %+v", params)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	b := &VideoBackend{
		graph:  g,
		rctx:   node.NewRenderContext(adapter, params),
		params: params,
		frames: cache.NewSharded[string, frameEntry](o.cacheCapacity, cache.StringHasher),
	}
	b.core.evict = b.evictRange
	b.core.clear = b.frames.Clear
	return b, nil
}

// Params returns the current working parameters.
func (b *VideoBackend) Params() media.VideoParams {
	b.gpuMu.Lock()
	defer b.gpuMu.Unlock()
	return b.params
}

// SetParameters replaces the working buffer layout and drops the whole
// cache: output bytes under different parameters are not comparable.
// Returns ErrRendering while renders are in flight.
func (b *VideoBackend) SetParameters(params media.VideoParams) error {
	if !params.IsValid() {
		return fmt.Errorf("render: invalid video params %+v", params)
	}
	// The pass lock is held across the contract check and the mutation so a
	// render beginning in between blocks until the new parameters are fully
	// applied instead of observing them change mid-request.
	b.gpuMu.Lock()
	b.mu.Lock()
	if b.active > 0 {
		b.mu.Unlock()
		b.gpuMu.Unlock()
		return ErrRendering
	}
	b.mu.Unlock()
	b.params = params
	b.rctx.SetParams(params)
	b.gpuMu.Unlock()

	b.invalidateAll()
	return nil
}

// RenderFrame returns the composited frame containing time t.
//
// A cache hit returns the stored frame. Concurrent requests for the same
// frame share one computation. On render failure the frame's cache entry is
// dropped so a retry recomputes it, and the returned frame is the defined
// black fallback alongside the error.
func (b *VideoBackend) RenderFrame(ctx context.Context, t rational.Rational) (*media.Frame, error) {
	if b.Viewer() == node.InvalidNode {
		return nil, ErrNoViewer
	}
	params := b.Params()
	idx := params.FrameIndex(t)
	key := fmt.Sprintf("%x:%d", b.contentDigest(b.graph, b.hashParams), idx)

	if e, ok := b.frames.Get(key); ok {
		return e.frame, nil
	}

	v, err, _ := b.flight.Do(key, func() (any, error) {
		return b.renderFrame(ctx, key, t, params.FrameRange(t))
	})
	frame, _ := v.(*media.Frame)
	return frame, err
}

// renderFrame is the uncached path. It runs one graph evaluation as a GPU
// pass, reads the result back, and caches it. Cancellation or failure
// abandons the pass so partially-created textures are destroyed.
func (b *VideoBackend) renderFrame(ctx context.Context, key string, t rational.Rational, rng rational.TimeRange) (*media.Frame, error) {
	b.beginRender()
	defer b.endRender()

	b.gpuMu.Lock()
	defer b.gpuMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.rctx.BeginPass()
	v, err := b.graph.Value(b.rctx, b.Viewer(), t)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		b.rctx.AbandonPass()
		b.frames.Delete(key)
		marlin.Logger().Warn("render: frame failed, black fallback",
			slog.String("time", t.String()),
			slog.Any("error", err))
		fallback, ferr := media.NewFrame(b.params.Width, b.params.Height, b.params.Format)
		if ferr != nil {
			return nil, err
		}
		return fallback, err
	}

	frame, err := b.readback(v)
	b.rctx.EndPass()
	b.rctx.DestroyPassTextures()
	if err != nil {
		b.frames.Delete(key)
		return nil, err
	}

	b.frames.Set(key, frameEntry{frame: frame, rng: rng})
	return frame, nil
}

// readback copies the evaluated texture into a CPU frame. An absent value
// is a deterministic transparent frame, cached like any other output.
func (b *VideoBackend) readback(v node.Value) (*media.Frame, error) {
	frame, err := media.NewFrame(b.params.Width, b.params.Height, b.params.Format)
	if err != nil {
		return nil, err
	}
	tex := v.Texture()
	if tex == nil {
		return frame, nil
	}
	data, err := tex.Read()
	if err != nil {
		return nil, fmt.Errorf("render: readback: %w", err)
	}
	copy(frame.Data(), data)
	return frame, nil
}

// RenderSpan renders every frame whose range intersects [rng.In, rng.Out),
// in order. Frames run one at a time: the GPU context serializes passes
// anyway, and ordering keeps decoder access sequential.
func (b *VideoBackend) RenderSpan(ctx context.Context, rng rational.TimeRange) ([]*media.Frame, error) {
	if b.Viewer() == node.InvalidNode {
		return nil, ErrNoViewer
	}
	params := b.Params()
	first := params.FrameIndex(rng.In())
	last := params.FrameIndex(rng.Out())
	if params.FrameRange(rng.Out()).In().Equal(rng.Out()) {
		// Out is exclusive; a range ending exactly on a frame boundary does
		// not include that frame.
		last--
	}
	if last < first {
		return nil, nil
	}

	frames := make([]*media.Frame, last-first+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(1)
	for i := first; i <= last; i++ {
		g.Go(func() error {
			f, err := b.RenderFrame(gctx, params.Timebase.Mul(rational.FromInt(i)))
			if err != nil {
				return err
			}
			frames[i-first] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}

// CacheStats returns output cache statistics.
func (b *VideoBackend) CacheStats() cache.Stats {
	return b.frames.Stats()
}

// Close releases the render context and drops the cache.
func (b *VideoBackend) Close() {
	b.gpuMu.Lock()
	b.rctx.Close()
	b.gpuMu.Unlock()
	b.frames.Clear()
}

func (b *VideoBackend) evictRange(rng rational.TimeRange) {
	removed := b.frames.DeleteFunc(func(_ string, e frameEntry) bool {
		return e.rng.Overlaps(rng)
	})
	if removed > 0 {
		marlin.Logger().Debug("render: invalidated video cache entries",
			slog.String("range", rng.String()),
			slog.Int("removed", removed))
	}
}

func (b *VideoBackend) hashParams(h hash.Hash) {
	p := b.Params()
	hashInt64(h, int64(p.Width))
	hashInt64(h, int64(p.Height))
	hashInt64(h, int64(p.Format))
	hashInt64(h, int64(p.Mode))
	hashRational(h, p.Timebase)
}
