// Package render owns the output caches and the "render me this time"
// entry points. A backend binds a node graph's viewer node to a set of
// buffer parameters, evaluates frames or sample ranges through the graph,
// and caches the results keyed by a content hash of everything upstream
// that can affect the output bytes.
//
// Two backends share the same skeleton: VideoBackend produces frames
// through a GPU adapter, AudioBackend produces interleaved PCM. Both run a
// minimal state machine (idle or rendering) that defers cache invalidation
// arriving mid-render and rejects parameter changes until the in-flight
// work drains.
package render

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"hash"
	"sync"

	"github.com/marlinedit/marlin/node"
	"github.com/marlinedit/marlin/rational"
)

// ErrRendering is returned by SetParameters while renders are in flight.
// Changing the buffer layout under an active render is a caller bug; the
// backend reports it instead of corrupting in-flight state.
var ErrRendering = errors.New("render: parameters cannot change while rendering")

// ErrNoViewer is returned by render requests before a viewer node is bound.
var ErrNoViewer = errors.New("render: no viewer node bound")

// State is the backend's render state.
type State uint8

const (
	// StateIdle means no render is in flight; parameter changes are legal.
	StateIdle State = iota

	// StateRendering means at least one render is in flight. Invalidation
	// is queued and parameter changes are rejected until the backend
	// returns to idle.
	StateRendering
)

// String returns a human-readable state name.
func (s State) String() string {
	if s == StateRendering {
		return "rendering"
	}
	return "idle"
}

// core is the state machine shared by the video and audio backends: the
// active-render count, the bound viewer node, and the invalidation queue.
// The owning backend supplies evict and clear callbacks that operate on its
// cache.
type core struct {
	mu      sync.Mutex
	active  int
	viewer  node.ID
	pending []rational.TimeRange
	flush   bool

	evict func(rational.TimeRange)
	clear func()
}

// State reports whether any render is in flight.
func (c *core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active > 0 {
		return StateRendering
	}
	return StateIdle
}

// Viewer returns the bound output node.
func (c *core) Viewer() node.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewer
}

func (c *core) beginRender() {
	c.mu.Lock()
	c.active++
	c.mu.Unlock()
}

// endRender applies invalidation that was queued while rendering. Queued
// ranges are merged into unions first so one invalidation batch costs one
// sweep per disjoint region.
func (c *core) endRender() {
	c.mu.Lock()
	c.active--
	if c.active > 0 {
		c.mu.Unlock()
		return
	}
	flush := c.flush
	ranges := rational.CoalesceRanges(c.pending)
	c.pending = nil
	c.flush = false
	c.mu.Unlock()

	if flush {
		c.clear()
		return
	}
	for _, r := range ranges {
		c.evict(r)
	}
}

// InvalidateCache marks [start, end) stale. While a render is in flight the
// range is queued and applied after the render completes, never mid-frame.
func (c *core) InvalidateCache(start, end rational.Rational) {
	rng := rational.NewTimeRange(start, end)
	if rng.IsEmpty() {
		return
	}
	c.mu.Lock()
	if c.active > 0 {
		c.pending = append(c.pending, rng)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.evict(rng)
}

// ViewerNodeChanged rebinds the backend to a new output node. The content
// hash space is tied to one output node's graph, so the whole cache goes.
func (c *core) ViewerNodeChanged(id node.ID) {
	c.mu.Lock()
	c.viewer = id
	if c.active > 0 {
		c.flush = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.clear()
}

// invalidateAll drops the whole cache, deferring while rendering.
func (c *core) invalidateAll() {
	c.mu.Lock()
	if c.active > 0 {
		c.flush = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.clear()
}

// contentDigest hashes everything that determines output bytes for the
// bound viewer: backend parameters (written by the caller via writeParams),
// the viewer identity, and the reachable graph state. State omitted here
// would cause stale cache reuse, so the policy over-includes when in doubt.
func (c *core) contentDigest(g *node.Graph, writeParams func(hash.Hash)) [sha256.Size]byte {
	c.mu.Lock()
	viewer := c.viewer
	c.mu.Unlock()

	h := sha256.New()
	writeParams(h)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(viewer))
	h.Write(buf[:])
	g.HashState(h, viewer)

	var d [sha256.Size]byte
	copy(d[:], h.Sum(nil))
	return d
}

func hashInt64(h hash.Hash, v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	h.Write(buf[:])
}

func hashRational(h hash.Hash, r rational.Rational) {
	hashInt64(h, r.Num())
	hashInt64(h, r.Den())
}
