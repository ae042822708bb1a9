package gpu

import (
	"fmt"
	"sync"
)

// StubAdapter implements Adapter on the CPU. It mirrors the HAL adapter's
// semantics closely enough for the node graph and render backend to run
// without a device: textures are byte slices, blits are affine samples with
// premultiplied source-over compositing, and pipelines apply their color
// transform per pixel.
//
// Rendering without a GPU also serves headless exports on machines where
// device creation fails.
type StubAdapter struct {
	mu        sync.Mutex
	nextID    uint64
	textures  map[TextureID]*stubTexture
	pipelines map[PipelineID]*stubPipeline

	// MaxTextureBytes, when non-zero, fails allocations above the limit so
	// tests can exercise out-of-memory handling.
	MaxTextureBytes int
}

type stubTexture struct {
	desc TextureDesc
	data []byte
}

type stubPipeline struct {
	desc      PipelineDesc
	linearize func(float32) float32
}

// NewStubAdapter returns an empty CPU adapter.
func NewStubAdapter() *StubAdapter {
	return &StubAdapter{
		textures:  make(map[TextureID]*stubTexture),
		pipelines: make(map[PipelineID]*stubPipeline),
	}
}

// Name identifies the stub in logs.
func (a *StubAdapter) Name() string { return "cpu-stub" }

// CreateTexture allocates a zeroed byte-slice texture.
func (a *StubAdapter) CreateTexture(desc TextureDesc) (TextureID, error) {
	if desc.Width <= 0 || desc.Height <= 0 || !desc.Format.IsValid() {
		return InvalidID, fmt.Errorf("gpu: invalid texture descriptor %dx%d %s", desc.Width, desc.Height, desc.Format)
	}
	size := desc.ByteSize()
	if a.MaxTextureBytes > 0 && size > a.MaxTextureBytes {
		return InvalidID, fmt.Errorf("%w: %d bytes exceeds limit", ErrOutOfMemory, size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	id := TextureID(a.nextID)
	a.textures[id] = &stubTexture{desc: desc, data: make([]byte, size)}
	return id, nil
}

// UploadTexture copies data into the texture storage.
func (a *StubAdapter) UploadTexture(id TextureID, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.textures[id]
	if !ok {
		return ErrUnknownTexture
	}
	if len(data) != len(t.data) {
		return fmt.Errorf("%w: have %d bytes, texture needs %d", ErrSizeMismatch, len(data), len(t.data))
	}
	copy(t.data, data)
	return nil
}

// ReadTexture returns a copy of the texture storage.
func (a *StubAdapter) ReadTexture(id TextureID) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.textures[id]
	if !ok {
		return nil, ErrUnknownTexture
	}
	out := make([]byte, len(t.data))
	copy(out, t.data)
	return out, nil
}

// DestroyTexture drops the texture.
func (a *StubAdapter) DestroyTexture(id TextureID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.textures, id)
}

// CreatePipeline builds a CPU rendition of the blit pipeline. The WGSL
// color transform is matched to its CPU curve by source text.
func (a *StubAdapter) CreatePipeline(desc PipelineDesc) (PipelineID, error) {
	if !desc.Format.IsValid() {
		return InvalidID, fmt.Errorf("gpu: invalid pipeline format %s", desc.Format)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	id := PipelineID(a.nextID)
	a.pipelines[id] = &stubPipeline{desc: desc, linearize: stubCurve(desc.ColorTransform)}
	return id, nil
}

// DestroyPipeline drops the pipeline.
func (a *StubAdapter) DestroyPipeline(id PipelineID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pipelines, id)
}

// Clear zeroes the texture storage.
func (a *StubAdapter) Clear(id TextureID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.textures[id]
	if !ok {
		return ErrUnknownTexture
	}
	clear(t.data)
	return nil
}

// Blit samples the source through the inverse of the transform for every
// destination pixel, applies the pipeline color transform, and composites
// source-over onto the existing destination contents.
func (a *StubAdapter) Blit(params BlitParams) error {
	a.mu.Lock()
	p, pipeOK := a.pipelines[params.Pipeline]
	src, srcOK := a.textures[params.Source]
	dst, dstOK := a.textures[params.Dest]
	a.mu.Unlock()
	if !pipeOK {
		return ErrUnknownPipeline
	}
	if !srcOK || !dstOK {
		return ErrUnknownTexture
	}

	inv, ok := params.Transform.invertAffine2D()
	if !ok {
		return fmt.Errorf("gpu: singular blit transform")
	}

	dw, dh := dst.desc.Width, dst.desc.Height
	sw, sh := src.desc.Width, src.desc.Height
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			// Destination pixel center in NDC, then back through the
			// transform to the quad's unit space.
			ndcX := (float32(x)+0.5)/float32(dw)*2 - 1
			ndcY := 1 - (float32(y)+0.5)/float32(dh)*2
			qx, qy := inv.apply2D(ndcX, ndcY)
			if qx < -1 || qx > 1 || qy < -1 || qy > 1 {
				continue
			}
			u := qx*0.5 + 0.5
			v := 0.5 - qy*0.5

			sx := int(u * float32(sw))
			sy := int(v * float32(sh))
			if sx >= sw {
				sx = sw - 1
			}
			if sy >= sh {
				sy = sh - 1
			}

			r, g, b, alpha := readPixel(src.desc.Format, src.data, (sy*sw+sx)*src.desc.Format.BytesPerPixel())
			r = p.linearize(r) * params.Opacity
			g = p.linearize(g) * params.Opacity
			b = p.linearize(b) * params.Opacity
			alpha *= params.Opacity

			doff := (y*dw + x) * dst.desc.Format.BytesPerPixel()
			dr, dg, db, da := readPixel(dst.desc.Format, dst.data, doff)
			writePixel(dst.desc.Format, dst.data, doff,
				r+dr*(1-alpha),
				g+dg*(1-alpha),
				b+db*(1-alpha),
				alpha+da*(1-alpha))
		}
	}
	return nil
}

// Close drops all state.
func (a *StubAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.textures = make(map[TextureID]*stubTexture)
	a.pipelines = make(map[PipelineID]*stubPipeline)
}

// LiveTextures reports how many textures are currently allocated. Tests use
// it to assert resource cleanup.
func (a *StubAdapter) LiveTextures() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.textures)
}

// LivePipelines reports how many pipelines are currently allocated.
func (a *StubAdapter) LivePipelines() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pipelines)
}

// stubCurve matches a WGSL color transform to the CPU curve the shader
// implements. Unknown snippets pass through unchanged; the stub favors
// predictability over parsing WGSL.
func stubCurve(shader string) func(float32) float32 {
	identity := func(v float32) float32 { return v }
	if shader == "" {
		return identity
	}
	switch {
	case containsAll(shader, "12.92", "2.4"):
		return func(v float32) float32 { return linearizeSRGB(v) }
	case containsAll(shader, "4.5", "0.45"):
		return func(v float32) float32 { return linearizeRec709(v) }
	default:
		return identity
	}
}
