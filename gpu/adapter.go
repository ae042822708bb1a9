// Package gpu manages GPU texture lifecycle and the blit pipelines the node
// graph draws through.
//
// The render core talks to the GPU through the narrow Adapter interface.
// HALAdapter implements it over gogpu/wgpu for real devices; StubAdapter
// implements the same semantics on the CPU for tests and headless use.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying a resource while a blit is in flight is undefined behavior
//   - IDs become invalid after destruction and must not be reused
//
// GPU calls have context affinity: all calls into one Adapter must come from
// the goroutine that owns its device context. The render backend funnels
// evaluation through a single GPU worker to guarantee this.
package gpu

import (
	"errors"

	"github.com/marlinedit/marlin/media"
)

// TextureID identifies a GPU texture owned by an Adapter.
type TextureID uint64

// PipelineID identifies a blit pipeline owned by an Adapter.
type PipelineID uint64

// InvalidID is the zero ID, never assigned to a live resource.
const InvalidID = 0

// Adapter errors shared by implementations.
var (
	// ErrUnknownTexture is returned when an ID does not name a live texture.
	ErrUnknownTexture = errors.New("gpu: unknown texture")

	// ErrUnknownPipeline is returned when an ID does not name a live pipeline.
	ErrUnknownPipeline = errors.New("gpu: unknown pipeline")

	// ErrSizeMismatch is returned when upload data does not match the
	// texture's allocated size.
	ErrSizeMismatch = errors.New("gpu: data size does not match texture")

	// ErrOutOfMemory is returned when texture allocation fails. The render
	// backend surfaces it as a failed frame and drops that frame's cache
	// entry; it must never crash playback.
	ErrOutOfMemory = errors.New("gpu: texture allocation failed")
)

// TextureDesc describes a texture to allocate.
type TextureDesc struct {
	// Width and Height are the texture dimensions in pixels.
	Width  int
	Height int

	// Format is the pixel format of the texture storage.
	Format media.PixelFormat

	// Label is an optional debug label.
	Label string
}

// ByteSize returns the tightly-packed byte size of the described texture.
func (d TextureDesc) ByteSize() int {
	return d.Width * d.Height * d.Format.BytesPerPixel()
}

// PipelineDesc describes a blit pipeline: the shader program plus the
// uniform bindings used to draw one texture into another.
type PipelineDesc struct {
	// Label is an optional debug label.
	Label string

	// Format is the color format of the destination texture.
	Format media.PixelFormat

	// ColorTransform is an optional WGSL `fn to_linear(vec3<f32>) ->
	// vec3<f32>` folded into the fragment shader. The offline render mode
	// uses it to defer the color transform to the GPU; when empty the blit
	// passes color through unchanged.
	ColorTransform string
}

// BlitParams describes one draw: sample Source through Pipeline into Dest,
// positioning with the 4x4 transform matrix and scaling the premultiplied
// output by Opacity.
type BlitParams struct {
	Pipeline  PipelineID
	Source    TextureID
	Dest      TextureID
	Transform Matrix4

	// Opacity scales the premultiplied source; zero draws nothing, one
	// draws at full strength. The zero value of BlitParams is not a valid
	// draw, so callers set it explicitly (FullOpacity for a plain copy).
	Opacity float32
}

// FullOpacity is the Opacity for an unattenuated draw.
const FullOpacity float32 = 1

// Adapter abstracts over GPU backend implementations.
//
// Implementations must be safe for concurrent bookkeeping calls, but draw
// submission carries the context-affinity requirement described in the
// package comment.
type Adapter interface {
	// Name returns a human-readable backend name for logging.
	Name() string

	// CreateTexture allocates GPU storage. Allocation failure returns an
	// error wrapping ErrOutOfMemory.
	CreateTexture(desc TextureDesc) (TextureID, error)

	// UploadTexture writes tightly-packed pixel data to a texture. The data
	// length must equal the texture's byte size.
	UploadTexture(id TextureID, data []byte) error

	// ReadTexture reads the texture back to tightly-packed pixel data.
	// This stalls on GPU completion; it is a readback, not a sample.
	ReadTexture(id TextureID) ([]byte, error)

	// DestroyTexture releases a texture. Unknown IDs are ignored.
	DestroyTexture(id TextureID)

	// CreatePipeline builds a blit pipeline for the given descriptor.
	CreatePipeline(desc PipelineDesc) (PipelineID, error)

	// DestroyPipeline releases a pipeline. Unknown IDs are ignored.
	DestroyPipeline(id PipelineID)

	// Blit draws params.Source into params.Dest through params.Pipeline.
	// The destination's existing contents are kept and blended under the
	// draw; Clear first for a fresh composite.
	Blit(params BlitParams) error

	// Clear fills a texture with transparent black.
	Clear(id TextureID) error

	// Close releases every live resource and the device itself.
	Close()
}
