package gpu

import (
	"errors"
	"fmt"

	"github.com/marlinedit/marlin/media"
)

// ErrNotCreated is returned when an operation requires a created texture.
var ErrNotCreated = errors.New("gpu: texture not created")

// Texture is a handle to adapter-owned texture storage plus the metadata
// needed to decide when that storage must be reallocated.
//
// The handle outlives its storage: a node keeps one Texture across frames
// and destroys/recreates the storage only when dimensions or format change.
// Create on an already-created texture is a caller bug and panics; Destroy
// first.
type Texture struct {
	adapter Adapter

	id      TextureID
	width   int
	height  int
	format  media.PixelFormat
	created bool
}

// NewTexture returns an empty handle bound to an adapter. No GPU storage is
// allocated until Create.
func NewTexture(adapter Adapter) *Texture {
	return &Texture{adapter: adapter}
}

// Create allocates storage for the given dimensions and format and, when
// data is non-nil, uploads it. Panics if the texture is already created.
func (t *Texture) Create(width, height int, format media.PixelFormat, data []byte) error {
	if t.created {
		panic("gpu: Create on a created texture; Destroy first")
	}
	if width <= 0 || height <= 0 || !format.IsValid() {
		return fmt.Errorf("gpu: invalid texture dimensions %dx%d %s", width, height, format)
	}

	id, err := t.adapter.CreateTexture(TextureDesc{Width: width, Height: height, Format: format})
	if err != nil {
		return err
	}
	t.id = id
	t.width = width
	t.height = height
	t.format = format
	t.created = true

	if data != nil {
		if err := t.Upload(data); err != nil {
			t.Destroy()
			return err
		}
	}
	return nil
}

// Upload writes tightly-packed pixel data into the texture. The data length
// must match the allocated size exactly.
func (t *Texture) Upload(data []byte) error {
	if !t.created {
		return ErrNotCreated
	}
	return t.adapter.UploadTexture(t.id, data)
}

// Read reads the texture contents back to tightly-packed pixel data.
func (t *Texture) Read() ([]byte, error) {
	if !t.created {
		return nil, ErrNotCreated
	}
	return t.adapter.ReadTexture(t.id)
}

// Clear fills the texture with transparent black.
func (t *Texture) Clear() error {
	if !t.created {
		return ErrNotCreated
	}
	return t.adapter.Clear(t.id)
}

// Destroy releases the storage. Safe to call on a texture that was never
// created or is already destroyed.
func (t *Texture) Destroy() {
	if !t.created {
		return
	}
	t.adapter.DestroyTexture(t.id)
	t.id = InvalidID
	t.created = false
}

// IsCreated reports whether the handle currently owns storage.
func (t *Texture) IsCreated() bool { return t.created }

// Matches reports whether the allocated storage already fits the given
// dimensions and format, so callers can skip a destroy/recreate cycle.
func (t *Texture) Matches(width, height int, format media.PixelFormat) bool {
	return t.created && t.width == width && t.height == height && t.format == format
}

// ID returns the adapter-level texture ID, or InvalidID when not created.
func (t *Texture) ID() TextureID { return t.id }

// Width returns the allocated width in pixels, 0 when not created.
func (t *Texture) Width() int { return t.width }

// Height returns the allocated height in pixels, 0 when not created.
func (t *Texture) Height() int { return t.height }

// Format returns the allocated pixel format.
func (t *Texture) Format() media.PixelFormat { return t.format }

// ByteSize returns the tightly-packed byte size of the allocated storage.
func (t *Texture) ByteSize() int {
	return t.width * t.height * t.format.BytesPerPixel()
}
