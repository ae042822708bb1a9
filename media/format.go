// Package media defines the frame, buffer, and parameter types that flow
// through the render pipeline, from decoders through color management to the
// GPU texture layer.
package media

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// PixelFormat identifies the memory layout of a frame's samples.
type PixelFormat uint8

const (
	// FormatInvalid is the zero value; frames never carry it.
	FormatInvalid PixelFormat = iota

	// FormatRGBA8 is 8 bits per channel RGBA, the common decoder output.
	FormatRGBA8

	// FormatBGRA8 is 8 bits per channel BGRA, used by surface presentation.
	FormatBGRA8

	// FormatRGBA16F is half-float RGBA, the offline working format.
	FormatRGBA16F

	// FormatRGBA32F is full-float RGBA. CPU color transforms require it.
	FormatRGBA32F
)

// String returns a human-readable name for the format.
func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	case FormatRGBA16F:
		return "RGBA16F"
	case FormatRGBA32F:
		return "RGBA32F"
	default:
		return fmt.Sprintf("Invalid(%d)", f)
	}
}

// BytesPerPixel returns the per-pixel byte size of the format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA8, FormatBGRA8:
		return 4
	case FormatRGBA16F:
		return 8
	case FormatRGBA32F:
		return 16
	default:
		return 0
	}
}

// IsValid reports whether f is a renderable format.
func (f PixelFormat) IsValid() bool {
	return f > FormatInvalid && f <= FormatRGBA32F
}

// ToGPUFormat converts to the wgpu texture format used when uploading a frame
// of this layout.
func (f PixelFormat) ToGPUFormat() gputypes.TextureFormat {
	switch f {
	case FormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm
	case FormatBGRA8:
		return gputypes.TextureFormatBGRA8Unorm
	case FormatRGBA16F:
		return gputypes.TextureFormatRGBA16Float
	case FormatRGBA32F:
		return gputypes.TextureFormatRGBA32Float
	default:
		return gputypes.TextureFormatUndefined
	}
}

// SampleFormat identifies the memory layout of PCM audio samples.
type SampleFormat uint8

const (
	// SampleFormatInvalid is the zero value.
	SampleFormatInvalid SampleFormat = iota

	// SampleFormatS16 is signed 16-bit interleaved PCM.
	SampleFormatS16

	// SampleFormatF32 is 32-bit float interleaved PCM, the mixing format.
	SampleFormatF32
)

// String returns a human-readable name for the sample format.
func (f SampleFormat) String() string {
	switch f {
	case SampleFormatS16:
		return "S16"
	case SampleFormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Invalid(%d)", f)
	}
}

// BytesPerSample returns the byte size of one sample for one channel.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatS16:
		return 2
	case SampleFormatF32:
		return 4
	default:
		return 0
	}
}
