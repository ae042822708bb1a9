package media

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Frame is a decoded image: dimensions, pixel format, and raw sample data.
//
// A Frame is produced by a decoder and consumed (and possibly reformatted) by
// the color service and the texture layer. Ownership transfers to whichever
// stage last transforms it; stages must not alias a frame they have handed
// on.
type Frame struct {
	width  int
	height int
	format PixelFormat
	data   []byte
}

// NewFrame allocates a zeroed frame with the given dimensions and format.
func NewFrame(width, height int, format PixelFormat) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("media: invalid frame size %dx%d", width, height)
	}
	if !format.IsValid() {
		return nil, fmt.Errorf("media: invalid pixel format %s", format)
	}
	return &Frame{
		width:  width,
		height: height,
		format: format,
		data:   make([]byte, width*height*format.BytesPerPixel()),
	}, nil
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.width }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.height }

// Format returns the pixel format.
func (f *Frame) Format() PixelFormat { return f.format }

// Data returns the raw sample data. The slice is owned by the frame.
func (f *Frame) Data() []byte { return f.data }

// Matches reports whether the frame has the given dimensions and format.
// The texture layer uses this to decide whether an existing GPU texture can
// be reused for an upload.
func (f *Frame) Matches(width, height int, format PixelFormat) bool {
	return f.width == width && f.height == height && f.format == format
}

// ConvertPixelFormat returns a frame with the same image in the target
// format, or f itself when the format already matches. Only conversions
// between RGBA8 family and RGBA32F are supported; those are the ones the
// pipeline needs (CPU color transforms require RGBA32F input).
func ConvertPixelFormat(f *Frame, target PixelFormat) (*Frame, error) {
	if f == nil {
		return nil, fmt.Errorf("media: nil frame")
	}
	if f.format == target {
		return f, nil
	}

	out, err := NewFrame(f.width, f.height, target)
	if err != nil {
		return nil, err
	}

	n := f.width * f.height * 4 // channel count across the image
	switch {
	case (f.format == FormatRGBA8 || f.format == FormatBGRA8) && target == FormatRGBA32F:
		swap := f.format == FormatBGRA8
		for i := 0; i < n; i++ {
			v := float32(f.data[channelIndex(i, swap)]) / 255
			binary.LittleEndian.PutUint32(out.data[i*4:], math.Float32bits(v))
		}
	case f.format == FormatRGBA32F && (target == FormatRGBA8 || target == FormatBGRA8):
		swap := target == FormatBGRA8
		for i := 0; i < n; i++ {
			v := math.Float32frombits(binary.LittleEndian.Uint32(f.data[i*4:]))
			out.data[channelIndex(i, swap)] = clamp8(v)
		}
	case f.format == FormatRGBA8 && target == FormatBGRA8,
		f.format == FormatBGRA8 && target == FormatRGBA8:
		for i := 0; i < n; i += 4 {
			out.data[i+0] = f.data[i+2]
			out.data[i+1] = f.data[i+1]
			out.data[i+2] = f.data[i+0]
			out.data[i+3] = f.data[i+3]
		}
	default:
		return nil, fmt.Errorf("media: unsupported conversion %s -> %s", f.format, target)
	}
	return out, nil
}

// channelIndex maps a flat RGBA channel index to its byte offset, swapping
// R and B when the 8-bit side is BGRA.
func channelIndex(i int, swapRB bool) int {
	if !swapRB {
		return i
	}
	switch i % 4 {
	case 0:
		return i + 2
	case 2:
		return i - 2
	default:
		return i
	}
}

func clamp8(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

// Float32At returns the RGBA channels at (x, y) of an RGBA32F frame.
// Out-of-bounds coordinates return zeros.
func (f *Frame) Float32At(x, y int) (r, g, b, a float32) {
	if f.format != FormatRGBA32F || x < 0 || y < 0 || x >= f.width || y >= f.height {
		return 0, 0, 0, 0
	}
	i := (y*f.width + x) * 16
	r = math.Float32frombits(binary.LittleEndian.Uint32(f.data[i:]))
	g = math.Float32frombits(binary.LittleEndian.Uint32(f.data[i+4:]))
	b = math.Float32frombits(binary.LittleEndian.Uint32(f.data[i+8:]))
	a = math.Float32frombits(binary.LittleEndian.Uint32(f.data[i+12:]))
	return r, g, b, a
}

// SetFloat32At stores the RGBA channels at (x, y) of an RGBA32F frame.
// Out-of-bounds coordinates and non-float frames are ignored.
func (f *Frame) SetFloat32At(x, y int, r, g, b, a float32) {
	if f.format != FormatRGBA32F || x < 0 || y < 0 || x >= f.width || y >= f.height {
		return
	}
	i := (y*f.width + x) * 16
	binary.LittleEndian.PutUint32(f.data[i:], math.Float32bits(r))
	binary.LittleEndian.PutUint32(f.data[i+4:], math.Float32bits(g))
	binary.LittleEndian.PutUint32(f.data[i+8:], math.Float32bits(b))
	binary.LittleEndian.PutUint32(f.data[i+12:], math.Float32bits(a))
}

// ToImage converts an 8-bit frame to an image.RGBA. BGRA frames are
// converted to RGBA order; float frames must be converted down first.
func (f *Frame) ToImage() (*image.RGBA, error) {
	src := f
	if f.format != FormatRGBA8 {
		var err error
		src, err = ConvertPixelFormat(f, FormatRGBA8)
		if err != nil {
			return nil, err
		}
	}
	img := image.NewRGBA(image.Rect(0, 0, src.width, src.height))
	copy(img.Pix, src.data)
	return img, nil
}

// FromImage creates an RGBA8 frame from an image.
func FromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		xdraw.Draw(rgba, rgba.Bounds(), img, bounds.Min, xdraw.Src)
	}
	f, _ := NewFrame(bounds.Dx(), bounds.Dy(), FormatRGBA8)
	copy(f.data, rgba.Pix)
	return f
}

// Rescale returns the frame resampled to the given dimensions using
// Catmull-Rom interpolation. Used on the CPU fallback path to fit decoded
// frames to the renderer's working resolution; the GPU path scales during
// the blit instead.
func (f *Frame) Rescale(width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("media: invalid rescale size %dx%d", width, height)
	}
	if width == f.width && height == f.height {
		return f, nil
	}
	src, err := f.ToImage()
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	out := FromImage(dst)
	if f.format != FormatRGBA8 {
		return ConvertPixelFormat(out, f.format)
	}
	return out, nil
}
