package media

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestNewFrame(t *testing.T) {
	f, err := NewFrame(4, 3, FormatRGBA8)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if f.Width() != 4 || f.Height() != 3 || f.Format() != FormatRGBA8 {
		t.Errorf("frame = %dx%d %s", f.Width(), f.Height(), f.Format())
	}
	if len(f.Data()) != 4*3*4 {
		t.Errorf("data len = %d, want %d", len(f.Data()), 4*3*4)
	}

	if _, err := NewFrame(0, 3, FormatRGBA8); err == nil {
		t.Error("zero width should fail")
	}
	if _, err := NewFrame(4, 3, FormatInvalid); err == nil {
		t.Error("invalid format should fail")
	}
}

func TestBytesPerPixel(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   int
	}{
		{FormatRGBA8, 4},
		{FormatBGRA8, 4},
		{FormatRGBA16F, 8},
		{FormatRGBA32F, 16},
		{FormatInvalid, 0},
	}
	for _, tt := range tests {
		if got := tt.format.BytesPerPixel(); got != tt.want {
			t.Errorf("%s.BytesPerPixel() = %d, want %d", tt.format, got, tt.want)
		}
	}
}

func TestConvertRGBA8To32FRoundTrip(t *testing.T) {
	f, _ := NewFrame(2, 2, FormatRGBA8)
	pix := []byte{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 128, 64, 32, 16,
	}
	copy(f.Data(), pix)

	f32, err := ConvertPixelFormat(f, FormatRGBA32F)
	if err != nil {
		t.Fatalf("to 32F: %v", err)
	}
	r, g, b, a := f32.Float32At(0, 0)
	if r != 1 || g != 0 || b != 0 || a != 1 {
		t.Errorf("pixel (0,0) = %v %v %v %v, want red", r, g, b, a)
	}
	if r, _, _, _ := f32.Float32At(1, 1); math.Abs(float64(r)-128.0/255) > 1e-6 {
		t.Errorf("pixel (1,1) r = %v, want ~0.502", r)
	}

	back, err := ConvertPixelFormat(f32, FormatRGBA8)
	if err != nil {
		t.Fatalf("back to RGBA8: %v", err)
	}
	for i, v := range back.Data() {
		if v != pix[i] {
			t.Fatalf("round trip byte %d = %d, want %d", i, v, pix[i])
		}
	}
}

func TestConvertBGRASwapsChannels(t *testing.T) {
	f, _ := NewFrame(1, 1, FormatBGRA8)
	copy(f.Data(), []byte{10, 20, 30, 40}) // B G R A

	rgba, err := ConvertPixelFormat(f, FormatRGBA8)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	want := []byte{30, 20, 10, 40}
	for i, v := range rgba.Data() {
		if v != want[i] {
			t.Errorf("byte %d = %d, want %d", i, v, want[i])
		}
	}

	f32, err := ConvertPixelFormat(f, FormatRGBA32F)
	if err != nil {
		t.Fatalf("to 32F: %v", err)
	}
	r, g, b, _ := f32.Float32At(0, 0)
	if math.Abs(float64(r)-30.0/255) > 1e-6 || math.Abs(float64(g)-20.0/255) > 1e-6 || math.Abs(float64(b)-10.0/255) > 1e-6 {
		t.Errorf("BGRA->32F = %v %v %v, want RGB order", r, g, b)
	}
}

func TestConvertSameFormatReturnsSame(t *testing.T) {
	f, _ := NewFrame(2, 2, FormatRGBA8)
	got, err := ConvertPixelFormat(f, FormatRGBA8)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got != f {
		t.Error("same-format conversion should return the input frame")
	}
}

func TestImageRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.SetRGBA(1, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	f := FromImage(img)
	if f.Width() != 3 || f.Height() != 2 {
		t.Fatalf("FromImage size = %dx%d", f.Width(), f.Height())
	}

	out, err := f.ToImage()
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	if got := out.RGBAAt(1, 0); got != (color.RGBA{R: 200, G: 100, B: 50, A: 255}) {
		t.Errorf("pixel (1,0) = %v", got)
	}
}

func TestRescale(t *testing.T) {
	f, _ := NewFrame(4, 4, FormatRGBA8)
	// Solid mid-gray survives any resampling kernel exactly.
	for i := range f.Data() {
		f.Data()[i] = 128
	}

	small, err := f.Rescale(2, 2)
	if err != nil {
		t.Fatalf("Rescale: %v", err)
	}
	if small.Width() != 2 || small.Height() != 2 {
		t.Fatalf("rescaled size = %dx%d", small.Width(), small.Height())
	}
	for i, v := range small.Data() {
		if v != 128 {
			t.Errorf("byte %d = %d, want 128", i, v)
		}
	}

	same, err := f.Rescale(4, 4)
	if err != nil {
		t.Fatalf("Rescale same: %v", err)
	}
	if same != f {
		t.Error("same-size rescale should return the input frame")
	}
}
