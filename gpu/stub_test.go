package gpu

import (
	"math"
	"testing"

	"github.com/marlinedit/marlin/media"
)

func solidRGBA8(w, h int, r, g, b, a byte) []byte {
	data := make([]byte, w*h*4)
	for i := 0; i < len(data); i += 4 {
		data[i], data[i+1], data[i+2], data[i+3] = r, g, b, a
	}
	return data
}

func TestStubBlitIdentity(t *testing.T) {
	a := NewStubAdapter()
	defer a.Close()

	src, err := a.CreateTexture(TextureDesc{Width: 4, Height: 4, Format: media.FormatRGBA8})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.UploadTexture(src, solidRGBA8(4, 4, 200, 100, 50, 255)); err != nil {
		t.Fatal(err)
	}
	dst, err := a.CreateTexture(TextureDesc{Width: 4, Height: 4, Format: media.FormatRGBA8})
	if err != nil {
		t.Fatal(err)
	}
	pipe, err := a.CreatePipeline(PipelineDesc{Format: media.FormatRGBA8})
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Blit(BlitParams{Pipeline: pipe, Source: src, Dest: dst, Transform: Identity(), Opacity: FullOpacity}); err != nil {
		t.Fatalf("Blit: %v", err)
	}

	out, err := a.ReadTexture(dst)
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != 200 || out[1] != 100 || out[2] != 50 || out[3] != 255 {
		t.Errorf("pixel = %v, want 200 100 50 255", out[:4])
	}
}

func TestStubBlitScalesToDest(t *testing.T) {
	a := NewStubAdapter()
	defer a.Close()

	src, _ := a.CreateTexture(TextureDesc{Width: 2, Height: 2, Format: media.FormatRGBA8})
	if err := a.UploadTexture(src, solidRGBA8(2, 2, 10, 20, 30, 255)); err != nil {
		t.Fatal(err)
	}
	dst, _ := a.CreateTexture(TextureDesc{Width: 8, Height: 8, Format: media.FormatRGBA8})
	pipe, _ := a.CreatePipeline(PipelineDesc{Format: media.FormatRGBA8})

	if err := a.Blit(BlitParams{Pipeline: pipe, Source: src, Dest: dst, Transform: Identity(), Opacity: FullOpacity}); err != nil {
		t.Fatal(err)
	}
	out, _ := a.ReadTexture(dst)
	// Every destination pixel should carry the source color.
	for i := 0; i < len(out); i += 4 {
		if out[i] != 10 || out[i+1] != 20 || out[i+2] != 30 {
			t.Fatalf("pixel %d = %v", i/4, out[i:i+4])
		}
	}
}

func TestStubBlitHalfScaleLeavesBackground(t *testing.T) {
	a := NewStubAdapter()
	defer a.Close()

	src, _ := a.CreateTexture(TextureDesc{Width: 4, Height: 4, Format: media.FormatRGBA8})
	if err := a.UploadTexture(src, solidRGBA8(4, 4, 255, 255, 255, 255)); err != nil {
		t.Fatal(err)
	}
	dst, _ := a.CreateTexture(TextureDesc{Width: 8, Height: 8, Format: media.FormatRGBA8})
	pipe, _ := a.CreatePipeline(PipelineDesc{Format: media.FormatRGBA8})

	// Quad scaled to the center quarter of the destination.
	if err := a.Blit(BlitParams{Pipeline: pipe, Source: src, Dest: dst, Transform: Scale2D(0.5, 0.5), Opacity: FullOpacity}); err != nil {
		t.Fatal(err)
	}
	out, _ := a.ReadTexture(dst)

	center := (4*8 + 4) * 4
	if out[center] != 255 {
		t.Error("center should carry the source")
	}
	corner := 0
	if out[corner] != 0 || out[corner+3] != 0 {
		t.Error("corner outside the quad should stay transparent")
	}
}

func TestStubBlitColorTransform(t *testing.T) {
	a := NewStubAdapter()
	defer a.Close()

	srgbSnippet := `fn to_linear(c: vec3<f32>) -> vec3<f32> {
    let lo = c / 12.92;
    let hi = pow((c + vec3<f32>(0.055)) / 1.055, vec3<f32>(2.4));
    return select(hi, lo, c <= vec3<f32>(0.04045));
}`

	src, _ := a.CreateTexture(TextureDesc{Width: 1, Height: 1, Format: media.FormatRGBA32F})
	buf := make([]byte, 16)
	writePixel(media.FormatRGBA32F, buf, 0, 0.5, 0.5, 0.5, 1)
	if err := a.UploadTexture(src, buf); err != nil {
		t.Fatal(err)
	}
	dst, _ := a.CreateTexture(TextureDesc{Width: 1, Height: 1, Format: media.FormatRGBA32F})
	pipe, _ := a.CreatePipeline(PipelineDesc{Format: media.FormatRGBA32F, ColorTransform: srgbSnippet})

	if err := a.Blit(BlitParams{Pipeline: pipe, Source: src, Dest: dst, Transform: Identity(), Opacity: FullOpacity}); err != nil {
		t.Fatal(err)
	}
	out, _ := a.ReadTexture(dst)
	r, _, _, alpha := readPixel(media.FormatRGBA32F, out, 0)
	want := math.Pow((0.5+0.055)/1.055, 2.4)
	if math.Abs(float64(r)-want) > 1e-3 {
		t.Errorf("r = %v, want %v", r, want)
	}
	if alpha != 1 {
		t.Errorf("alpha = %v, want 1 untouched", alpha)
	}
}

func TestStubBlitCompositesOver(t *testing.T) {
	a := NewStubAdapter()
	defer a.Close()

	dst, _ := a.CreateTexture(TextureDesc{Width: 1, Height: 1, Format: media.FormatRGBA32F})
	base := make([]byte, 16)
	writePixel(media.FormatRGBA32F, base, 0, 1, 0, 0, 1)
	if err := a.UploadTexture(dst, base); err != nil {
		t.Fatal(err)
	}

	// Premultiplied half-transparent green over opaque red.
	src, _ := a.CreateTexture(TextureDesc{Width: 1, Height: 1, Format: media.FormatRGBA32F})
	over := make([]byte, 16)
	writePixel(media.FormatRGBA32F, over, 0, 0, 0.5, 0, 0.5)
	if err := a.UploadTexture(src, over); err != nil {
		t.Fatal(err)
	}

	pipe, _ := a.CreatePipeline(PipelineDesc{Format: media.FormatRGBA32F})
	if err := a.Blit(BlitParams{Pipeline: pipe, Source: src, Dest: dst, Transform: Identity(), Opacity: FullOpacity}); err != nil {
		t.Fatal(err)
	}
	out, _ := a.ReadTexture(dst)
	r, g, _, alpha := readPixel(media.FormatRGBA32F, out, 0)
	if math.Abs(float64(r)-0.5) > 1e-5 || math.Abs(float64(g)-0.5) > 1e-5 || alpha != 1 {
		t.Errorf("composite = %v %v a=%v, want 0.5 0.5 a=1", r, g, alpha)
	}
}

func TestStubBlitOpacity(t *testing.T) {
	a := NewStubAdapter()
	defer a.Close()

	src, _ := a.CreateTexture(TextureDesc{Width: 1, Height: 1, Format: media.FormatRGBA32F})
	buf := make([]byte, 16)
	writePixel(media.FormatRGBA32F, buf, 0, 1, 1, 1, 1)
	if err := a.UploadTexture(src, buf); err != nil {
		t.Fatal(err)
	}
	dst, _ := a.CreateTexture(TextureDesc{Width: 1, Height: 1, Format: media.FormatRGBA32F})
	pipe, _ := a.CreatePipeline(PipelineDesc{Format: media.FormatRGBA32F})

	if err := a.Blit(BlitParams{Pipeline: pipe, Source: src, Dest: dst, Transform: Identity(), Opacity: 0.25}); err != nil {
		t.Fatal(err)
	}
	out, _ := a.ReadTexture(dst)
	r, _, _, alpha := readPixel(media.FormatRGBA32F, out, 0)
	if math.Abs(float64(r)-0.25) > 1e-5 || math.Abs(float64(alpha)-0.25) > 1e-5 {
		t.Errorf("attenuated = r=%v a=%v, want 0.25", r, alpha)
	}
}

func TestStubClear(t *testing.T) {
	a := NewStubAdapter()
	defer a.Close()

	id, _ := a.CreateTexture(TextureDesc{Width: 2, Height: 2, Format: media.FormatRGBA8})
	if err := a.UploadTexture(id, solidRGBA8(2, 2, 9, 9, 9, 9)); err != nil {
		t.Fatal(err)
	}
	if err := a.Clear(id); err != nil {
		t.Fatal(err)
	}
	out, _ := a.ReadTexture(id)
	for i, b := range out {
		if b != 0 {
			t.Fatalf("byte %d = %d after clear", i, b)
		}
	}
}

func TestStubUnknownIDs(t *testing.T) {
	a := NewStubAdapter()
	if _, err := a.ReadTexture(42); err != ErrUnknownTexture {
		t.Errorf("ReadTexture = %v", err)
	}
	if err := a.Blit(BlitParams{Pipeline: 1, Source: 2, Dest: 3}); err != ErrUnknownPipeline {
		t.Errorf("Blit = %v", err)
	}
	a.DestroyTexture(42) // must not panic
}

func TestHalfFloatRoundTrip(t *testing.T) {
	values := []float32{0, 1, 0.5, -2, 0.000061, 65504}
	for _, v := range values {
		got := halfToFloat(floatToHalf(v))
		rel := math.Abs(float64(got-v)) / math.Max(math.Abs(float64(v)), 1e-6)
		if v != 0 && rel > 1e-3 {
			t.Errorf("half round trip %v -> %v", v, got)
		}
		if v == 0 && got != 0 {
			t.Errorf("zero -> %v", got)
		}
	}
	if got := halfToFloat(floatToHalf(1e6)); !math.IsInf(float64(got), 1) {
		t.Errorf("overflow should saturate to +inf, got %v", got)
	}
}

func TestMatrixOps(t *testing.T) {
	if !Identity().IsIdentity() {
		t.Fatal("Identity")
	}
	m := Scale2D(2, 3).Mul(Translate2D(1, 0))
	// Scale applied after translate: point (1,1) -> (1+1, 1) -> (4, 3).
	x, y := m.apply2D(1, 1)
	if x != 4 || y != 3 {
		t.Errorf("apply2D = (%v, %v), want (4, 3)", x, y)
	}

	inv, ok := m.invertAffine2D()
	if !ok {
		t.Fatal("matrix should invert")
	}
	bx, by := inv.apply2D(x, y)
	if math.Abs(float64(bx)-1) > 1e-6 || math.Abs(float64(by)-1) > 1e-6 {
		t.Errorf("inverse = (%v, %v), want (1, 1)", bx, by)
	}

	if _, ok := Scale2D(0, 1).invertAffine2D(); ok {
		t.Error("singular matrix should not invert")
	}
}
