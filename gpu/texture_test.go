package gpu

import (
	"errors"
	"testing"

	"github.com/marlinedit/marlin/media"
)

func TestTextureLifecycle(t *testing.T) {
	a := NewStubAdapter()
	tex := NewTexture(a)

	if tex.IsCreated() {
		t.Fatal("new handle should not own storage")
	}
	if err := tex.Upload(make([]byte, 16)); !errors.Is(err, ErrNotCreated) {
		t.Errorf("Upload before Create = %v, want ErrNotCreated", err)
	}

	if err := tex.Create(4, 2, media.FormatRGBA8, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !tex.IsCreated() || tex.ID() == InvalidID {
		t.Error("Create should allocate storage")
	}
	if tex.ByteSize() != 4*2*4 {
		t.Errorf("ByteSize = %d", tex.ByteSize())
	}
	if a.LiveTextures() != 1 {
		t.Errorf("adapter tracks %d textures, want 1", a.LiveTextures())
	}

	tex.Destroy()
	if tex.IsCreated() || tex.ID() != InvalidID {
		t.Error("Destroy should release the handle")
	}
	if a.LiveTextures() != 0 {
		t.Error("Destroy should release adapter storage")
	}
	tex.Destroy() // idempotent
}

func TestTextureCreateTwicePanics(t *testing.T) {
	a := NewStubAdapter()
	tex := NewTexture(a)
	if err := tex.Create(2, 2, media.FormatRGBA8, nil); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Error("second Create should panic")
		}
	}()
	_ = tex.Create(2, 2, media.FormatRGBA8, nil)
}

func TestTextureUploadRoundTrip(t *testing.T) {
	a := NewStubAdapter()
	tex := NewTexture(a)

	data := make([]byte, 2*2*4)
	for i := range data {
		data[i] = byte(i * 7)
	}
	if err := tex.Create(2, 2, media.FormatRGBA8, data); err != nil {
		t.Fatalf("Create with data: %v", err)
	}

	got, err := tex.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], data[i])
		}
	}

	if err := tex.Upload(make([]byte, 5)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("short upload = %v, want ErrSizeMismatch", err)
	}
}

func TestTextureMatches(t *testing.T) {
	a := NewStubAdapter()
	tex := NewTexture(a)
	if tex.Matches(2, 2, media.FormatRGBA8) {
		t.Error("uncreated texture matches nothing")
	}
	if err := tex.Create(2, 2, media.FormatRGBA8, nil); err != nil {
		t.Fatal(err)
	}
	if !tex.Matches(2, 2, media.FormatRGBA8) {
		t.Error("should match own dimensions")
	}
	for _, bad := range []struct {
		w, h int
		f    media.PixelFormat
	}{{3, 2, media.FormatRGBA8}, {2, 3, media.FormatRGBA8}, {2, 2, media.FormatRGBA16F}} {
		if tex.Matches(bad.w, bad.h, bad.f) {
			t.Errorf("should not match %dx%d %s", bad.w, bad.h, bad.f)
		}
	}
}

func TestTextureAllocationFailure(t *testing.T) {
	a := NewStubAdapter()
	a.MaxTextureBytes = 64
	tex := NewTexture(a)
	err := tex.Create(100, 100, media.FormatRGBA32F, nil)
	if !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("Create = %v, want ErrOutOfMemory", err)
	}
	if tex.IsCreated() {
		t.Error("failed Create must leave the handle empty")
	}
}

func TestTextureInvalidDimensions(t *testing.T) {
	a := NewStubAdapter()
	tex := NewTexture(a)
	if err := tex.Create(0, 4, media.FormatRGBA8, nil); err == nil {
		t.Error("zero width should fail")
	}
	if err := tex.Create(4, 4, media.FormatInvalid, nil); err == nil {
		t.Error("invalid format should fail")
	}
}
