package footage

import (
	"testing"

	"github.com/marlinedit/marlin/media"
	"github.com/marlinedit/marlin/rational"
)

func TestStreamIdentity(t *testing.T) {
	f := New("clip-1", "Clip", "imageseq")
	v := f.AddVideoStream(1920, 1080, media.FormatRGBA8, rational.New(30, 1), rational.FromInt(10))
	a := f.AddAudioStream(48000, 2, rational.FromInt(10), "en-US")

	if v.Identity() == a.Identity() {
		t.Error("distinct streams must have distinct identities")
	}
	if v.Identity() != "clip-1:0:video" {
		t.Errorf("video identity = %q", v.Identity())
	}

	// Same shape in a different footage item must not collide.
	g := New("clip-2", "Other", "imageseq")
	v2 := g.AddVideoStream(1920, 1080, media.FormatRGBA8, rational.New(30, 1), rational.FromInt(10))
	if v.Identity() == v2.Identity() {
		t.Error("streams of different footage must have distinct identities")
	}
}

func TestStreamLookup(t *testing.T) {
	f := New("clip-1", "Clip", "imageseq")
	f.AddVideoStream(640, 480, media.FormatRGBA8, rational.New(24, 1), rational.FromInt(5))

	if f.Stream(0) == nil {
		t.Error("stream 0 should exist")
	}
	if f.Stream(1) != nil {
		t.Error("stream 1 should be nil")
	}
	if f.Stream(-1) != nil {
		t.Error("negative index should be nil")
	}
	if f.StreamCount() != 1 {
		t.Errorf("StreamCount = %d", f.StreamCount())
	}
}

func TestStreamInRange(t *testing.T) {
	f := New("clip-1", "Clip", "imageseq")
	s := f.AddVideoStream(640, 480, media.FormatRGBA8, rational.New(24, 1), rational.FromInt(5))

	if !s.InRange(rational.New(0, 1)) {
		t.Error("t=0 should be in range")
	}
	if !s.InRange(rational.New(49, 10)) {
		t.Error("t=4.9 should be in range")
	}
	if s.InRange(rational.FromInt(5)) {
		t.Error("t=duration should be out of range (half-open)")
	}
	if s.InRange(rational.New(-1, 2)) {
		t.Error("negative time should be out of range")
	}
}

func TestAudioLanguageNormalization(t *testing.T) {
	f := New("clip-1", "Clip", "imageseq")

	en := f.AddAudioStream(48000, 2, rational.FromInt(1), "EN-us")
	if got := en.Language.String(); got != "en-US" {
		t.Errorf("language = %q, want en-US", got)
	}

	und := f.AddAudioStream(48000, 2, rational.FromInt(1), "")
	if !und.Language.IsRoot() {
		t.Errorf("empty language should stay undetermined, got %v", und.Language)
	}

	junk := f.AddAudioStream(48000, 2, rational.FromInt(1), "!!bad!!")
	if !junk.Language.IsRoot() {
		t.Errorf("unparseable language should stay undetermined, got %v", junk.Language)
	}
}
