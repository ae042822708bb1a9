// Package footage models imported media items and the decodable streams
// they contain.
//
// Footage is read-only from the render core's perspective: the project layer
// creates and owns items, nodes reference streams without owning them, and
// the decoder registry turns a footage item's decoder ID into a live decoder.
package footage

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/marlinedit/marlin/media"
	"github.com/marlinedit/marlin/rational"
)

// StreamType distinguishes the kinds of decodable streams a footage item
// can expose.
type StreamType uint8

const (
	// StreamVideo is a picture stream.
	StreamVideo StreamType = iota

	// StreamAudio is a PCM-decodable audio stream.
	StreamAudio
)

// String returns a human-readable name for the stream type.
func (t StreamType) String() string {
	switch t {
	case StreamVideo:
		return "video"
	case StreamAudio:
		return "audio"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// Stream identifies one decodable stream within a footage item. Streams are
// owned by their Footage; nodes hold references only.
type Stream struct {
	footageID string
	index     int
	typ       StreamType

	// Video properties.
	Width     int
	Height    int
	Format    media.PixelFormat
	FrameRate rational.Rational

	// Audio properties.
	SampleRate int
	Channels   int

	// Duration of the stream; queries past it yield no frame.
	Duration rational.Rational

	// Language is the normalized stream language, if the container carried
	// one. The undetermined tag means none was present.
	Language language.Tag
}

// Index returns the stream's position within its footage item.
func (s *Stream) Index() int { return s.index }

// Type returns the stream type.
func (s *Stream) Type() StreamType { return s.typ }

// Identity returns a stable string identifying this stream across sessions.
// The render backend feeds it into the content hash, so rebinding a node to
// a different stream invalidates cached output.
func (s *Stream) Identity() string {
	return fmt.Sprintf("%s:%d:%s", s.footageID, s.index, s.typ)
}

// InRange reports whether the instant t falls within the stream's duration.
func (s *Stream) InRange(t rational.Rational) bool {
	return !t.Less(rational.Rational{}) && t.Less(s.Duration)
}

// Footage is an imported media item: a decoder ID plus an ordered list of
// streams. Exposed read-only to the core.
type Footage struct {
	id        string
	name      string
	decoderID string
	streams   []*Stream
}

// New creates a footage item bound to the given decoder ID.
func New(id, name, decoderID string) *Footage {
	return &Footage{id: id, name: name, decoderID: decoderID}
}

// ID returns the project-unique footage identifier.
func (f *Footage) ID() string { return f.id }

// Name returns the display name.
func (f *Footage) Name() string { return f.name }

// DecoderID returns the registered decoder capable of reading this item.
func (f *Footage) DecoderID() string { return f.decoderID }

// StreamCount returns the number of streams.
func (f *Footage) StreamCount() int { return len(f.streams) }

// Stream returns the stream at index, or nil when out of range. Callers
// treat a nil stream as "nothing to render".
func (f *Footage) Stream(index int) *Stream {
	if index < 0 || index >= len(f.streams) {
		return nil
	}
	return f.streams[index]
}

// AddVideoStream appends a video stream description and returns it.
func (f *Footage) AddVideoStream(width, height int, format media.PixelFormat, frameRate, duration rational.Rational) *Stream {
	s := &Stream{
		footageID: f.id,
		index:     len(f.streams),
		typ:       StreamVideo,
		Width:     width,
		Height:    height,
		Format:    format,
		FrameRate: frameRate,
		Duration:  duration,
		Language:  language.Und,
	}
	f.streams = append(f.streams, s)
	return s
}

// AddAudioStream appends an audio stream description and returns it.
// The lang string is normalized through BCP 47 parsing; unparseable or empty
// input leaves the stream language undetermined rather than failing import.
func (f *Footage) AddAudioStream(sampleRate, channels int, duration rational.Rational, lang string) *Stream {
	tag := language.Und
	if lang != "" {
		if parsed, err := language.Parse(lang); err == nil {
			tag = parsed
		}
	}
	s := &Stream{
		footageID:  f.id,
		index:      len(f.streams),
		typ:        StreamAudio,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   duration,
		Language:   tag,
	}
	f.streams = append(f.streams, s)
	return s
}
