// Package decoder defines the decoder capability the render core pulls
// frames through, plus a registry that maps a footage item's decoder ID to
// an implementation.
//
// Real codec backends live outside the core and register themselves here;
// the built-in decoders (swatch, imageseq, tone) cover synthetic sources,
// image sequences, and test tones.
package decoder

import (
	"errors"

	"github.com/marlinedit/marlin/footage"
	"github.com/marlinedit/marlin/media"
	"github.com/marlinedit/marlin/rational"
)

// Decoder is the capability interface: given a bound stream and a time,
// produce a decoded frame or audio samples.
//
// Decoders are cheap to construct; expensive state (demuxer handles, codec
// contexts) is created lazily on first retrieve. Implementations cache their
// most recent decode internally, since scrubbing and repeated graph
// evaluation re-request the same frame.
//
// A time with nothing to decode returns (nil, nil): absent is not an error,
// and callers render nothing rather than fault. Retrieval may block on disk
// I/O and is expected to run off the interactive goroutine.
type Decoder interface {
	// SetStream binds the decoder to a stream. Must be called before the
	// first retrieve; rebinding resets internal decode state.
	SetStream(s *footage.Stream) error

	// Stream returns the bound stream, or nil before SetStream.
	Stream() *footage.Stream

	// Retrieve returns the decoded frame at time t, or (nil, nil) when the
	// stream has no frame there.
	Retrieve(t rational.Rational) (*media.Frame, error)

	// RetrieveAudio returns decoded PCM covering r, conformed to params,
	// or (nil, nil) when the stream has no audio there.
	RetrieveAudio(r rational.TimeRange, params media.AudioParams) (*media.SampleBuffer, error)

	// Close releases decode state. The decoder must not be used afterward.
	Close()
}

// ErrNoStream is returned by retrieval before a stream has been bound.
var ErrNoStream = errors.New("decoder: no stream bound")

// ErrWrongStreamType is returned when a stream of the wrong type is bound,
// e.g. audio retrieval from a video-only decoder.
var ErrWrongStreamType = errors.New("decoder: wrong stream type")

// frameCache holds the most recent decode. One entry is enough: the access
// pattern during scrubbing is many requests for one time, then the next.
type frameCache struct {
	valid bool
	time  rational.Rational
	frame *media.Frame
}

func (c *frameCache) get(t rational.Rational) (*media.Frame, bool) {
	if c.valid && c.time.Equal(t) {
		return c.frame, true
	}
	return nil, false
}

func (c *frameCache) put(t rational.Rational, f *media.Frame) {
	c.valid = true
	c.time = t
	c.frame = f
}

func (c *frameCache) reset() {
	*c = frameCache{}
}
