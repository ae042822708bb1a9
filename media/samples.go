package media

import (
	"fmt"

	"github.com/marlinedit/marlin/rational"
)

// SampleBuffer holds interleaved PCM audio covering a time range.
// It is the audio counterpart of Frame: produced by decoders, mixed by the
// node graph, cached by the audio render backend.
type SampleBuffer struct {
	params AudioParams
	rng    rational.TimeRange
	data   []byte
}

// NewSampleBuffer allocates a silent buffer covering rng at the given
// parameters.
func NewSampleBuffer(params AudioParams, rng rational.TimeRange) (*SampleBuffer, error) {
	if !params.IsValid() {
		return nil, fmt.Errorf("media: invalid audio params %+v", params)
	}
	return &SampleBuffer{
		params: params,
		rng:    rng,
		data:   make([]byte, params.TimeToBytes(rng.Length())),
	}, nil
}

// Params returns the buffer's audio parameters.
func (b *SampleBuffer) Params() AudioParams { return b.params }

// Range returns the time range the buffer covers.
func (b *SampleBuffer) Range() rational.TimeRange { return b.rng }

// Data returns the interleaved PCM bytes. The slice is owned by the buffer.
func (b *SampleBuffer) Data() []byte { return b.data }

// IsSilent reports whether every byte is zero.
func (b *SampleBuffer) IsSilent() bool {
	for _, v := range b.data {
		if v != 0 {
			return false
		}
	}
	return true
}
