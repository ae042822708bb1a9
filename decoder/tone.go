package decoder

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/marlinedit/marlin/footage"
	"github.com/marlinedit/marlin/media"
	"github.com/marlinedit/marlin/rational"
)

// ToneID is the registry ID of the built-in sine tone decoder.
const ToneID = "org.marlinedit.marlin.tone"

// toneFrequency is the generated sine frequency in Hz.
const toneFrequency = 440.0

// toneAmplitude keeps the tone well below full scale.
const toneAmplitude = 0.25

func init() {
	Register(ToneID, func() Decoder { return &ToneDecoder{} })
}

// ToneDecoder generates a 440 Hz sine on every channel. It backs bars-and-
// tone footage and gives audio render tests a deterministic source whose
// samples are a pure function of time.
type ToneDecoder struct {
	mu     sync.Mutex
	stream *footage.Stream
}

// SetStream binds the decoder to a stream.
func (d *ToneDecoder) SetStream(s *footage.Stream) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stream = s
	return nil
}

// Stream returns the bound stream.
func (d *ToneDecoder) Stream() *footage.Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream
}

// Retrieve always reports absent: tone streams carry no video.
func (d *ToneDecoder) Retrieve(rational.Rational) (*media.Frame, error) {
	return nil, nil
}

// RetrieveAudio synthesizes PCM covering r. The waveform is phase-locked to
// absolute stream time, so adjacent requests splice without clicks.
func (d *ToneDecoder) RetrieveAudio(r rational.TimeRange, params media.AudioParams) (*media.SampleBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream == nil {
		return nil, ErrNoStream
	}
	if d.stream.Type() != footage.StreamAudio {
		return nil, ErrWrongStreamType
	}
	if !params.IsValid() {
		return nil, nil
	}
	covered := rational.NewTimeRange(rational.Rational{}, d.stream.Duration)
	if !covered.Overlaps(r) {
		return nil, nil
	}

	buf, err := media.NewSampleBuffer(params, r)
	if err != nil {
		return nil, err
	}

	firstSample := params.TimeToSamples(r.In())
	total := params.TimeToSamples(r.Length())
	data := buf.Data()
	for i := int64(0); i < total; i++ {
		ts := float64(firstSample+i) / float64(params.SampleRate)
		if !covered.Contains(rational.New(firstSample+i, int64(params.SampleRate))) {
			continue // outside the stream: leave silence
		}
		v := toneAmplitude * math.Sin(2*math.Pi*toneFrequency*ts)
		for ch := 0; ch < params.Channels; ch++ {
			off := (i*int64(params.Channels) + int64(ch)) * int64(params.Format.BytesPerSample())
			switch params.Format {
			case media.SampleFormatS16:
				binary.LittleEndian.PutUint16(data[off:], uint16(int16(v*math.MaxInt16)))
			case media.SampleFormatF32:
				binary.LittleEndian.PutUint32(data[off:], math.Float32bits(float32(v)))
			}
		}
	}
	return buf, nil
}

// Close is a no-op; the tone decoder holds no decode state.
func (d *ToneDecoder) Close() {}
