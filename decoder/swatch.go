package decoder

import (
	"sync"

	"github.com/marlinedit/marlin/footage"
	"github.com/marlinedit/marlin/media"
	"github.com/marlinedit/marlin/rational"
)

// SwatchID is the registry ID of the built-in synthetic source decoder.
const SwatchID = "org.marlinedit.marlin.swatch"

func init() {
	Register(SwatchID, func() Decoder { return &SwatchDecoder{} })
}

// SwatchDecoder generates deterministic synthetic frames: a solid color
// derived from the frame index, with a per-pixel gradient. It backs color
// bars and slug footage and gives tests a decoder with exactly reproducible
// output.
type SwatchDecoder struct {
	mu     sync.Mutex
	stream *footage.Stream
	cache  frameCache
}

// SetStream binds the decoder to a stream and resets the decode cache.
func (d *SwatchDecoder) SetStream(s *footage.Stream) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stream = s
	d.cache.reset()
	return nil
}

// Stream returns the bound stream.
func (d *SwatchDecoder) Stream() *footage.Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream
}

// Retrieve synthesizes the frame at t. Out-of-range times return (nil, nil).
func (d *SwatchDecoder) Retrieve(t rational.Rational) (*media.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream == nil {
		return nil, ErrNoStream
	}
	if d.stream.Type() != footage.StreamVideo {
		return nil, ErrWrongStreamType
	}
	if !d.stream.InRange(t) {
		return nil, nil
	}
	if f, ok := d.cache.get(t); ok {
		return f, nil
	}

	frameTime := rational.New(1, 1).Div(d.stream.FrameRate)
	index := t.FlooredDiv(frameTime)

	f, err := media.NewFrame(d.stream.Width, d.stream.Height, media.FormatRGBA8)
	if err != nil {
		return nil, err
	}
	base := byte(index * 37) // distinct base tone per frame index
	data := f.Data()
	for y := 0; y < d.stream.Height; y++ {
		for x := 0; x < d.stream.Width; x++ {
			i := (y*d.stream.Width + x) * 4
			data[i+0] = base
			data[i+1] = byte(x)
			data[i+2] = byte(y)
			data[i+3] = 255
		}
	}

	d.cache.put(t, f)
	return f, nil
}

// RetrieveAudio always reports absent: swatch streams carry no audio.
func (d *SwatchDecoder) RetrieveAudio(rational.TimeRange, media.AudioParams) (*media.SampleBuffer, error) {
	return nil, nil
}

// Close releases the decode cache.
func (d *SwatchDecoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.reset()
	d.stream = nil
}
