package decoder

import (
	"fmt"
	"image"
	_ "image/png" // sequence frames are PNG files
	"os"
	"sync"

	"github.com/marlinedit/marlin/cache"
	"github.com/marlinedit/marlin/footage"
	"github.com/marlinedit/marlin/media"
	"github.com/marlinedit/marlin/rational"
)

// ImageSeqID is the registry ID of the numbered image sequence decoder.
const ImageSeqID = "org.marlinedit.marlin.imageseq"

// imageSeqCacheSize bounds the decoded-frame LRU. Scrubbing backwards a few
// frames is common; a handful of entries covers it without pinning much
// memory.
const imageSeqCacheSize = 8

func init() {
	Register(ImageSeqID, func() Decoder { return &ImageSeqDecoder{} })
}

// ImageSeqDecoder reads numbered image files (frame000001.png, ...) as a
// video stream. The file path pattern is configured per footage item by the
// project layer through SetPattern before the decoder is bound.
//
// Retrieval blocks on disk I/O; the render backend runs it off the
// interactive goroutine.
type ImageSeqDecoder struct {
	mu      sync.Mutex
	stream  *footage.Stream
	pattern string // printf pattern with one %d verb
	first   int64  // frame number of the sequence's first file
	frames  *cache.Cache[int64, *media.Frame]
}

// SetPattern configures the file path pattern and first frame number.
func (d *ImageSeqDecoder) SetPattern(pattern string, first int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pattern = pattern
	d.first = first
	d.resetCache()
}

// SetStream binds the decoder to a stream and resets the decode cache.
func (d *ImageSeqDecoder) SetStream(s *footage.Stream) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stream = s
	d.resetCache()
	return nil
}

func (d *ImageSeqDecoder) resetCache() {
	d.frames = cache.New[int64, *media.Frame](imageSeqCacheSize)
}

// Stream returns the bound stream.
func (d *ImageSeqDecoder) Stream() *footage.Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream
}

// Retrieve loads and decodes the file for the frame at t. A missing file or
// out-of-range time returns (nil, nil); a file that exists but fails to
// decode is a real error.
func (d *ImageSeqDecoder) Retrieve(t rational.Rational) (*media.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream == nil {
		return nil, ErrNoStream
	}
	if d.stream.Type() != footage.StreamVideo {
		return nil, ErrWrongStreamType
	}
	if d.pattern == "" || !d.stream.InRange(t) {
		return nil, nil
	}

	frameTime := rational.New(1, 1).Div(d.stream.FrameRate)
	index := d.first + t.FlooredDiv(frameTime)
	if d.frames != nil {
		if f, ok := d.frames.Get(index); ok {
			return f, nil
		}
	}
	path := fmt.Sprintf(d.pattern, index)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("decoder: open %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decoder: decode %s: %w", path, err)
	}

	frame := media.FromImage(img)
	if frame.Width() != d.stream.Width || frame.Height() != d.stream.Height {
		// Sequences with stray odd-sized files still decode; conform to the
		// stream's declared dimensions.
		frame, err = frame.Rescale(d.stream.Width, d.stream.Height)
		if err != nil {
			return nil, err
		}
	}

	if d.frames == nil {
		d.resetCache()
	}
	d.frames.Set(index, frame)
	return frame, nil
}

// RetrieveAudio always reports absent: image sequences carry no audio.
func (d *ImageSeqDecoder) RetrieveAudio(rational.TimeRange, media.AudioParams) (*media.SampleBuffer, error) {
	return nil, nil
}

// Close releases the decode cache.
func (d *ImageSeqDecoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = nil
	d.stream = nil
}
