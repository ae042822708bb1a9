package media

import (
	"fmt"

	"github.com/marlinedit/marlin/rational"
)

// RenderMode selects the accuracy/performance trade-off of a render pass.
type RenderMode uint8

const (
	// ModeOnline favors accuracy: color transforms run on the CPU against
	// full-float frames before upload.
	ModeOnline RenderMode = iota

	// ModeOffline favors performance: the color transform is folded into the
	// GPU blit pipeline instead of being applied on the CPU.
	ModeOffline
)

// String returns a human-readable name for the mode.
func (m RenderMode) String() string {
	switch m {
	case ModeOnline:
		return "online"
	case ModeOffline:
		return "offline"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// VideoParams describes the working buffer layout of a video render backend:
// resolution, pixel format, timebase, and render mode. Two parameter sets
// that differ in any field produce incomparable output bytes, so changing
// parameters drops the whole output cache.
type VideoParams struct {
	Width    int
	Height   int
	Format   PixelFormat
	Timebase rational.Rational
	Mode     RenderMode
}

// IsValid reports whether the parameters describe a renderable buffer.
func (p VideoParams) IsValid() bool {
	return p.Width > 0 && p.Height > 0 && p.Format.IsValid() && !p.Timebase.IsNaN() && !p.Timebase.IsZero()
}

// FrameIndex returns the frame number the instant t falls in.
func (p VideoParams) FrameIndex(t rational.Rational) int64 {
	return t.FlooredDiv(p.Timebase)
}

// FrameRange returns the time range covered by the frame containing t.
func (p VideoParams) FrameRange(t rational.Rational) rational.TimeRange {
	start := p.Timebase.Mul(rational.FromInt(p.FrameIndex(t)))
	return rational.NewTimeRangeWithLength(start, p.Timebase)
}

// AudioParams describes the working buffer layout of an audio render
// backend: sample rate, channel count, and sample format.
type AudioParams struct {
	SampleRate int
	Channels   int
	Format     SampleFormat
}

// IsValid reports whether the parameters describe a renderable buffer.
func (p AudioParams) IsValid() bool {
	return p.SampleRate > 0 && p.Channels > 0 && p.Format.BytesPerSample() > 0
}

// BytesPerSecond returns the interleaved PCM byte rate.
func (p AudioParams) BytesPerSecond() int {
	return p.SampleRate * p.Channels * p.Format.BytesPerSample()
}

// SamplesToBytes converts a per-channel sample count to interleaved bytes.
func (p AudioParams) SamplesToBytes(samples int64) int64 {
	return samples * int64(p.Channels) * int64(p.Format.BytesPerSample())
}

// TimeToSamples converts a duration to a per-channel sample count, flooring
// to a whole sample.
func (p AudioParams) TimeToSamples(t rational.Rational) int64 {
	return t.Mul(rational.FromInt(int64(p.SampleRate))).FlooredDiv(rational.FromInt(1))
}

// TimeToBytes converts a duration to an interleaved byte count.
func (p AudioParams) TimeToBytes(t rational.Rational) int64 {
	return p.SamplesToBytes(p.TimeToSamples(t))
}

// BytesToTime converts an interleaved byte count back to a duration.
func (p AudioParams) BytesToTime(n int64) rational.Rational {
	return rational.New(n, int64(p.BytesPerSecond()))
}
