// Package audio owns the microphone capture used in voice mode and the
// PulseAudio ducking applied around speech playback.
package audio

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Recorder captures one utterance from the default input device as mono
// float32 PCM at SampleRate, endpointed by an RMS silence gate.
type Recorder struct {
	SampleRate  int
	FrameSize   int
	SilenceRMS  float64
	SilenceHold time.Duration
	MaxLength   time.Duration
}

func NewRecorder() *Recorder {
	return &Recorder{
		SampleRate:  16000,
		FrameSize:   320, // 20ms at 16kHz
		SilenceRMS:  0.015,
		SilenceHold: 600 * time.Millisecond,
		MaxLength:   15 * time.Second,
	}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Capture records until the speaker falls silent for SilenceHold, the
// utterance hits MaxLength, or the context is canceled. Leading silence is
// discarded; trailing silence within the hold window is kept.
func (r *Recorder) Capture(ctx context.Context) ([]float32, error) {
	buf := make([]float32, r.FrameSize)
	out := make([]float32, 0, r.SampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.SampleRate), len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	frameDur := time.Duration(r.FrameSize) * time.Second / time.Duration(r.SampleRate)
	maxFrames := int(r.MaxLength / frameDur)
	holdFrames := int(r.SilenceHold / frameDur)

	var (
		speaking bool
		silent   int
	)
	for i := 0; i < maxFrames; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, err
		}

		if rms(buf) > r.SilenceRMS {
			speaking = true
			silent = 0
			out = append(out, buf...)
			continue
		}
		if !speaking {
			continue
		}
		silent++
		if silent >= holdFrames {
			break
		}
		out = append(out, buf...)
	}

	if len(out) == 0 {
		return nil, errors.New("no speech detected")
	}
	return out, nil
}

func rms(frame []float32) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s * s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
