// Package notify plays the short earcon that marks the start of listening
// in voice mode.
package notify

import (
	"fmt"
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// Chime plays the earcon at path and blocks until it finishes. A missing or
// unreadable file is an error for the caller to log, not a reason to stop
// the turn loop.
func Chime(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open earcon: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode earcon: %w", err)
	}
	defer streamer.Close()

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}
