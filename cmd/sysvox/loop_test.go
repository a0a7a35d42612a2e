package main

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"sysvox/internal/audio"
	"sysvox/pkg/stt"
)

// The IPC trigger and the terminal loop can both want voice input at the
// same time; bring-up has to happen exactly once.
func TestEnsureVoiceInitsOnceUnderConcurrency(t *testing.T) {
	var inits atomic.Int32
	a := &app{
		voiceInit: func() (*audio.Recorder, *stt.Transcriber, error) {
			inits.Add(1)
			return audio.NewRecorder(), &stt.Transcriber{}, nil
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.ensureVoice())
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, inits.Load())
	assert.NotNil(t, a.rec)
	assert.NotNil(t, a.whisper)
}
