package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	log "log/slog"

	"sysvox/internal/assistant"
	"sysvox/internal/audio"
	"sysvox/internal/notify"
	"sysvox/internal/session"
	"sysvox/internal/tts"
	"sysvox/pkg/audioconv"
	"sysvox/pkg/stt"
)

const transcribeTimeout = 60 * time.Second

// Results longer than this are printed but not spoken.
const maxSpokenResult = 120

const helpText = `Available commands:
[*] PROCESS MANAGEMENT: "show top processes", "top 10 by memory", "info for PID 4321"
[!] PROCESS CONTROL: "kill 4321", "kill all chrome except helper"
[*] SYSTEM MONITORING: "system info", "CPU usage", "disk space"
[*] FILES: "list files", "show ~/Downloads"
[*] APPS: "open the browser", "launch calculator"
[*] SHORTCUTS: 'help' for help, 'voice' or 'v' to toggle voice input, 'exit' to quit`

type app struct {
	asst    *assistant.Assistant
	sess    *session.Session
	speaker *tts.Speaker

	whisperModel string
	earcon       string

	rec     *audio.Recorder
	whisper *stt.Transcriber

	// voiceInit brings up the capture pipeline; nil selects portaudio
	// plus whisper.
	voiceInit func() (*audio.Recorder, *stt.Transcriber, error)

	// Serializes turns across the terminal, IPC trigger and bus entry
	// points; session state sees one writer at a time.
	turnMu sync.Mutex

	// Serializes voice bring-up and capture. The terminal loop and the
	// IPC trigger both record, and the input device cannot be opened
	// twice.
	voiceMu sync.Mutex
}

func (a *app) runInteractive(ctx context.Context) {
	fmt.Println("sysvox - conversational shell assistant")
	fmt.Println("Type 'help' for commands, 'v' to toggle voice mode")
	a.speak(ctx, "Hello! Shell assistant ready.", true)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var input string
		if a.sess.VoiceMode() {
			if ctx.Err() != nil {
				return
			}
			text, heard := a.captureUtterance(ctx)
			if !heard {
				continue
			}
			input = strings.TrimSpace(text)
		} else {
			fmt.Print("\n> ")
			select {
			case <-ctx.Done():
				fmt.Println()
				return
			case line, open := <-lines:
				if !open {
					return
				}
				input = strings.TrimSpace(line)
			}
		}

		// Reserved keywords bypass the model entirely, spoken or typed.
		// Trailing punctuation comes from the transcriber.
		switch strings.Trim(strings.ToLower(input), " .,!?") {
		case "":
			continue
		case "exit", "quit":
			a.speak(ctx, "Goodbye!", true)
			return
		case "help":
			fmt.Println(helpText)
			continue
		case "voice", "v":
			a.toggleVoice(ctx)
			continue
		}

		a.turnMu.Lock()
		a.processTurn(ctx, input)
		a.turnMu.Unlock()
	}
}

func (a *app) toggleVoice(ctx context.Context) {
	if a.sess.ToggleVoice() {
		if err := a.ensureVoice(); err != nil {
			log.Error("Voice input unavailable", "err", err)
			a.sess.SetVoiceMode(false)
			return
		}
		a.speak(ctx, "Voice mode enabled. I'm listening!", true)
		return
	}
	fmt.Println("Voice mode disabled. Using text input.")
}

// processTurn runs one utterance through the assistant and surfaces the
// outcome. Callers hold turnMu. Any failure is reported and the session
// continues; nothing here is fatal to the loop.
func (a *app) processTurn(ctx context.Context, utterance string) {
	fmt.Println("Processing...")

	turn, err := a.asst.Process(ctx, utterance)
	if err != nil {
		log.Error("Turn failed", "err", err)
		fmt.Println("Sorry, something went wrong talking to the model.")
		return
	}

	if turn.Prose != "" {
		fmt.Printf("Assistant: %s\n", turn.Prose)
		a.speak(ctx, turn.Prose, false)
	}

	if turn.Result == nil {
		return
	}
	fmt.Printf("\n%s\n", turn.Result.Message)
	if turn.Result.OK() {
		if len(turn.Result.Message) <= maxSpokenResult {
			a.speak(ctx, turn.Result.Message, true)
		}
	} else {
		log.Warn("Command failed", "command", turn.Command, "status", turn.Result.Status)
	}
}

// captureUtterance records one utterance from the microphone and returns
// the transcribed text. heard is false when nothing usable came through.
func (a *app) captureUtterance(ctx context.Context) (text string, heard bool) {
	a.voiceMu.Lock()
	defer a.voiceMu.Unlock()

	if err := a.initVoice(); err != nil {
		log.Error("Voice input unavailable", "err", err)
		a.sess.SetVoiceMode(false)
		return "", false
	}

	if err := notify.Chime(a.earcon); err != nil {
		log.Debug("No earcon", "err", err)
	}
	log.Info("Listening")

	pcm, err := a.rec.Capture(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.speak(ctx, "Sorry, didn't catch that. Try again.", true)
		}
		return "", false
	}
	log.Debug("Recorded", "samples", len(pcm))

	text, err = a.transcribe(ctx, pcm)
	if err != nil {
		log.Error("Failed to transcribe", "err", err)
		return "", false
	}
	if text == "" {
		a.speak(ctx, "Sorry, didn't catch that. Try again.", true)
		return "", false
	}

	fmt.Printf("Heard: %s\n", text)
	return text, true
}

// voiceTurn is the IPC trigger entry point: capture one utterance and run
// it as a turn, regardless of the current input mode.
func (a *app) voiceTurn(ctx context.Context) {
	text, heard := a.captureUtterance(ctx)
	if !heard {
		return
	}
	a.turnMu.Lock()
	a.processTurn(ctx, text)
	a.turnMu.Unlock()
}

// handleRemote serves one bus utterance and returns the combined reply.
func (a *app) handleRemote(ctx context.Context, utterance string) string {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	turn, err := a.asst.Process(ctx, utterance)
	if err != nil {
		log.Error("Remote turn failed", "err", err)
		return "Sorry, something went wrong."
	}

	reply := turn.Prose
	if turn.Result != nil {
		if reply != "" {
			reply += "\n"
		}
		reply += turn.Result.Message
	}
	return reply
}

// oneShot decodes a recorded utterance file, transcribes it and runs a
// single turn.
func (a *app) oneShot(ctx context.Context, path string) error {
	pcm, err := audioconv.DecodeFile(path)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	whisper, err := stt.NewTranscriber(a.whisperModel)
	if err != nil {
		return fmt.Errorf("init whisper: %w", err)
	}
	defer whisper.Close()
	a.whisper = whisper

	text, err := a.transcribe(ctx, pcm)
	if err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("no speech recognized in %s", path)
	}

	fmt.Printf("Heard: %s\n", text)
	a.turnMu.Lock()
	a.processTurn(ctx, text)
	a.turnMu.Unlock()
	return nil
}

func (a *app) transcribe(ctx context.Context, pcm []float32) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	res, err := a.whisper.TranscribePCM(tctx, pcm, stt.Options{Language: "auto"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}

// ensureVoice lazily brings up the recorder and the whisper model the first
// time voice input is needed.
func (a *app) ensureVoice() error {
	a.voiceMu.Lock()
	defer a.voiceMu.Unlock()
	return a.initVoice()
}

// initVoice does the bring-up. Callers hold voiceMu.
func (a *app) initVoice() error {
	if a.rec != nil && a.whisper != nil {
		return nil
	}

	open := a.voiceInit
	if open == nil {
		open = a.openVoice
	}
	rec, whisper, err := open()
	if err != nil {
		return err
	}

	a.rec = rec
	a.whisper = whisper
	log.Debug("Voice input ready", "model", a.whisperModel)
	return nil
}

func (a *app) openVoice() (*audio.Recorder, *stt.Transcriber, error) {
	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		return nil, nil, fmt.Errorf("init audio: %w", err)
	}

	whisper, err := stt.NewTranscriber(a.whisperModel)
	if err != nil {
		rec.Close()
		return nil, nil, fmt.Errorf("init whisper: %w", err)
	}
	return rec, whisper, nil
}

func (a *app) closeVoice() {
	a.voiceMu.Lock()
	defer a.voiceMu.Unlock()

	if a.rec != nil {
		a.rec.Close()
	}
	if a.whisper != nil {
		a.whisper.Close()
	}
}

// speak is nil-safe speech output; failures are logged, never fatal.
func (a *app) speak(ctx context.Context, text string, force bool) {
	if a.speaker == nil {
		return
	}
	if err := a.speaker.Say(ctx, text, force); err != nil && ctx.Err() == nil {
		log.Warn("Speech output failed", "err", err)
	}
}
