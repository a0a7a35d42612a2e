// Package stt wraps whisper.cpp for local speech transcription.
package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

type Options struct {
	Language      string // "auto", "en", ...
	Threads       int    // <=0 uses NumCPU
	InitialPrompt string
}

type Result struct {
	Text     string
	Language string
}

type Transcriber struct {
	model whisper.Model
}

func NewTranscriber(modelPath string) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &Transcriber{model: m}, nil
}

func (t *Transcriber) Close() error {
	if t.model == nil {
		return nil
	}
	return t.model.Close()
}

// TranscribePCM recognizes mono 16kHz float32 samples in [-1, 1].
func (t *Transcriber) TranscribePCM(ctx context.Context, pcm []float32, opt Options) (Result, error) {
	if t.model == nil {
		return Result{}, errors.New("nil model")
	}
	if len(pcm) == 0 {
		return Result{}, errors.New("no audio samples provided")
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("new context: %w", err)
	}

	lang := opt.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return Result{}, fmt.Errorf("set language: %w", err)
	}

	threads := opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(opt.InitialPrompt)
	}

	if err := wctx.Process(pcm, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("process: %w", err)
	}

	var parts []string
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("next segment: %w", err)
		}
		parts = append(parts, strings.TrimSpace(seg.Text))
	}

	detected := wctx.DetectedLanguage()
	if detected == "" {
		detected = wctx.Language()
	}

	return Result{
		Text:     strings.Join(parts, " "),
		Language: detected,
	}, nil
}
