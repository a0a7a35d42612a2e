// Package tts synthesizes speech through the OpenAI audio API and plays it
// locally. Synthesized clips are cached on disk with a capped retention so
// repeated phrases cost nothing, and requests are throttled to stay under
// the API rate limits.
package tts

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	log "log/slog"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	openai "github.com/openai/openai-go/v3"
)

const (
	// Phrases shorter than this are acknowledgements not worth a synthesis
	// call unless forced.
	minSpeakLen = 10

	maxSpeakLen = 1000

	// Minimum gap between synthesis requests.
	minInterval = 500 * time.Millisecond

	// On-disk clips kept after pruning.
	cacheKeep = 10
)

// Ducker fades other audio streams down around playback. May be nil.
type Ducker interface {
	Duck(ctx context.Context)
	Restore(ctx context.Context)
}

type Speaker struct {
	client   openai.Client
	cacheDir string
	voice    openai.AudioSpeechNewParamsVoice
	ducker   Ducker

	mu          sync.Mutex
	busy        bool
	lastRequest time.Time
	cache       map[uint64]string

	initOnce sync.Once
	initErr  error
}

func NewSpeaker(client openai.Client, cacheDir string, ducker Ducker) (*Speaker, error) {
	if cacheDir == "" {
		cacheDir = "tts_cache"
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tts cache dir: %w", err)
	}
	return &Speaker{
		client:   client,
		cacheDir: cacheDir,
		voice:    openai.AudioSpeechNewParamsVoiceAlloy,
		ducker:   ducker,
		cache:    map[uint64]string{},
	}, nil
}

// Say synthesizes and plays text. Short acknowledgements are skipped unless
// force is set. While one playback is in flight any further request is
// dropped, never interleaved.
func (s *Speaker) Say(ctx context.Context, text string, force bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !force && len(text) < minSpeakLen {
		return nil
	}
	text = truncateRunes(text, maxSpeakLen)

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		log.Debug("Playback in flight, dropping", "len", len(text))
		return nil
	}
	s.busy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	path, err := s.fetch(ctx, text)
	if err != nil {
		return err
	}
	return s.play(ctx, path)
}

// fetch returns a playable clip for the text, from cache when possible.
func (s *Speaker) fetch(ctx context.Context, text string) (string, error) {
	key := cacheKey(text)

	s.mu.Lock()
	path, cached := s.cache[key]
	s.mu.Unlock()
	if cached {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if err := s.throttle(ctx); err != nil {
		return "", err
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model: openai.SpeechModelTTS1,
		Voice: s.voice,
		Input: text,
	})
	if err != nil {
		return "", fmt.Errorf("speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	path = filepath.Join(s.cacheDir, fmt.Sprintf("speech_%d.mp3", time.Now().UnixMilli()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create clip: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write clip: %w", err)
	}
	f.Close()

	s.mu.Lock()
	s.cache[key] = path
	s.lastRequest = time.Now()
	s.mu.Unlock()

	if err := pruneClips(s.cacheDir, cacheKeep); err != nil {
		log.Warn("Failed to prune tts cache", "err", err)
	}
	return path, nil
}

func (s *Speaker) throttle(ctx context.Context) error {
	s.mu.Lock()
	wait := minInterval - time.Since(s.lastRequest)
	s.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (s *Speaker) play(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open clip: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode clip: %w", err)
	}
	defer streamer.Close()

	s.initOnce.Do(func() {
		s.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if s.initErr != nil {
		return fmt.Errorf("init speaker: %w", s.initErr)
	}

	if s.ducker != nil {
		s.ducker.Duck(ctx)
		defer s.ducker.Restore(ctx)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	case <-done:
		return nil
	}
}

// truncateRunes caps text at max bytes without splitting a rune, so the
// synthesis API never sees invalid UTF-8.
func truncateRunes(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}

func cacheKey(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	return h.Sum64()
}

// pruneClips removes all but the newest keep clips. Clip names embed a
// millisecond timestamp, so lexical order is age order.
func pruneClips(dir string, keep int) error {
	clips, err := filepath.Glob(filepath.Join(dir, "speech_*.mp3"))
	if err != nil {
		return err
	}
	if len(clips) <= keep {
		return nil
	}
	sort.Strings(clips)
	for _, old := range clips[:len(clips)-keep] {
		if err := os.Remove(old); err != nil {
			return err
		}
	}
	return nil
}
