package audio

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	log "log/slog"
)

var (
	sinkInputRe = regexp.MustCompile(`Sink Input #(\d+)`)
	volumeRe    = regexp.MustCompile(`(\d+)\s*%`)
)

// Ducker lowers the volume of other PulseAudio playback streams while the
// assistant speaks and restores them afterwards, so the spoken result is
// audible over music or video.
type Ducker struct {
	// Volume other streams are set to while ducked, in percent.
	DuckVolume int

	mu       sync.Mutex
	active   bool
	original map[int]int
}

func NewDucker(duckVolume int) *Ducker {
	if duckVolume < 0 {
		duckVolume = 0
	}
	if duckVolume > 100 {
		duckVolume = 100
	}
	return &Ducker{DuckVolume: duckVolume, original: map[int]int{}}
}

func (d *Ducker) Duck(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return
	}

	streams, err := listSinkInputs(ctx)
	if err != nil {
		log.Debug("No pulse streams to duck", "err", err)
		return
	}

	d.original = map[int]int{}
	for id, vol := range streams {
		if vol <= d.DuckVolume {
			continue
		}
		if err := setSinkVolume(ctx, id, d.DuckVolume); err != nil {
			continue
		}
		d.original[id] = vol
	}
	d.active = true
}

func (d *Ducker) Restore(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return
	}
	for id, vol := range d.original {
		if err := setSinkVolume(ctx, id, vol); err != nil {
			log.Debug("Failed to restore stream volume", "id", id, "err", err)
		}
	}
	d.original = map[int]int{}
	d.active = false
}

// listSinkInputs returns stream id -> current volume percent.
func listSinkInputs(ctx context.Context) (map[int]int, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list: %w", err)
	}

	streams := map[int]int{}
	id := -1
	for _, line := range strings.Split(string(out), "\n") {
		if m := sinkInputRe.FindStringSubmatch(line); m != nil {
			id, _ = strconv.Atoi(m[1])
			continue
		}
		if id < 0 || !strings.Contains(line, "Volume:") {
			continue
		}
		if m := volumeRe.FindStringSubmatch(line); m != nil {
			vol, _ := strconv.Atoi(m[1])
			streams[id] = vol
			id = -1
		}
	}
	return streams, nil
}

func setSinkVolume(ctx context.Context, id, percent int) error {
	return exec.CommandContext(ctx, "pactl", "set-sink-input-volume",
		strconv.Itoa(id), fmt.Sprintf("%d%%", percent)).Run()
}
