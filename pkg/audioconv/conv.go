// Package audioconv decodes recorded utterance files (wav, mp3, ogg) into
// the mono 16kHz float32 PCM the transcriber expects.
package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

const targetRate = 16000

// DecodeFile reads an audio file and returns mono 16kHz samples in [-1, 1].
// The format is chosen by extension, falling back to sniffing the header.
func DecodeFile(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWAV(f)
	case ".mp3":
		return decodeMP3(f)
	case ".ogg", ".oga":
		return decodeOgg(f)
	}

	magic := make([]byte, 4)
	if _, err := bufio.NewReader(f).Read(magic); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	switch string(magic) {
	case "RIFF":
		return decodeWAV(f)
	case "OggS":
		return decodeOgg(f)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", path)
	}
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav file")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if pb == nil || len(pb.Data) == 0 {
		return nil, errors.New("empty wav file")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	scale := 1.0 / float64(int64(1)<<(depth-1))
	x := make([]float32, len(pb.Data))
	for i, v := range pb.Data {
		x[i] = float32(clamp(float64(v)*scale, -1, 1))
	}

	channels, rate := 1, 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			channels = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			rate = pb.Format.SampleRate
		}
	}
	return normalize(x, channels, rate), nil
}

func decodeMP3(r io.Reader) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	// The mp3 decoder always emits interleaved stereo.
	return normalize(int16ToFloat32(ints), 2, rate), nil
}

// decodeOgg tries Vorbis first, then Opus.
func decodeOgg(r io.ReadSeeker) ([]float32, error) {
	if pcm, format, err := oggvorbis.ReadAll(r); err == nil {
		if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
			return nil, errors.New("invalid ogg/vorbis stream")
		}
		return normalize(pcm, format.Channels, format.SampleRate), nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return decodeOpus(r)
}

func decodeOpus(r io.ReadSeeker) ([]float32, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("ogg is neither vorbis nor opus: %w", err)
	}
	defer dec.Destroy()

	channels := dec.ChannelCount()
	if channels <= 0 {
		channels = 1
	}

	var pcm []float32
	buf := make([]int16, 48000*channels/2)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm = append(pcm, int16ToFloat32(buf[:n*channels])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	// Opus always decodes at 48kHz.
	return normalize(pcm, channels, 48000), nil
}

// normalize downmixes interleaved samples to mono and resamples to 16kHz.
func normalize(x []float32, channels, rate int) []float32 {
	if channels > 1 {
		frames := len(x) / channels
		mono := make([]float32, frames)
		for i := 0; i < frames; i++ {
			var sum float64
			for c := 0; c < channels; c++ {
				sum += float64(x[i*channels+c])
			}
			mono[i] = float32(sum / float64(channels))
		}
		x = mono
	}
	return resample(x, rate, targetRate)
}

func resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}
	ratio := float64(to) / float64(from)
	n := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, n)
	for i := range out {
		pos := float64(i) / ratio
		lo := int(pos)
		if lo >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(lo))
		out[i] = in[lo]*(1-frac) + in[lo+1]*frac
	}
	return out
}

func int16ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v) / 32768
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
