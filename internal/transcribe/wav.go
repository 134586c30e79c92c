package transcribe

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM       = 1
	wavFormatIEEEFloat = 3
)

// Recording is a fully decoded WAV file. Samples are interleaved and
// normalized to [-1, 1].
type Recording struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Float      bool
	Samples    []float32
}

// Frames returns the number of sample frames (samples per channel).
func (r *Recording) Frames() int {
	if r.Channels == 0 {
		return 0
	}
	return len(r.Samples) / r.Channels
}

// ReadWAV loads a whole WAV file into memory. Recordings are short, so no
// streaming decode is attempted. I/O failures wrap ErrFileOpenFailed and
// anything that is not a readable PCM/float WAV wraps
// ErrUnsupportedAudioFormat.
func ReadWAV(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOpenFailed, err)
	}
	return decodeWAV(data)
}

func decodeWAV(data []byte) (rec *Recording, err error) {
	// the decoder trusts chunk sizes; a corrupt file must not take the
	// process down with it
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("%w: corrupt file: %v", ErrUnsupportedAudioFormat, r)
		}
	}()

	d := wav.NewDecoder(bytes.NewReader(data))
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAudioFormat, err)
	}
	if d.NumChans == 0 || d.SampleRate == 0 {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrUnsupportedAudioFormat)
	}

	convert, err := sampleConverter(d.WavAudioFormat, int(d.BitDepth))
	if err != nil {
		return nil, err
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAudioFormat, err)
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = convert(v)
	}

	return &Recording{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Float:      d.WavAudioFormat == wavFormatIEEEFloat,
		Samples:    samples,
	}, nil
}

// sampleConverter maps the decoder's integer view of a sample to a float.
// For 32-bit float files the decoder hands back the raw IEEE bits.
func sampleConverter(format uint16, bitDepth int) (func(int) float32, error) {
	switch {
	case format == wavFormatIEEEFloat && bitDepth == 32:
		return func(v int) float32 {
			return math.Float32frombits(uint32(int32(v)))
		}, nil
	case format == wavFormatPCM && (bitDepth == 16 || bitDepth == 24 || bitDepth == 32):
		scale := float32(audio.IntMaxSignedValue(bitDepth)) + 1
		return func(v int) float32 {
			return float32(v) / scale
		}, nil
	default:
		return nil, fmt.Errorf("%w: format tag %d with %d bits per sample", ErrUnsupportedAudioFormat, format, bitDepth)
	}
}
