// Package sink persists captured audio into a WAV file as it arrives.
//
// A Sink is written by the audio callback and finalized by whoever stops the
// capture. Both paths take the same lock, so a write can never interleave
// with the header rewrite done by Finalize.
package sink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// BitDepth is fixed: samples are stored as 32-bit IEEE float.
	BitDepth = 32

	// wavFormatIEEEFloat is the WAVE_FORMAT_IEEE_FLOAT format tag.
	wavFormatIEEEFloat = 3

	maxChannels  = 8
	sampleBytes  = BitDepth / 8
	riffSizeAt   = 4
	headerLength = 44
)

var (
	ErrCannotCreateFile  = errors.New("cannot create audio file")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrFinalized         = errors.New("sink already finalized")
)

// Format is fixed for the lifetime of a sink.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > maxChannels {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, f.Channels)
	}
	return nil
}

// Sink is a finalize-once WAV writer.
type Sink struct {
	path   string
	format Format

	mu        sync.Mutex
	file      store
	dataStart int64
	dataBytes int64
	buf       []byte
	frame     []float32
	pending   int
	samples   int64
	failed    int64
	done      bool
}

// store is the part of *os.File a sink writes through. Samples go in with
// WriteAt at the end of the stored data, so a short or failed write never
// moves the position later frames land at.
type store interface {
	io.WriterAt
	Truncate(size int64) error
	Sync() error
	Close() error
}

// Create opens (truncating) path and writes the WAV header for format.
// The data chunk is opened immediately, so a sink finalized without any
// writes still produces a valid, empty recording.
func Create(path string, format Format) (*Sink, error) {
	if err := format.validate(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCannotCreateFile, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotCreateFile, err)
	}

	// The encoder writes the RIFF, fmt and data chunk headers. Frames are
	// stored by the sink itself so only bytes that reached the file count.
	enc := wav.NewEncoder(f, format.SampleRate, BitDepth, format.Channels, wavFormatIEEEFloat)
	header := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(header); err != nil || enc.WrittenBytes != headerLength {
		f.Close()
		os.Remove(path)
		if err == nil {
			err = fmt.Errorf("header is %d bytes", enc.WrittenBytes)
		}
		return nil, fmt.Errorf("%w: writing header: %v", ErrCannotCreateFile, err)
	}

	return &Sink{
		path:      path,
		format:    format,
		file:      f,
		dataStart: headerLength,
		frame:     make([]float32, format.Channels),
	}, nil
}

// Write appends interleaved samples in order. A failing frame does not stop
// the rest of the buffer from being attempted; failed reports how many
// samples were not stored and err carries the first failure. Samples that
// do not complete a frame are held until the next call.
func (s *Sink) Write(samples []float32) (failed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		s.failed += int64(len(samples))
		return len(samples), ErrFinalized
	}

	frameBytes := len(s.frame) * sampleBytes
	s.buf = s.buf[:0]
	for _, v := range samples {
		s.frame[s.pending] = v
		s.pending++
		if s.pending < len(s.frame) {
			continue
		}
		s.pending = 0
		for _, x := range s.frame {
			s.buf = binary.LittleEndian.AppendUint32(s.buf, math.Float32bits(x))
		}
	}

	pending := s.buf
	for len(pending) > 0 {
		n, werr := s.file.WriteAt(pending, s.dataStart+s.dataBytes)
		if werr == nil && n < len(pending) {
			werr = io.ErrShortWrite
		}
		whole := n - n%frameBytes
		s.dataBytes += int64(whole)
		s.samples += int64(whole / sampleBytes)
		pending = pending[whole:]
		if werr == nil {
			continue
		}
		if err == nil {
			err = werr
		}
		// drop the frame that failed and carry on with the next one
		failed += len(s.frame)
		pending = pending[frameBytes:]
	}

	s.failed += int64(failed)
	return failed, err
}

// Finalize rewrites the RIFF and data chunk sizes from the frames actually
// stored and closes the file. It succeeds at most once; every later call, and every
// later Write, returns ErrFinalized.
func (s *Sink) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return ErrFinalized
	}
	s.done = true
	// an incomplete trailing frame cannot be represented in the file
	s.pending = 0

	var errs []error
	end := s.dataStart + s.dataBytes
	// a failed write may have left a partial frame past the stored data
	if err := s.file.Truncate(end); err != nil {
		errs = append(errs, fmt.Errorf("truncating: %w", err))
	}
	if err := s.writeSize(riffSizeAt, end-8); err != nil {
		errs = append(errs, fmt.Errorf("writing headers: %w", err))
	}
	if err := s.writeSize(s.dataStart-4, s.dataBytes); err != nil {
		errs = append(errs, fmt.Errorf("writing headers: %w", err))
	}
	if err := s.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("syncing: %w", err))
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing: %w", err))
	}

	return errors.Join(errs...)
}

// Abort discards the recording: the file is closed without fixing its
// headers and removed. Like Finalize it may only happen once.
func (s *Sink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return ErrFinalized
	}
	s.done = true

	s.file.Close()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Samples returns the number of samples stored so far.
func (s *Sink) Samples() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

// Failed returns the number of samples that could not be stored,
// including those offered after finalization.
func (s *Sink) Failed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Finalized reports whether Finalize or Abort has run.
func (s *Sink) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Sink) Path() string   { return s.path }
func (s *Sink) Format() Format { return s.format }

func (s *Sink) writeSize(at, size int64) error {
	_, err := s.file.WriteAt(binary.LittleEndian.AppendUint32(nil, uint32(size)), at)
	return err
}
