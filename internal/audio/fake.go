package audio

import (
	"fmt"
	"math"
	"sync"
)

// FakeHost is an in-memory Host whose streams are driven by the caller.
type FakeHost struct {
	mu       sync.Mutex
	devices  []Device
	streams  []*FakeStream
	closed   bool
	OpenErr  error
	StartErr error
	PauseErr error
}

// NewFakeHost returns a host exposing devices. With no devices a single
// default "fake" input is listed.
func NewFakeHost(devices ...Device) *FakeHost {
	if len(devices) == 0 {
		devices = []Device{{ID: "fake", Name: "fake", Default: true}}
	}
	return &FakeHost{devices: devices}
}

func (f *FakeHost) Name() string { return "fake" }

func (f *FakeHost) Devices() ([]Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Device(nil), f.devices...), nil
}

func (f *FakeHost) DefaultInputDevice() (Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return pickDevice(f.devices, "")
}

func (f *FakeHost) OpenInput(deviceID string, cfg StreamConfig, onData DataFunc, onError ErrorFunc) (Stream, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	device, err := pickDevice(f.devices, deviceID)
	if err != nil {
		return nil, err
	}

	s := &FakeStream{
		host:    f,
		device:  device,
		config:  cfg,
		onData:  onData,
		onError: onError,
	}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *FakeHost) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called on the host.
func (f *FakeHost) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Streams returns every stream opened so far, oldest first.
func (f *FakeHost) Streams() []*FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeStream(nil), f.streams...)
}

// Last returns the most recently opened stream, or nil.
func (f *FakeHost) Last() *FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

func (f *FakeHost) errs() (start, pause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.StartErr, f.PauseErr
}

// FakeStream delivers samples only when told to.
type FakeStream struct {
	host    *FakeHost
	device  Device
	config  StreamConfig
	onData  DataFunc
	onError ErrorFunc

	mu      sync.Mutex
	running bool
	closed  bool
}

func (s *FakeStream) Start() error {
	startErr, _ := s.host.errs()
	if startErr != nil {
		return startErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("fake stream closed")
	}
	s.running = true
	return nil
}

func (s *FakeStream) Pause() error {
	_, pauseErr := s.host.errs()
	s.mu.Lock()
	defer s.mu.Unlock()
	if pauseErr != nil {
		return pauseErr
	}
	s.running = false
	return nil
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.closed = true
	return nil
}

// Emit delivers samples through the data callback if the stream is
// running and reports whether it did. The buffer is reused afterwards,
// like a real host's.
func (s *FakeStream) Emit(samples []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	buf := append([]float32(nil), samples...)
	s.onData(buf)
	for i := range buf {
		buf[i] = float32(math.NaN())
	}
	return true
}

// Deliver invokes the data callback whatever the stream state, as a
// callback racing a stop would.
func (s *FakeStream) Deliver(samples []float32) {
	s.onData(samples)
}

// Fail reports a stream fault through the error callback.
func (s *FakeStream) Fail(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *FakeStream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *FakeStream) Device() Device       { return s.device }
func (s *FakeStream) Config() StreamConfig { return s.config }

// SineWave returns frames of an interleaved tone at amplitude 0.5, the same
// value on every channel.
func SineWave(freq float64, sampleRate, channels, frames int) []float32 {
	out := make([]float32, 0, frames*channels)
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		for c := 0; c < channels; c++ {
			out = append(out, v)
		}
	}
	return out
}
