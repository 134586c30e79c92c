package audio

import (
	"errors"
	"fmt"
)

var (
	ErrNoInputDevice   = errors.New("no input device available")
	ErrDeviceNotFound  = errors.New("input device not found")
	ErrUnknownBackend  = errors.New("unknown audio backend")
	ErrStreamConfig    = errors.New("unsupported stream configuration")
	ErrInputOverflow   = errors.New("input overflow: samples were dropped by the host")
	ErrStreamInterrupt = errors.New("stream stopped by the host")
)

// DataFunc receives interleaved float32 samples from the host's audio
// thread. The slice is only valid for the duration of the call.
type DataFunc func(samples []float32)

// ErrorFunc receives stream-level faults. They are informational: the
// stream keeps running unless the host stops it.
type ErrorFunc func(err error)

// StreamConfig describes the capture format. The buffer size is always
// left to the host.
type StreamConfig struct {
	SampleRate int
	Channels   int
}

func (c StreamConfig) validate() error {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return fmt.Errorf("%w: %d Hz, %d channels", ErrStreamConfig, c.SampleRate, c.Channels)
	}
	return nil
}

// Device represents an audio input device
type Device struct {
	ID      string
	Name    string
	Default bool
}

// Host is the audio backend: it enumerates input devices and opens
// callback-driven capture streams.
type Host interface {
	Name() string
	Devices() ([]Device, error)
	DefaultInputDevice() (Device, error)
	// OpenInput opens a stopped input stream on deviceID, or on the default
	// input device when deviceID is empty.
	OpenInput(deviceID string, cfg StreamConfig, onData DataFunc, onError ErrorFunc) (Stream, error)
	Close() error
}

// Stream is one open capture stream.
type Stream interface {
	Start() error
	// Pause stops delivery. Once it returns no further DataFunc calls are
	// in flight.
	Pause() error
	Close() error
}

const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendPulse     = "pulse"
)

// Backends lists the names accepted by New.
func Backends() []string {
	return []string{BackendPortAudio, BackendMalgo, BackendPulse}
}

// New creates the host for the named backend.
func New(backend string) (Host, error) {
	switch backend {
	case BackendPortAudio, "":
		return NewPortAudio()
	case BackendMalgo:
		return NewMalgo()
	case BackendPulse:
		return NewPulse()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// pickDevice resolves deviceID against a device list: empty selects the
// default (or the only) device, otherwise ID then name must match.
func pickDevice(devices []Device, deviceID string) (Device, error) {
	if deviceID == "" {
		for _, d := range devices {
			if d.Default {
				return d, nil
			}
		}
		if len(devices) > 0 {
			return devices[0], nil
		}
		return Device{}, ErrNoInputDevice
	}

	for _, d := range devices {
		if d.ID == deviceID {
			return d, nil
		}
	}
	for _, d := range devices {
		if d.Name == deviceID {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
}
