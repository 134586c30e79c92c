package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

type portAudioHost struct {
	mu sync.Mutex
}

// NewPortAudio creates a PortAudio-based audio host
func NewPortAudio() (Host, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioHost{}, nil
}

func (p *portAudioHost) Name() string { return BackendPortAudio }

func (p *portAudioHost) Devices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]Device, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, Device{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *portAudioHost) DefaultInputDevice() (Device, error) {
	d, err := portaudio.DefaultInputDevice()
	if err != nil || d == nil {
		return Device{}, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
	}
	return Device{ID: d.Name, Name: d.Name, Default: true}, nil
}

func (p *portAudioHost) lookup(deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil || device == nil {
			return nil, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == deviceID && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
}

func (p *portAudioHost) OpenInput(deviceID string, cfg StreamConfig, onData DataFunc, onError ErrorFunc) (Stream, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	device, err := p.lookup(deviceID)
	if err != nil {
		return nil, err
	}

	callback := func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		if flags&portaudio.InputOverflow != 0 && onError != nil {
			onError(ErrInputOverflow)
		}
		onData(in)
	}

	// Interleaved float32, buffer size left to the host
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream on %q: %w", device.Name, err)
	}

	return &portAudioStream{stream: stream}, nil
}

func (p *portAudioHost) Close() error {
	return portaudio.Terminate()
}

type portAudioStream struct {
	stream *portaudio.Stream
}

func (s *portAudioStream) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	return nil
}

// Pause stops the stream; PortAudio returns only after the last callback
// has completed.
func (s *portAudioStream) Pause() error {
	return s.stream.Stop()
}

func (s *portAudioStream) Close() error {
	return s.stream.Close()
}
