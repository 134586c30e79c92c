package audio

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

type pulseHost struct {
	client *pulse.Client
}

// NewPulse connects to the PulseAudio (or PipeWire-pulse) server. Monitor
// sources make system output capturable as an input device.
func NewPulse() (Host, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseHost{client: c}, nil
}

func (p *pulseHost) Name() string { return BackendPulse }

func (p *pulseHost) Devices() ([]Device, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	def, _ := p.client.DefaultSource()

	devices := make([]Device, 0, len(sources))
	for _, s := range sources {
		devices = append(devices, Device{
			ID:      s.ID(),
			Name:    s.Name(),
			Default: def != nil && def.ID() == s.ID(),
		})
	}
	return devices, nil
}

func (p *pulseHost) DefaultInputDevice() (Device, error) {
	s, err := p.client.DefaultSource()
	if err != nil || s == nil {
		return Device{}, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
	}
	return Device{ID: s.ID(), Name: s.Name(), Default: true}, nil
}

func (p *pulseHost) OpenInput(deviceID string, cfg StreamConfig, onData DataFunc, _ ErrorFunc) (Stream, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []pulse.RecordOption{
		pulse.RecordSampleRate(cfg.SampleRate),
		pulse.RecordLatency(0.05),
	}
	switch cfg.Channels {
	case 1:
		opts = append(opts, pulse.RecordMono)
	case 2:
		opts = append(opts, pulse.RecordStereo)
	default:
		return nil, fmt.Errorf("%w: pulse records mono or stereo, not %d channels", ErrStreamConfig, cfg.Channels)
	}

	var source *pulse.Source
	var err error
	if deviceID == "" {
		source, err = p.client.DefaultSource()
		if err != nil || source == nil {
			return nil, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
		}
	} else {
		source, err = p.client.SourceByID(deviceID)
		if err != nil || source == nil {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
		}
	}
	opts = append(opts, pulse.RecordSource(source))

	s := &pulseStream{}
	writer := pulse.Float32Writer(func(buf []float32) (int, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.paused || len(buf) == 0 {
			return len(buf), nil
		}
		onData(buf)
		return len(buf), nil
	})

	stream, err := p.client.NewRecord(writer, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulse record: %w", err)
	}
	s.stream = stream
	return s, nil
}

func (p *pulseHost) Close() error {
	p.client.Close()
	return nil
}

type pulseStream struct {
	stream *pulse.RecordStream

	mu     sync.Mutex
	paused bool
}

func (s *pulseStream) Start() error {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.stream.Start()
	return nil
}

// Pause corks the stream. Data the server already queued is dropped by the
// writer rather than delivered after Pause returns.
func (s *pulseStream) Pause() error {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.stream.Stop()
	return nil
}

func (s *pulseStream) Close() error {
	s.stream.Close()
	return nil
}
