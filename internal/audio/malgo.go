package audio

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoHost struct {
	ctx *malgo.AllocatedContext
}

// NewMalgo creates a miniaudio-based host.
func NewMalgo() (Host, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo init: %w", err)
	}
	return &malgoHost{ctx: ctx}, nil
}

func (m *malgoHost) Name() string { return BackendMalgo }

func (m *malgoHost) Devices() ([]Device, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		result = append(result, Device{
			ID:      hex.EncodeToString(d.ID[:]),
			Name:    d.Name(),
			Default: d.IsDefault != 0,
		})
	}
	return result, nil
}

func (m *malgoHost) DefaultInputDevice() (Device, error) {
	devices, err := m.Devices()
	if err != nil {
		return Device{}, err
	}
	return pickDevice(devices, "")
}

func (m *malgoHost) OpenInput(deviceID string, cfg StreamConfig, onData DataFunc, onError ErrorFunc) (Stream, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)

	if deviceID != "" {
		devices, err := m.Devices()
		if err != nil {
			return nil, err
		}
		device, err := pickDevice(devices, deviceID)
		if err != nil {
			return nil, err
		}
		idBytes, err := hex.DecodeString(device.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid device ID: %w", err)
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		deviceConfig.Capture.DeviceID = devID.Pointer()
	} else if _, err := m.DefaultInputDevice(); err != nil {
		return nil, err
	}

	s := &malgoStream{}
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.buf = decodeF32(s.buf[:0], data)
			onData(s.buf)
		},
		Stop: func() {
			if !s.stopping.Load() && onError != nil {
				onError(ErrStreamInterrupt)
			}
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("malgo init device: %w", err)
	}
	s.device = dev
	return s, nil
}

func (m *malgoHost) Close() error {
	if err := m.ctx.Uninit(); err != nil {
		return err
	}
	m.ctx.Free()
	return nil
}

type malgoStream struct {
	device   *malgo.Device
	stopping atomic.Bool

	mu  sync.Mutex
	buf []float32
}

func (s *malgoStream) Start() error {
	s.stopping.Store(false)
	return s.device.Start()
}

func (s *malgoStream) Pause() error {
	s.stopping.Store(true)
	if err := s.device.Stop(); err != nil {
		return err
	}
	// wait out a callback that was already running
	s.mu.Lock()
	s.mu.Unlock()
	return nil
}

func (s *malgoStream) Close() error {
	s.stopping.Store(true)
	s.device.Uninit()
	return nil
}

// decodeF32 converts little-endian float32 bytes into dst.
func decodeF32(dst []float32, data []byte) []float32 {
	for i := 0; i+4 <= len(data); i += 4 {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(data[i:])))
	}
	return dst
}
