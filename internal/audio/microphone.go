package audio

import (
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// MicrophoneSource captures from a physical input device. An empty device
// name selects the system default microphone.
type MicrophoneSource struct {
	device string
	logger *slog.Logger

	mu      sync.Mutex
	session *captureSession
}

// NewMicrophoneSource creates a microphone source for the named device, or
// the system default when device is empty.
func NewMicrophoneSource(logger *slog.Logger, device string) *MicrophoneSource {
	return &MicrophoneSource{device: device, logger: logger}
}

// Name identifies the source variant in source-change events.
func (m *MicrophoneSource) Name() string { return "mic" }

// Start begins capture. It fails with ErrAlreadyRunning if a previous Start
// has not been matched by Stop.
func (m *MicrophoneSource) Start(callback func(chunk []float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return ErrAlreadyRunning
	}

	session, err := openCapture(m.logger, func(ctx *malgo.AllocatedContext) (deviceSelection, error) {
		return selectMicrophoneDevice(ctx, m.device)
	}, callback)
	if err != nil {
		return err
	}

	m.session = session
	return nil
}

// Stop halts capture and releases the device. Safe to call repeatedly.
func (m *MicrophoneSource) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return
	}
	m.session.close()
	m.session = nil
}
