package audio

import (
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// MonitorSource captures the system's audio output (loopback). On
// PulseAudio/PipeWire systems this is a monitor source; on WASAPI it is a
// loopback of a playback device. An empty device name auto-detects the
// default output.
type MonitorSource struct {
	device string
	logger *slog.Logger

	mu      sync.Mutex
	session *captureSession
}

// NewMonitorSource creates a loopback source for the named device, or the
// default output when device is empty.
func NewMonitorSource(logger *slog.Logger, device string) *MonitorSource {
	return &MonitorSource{device: device, logger: logger}
}

// Name identifies the source variant in source-change events.
func (m *MonitorSource) Name() string { return "monitor" }

// Start begins capture. It fails with ErrAlreadyRunning if a previous Start
// has not been matched by Stop, and propagates device-open errors to the
// caller unretried.
func (m *MonitorSource) Start(callback func(chunk []float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return ErrAlreadyRunning
	}

	session, err := openCapture(m.logger, func(ctx *malgo.AllocatedContext) (deviceSelection, error) {
		return selectMonitorDevice(ctx, m.device)
	}, callback)
	if err != nil {
		return err
	}

	m.session = session
	return nil
}

// Stop halts capture and releases the device. Safe to call repeatedly.
func (m *MonitorSource) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return
	}
	m.session.close()
	m.session = nil
}
