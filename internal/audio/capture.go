package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gen2brain/malgo"
)

// ErrAlreadyRunning is returned when Start is called on a source that has not
// been stopped.
var ErrAlreadyRunning = errors.New("audio source already running; call Stop first")

// Source is the capture contract shared by the loopback and microphone
// variants. Start begins continuous capture and invokes callback with one
// 8000-sample 16kHz mono chunk roughly every 0.5 seconds. Stop halts capture
// and releases the device; it is idempotent and safe without a prior Start.
type Source interface {
	Start(callback func(chunk []float32)) error
	Stop()
	Name() string
}

// captureQueueDepth bounds the device-to-consumer queue. At 50ms blocks this
// is over ten seconds of headroom; if the consumer falls that far behind,
// dropping is better than blocking the device callback.
const captureQueueDepth = 256

// captureSession owns one open device plus the consumer goroutine that
// resamples queued blocks and assembles fixed chunks. Both source variants
// delegate to it; they differ only in device selection.
type captureSession struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	queue  chan []float32
	stop   chan struct{}
	done   chan struct{}
	logger *slog.Logger
}

// deviceSelection names the device type and ID a variant resolved. A nil
// DeviceID means the system default for the given type.
type deviceSelection struct {
	Type     malgo.DeviceType
	DeviceID *malgo.DeviceID
	Label    string
}

// openCapture opens a device chosen by selectDevice and starts the
// capture/consumer pair. The realtime data callback only converts the incoming
// block and does a non-blocking enqueue; resampling and chunk slicing happen
// on the consumer goroutine.
func openCapture(logger *slog.Logger, selectDevice func(*malgo.AllocatedContext) (deviceSelection, error),
	callback func(chunk []float32)) (*captureSession, error) {

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	s := &captureSession{
		ctx:    ctx,
		queue:  make(chan []float32, captureQueueDepth),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}

	sel, err := selectDevice(ctx)
	if err != nil {
		s.teardownContext()
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(sel.Type)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = 0 // native device rate; resampled on the consumer
	deviceConfig.Alsa.NoMMap = 1
	deviceConfig.PeriodSizeInMilliseconds = 50
	if sel.DeviceID != nil {
		deviceConfig.Capture.DeviceID = sel.DeviceID.Pointer()
	}

	onRecv := func(_, input []byte, frameCount uint32) {
		if frameCount == 0 {
			return
		}
		block := BytesToFloat32(input)
		select {
		case s.queue <- block:
		default:
			// Queue full: the consumer is stalled. Dropping here keeps the
			// realtime callback from ever blocking.
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		s.teardownContext()
		return nil, fmt.Errorf("failed to open device %q: %w", sel.Label, err)
	}
	s.device = device

	nativeRate := int(device.SampleRate())
	assembler, err := NewAssembler(nativeRate, callback)
	if err != nil {
		device.Uninit()
		s.teardownContext()
		return nil, fmt.Errorf("failed to create chunk assembler: %w", err)
	}

	go s.consume(assembler)

	if err := device.Start(); err != nil {
		close(s.stop)
		device.Uninit()
		s.teardownContext()
		return nil, fmt.Errorf("failed to start device %q: %w", sel.Label, err)
	}

	logger.Info("Audio capture started",
		slog.String("device", sel.Label),
		slog.Int("native_rate", nativeRate),
	)

	return s, nil
}

// consume drains the capture queue, resamples and emits chunks. Per-block
// errors are logged and the loop continues; a dead consumer would silently
// starve the segmenter.
func (s *captureSession) consume(assembler *Assembler) {
	defer close(s.done)
	defer func() {
		if err := assembler.Close(); err != nil {
			s.logger.Warn("Error closing assembler", slog.String("error", err.Error()))
		}
	}()

	for {
		select {
		case <-s.stop:
			return
		case block := <-s.queue:
			if err := assembler.Push(block); err != nil {
				s.logger.Warn("Audio consumer error", slog.String("error", err.Error()))
			}
		}
	}
}

// close stops the device, the consumer goroutine and the context.
func (s *captureSession) close() {
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}

	close(s.stop)
	select {
	case <-s.done:
	case <-time.After(time.Second):
		s.logger.Warn("Audio consumer did not stop in time")
	}

	s.teardownContext()
}

func (s *captureSession) teardownContext() {
	if s.ctx != nil {
		if err := s.ctx.Uninit(); err != nil {
			s.logger.Warn("Error uninitializing audio context", slog.String("error", err.Error()))
		}
		s.ctx.Free()
		s.ctx = nil
	}
}
