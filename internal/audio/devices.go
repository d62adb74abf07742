package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

// selectMonitorDevice resolves the loopback/monitor capture device.
//
// Resolution order:
//  1. A capture device whose name matches (PulseAudio/PipeWire expose monitor
//     sources as regular capture devices with a ".monitor" suffix).
//  2. A playback device whose name matches, captured in loopback mode
//     (the WASAPI path).
//  3. With an empty name, the monitor of the default sink when one exists,
//     else loopback of the default playback device.
func selectMonitorDevice(ctx *malgo.AllocatedContext, name string) (deviceSelection, error) {
	captures, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return deviceSelection{}, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	if name != "" {
		for i := range captures {
			if strings.Contains(captures[i].Name(), name) {
				return deviceSelection{
					Type:     malgo.Capture,
					DeviceID: &captures[i].ID,
					Label:    captures[i].Name(),
				}, nil
			}
		}
	} else {
		for i := range captures {
			if strings.Contains(strings.ToLower(captures[i].Name()), "monitor") {
				return deviceSelection{
					Type:     malgo.Capture,
					DeviceID: &captures[i].ID,
					Label:    captures[i].Name(),
				}, nil
			}
		}
	}

	playbacks, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return deviceSelection{}, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}

	if name != "" {
		for i := range playbacks {
			if strings.Contains(playbacks[i].Name(), name) {
				return deviceSelection{
					Type:     malgo.Loopback,
					DeviceID: &playbacks[i].ID,
					Label:    playbacks[i].Name() + " (loopback)",
				}, nil
			}
		}
		return deviceSelection{}, fmt.Errorf("no monitor or playback device matches %q", name)
	}

	for i := range playbacks {
		if playbacks[i].IsDefault != 0 {
			return deviceSelection{
				Type:     malgo.Loopback,
				DeviceID: &playbacks[i].ID,
				Label:    playbacks[i].Name() + " (loopback)",
			}, nil
		}
	}

	// No explicit default reported: let the backend pick.
	return deviceSelection{Type: malgo.Loopback, Label: "default output (loopback)"}, nil
}

// selectMicrophoneDevice resolves a microphone capture device by name, or the
// system default when name is empty.
func selectMicrophoneDevice(ctx *malgo.AllocatedContext, name string) (deviceSelection, error) {
	if name == "" {
		return deviceSelection{Type: malgo.Capture, Label: "default microphone"}, nil
	}

	captures, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return deviceSelection{}, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	for i := range captures {
		if strings.Contains(captures[i].Name(), name) {
			return deviceSelection{
				Type:     malgo.Capture,
				DeviceID: &captures[i].ID,
				Label:    captures[i].Name(),
			}, nil
		}
	}

	return deviceSelection{}, fmt.Errorf("no capture device matches %q", name)
}

// ListDevices returns the names of available capture and playback devices,
// for settings dialogs in the presentation layer.
func ListDevices() (captureNames, playbackNames []string, err error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	captures, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	for i := range captures {
		captureNames = append(captureNames, captures[i].Name())
	}

	playbacks, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}
	for i := range playbacks {
		playbackNames = append(playbackNames, playbacks[i].Name())
	}

	return captureNames, playbackNames, nil
}
