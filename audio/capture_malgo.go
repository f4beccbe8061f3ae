package audio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoDevice is the miniaudio-backed capture device: 16 kHz mono S16 with a
// 20 ms period. Echo cancellation, noise suppression and gain control are
// left to the OS capture stack.
type MalgoDevice struct {
	sampleRate int

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// NewMalgoDevice returns an unopened capture device at the given rate.
func NewMalgoDevice(sampleRate int) *MalgoDevice {
	if sampleRate <= 0 {
		sampleRate = CaptureRate
	}
	return &MalgoDevice{sampleRate: sampleRate}
}

// Start opens the default capture device and streams PCM16 chunks to onData.
func (d *MalgoDevice) Start(onData func(pcm []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		return nil
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime
	ctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return fmt.Errorf("%w: init context: %v", ErrDeviceUnavailable, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(d.sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			// The callback buffer is reused by miniaudio; copy before handing off.
			onData(append([]byte(nil), input...))
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return classifyDeviceError(err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return classifyDeviceError(err)
	}

	d.ctx = ctx
	d.device = device
	return nil
}

// Stop releases the device and context. Idempotent.
func (d *MalgoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return nil
	}
	_ = d.device.Stop()
	d.device.Uninit()
	d.device = nil

	if d.ctx != nil {
		_ = d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
	}
	return nil
}

func classifyDeviceError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access") || strings.Contains(msg, "denied") || strings.Contains(msg, "permission") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}
