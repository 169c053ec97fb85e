//go:build mbim

package portprobe

import (
	"context"
	"os"
)

// mbimHandle is the MBIM transport used when the mbim build tag is set.
// Close is explicit and asynchronous-shaped (it must complete before the
// task completes, per §4.5), mirrored here as a plain blocking Close since
// Go's os.File.Close is already synchronous from the caller's perspective.
type mbimHandle struct {
	name string
	file *os.File
}

func newMBIMHandle(name string) WDMHandle {
	return &mbimHandle{name: name}
}

func (h *mbimHandle) Open(ctx context.Context) error {
	f, err := os.OpenFile(devicePath(h.name), os.O_RDWR, 0)
	if err != nil {
		return NewProbeError(OpenFailed, err.Error())
	}
	h.file = f
	return nil
}

func (h *mbimHandle) Close(ctx context.Context) error {
	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}

func (h *mbimHandle) IsOpen() bool {
	return h.file != nil
}
