//go:build qmi

package portprobe

import (
	"context"
	"os"
)

// qmiHandle is the QMI transport used when the qmi build tag is set. It
// attempts a minimal device-file open (no CTL-sync, no ownership, per
// §4.5) against the cdc-wdm character device; a successful open is taken
// as proof the kernel's qmi_wwan control channel exists.
type qmiHandle struct {
	name string
	file *os.File
}

func newQMIHandle(name string) WDMHandle {
	return &qmiHandle{name: name}
}

func (h *qmiHandle) Open(ctx context.Context) error {
	f, err := os.OpenFile(devicePath(h.name), os.O_RDWR, 0)
	if err != nil {
		return NewProbeError(OpenFailed, err.Error())
	}
	h.file = f
	return nil
}

func (h *qmiHandle) Close(ctx context.Context) error {
	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}

func (h *qmiHandle) IsOpen() bool {
	return h.file != nil
}
