//go:build !qmi

package portprobe

import "context"

// noQMIHandle is the compile-time-disabled fallback: it synchronously
// decides negative without ever constructing a real transport, per §4.5's
// "keep the synchronously-decide-negative fallback so callers never wait on
// absent transports".
type noQMIHandle struct{}

func newQMIHandle(name string) WDMHandle {
	return &noQMIHandle{}
}

func (h *noQMIHandle) Open(ctx context.Context) error {
	return NewProbeError(OpenFailed, "QMI support not compiled in")
}

func (h *noQMIHandle) Close(ctx context.Context) error { return nil }

func (h *noQMIHandle) IsOpen() bool { return false }
