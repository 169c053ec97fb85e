//go:build !mbim

package portprobe

import "context"

// noMBIMHandle is the compile-time-disabled fallback for MBIM, symmetric
// with noQMIHandle.
type noMBIMHandle struct{}

func newMBIMHandle(name string) WDMHandle {
	return &noMBIMHandle{}
}

func (h *noMBIMHandle) Open(ctx context.Context) error {
	return NewProbeError(OpenFailed, "MBIM support not compiled in")
}

func (h *noMBIMHandle) Close(ctx context.Context) error { return nil }

func (h *noMBIMHandle) IsOpen() bool { return false }
