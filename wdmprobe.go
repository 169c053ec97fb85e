package portprobe

import "context"

// WDMHandle is the contract §4.6 requires of the QMI and MBIM transports:
// construct over a port name, open, close, and report whether currently
// open. Neither transport exposes anything else to the probe; the actual
// protocol handshakes are the external collaborators' concern.
type WDMHandle interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	IsOpen() bool
}

// probeWDMStep asks a single yes/no question of one WDM transport: open,
// record success/failure as the decision, then close regardless of outcome.
// Grounded on mm-port-probe.c's wdm_probe_qmi/wdm_probe_mbim, which share
// exactly this open-then-close-then-decide shape, and on the teacher's
// reflector.go, which pairs an unconditional open (ListenUDP) with a receive
// loop the same way this pairs Open with a decision before Close.
func probeWDMStep(ctx context.Context, handle WDMHandle) (decided bool, err error) {
	openErr := handle.Open(ctx)
	closeErr := handle.Close(ctx)
	if openErr != nil {
		if KindOf(openErr) == Cancelled {
			return false, openErr
		}
		return false, nil
	}
	if closeErr != nil {
		HandleMinorError(closeErr)
	}
	return true, nil
}

// probeQMI decides is_qmi for a cdc-wdm-class port.
func probeQMI(ctx context.Context, name string) (bool, error) {
	return probeWDMStep(ctx, newQMIHandle(name))
}

// probeMBIM decides is_mbim for a cdc-wdm-class port.
func probeMBIM(ctx context.Context, name string) (bool, error) {
	return probeWDMStep(ctx, newMBIMHandle(name))
}
