package portprobe

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// RunOptions carries the per-invocation parameters to Runner.Run: the
// requested flag bitset, AT tuning knobs, and overrides. Mirrors the Task
// context fields from §3.
type RunOptions struct {
	Flags Flag

	ATSendDelay      time.Duration
	ATRemoveEcho     bool
	ATSendLF         bool
	ATOpenRetryLimit int // total AT open attempts; 0 means atprobe.go's default

	ATCustomProbe ATScript // overrides the fixed "AT" sub-probe script
	ATCustomInit  CustomInitFunc

	Limiter *rate.Limiter // paces AT open retries and command sends
}

// Task is the per-invocation state created when Runner.Run is invoked and
// destroyed on completion. It owns the two cancellation tokens from §5: the
// caller's outer context, and an inner context used only to abort the AT
// phase (e.g. on a junk-buffer event) without killing the whole task.
type Task struct {
	id    string
	probe *Probe

	outerCtx context.Context
	innerCtx context.Context
	cancelInner context.CancelFunc

	port *SerialPort // at most one transport open at a time

	atCustomInitRun bool
}

// Runner drives a single probe Task through its phases, in the order
// AT-family -> QCDM -> WDM, handling cancellation and the mandatory
// deferred-completion hop. Grounded on the teacher's portgroup.go (which
// multiplexes work across multiple owned resources via a run loop and a
// stop channel) and collector.go (which sequences Setup phases in a fixed
// order), generalized here from "multiplex N ports" to "sequence N probe
// phases for one port".
type Runner struct{}

// NewRunner constructs a Runner. It carries no state of its own; all state
// lives in the Task and Probe for each invocation.
func NewRunner() *Runner {
	return &Runner{}
}

// Run starts (or short-circuits) a probe task for probe and returns a
// channel that receives exactly one value: nil on success, or a
// *ProbeError. The channel send always happens on a goroutine scheduled via
// time.AfterFunc(0, ...) after any transport has been closed — the Go
// expression of the deferred-completion contract in §5: never complete
// synchronously from inside a transport callback.
func (r *Runner) Run(ctx context.Context, probe *Probe, opts RunOptions) <-chan error {
	result := make(chan error, 1)

	missing := probe.Missing(opts.Flags)
	if missing == 0 {
		completeNextTick(result, nil)
		return result
	}

	log.Println(probe.Identity().Key(), "- launching port probing:", missing.String())

	task := &Task{id: NewTaskID(), probe: probe, outerCtx: ctx}
	if err := probe.AttachTask(task); err != nil {
		// Invariant 1 violation: a second task while one is live is a
		// programmer error. Surface it on the next tick like every other
		// completion; no I/O has happened.
		completeNextTick(result, err)
		return result
	}

	inner, cancelInner := context.WithCancel(context.Background())
	task.innerCtx = inner
	task.cancelInner = cancelInner
	go linkCancellation(ctx, cancelInner)

	go r.runTask(task, missing, opts, result)
	return result
}

// linkCancellation cancels inner whenever outer is done, implementing the
// one-directional parent->child propagation from §5 ("outer cancel ⇒ inner
// cancel, but not vice versa").
func linkCancellation(outer context.Context, cancelInner context.CancelFunc) {
	<-outer.Done()
	cancelInner()
}

func (r *Runner) runTask(task *Task, missing Flag, opts RunOptions, result chan error) {
	identity := task.probe.Identity()
	var finalErr error

	defer func() {
		task.cancelInner()
		cleanupTask(task)
		completeNextTick(result, finalErr)
	}()

	if task.outerCtx.Err() != nil {
		finalErr = NewProbeError(Cancelled, "")
		return
	}

	if missing&atFamily != 0 {
		if err := r.runATPhase(task, missing, opts); err != nil {
			finalErr = err
			return
		}
		missing = task.probe.Missing(opts.Flags)
	}

	if task.outerCtx.Err() != nil {
		finalErr = NewProbeError(Cancelled, "")
		return
	}

	if missing&FlagQCDM != 0 {
		if err := r.runQCDMPhase(task, identity); err != nil {
			finalErr = err
			return
		}
		missing = task.probe.Missing(opts.Flags)
	}

	if task.outerCtx.Err() != nil {
		finalErr = NewProbeError(Cancelled, "")
		return
	}

	if missing&(FlagQMI|FlagMBIM) != 0 && identity.IsCdcWdmClass() {
		if err := r.runWDMPhase(task, identity, missing); err != nil {
			finalErr = err
			return
		}
	}
}

// runATPhase runs custom_init (once) then the fixed AT/Vendor/Product/Icera
// sub-probes in order, per §4.2/§4.3. It listens on the serial port's
// buffer-full event and, on one firing, cancels only the inner (AT) token,
// deciding is_at=false and letting the caller's phase sequencing move on to
// QCDM — it never cancels the outer task.
func (r *Runner) runATPhase(task *Task, missing Flag, opts RunOptions) error {
	identity := task.probe.Identity()
	atOpts := ATProbeOptions{
		IsUSBBus:       isUSBBus(identity),
		SendDelay:      opts.ATSendDelay,
		RemoveEcho:     opts.ATRemoveEcho,
		AppendLF:       opts.ATSendLF,
		CustomInit:     opts.ATCustomInit,
		Limiter:        opts.Limiter,
		OpenRetryLimit: opts.ATOpenRetryLimit,
	}

	port, err := openAT(task.outerCtx, identity.Name, atOpts)
	if err != nil {
		return err
	}
	task.port = port

	bufferFullDone := make(chan struct{})
	go func() {
		select {
		case <-port.BufferFull():
			log.Println(identity.Key(), "- junk detected, cancelling AT sub-probe")
			task.cancelInner()
		case <-bufferFullDone:
		}
	}()
	defer close(bufferFullDone)

	if opts.ATCustomInit != nil && !task.atCustomInitRun {
		if err := opts.ATCustomInit(task.innerCtx, port); err != nil {
			return NewProbeError(Generic, err.Error())
		}
		task.atCustomInitRun = true
	}

	atScript := opts.ATCustomProbe
	if atScript == nil {
		atScript = DefaultATScript()
	}

	if missing&FlagAT != 0 {
		outcome, err := runATScript(task.innerCtx, port, atScript, 0, opts.Limiter, false)
		if err != nil {
			return afterInnerCancel(task, err)
		}
		task.probe.SetAT(outcome.Value.(bool))
		log.Println(identity.Key(), "- AT decided:", outcome.Value)
	}

	if !task.probe.IsAT() {
		return nil // AT decided false also decided vendor/product/icera absent
	}

	if missing&FlagATVendor != 0 && !task.probe.Decided(FlagATVendor) {
		outcome, err := runATScript(task.innerCtx, port, DefaultVendorScript(), 0, opts.Limiter, "")
		if err != nil {
			return afterInnerCancel(task, err)
		}
		task.probe.SetATVendor(outcome.Value.(string))
	}

	if missing&FlagATProduct != 0 && !task.probe.Decided(FlagATProduct) {
		outcome, err := runATScript(task.innerCtx, port, DefaultProductScript(), 0, opts.Limiter, "")
		if err != nil {
			return afterInnerCancel(task, err)
		}
		task.probe.SetATProduct(outcome.Value.(string))
	}

	if missing&FlagATIcera != 0 && !task.probe.Decided(FlagATIcera) {
		outcome, err := runATScript(task.innerCtx, port, DefaultIceraScript(), IceraInterCommandDelay, opts.Limiter, false)
		if err != nil {
			return afterInnerCancel(task, err)
		}
		task.probe.SetATIcera(outcome.Value.(bool))
	}

	return nil
}

// afterInnerCancel distinguishes an inner-token (AT-only) cancellation,
// which is recoverable (decide is_at=false and proceed), from an outer
// cancellation, which is terminal for the whole task.
func afterInnerCancel(task *Task, err error) error {
	if KindOf(err) != Cancelled {
		return err
	}
	if task.outerCtx.Err() != nil {
		return NewProbeError(Cancelled, "")
	}
	// Inner-only cancellation: the junk-buffer event fired. Decide
	// negatively and let the Runner continue to QCDM.
	task.probe.SetAT(false)
	return nil
}

// runQCDMPhase closes any still-open AT serial port, opens a fresh QCDM
// transport, and runs the version_info exchange, per §4.4.
func (r *Runner) runQCDMPhase(task *Task, identity PortIdentity) error {
	if task.port != nil {
		if err := task.port.Close(); err != nil {
			HandleMinorError(err)
		}
		task.port = nil
	}

	port := NewSerialPort(identity.Name, 0, false, false)
	if err := port.Open(task.outerCtx); err != nil {
		return err
	}
	task.port = port

	decided, err := probeQCDM(task.outerCtx, port)
	if err != nil {
		return err
	}
	task.probe.SetQCDM(decided)
	log.Println(identity.Key(), "- QCDM decided:", decided)
	return nil
}

// runWDMPhase asks the QMI then MBIM yes/no questions in order, per §4.5.
func (r *Runner) runWDMPhase(task *Task, identity PortIdentity, missing Flag) error {
	if missing&FlagQMI != 0 {
		decided, err := probeQMI(task.outerCtx, identity.Name)
		if err != nil {
			return err
		}
		task.probe.SetQMI(decided)
		log.Println(identity.Key(), "- QMI decided:", decided)
	}
	if task.probe.Decided(FlagQMI) && task.probe.IsQMI() {
		return nil // mutual exclusion already decided MBIM absent
	}
	if missing&FlagMBIM != 0 {
		decided, err := probeMBIM(task.outerCtx, identity.Name)
		if err != nil {
			return err
		}
		task.probe.SetMBIM(decided)
		log.Println(identity.Key(), "- MBIM decided:", decided)
	}
	return nil
}

// isUSBBus reports whether identity names a USB-bus port, which gets a
// zero AT send-delay regardless of the caller-supplied value (§4.3).
func isUSBBus(identity PortIdentity) bool {
	return identity.Subsystem == "usbmisc" || identity.Subsystem == "usb"
}

// cleanupTask closes any transport the task still owns and detaches it
// from the Probe. Idempotent, and run on every completion path, per §5's
// "single cleanup routine" requirement.
func cleanupTask(task *Task) {
	if task.port != nil {
		if err := task.port.Close(); err != nil {
			HandleMinorError(err)
		}
		task.port = nil
	}
	task.probe.DetachTask()
}

// completeNextTick posts err to result on the next scheduler tick, never
// synchronously from the caller's stack. This is the load-bearing property
// from §5/§8: completion is always observed on a tick strictly later than
// whatever produced the decision, so a transport's close sequence — which
// may still be producing response bytes — is never raced by the caller's
// completion handler.
func completeNextTick(result chan error, err error) {
	time.AfterFunc(0, func() {
		result <- err
		close(result)
	})
}
