package portprobe

import (
	"bytes"
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// junkMarkers are literal byte sequences the original treats as proof a
// port is emitting something other than AT responses. Matched with
// bytes.Contains (byte-level, not a string primitive) because responses can
// carry embedded NULs that would truncate a C-string-style scan.
var junkMarkers = [][]byte{
	[]byte("option/faema_"),
	[]byte("os_logids.h"),
	[]byte("NETWORK SERVICE CHANGE"),
}

// isNonATResponse implements the junk filter: a run of 32 consecutive zero
// bytes, or any of junkMarkers, marks data as non-AT garbage. The original
// scans `len - 32` bytes with an unsigned comparison that underflows when
// len < 32; that underflow is deliberately not replicated here, so data
// shorter than 32 bytes is simply never considered junk by the zero-run rule.
func isNonATResponse(data []byte) bool {
	if len(data) >= 32 {
		zero := 0
		for _, b := range data {
			if b == 0 {
				zero++
				if zero >= 32 {
					return true
				}
			} else {
				zero = 0
			}
		}
	}
	for _, marker := range junkMarkers {
		if bytes.Contains(data, marker) {
			return true
		}
	}
	return false
}

// ATOutcome is what a response classifier decides about a single command's
// reply.
type ATOutcome struct {
	KeepTrying bool        // advance to the next command in the list
	Decided    bool        // a value was decided; ends the sub-probe
	Value      interface{} // meaningful only if Decided
	Abort      bool        // terminal Unsupported error
}

// ATClassifier inspects a raw response (with the command echo, if any,
// already stripped) and produces an ATOutcome.
type ATClassifier func(response string) ATOutcome

// ATCommand is one entry in a sub-probe's command list.
type ATCommand struct {
	Command    string
	Timeout    time.Duration
	Classifier ATClassifier
}

// ATScript is an ordered list of commands; the sub-probe tries each in turn
// until one decides, or the list is exhausted (negative decision).
type ATScript []ATCommand

// booleanClassifier decides true on any reply containing "OK", keeps
// trying otherwise (used by the AT sub-probe).
func booleanClassifier(response string) ATOutcome {
	if strings.Contains(response, "OK") {
		return ATOutcome{Decided: true, Value: true}
	}
	return ATOutcome{KeepTrying: true}
}

// stringClassifier decides the concatenation of non-empty response lines
// (minus the "OK"/"ERROR" terminator line) as the value, used by Vendor and
// Product sub-probes.
func stringClassifier(response string) ATOutcome {
	var kept []string
	for _, line := range strings.Split(response, "\r\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "OK" || line == "ERROR" {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return ATOutcome{KeepTrying: true}
	}
	return ATOutcome{Decided: true, Value: strings.Join(kept, " ")}
}

// iceraClassifier decides true iff the reply contains the %IPSYS: marker.
func iceraClassifier(response string) ATOutcome {
	if strings.Contains(response, "%IPSYS:") {
		return ATOutcome{Decided: true, Value: true}
	}
	return ATOutcome{KeepTrying: true}
}

// DefaultATScript is the fixed "AT" sub-probe script.
func DefaultATScript() ATScript {
	return ATScript{
		{Command: "AT", Timeout: 3 * time.Second, Classifier: booleanClassifier},
		{Command: "AT", Timeout: 3 * time.Second, Classifier: booleanClassifier},
		{Command: "AT", Timeout: 3 * time.Second, Classifier: booleanClassifier},
	}
}

// DefaultVendorScript is the fixed "Vendor" sub-probe script.
func DefaultVendorScript() ATScript {
	return ATScript{
		{Command: "+CGMI", Timeout: 3 * time.Second, Classifier: stringClassifier},
		{Command: "+GMI", Timeout: 3 * time.Second, Classifier: stringClassifier},
		{Command: "I", Timeout: 3 * time.Second, Classifier: stringClassifier},
	}
}

// DefaultProductScript is the fixed "Product" sub-probe script.
func DefaultProductScript() ATScript {
	return ATScript{
		{Command: "+CGMM", Timeout: 3 * time.Second, Classifier: stringClassifier},
		{Command: "+GMM", Timeout: 3 * time.Second, Classifier: stringClassifier},
		{Command: "I", Timeout: 3 * time.Second, Classifier: stringClassifier},
	}
}

// IceraInterCommandDelay is the wait between Icera retries.
const IceraInterCommandDelay = 2 * time.Second

// DefaultIceraScript is the fixed "Icera" sub-probe script.
func DefaultIceraScript() ATScript {
	return ATScript{
		{Command: "%IPSYS?", Timeout: 3 * time.Second, Classifier: iceraClassifier},
		{Command: "%IPSYS?", Timeout: 3 * time.Second, Classifier: iceraClassifier},
		{Command: "%IPSYS?", Timeout: 3 * time.Second, Classifier: iceraClassifier},
	}
}

// V1Parser is the ResponseParser for AT ports: the canonical V.1 framer,
// recognizing "OK"/"ERROR"/"+CME ERROR:" terminators. Every Feed first runs
// the built-in junk pre-filter (isNonATResponse), which rejects the
// accumulated buffer outright.
type V1Parser struct {
	buf []byte
}

func (p *V1Parser) Reset() { p.buf = nil }

func (p *V1Parser) Feed(chunk []byte) ([]byte, bool, error) {
	p.buf = append(p.buf, chunk...)
	if isNonATResponse(p.buf) {
		return nil, false, NewProbeError(ParseFailed, "non-AT response detected")
	}
	text := string(p.buf)
	for _, terminator := range []string{"OK\r\n", "ERROR\r\n", "+CME ERROR:"} {
		if strings.Contains(text, terminator) {
			return p.buf, true, nil
		}
	}
	return nil, false, nil
}

// openAttemptInterval is the 1-second wait between AT open retries (§4.3).
const openAttemptInterval = 1 * time.Second

// defaultMaxOpenAttempts is the total number of opens attempted before a
// OpenFailedNoDevice escalates to a terminal OpenFailed (§4.3, §8), used
// when a caller leaves ATProbeOptions.OpenRetryLimit unset (zero).
const defaultMaxOpenAttempts = 4

// CustomInitFunc runs once, before any script, after the flash.
type CustomInitFunc func(ctx context.Context, port *SerialPort) error

// ATProbeOptions carries the per-task AT tuning knobs from §3's Task
// context: send delay, echo/LF handling, and optional overrides.
type ATProbeOptions struct {
	IsUSBBus       bool // USB bus gets zero send-delay regardless of SendDelay
	SendDelay      time.Duration
	RemoveEcho     bool
	AppendLF       bool
	CustomInit     CustomInitFunc
	Limiter        *rate.Limiter // paces open retries and command sends
	OpenRetryLimit int           // total open attempts; 0 means defaultMaxOpenAttempts
}

// openAT opens the named port as an AT transport, making up to
// opts.OpenRetryLimit open attempts in total (defaultMaxOpenAttempts if
// unset), retrying only on OpenFailedNoDevice (1s apart), then flashes it. Retries are paced through
// a rate.Limiter so a flapping port can't spin the probe loop.
func openAT(ctx context.Context, name string, opts ATProbeOptions) (*SerialPort, error) {
	sendDelay := opts.SendDelay
	if opts.IsUSBBus {
		sendDelay = 0
	}
	maxOpenAttempts := opts.OpenRetryLimit
	if maxOpenAttempts <= 0 {
		maxOpenAttempts = defaultMaxOpenAttempts
	}
	port := NewSerialPort(name, sendDelay, opts.RemoveEcho, opts.AppendLF)
	var lastErr error
	for attempt := 1; attempt <= maxOpenAttempts; attempt++ {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return nil, NewProbeError(Cancelled, "")
			}
		}
		err := port.Open(ctx)
		if err == nil {
			if ferr := port.Flash(ctx); ferr != nil {
				return nil, ferr
			}
			return port, nil
		}
		lastErr = err
		if KindOf(err) != OpenFailedNoDevice {
			return nil, err
		}
		if attempt == maxOpenAttempts {
			return nil, NewProbeError(OpenFailed, "no device after retries")
		}
		select {
		case <-time.After(openAttemptInterval):
		case <-ctx.Done():
			return nil, NewProbeError(Cancelled, "")
		}
	}
	return nil, lastErr
}

// runATScript drives script against port, honoring ctx cancellation (the
// inner AT token per §5) between every command. Returns the ATOutcome from
// whichever command decided, or negativeValue if the list is exhausted with
// no decision, or a terminal error on abort/cancellation.
func runATScript(ctx context.Context, port *SerialPort, script ATScript, interCommandDelay time.Duration, limiter *rate.Limiter, negativeValue interface{}) (ATOutcome, error) {
	parser := &V1Parser{}
	for i, cmd := range script {
		select {
		case <-ctx.Done():
			return ATOutcome{}, NewProbeError(Cancelled, "")
		default:
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return ATOutcome{}, NewProbeError(Cancelled, "")
			}
		}
		if err := port.Send(ctx, cmd.Command); err != nil {
			if KindOf(err) == Cancelled {
				return ATOutcome{}, err
			}
			continue // per-command failures are not terminal
		}
		raw, err := port.ReadResponse(ctx, parser, cmd.Timeout)
		if err != nil {
			if KindOf(err) == Cancelled {
				return ATOutcome{}, err
			}
			continue // timeout/parse failure: advance to next command
		}
		response := stripEcho(string(raw), cmd.Command)
		outcome := cmd.Classifier(response)
		if outcome.Abort {
			return ATOutcome{}, NewProbeError(Unsupported, "classifier aborted probe")
		}
		if outcome.Decided {
			return outcome, nil
		}
		if i < len(script)-1 && interCommandDelay > 0 {
			select {
			case <-time.After(interCommandDelay):
			case <-ctx.Done():
				return ATOutcome{}, NewProbeError(Cancelled, "")
			}
		}
	}
	return ATOutcome{Decided: true, Value: negativeValue}, nil
}

// stripEcho removes a leading local echo of cmd from response, when
// RemoveEcho-style framing leaves it in place.
func stripEcho(response, cmd string) string {
	trimmed := strings.TrimPrefix(response, cmd+"\r\n")
	trimmed = strings.TrimPrefix(trimmed, cmd+"\r")
	return trimmed
}
