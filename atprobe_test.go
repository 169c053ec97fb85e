package portprobe

import (
	"bytes"
	"context"
	"testing"
)

func TestIsNonATResponseZeroRunBoundary(t *testing.T) {
	thirtyOne := bytes.Repeat([]byte{0}, 31)
	if isNonATResponse(thirtyOne) {
		t.Fatal("31 zero bytes must not trip the junk filter (len < 32 is never junk by the zero-run rule)")
	}
	thirtyTwo := bytes.Repeat([]byte{0}, 32)
	if !isNonATResponse(thirtyTwo) {
		t.Fatal("32 consecutive zero bytes must trip the junk filter")
	}
}

func TestIsNonATResponseShortDataNeverJunkByZeroRun(t *testing.T) {
	short := bytes.Repeat([]byte{0}, 5)
	if isNonATResponse(short) {
		t.Fatal("data shorter than 32 bytes must never be considered junk by the zero-run rule")
	}
}

func TestIsNonATResponseLiteralMarkers(t *testing.T) {
	for _, marker := range []string{"option/faema_", "os_logids.h", "NETWORK SERVICE CHANGE"} {
		data := []byte("prefix " + marker + " suffix")
		if !isNonATResponse(data) {
			t.Errorf("expected marker %q to be detected as junk", marker)
		}
	}
	if isNonATResponse([]byte("AT\r\nOK\r\n")) {
		t.Error("a normal AT response must not be flagged as junk")
	}
}

func TestBooleanClassifier(t *testing.T) {
	if out := booleanClassifier("AT\r\nOK\r\n"); !out.Decided || out.Value != true {
		t.Fatal("expected OK to decide true")
	}
	if out := booleanClassifier("AT\r\nERROR\r\n"); out.Decided || !out.KeepTrying {
		t.Fatal("expected ERROR to keep trying")
	}
}

func TestStringClassifier(t *testing.T) {
	out := stringClassifier(stripEcho("+CGMI\r\nAcme Corp\r\nOK\r\n", "+CGMI"))
	if !out.Decided {
		t.Fatal("expected a decided vendor string")
	}
	if out.Value.(string) != "Acme Corp" {
		t.Error("unexpected vendor value:", out.Value)
	}

	out = stringClassifier("ERROR\r\n")
	if out.Decided || !out.KeepTrying {
		t.Fatal("expected an all-terminator response to keep trying")
	}
}

func TestIceraClassifier(t *testing.T) {
	if out := iceraClassifier("%IPSYS: 1,2\r\nOK\r\n"); !out.Decided || out.Value != true {
		t.Fatal("expected %IPSYS: marker to decide true")
	}
	if out := iceraClassifier("OK\r\n"); out.Decided {
		t.Fatal("expected a reply with no %IPSYS: marker to keep trying")
	}
}

func TestStripEcho(t *testing.T) {
	if got := stripEcho("AT\r\nOK\r\n", "AT"); got != "OK\r\n" {
		t.Errorf("expected echo stripped, got %q", got)
	}
	if got := stripEcho("OK\r\n", "AT"); got != "OK\r\n" {
		t.Errorf("expected no-op when no echo present, got %q", got)
	}
}

func TestV1ParserDetectsTerminators(t *testing.T) {
	p := &V1Parser{}
	resp, done, err := p.Feed([]byte("AT\r\n"))
	if done || err != nil {
		t.Fatal("expected no decision yet on partial data")
	}
	resp, done, err = p.Feed([]byte("OK\r\n"))
	if err != nil || !done {
		t.Fatal("expected OK terminator to complete the response")
	}
	if !bytes.Contains(resp, []byte("OK")) {
		t.Error("expected returned response to contain OK")
	}
}

func TestV1ParserRejectsJunk(t *testing.T) {
	p := &V1Parser{}
	_, _, err := p.Feed(bytes.Repeat([]byte{0}, 40))
	if KindOf(err) != ParseFailed {
		t.Fatal("expected a junk feed to return ParseFailed")
	}
}

func TestV1ParserResetClearsState(t *testing.T) {
	p := &V1Parser{}
	p.Feed([]byte("AT\r\nOK\r\n"))
	p.Reset()
	if len(p.buf) != 0 {
		t.Fatal("expected Reset to clear the accumulated buffer")
	}
}

func TestOpenATHonorsOpenRetryLimit(t *testing.T) {
	withDevicePath(t, func(name string) string { return "/nonexistent/" + name })

	_, err := openAT(context.Background(), "ttyUSB0", ATProbeOptions{OpenRetryLimit: 1})
	if KindOf(err) != OpenFailed {
		t.Fatalf("expected a single OpenRetryLimit=1 attempt to escalate straight to OpenFailed, got %v", KindOf(err))
	}
}

func TestOpenATDefaultsRetryLimitWhenUnset(t *testing.T) {
	if testing.Short() {
		t.Skip("exercises the full defaultMaxOpenAttempts retry wait; skipped in -short")
	}
	withDevicePath(t, func(name string) string { return "/nonexistent/" + name })

	// OpenRetryLimit left at its zero value: openAT must fall back to
	// defaultMaxOpenAttempts rather than treating 0 as "no attempts".
	_, err := openAT(context.Background(), "ttyUSB0", ATProbeOptions{})
	if KindOf(err) != OpenFailed {
		t.Fatalf("expected OpenFailed once the default retry budget is exhausted, got %v", KindOf(err))
	}
}
