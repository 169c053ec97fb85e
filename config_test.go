package portprobe

import (
	"testing"
)

func TestNewDefaultProbeConfig(t *testing.T) {
	cfg, err := NewDefaultProbeConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ATTuning.OpenRetryLimit != 4 {
		t.Error("expected default open_retry_limit of 4, got", cfg.ATTuning.OpenRetryLimit)
	}
	if cfg.RateLimit.CPS <= 0 {
		t.Error("expected a positive default rate limit")
	}
	if cfg.API.Bind == "" {
		t.Error("expected a default API bind address")
	}
}

func TestProbeConfigIsIgnored(t *testing.T) {
	data := []byte(`
ignored_ports:
    - subsystem: tty
      name: ttyACM3
`)
	cfg, err := NewProbeConfig(data)
	if err != nil {
		t.Fatal(err)
	}
	ignored := PortIdentity{Subsystem: "tty", Name: "ttyACM3"}
	notIgnored := PortIdentity{Subsystem: "tty", Name: "ttyACM0"}
	if !cfg.IsIgnored(ignored) {
		t.Error("expected ttyACM3 to be ignored")
	}
	if cfg.IsIgnored(notIgnored) {
		t.Error("expected ttyACM0 to not be ignored")
	}
}

func TestATTuningConfigRunOptions(t *testing.T) {
	tuning := ATTuningConfig{SendDelayUs: 5000, RemoveEcho: true, AppendLF: false, OpenRetryLimit: 7}
	opts := tuning.RunOptions(FlagAT)
	if opts.ATSendDelay.Microseconds() != 5000 {
		t.Error("expected 5ms send delay, got", opts.ATSendDelay)
	}
	if !opts.ATRemoveEcho {
		t.Error("expected RemoveEcho to carry through")
	}
	if opts.Flags != FlagAT {
		t.Error("expected flags to carry through unchanged")
	}
	if opts.ATOpenRetryLimit != 7 {
		t.Error("expected open_retry_limit to carry through to RunOptions, got", opts.ATOpenRetryLimit)
	}
}
