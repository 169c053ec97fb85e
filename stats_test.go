package portprobe

import (
	"testing"
	"time"
)

func TestStatsReporterReport(t *testing.T) {
	registry := NewRegistry()
	at := registry.GetOrCreate(PortIdentity{Subsystem: "tty", Name: "ttyUSB0"}, false)
	at.SetAT(true)
	at.SetATVendor("Acme")
	at.SetATIcera(true)

	qmi := registry.GetOrCreate(PortIdentity{Subsystem: "usbmisc", Name: "cdc-wdm0"}, false)
	qmi.SetQMI(true)

	registry.GetOrCreate(PortIdentity{Subsystem: "tty", Name: "ttyUSB1"}, false) // undecided

	reporter := NewStatsReporter(registry, time.Hour)
	reporter.report()
	stats := reporter.Last()

	if stats.Total != 2 {
		t.Fatalf("expected 2 decided ports, got %d", stats.Total)
	}
	if stats.AT != 1 || stats.Icera != 1 || stats.QMI != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestStatsReporterStopIdempotent(t *testing.T) {
	reporter := NewStatsReporter(NewRegistry(), time.Hour)
	reporter.Run()
	reporter.Stop()
	reporter.Stop() // must not panic
}
