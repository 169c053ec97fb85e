package portprobe

import (
	"testing"

	gocheck "gopkg.in/check.v1"
)

// Bootstrap gocheck for this file's suite, the same spot the teacher puts
// suite-style tests around an HTTP/IO-boundary component.
func TestTelemetry(t *testing.T) { gocheck.TestingT(t) }

type TelemetrySuite struct{}

var _ = gocheck.Suite(&TelemetrySuite{})

func (s *TelemetrySuite) TestSnapshotOf(c *gocheck.C) {
	probe := NewProbe(PortIdentity{Subsystem: "tty", Name: "ttyUSB0"}, false)
	probe.SetAT(true)
	probe.SetATVendor("Acme")
	probe.SetATProduct("Widget")
	probe.SetATIcera(true)

	snap := snapshotOf(probe)
	c.Assert(snap.Subsystem, gocheck.Equals, "tty")
	c.Assert(snap.Name, gocheck.Equals, "ttyUSB0")
	c.Assert(snap.PortType, gocheck.Equals, "at")
	c.Assert(snap.IsAT, gocheck.Equals, true)
	c.Assert(snap.Vendor, gocheck.Equals, "acme")
	c.Assert(snap.Product, gocheck.Equals, "widget")
	c.Assert(snap.IsIcera, gocheck.Equals, true)
}

func (s *TelemetrySuite) TestProbeSnapshotMarshalBinary(c *gocheck.C) {
	snap := ProbeSnapshot{Subsystem: "tty", Name: "ttyUSB0", PortType: "at", IsAT: true}
	data, err := snap.MarshalBinary()
	c.Assert(err, gocheck.IsNil)
	c.Assert(len(data) > 0, gocheck.Equals, true)
}

func (s *TelemetrySuite) TestProbeSnapshotResetAndString(c *gocheck.C) {
	snap := ProbeSnapshot{Subsystem: "tty", IsAT: true}
	snap.Reset()
	c.Assert(snap.Subsystem, gocheck.Equals, "")
	c.Assert(snap.IsAT, gocheck.Equals, false)

	snap = ProbeSnapshot{Subsystem: "tty", Name: "ttyUSB0"}
	c.Assert(snap.String() != "", gocheck.Equals, true)
}

func (s *TelemetrySuite) TestNewTelemetrySinkConstructsClient(c *gocheck.C) {
	sink, err := NewTelemetrySink("127.0.0.1", "8086", "", "", "portprobe")
	c.Assert(err, gocheck.IsNil)
	c.Assert(sink.db, gocheck.Equals, "portprobe")
	c.Assert(sink.Close(), gocheck.IsNil)
}
