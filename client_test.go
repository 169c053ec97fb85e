// Diagnostics client tests
package portprobe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	gocheck "gopkg.in/check.v1"
)

var testSnapshotPayload = `
[
    {
        "subsystem": "tty",
        "name": "ttyUSB2",
        "port_type": "at",
        "is_at": true,
        "vendor": "Acme",
        "product": "Widget"
    },
    {
        "subsystem": "usbmisc",
        "name": "cdc-wdm0",
        "port_type": "qmi",
        "is_qmi": true
    }
]
`

// Bootstrap gocheck.
func TestClient(t *testing.T) { gocheck.TestingT(t) }

type ClientSuite struct {
	client DiagnosticsClient
	server *httptest.Server
}

var _ = gocheck.Suite(&ClientSuite{})

func (s *ClientSuite) SetUpSuite(c *gocheck.C) {
	s.server = httptest.NewServer(func() http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(testSnapshotPayload))
		}
	}())
	client := NewDiagnosticsClient("localhost", "1234")
	client.getFunc = func(url string) (resp *http.Response, err error) {
		return s.server.Client().Get(s.server.URL)
	}
	s.client = client
}

func (s *ClientSuite) TearDownSuite(c *gocheck.C) {
	s.server.Close()
}

func (s *ClientSuite) TestGetSnapshots(c *gocheck.C) {
	snapshots, err := s.client.GetSnapshots()

	c.Assert(err, gocheck.IsNil)
	c.Assert(len(snapshots), gocheck.Equals, 2)

	at, qmi := snapshots[0], snapshots[1]

	c.Assert(at.Subsystem, gocheck.Equals, "tty")
	c.Assert(at.IsAT, gocheck.Equals, true)
	c.Assert(at.Vendor, gocheck.Equals, "Acme")

	c.Assert(qmi.Name, gocheck.Equals, "cdc-wdm0")
	c.Assert(qmi.PortType, gocheck.Equals, "qmi")
}
