// DiagnosticsClient pulls classification snapshots from a running engine's
// diagnostics API.
package portprobe

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
)

type Getter = func(url string) (resp *http.Response, err error)

// DiagnosticsClient is an interface for pulling snapshots from a portprobe
// engine's diagnostics API, the same shape as the teacher's Client
// (GetPoints/Hostname/Port) generalized from influx data points to
// classification snapshots.
type DiagnosticsClient interface {
	GetSnapshots() ([]ProbeSnapshot, error)
	Hostname() string
	Port() string
}

type diagnosticsClient struct {
	hostname string
	port     string
	getFunc  Getter
}

// NewDiagnosticsClient creates a new diagnostics client for hostname:port.
func NewDiagnosticsClient(hostname string, port string) *diagnosticsClient {
	return &diagnosticsClient{hostname: hostname, port: port, getFunc: http.Get}
}

func (c *diagnosticsClient) Hostname() string {
	return c.hostname
}

func (c *diagnosticsClient) Port() string {
	return c.port
}

// GetSnapshots fetches the classification snapshots from the associated
// engine's /snapshot endpoint.
func (c *diagnosticsClient) GetSnapshots() ([]ProbeSnapshot, error) {
	url := fmt.Sprintf("http://%s:%s/snapshot", c.hostname, c.port)

	resp, err := c.getFunc(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status: %s (%s)", resp.Status, body)
	}

	var snapshots []ProbeSnapshot
	if err := json.Unmarshal(body, &snapshots); err != nil {
		return nil, err
	}

	return snapshots, nil
}
