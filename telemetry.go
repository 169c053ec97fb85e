package portprobe

import (
	"fmt"
	"time"

	gogoproto "github.com/gogo/protobuf/proto"
	influxdb "github.com/influxdata/influxdb1-client/v2"
)

// ProbeSnapshot is a diagnostic record of one Probe's decided
// classification, used by the optional telemetry sink below and the JSON
// diagnostics API (api.go, client.go) — never on the AT/QCDM/QMI/MBIM wire
// itself (those remain their native
// protocols). Hand-written in the reflection-based style gogo/protobuf's
// proto.Marshal understands (struct tags carry field number/wire type, the
// three Message methods satisfy proto.Message), the same vintage as the
// teacher's own generated pb.Probe in port.go — no protoc step required
// since the teacher's `proto` package wasn't included in the retrieved
// copy of the repo.
type ProbeSnapshot struct {
	Subsystem string `protobuf:"bytes,1,opt,name=subsystem" json:"subsystem,omitempty"`
	Name      string `protobuf:"bytes,2,opt,name=name" json:"name,omitempty"`
	PortType  string `protobuf:"bytes,3,opt,name=port_type" json:"port_type,omitempty"`
	IsAT      bool   `protobuf:"varint,4,opt,name=is_at" json:"is_at,omitempty"`
	Vendor    string `protobuf:"bytes,5,opt,name=vendor" json:"vendor,omitempty"`
	Product   string `protobuf:"bytes,6,opt,name=product" json:"product,omitempty"`
	IsIcera   bool   `protobuf:"varint,7,opt,name=is_icera" json:"is_icera,omitempty"`
	IsQCDM    bool   `protobuf:"varint,8,opt,name=is_qcdm" json:"is_qcdm,omitempty"`
	IsQMI     bool   `protobuf:"varint,9,opt,name=is_qmi" json:"is_qmi,omitempty"`
	IsMBIM    bool   `protobuf:"varint,10,opt,name=is_mbim" json:"is_mbim,omitempty"`
}

func (m *ProbeSnapshot) Reset()         { *m = ProbeSnapshot{} }
func (m *ProbeSnapshot) String() string { return gogoproto.CompactTextString(m) }
func (*ProbeSnapshot) ProtoMessage()    {}

// snapshotOf reads every effective classification query off probe into a
// ProbeSnapshot, applying the same net/cdc-wdm exclusions the Classification
// Surface applies (§4.7), so a snapshot never claims an AT result for a
// port class that can't carry AT.
func snapshotOf(probe *Probe) ProbeSnapshot {
	identity := probe.Identity()
	vendor, _ := ClassifyVendor(probe)
	product, _ := ClassifyProduct(probe)
	return ProbeSnapshot{
		Subsystem: identity.Subsystem,
		Name:      identity.Name,
		PortType:  Classify(probe).String(),
		IsAT:      ClassifyIsAT(probe),
		Vendor:    vendor,
		Product:   product,
		IsIcera:   ClassifyIsIcera(probe),
		IsQCDM:    ClassifyIsQCDM(probe),
		IsQMI:     ClassifyIsQMI(probe),
		IsMBIM:    ClassifyIsMBIM(probe),
	}
}

// MarshalBinary encodes the snapshot as a protobuf message, for callers
// that want a compact diagnostic export instead of the JSON API (api.go).
func (m *ProbeSnapshot) MarshalBinary() ([]byte, error) {
	return gogoproto.Marshal(m)
}

// defaultInfluxTimeout bounds a single write to the telemetry database,
// mirroring the teacher's scraper.go DefaultTimeout.
const defaultInfluxTimeout = 5 * time.Second

// TelemetrySink records completed classifications to InfluxDB. Grounded
// directly on the teacher's scraper.go InfluxDbWriter (NewHTTPClient,
// Batch, Write) and influx.go (DataPoint field/tag shaping), generalized
// from latency/loss summaries to port classifications.
type TelemetrySink struct {
	client influxdb.Client
	db     string
}

// NewTelemetrySink dials an InfluxDB HTTP client for host:port/db, the same
// construction as the teacher's NewInfluxDbWriter.
func NewTelemetrySink(host, port, user, pass, db string) (*TelemetrySink, error) {
	url := fmt.Sprintf("http://%s:%s", host, port)
	c, err := influxdb.NewHTTPClient(influxdb.HTTPConfig{
		Addr:     url,
		Username: user,
		Password: pass,
		Timeout:  defaultInfluxTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &TelemetrySink{client: c, db: db}, nil
}

// Close releases the underlying HTTP client.
func (s *TelemetrySink) Close() error {
	return s.client.Close()
}

// Record writes one batch point per snapshot to the "port_classification"
// measurement, tagged by subsystem/name/port_type so queries can slice by
// any of them.
func (s *TelemetrySink) Record(snapshots []ProbeSnapshot) error {
	bp, err := influxdb.NewBatchPoints(influxdb.BatchPointsConfig{
		Database:  s.db,
		Precision: "s",
	})
	if err != nil {
		return err
	}
	now := time.Now()
	for _, snap := range snapshots {
		tags := map[string]string{
			"subsystem": snap.Subsystem,
			"name":      snap.Name,
			"port_type": snap.PortType,
		}
		fields := map[string]interface{}{
			"is_at":    snap.IsAT,
			"is_icera": snap.IsIcera,
			"is_qcdm":  snap.IsQCDM,
			"is_qmi":   snap.IsQMI,
			"is_mbim":  snap.IsMBIM,
			"vendor":   snap.Vendor,
			"product":  snap.Product,
		}
		pt, err := influxdb.NewPoint("port_classification", tags, fields, now)
		if err != nil {
			return err
		}
		bp.AddPoint(pt)
	}
	return s.client.Write(bp)
}
