package portprobe

import "testing"

func TestClassifyNetAlwaysNet(t *testing.T) {
	p := NewProbe(PortIdentity{Subsystem: "net", Name: "wwan0"}, false)
	p.SetAT(true) // should never happen in practice, but net wins regardless
	if Classify(p) != PortTypeNet {
		t.Fatal("expected net subsystem to always classify as Net")
	}
	if ClassifyIsAT(p) {
		t.Error("net class must never report is_at, even if flags say so")
	}
}

func TestClassifyCdcWdmExcludesAT(t *testing.T) {
	p := NewProbe(PortIdentity{Subsystem: "usbmisc", Name: "cdc-wdm0"}, false)
	p.SetQMI(true)
	if Classify(p) != PortTypeQMI {
		t.Fatal("expected cdc-wdm class with QMI decided true to classify QMI")
	}
	if ClassifyIsAT(p) || ClassifyIsQCDM(p) {
		t.Error("cdc-wdm class must never report is_at/is_qcdm")
	}
}

func TestClassifyAT(t *testing.T) {
	p := NewProbe(PortIdentity{Subsystem: "tty", Name: "ttyUSB0"}, false)
	p.SetAT(true)
	if Classify(p) != PortTypeAT {
		t.Fatal("expected AT classification")
	}
	if !ClassifyIsAT(p) {
		t.Error("expected ClassifyIsAT true")
	}
}

func TestClassifyUnknownBeforeDecision(t *testing.T) {
	p := NewProbe(PortIdentity{Subsystem: "tty", Name: "ttyUSB0"}, false)
	if Classify(p) != PortTypeUnknown {
		t.Fatal("expected Unknown before any decision")
	}
}

func TestClassifyVendorProductGatedOnAT(t *testing.T) {
	p := NewProbe(PortIdentity{Subsystem: "tty", Name: "ttyUSB0"}, false)
	p.SetAT(true)
	p.SetATVendor("Acme")
	p.SetATProduct("Widget")
	p.SetATIcera(true)

	vendor, ok := ClassifyVendor(p)
	if !ok || vendor != "acme" {
		t.Fatal("expected case-folded vendor 'acme', got", vendor, ok)
	}
	product, ok := ClassifyProduct(p)
	if !ok || product != "widget" {
		t.Fatal("expected case-folded product 'widget', got", product, ok)
	}
	if !ClassifyIsIcera(p) {
		t.Error("expected ClassifyIsIcera true")
	}
}

func TestClassifyVendorAbsentWhenATFalse(t *testing.T) {
	p := NewProbe(PortIdentity{Subsystem: "tty", Name: "ttyUSB0"}, false)
	p.SetAT(false)
	if _, ok := ClassifyVendor(p); ok {
		t.Error("expected no vendor query to succeed when AT is false")
	}
}
