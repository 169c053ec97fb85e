package portprobe

// PortType is the single classification a port resolves to, derived from
// cached flags plus subsystem/name heuristics.
type PortType int

const (
	PortTypeUnknown PortType = iota
	PortTypeNet
	PortTypeQMI
	PortTypeMBIM
	PortTypeQCDM
	PortTypeAT
)

func (t PortType) String() string {
	switch t {
	case PortTypeNet:
		return "net"
	case PortTypeQMI:
		return "qmi"
	case PortTypeMBIM:
		return "mbim"
	case PortTypeQCDM:
		return "qcdm"
	case PortTypeAT:
		return "at"
	default:
		return "unknown"
	}
}

// Classify derives the PortType for probe:
//
//	if subsystem == "net":               NET
//	elif cdc-wdm-class and is_qmi:        QMI
//	elif cdc-wdm-class and is_mbim:       MBIM
//	elif QCDM decided and is_qcdm:        QCDM
//	elif AT decided and is_at:            AT
//	else:                                 UNKNOWN
func Classify(probe *Probe) PortType {
	identity := probe.Identity()
	switch {
	case identity.IsNetClass():
		return PortTypeNet
	case identity.IsCdcWdmClass() && probe.Decided(FlagQMI) && probe.IsQMI():
		return PortTypeQMI
	case identity.IsCdcWdmClass() && probe.Decided(FlagMBIM) && probe.IsMBIM():
		return PortTypeMBIM
	case probe.Decided(FlagQCDM) && probe.IsQCDM():
		return PortTypeQCDM
	case probe.Decided(FlagAT) && probe.IsAT():
		return PortTypeAT
	default:
		return PortTypeUnknown
	}
}

// ClassifyIsAT reports the effective is_at query: false whenever the port's
// class can't carry AT at all (net, cdc-wdm), regardless of probed flags.
func ClassifyIsAT(probe *Probe) bool {
	identity := probe.Identity()
	if identity.IsNetClass() || identity.IsCdcWdmClass() {
		return false
	}
	return probe.Decided(FlagAT) && probe.IsAT()
}

// ClassifyIsQCDM reports the effective is_qcdm query, gated the same way.
func ClassifyIsQCDM(probe *Probe) bool {
	identity := probe.Identity()
	if identity.IsNetClass() || identity.IsCdcWdmClass() {
		return false
	}
	return probe.Decided(FlagQCDM) && probe.IsQCDM()
}

// ClassifyIsQMI reports the effective is_qmi query: only meaningful for
// cdc-wdm-class ports.
func ClassifyIsQMI(probe *Probe) bool {
	if !probe.Identity().IsCdcWdmClass() {
		return false
	}
	return probe.Decided(FlagQMI) && probe.IsQMI()
}

// ClassifyIsMBIM reports the effective is_mbim query.
func ClassifyIsMBIM(probe *Probe) bool {
	if !probe.Identity().IsCdcWdmClass() {
		return false
	}
	return probe.Decided(FlagMBIM) && probe.IsMBIM()
}

// ClassifyVendor returns the effective vendor query, absent (empty) for
// net/cdc-wdm-class ports.
func ClassifyVendor(probe *Probe) (string, bool) {
	if !ClassifyIsAT(probe) || !probe.Decided(FlagATVendor) {
		return "", false
	}
	return probe.Vendor(), true
}

// ClassifyProduct returns the effective product query.
func ClassifyProduct(probe *Probe) (string, bool) {
	if !ClassifyIsAT(probe) || !probe.Decided(FlagATProduct) {
		return "", false
	}
	return probe.Product(), true
}

// ClassifyIsIcera returns the effective is_icera query.
func ClassifyIsIcera(probe *Probe) bool {
	if !ClassifyIsAT(probe) || !probe.Decided(FlagATIcera) {
		return false
	}
	return probe.IsIcera()
}
