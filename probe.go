// Package portprobe implements the port probing engine of a mobile-broadband
// modem manager: given a freshly discovered character device belonging to a
// candidate modem, it determines which wire protocol (if any) the device
// speaks on that port, and, for AT ports, extracts vendor/product strings
// and detects an Icera-chipset marker.
package portprobe

import (
	"strings"
	"sync"
)

// Flag is a bit over the probe kinds a Probe can decide.
type Flag uint8

const (
	FlagAT Flag = 1 << iota
	FlagATVendor
	FlagATProduct
	FlagATIcera
	FlagQCDM
	FlagQMI
	FlagMBIM
)

// atFamily is every flag decided together with, or implied by, the AT
// decision (see mutual-exclusion invariants below).
const atFamily = FlagAT | FlagATVendor | FlagATProduct | FlagATIcera

// nonATTransports is every flag that is mutually exclusive with FlagAT.
const nonATTransports = FlagQCDM | FlagQMI | FlagMBIM

func (f Flag) String() string {
	names := []struct {
		bit  Flag
		name string
	}{
		{FlagAT, "AT"},
		{FlagATVendor, "AT_VENDOR"},
		{FlagATProduct, "AT_PRODUCT"},
		{FlagATIcera, "AT_ICERA"},
		{FlagQCDM, "QCDM"},
		{FlagQMI, "QMI"},
		{FlagMBIM, "MBIM"},
	}
	var set []string
	for _, n := range names {
		if f&n.bit != 0 {
			set = append(set, n.name)
		}
	}
	if len(set) == 0 {
		return "(none)"
	}
	return strings.Join(set, "|")
}

// PortIdentity names a character device the way the enumeration layer hands
// it to us: a subsystem ("tty", "net", "usbmisc") and a device name
// ("ttyUSB2", "cdc-wdm0").
type PortIdentity struct {
	Subsystem string
	Name      string
	Parent    string // opaque topology ancestor, used only for grouping
}

// Key is the Probe Registry's index key for this identity.
func (p PortIdentity) Key() string {
	return p.Subsystem + "/" + p.Name
}

// IsCdcWdmClass reports whether this port belongs to the cdc-wdm class,
// the only class that can carry QMI or MBIM.
func (p PortIdentity) IsCdcWdmClass() bool {
	return p.Subsystem == "usbmisc" || strings.HasPrefix(p.Name, "cdc-wdm")
}

// IsNetClass reports whether this port is a net-class device, which can
// never carry AT, QCDM, QMI, or MBIM.
func (p PortIdentity) IsNetClass() bool {
	return p.Subsystem == "net"
}

// Probe owns the sticky, monotonic classification state for one
// (device, port) pair. A Probe is created once per port and lives for the
// lifetime of the port in the Registry; its decided flags are never
// cleared, only added to.
//
// Invariants enforced by the setters below:
//  1. at most one Task is live on a Probe at a time;
//  2. a flag's value field is meaningful only once its bit is set;
//  3. deciding is_at=true also decides QCDM/QMI/MBIM absent, and vice versa;
//  4. deciding is_at=false also decides AT_VENDOR/AT_PRODUCT/AT_ICERA absent;
//  5. flags are monotonic: once set, never cleared.
type Probe struct {
	mu sync.Mutex

	identity  PortIdentity
	isIgnored bool // frozen at construction from ID_MM_PORT_IGNORE-equivalent

	flags Flag

	isAT    bool
	isQCDM  bool
	isQMI   bool
	isMBIM  bool
	isIcera bool
	vendor  string
	product string

	task *Task // at most one in-flight Task; nil otherwise
}

// NewProbe constructs a Probe for the given identity. isIgnored is frozen at
// construction time, mirroring the original's read of ID_MM_PORT_IGNORE
// during device enumeration.
func NewProbe(identity PortIdentity, isIgnored bool) *Probe {
	return &Probe{identity: identity, isIgnored: isIgnored}
}

// Identity returns the port identity this Probe classifies.
func (p *Probe) Identity() PortIdentity {
	return p.identity
}

// IsIgnored reports whether this port was flagged ID_MM_PORT_IGNORE at
// enumeration time. Aggregate queries in the Registry skip ignored ports.
func (p *Probe) IsIgnored() bool {
	return p.isIgnored
}

// Flags returns the currently decided flag bitset.
func (p *Probe) Flags() Flag {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags
}

// Decided reports whether every bit in want has been decided.
func (p *Probe) Decided(want Flag) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags&want == want
}

// Missing returns the subset of want that has not yet been decided.
func (p *Probe) Missing(want Flag) Flag {
	p.mu.Lock()
	defer p.mu.Unlock()
	return want &^ p.flags
}

// AttachTask installs t as the Probe's in-flight task. It returns an error
// (programmer error, per invariant 1) if a task is already live.
func (p *Probe) AttachTask(t *Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.task != nil {
		return NewProbeError(Generic, "probe already has a live task")
	}
	p.task = t
	return nil
}

// DetachTask clears the in-flight task slot. Safe to call even if no task
// is attached.
func (p *Probe) DetachTask() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.task = nil
}

// SetAT decides the AT flag. true excludes QCDM/QMI/MBIM (decided absent,
// values false); false additionally decides the AT-family sub-flags
// (vendor/product/icera) absent, since none of those can exist without AT.
func (p *Probe) SetAT(value bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isAT = value
	p.flags |= FlagAT
	if value {
		p.decideTransportsAbsentLocked(nonATTransports)
	} else {
		p.flags |= FlagATVendor | FlagATProduct | FlagATIcera
	}
}

// SetATVendor decides the vendor string. Only meaningful once FlagAT is set
// true; the caller is expected to only reach this sub-probe in that case.
func (p *Probe) SetATVendor(value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vendor = caseFold(value)
	p.flags |= FlagATVendor
}

// SetATProduct decides the product string, case-folded like vendor.
func (p *Probe) SetATProduct(value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.product = caseFold(value)
	p.flags |= FlagATProduct
}

// SetATIcera decides the Icera-chipset marker.
func (p *Probe) SetATIcera(value bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isIcera = value
	p.flags |= FlagATIcera
}

// SetQCDM decides the QCDM flag, with the same mutual-exclusion behavior as
// SetAT but for the QCDM transport.
func (p *Probe) SetQCDM(value bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isQCDM = value
	p.flags |= FlagQCDM
	if value {
		p.decideTransportsAbsentLocked((nonATTransports &^ FlagQCDM) | FlagAT)
		p.flags |= atFamily
	}
}

// SetQMI decides the QMI flag.
func (p *Probe) SetQMI(value bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isQMI = value
	p.flags |= FlagQMI
	if value {
		p.decideTransportsAbsentLocked((nonATTransports &^ FlagQMI) | FlagAT)
		p.flags |= atFamily
	}
}

// SetMBIM decides the MBIM flag.
func (p *Probe) SetMBIM(value bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isMBIM = value
	p.flags |= FlagMBIM
	if value {
		p.decideTransportsAbsentLocked((nonATTransports &^ FlagMBIM) | FlagAT)
		p.flags |= atFamily
	}
}

// decideTransportsAbsentLocked marks every bit in mask decided, with its
// boolean field left at its zero value (false/absent). Caller must hold mu.
func (p *Probe) decideTransportsAbsentLocked(mask Flag) {
	if mask&FlagAT != 0 {
		p.isAT = false
	}
	if mask&FlagQCDM != 0 {
		p.isQCDM = false
	}
	if mask&FlagQMI != 0 {
		p.isQMI = false
	}
	if mask&FlagMBIM != 0 {
		p.isMBIM = false
	}
	p.flags |= mask
}

// IsAT returns the decided AT value. Caller must check Decided(FlagAT)
// first; reading an undecided field is a contract violation (invariant 2).
func (p *Probe) IsAT() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isAT
}

// IsQCDM returns the decided QCDM value.
func (p *Probe) IsQCDM() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isQCDM
}

// IsQMI returns the decided QMI value.
func (p *Probe) IsQMI() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isQMI
}

// IsMBIM returns the decided MBIM value.
func (p *Probe) IsMBIM() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isMBIM
}

// Vendor returns the case-folded vendor string, if decided.
func (p *Probe) Vendor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vendor
}

// Product returns the case-folded product string, if decided.
func (p *Probe) Product() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.product
}

// IsIcera returns the decided Icera value.
func (p *Probe) IsIcera() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isIcera
}

// caseFold lower-cases a decoded vendor/product string for stable storage
// and comparison. strings.ToLower is stable under a second fold, unlike a
// naive byte-wise ASCII lowercasing would be for non-ASCII input.
func caseFold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
