package portprobe

import (
	gocache "github.com/patrickmn/go-cache"
)

// Registry owns one Probe per (device, port) pair and answers aggregate
// classification queries across every Probe it holds. Built on a keyed
// lookup cache (cache.Get/SetDefault) that never expires, because a port's
// classification is sticky for the process lifetime.
type Registry struct {
	cache *gocache.Cache
}

// NewRegistry creates an empty Registry. Results never expire once decided,
// so the cache is constructed with gocache.NoExpiration and no cleanup
// interval.
func NewRegistry() *Registry {
	return &Registry{cache: gocache.New(gocache.NoExpiration, gocache.NoExpiration)}
}

// GetOrCreate returns the existing Probe for identity, or creates and stores
// a new one with the given ignored hint.
func (r *Registry) GetOrCreate(identity PortIdentity, isIgnored bool) *Probe {
	key := identity.Key()
	if existing, found := r.cache.Get(key); found {
		return existing.(*Probe)
	}
	probe := NewProbe(identity, isIgnored)
	r.cache.SetDefault(key, probe)
	return probe
}

// Lookup returns the Probe for identity, if one has been created.
func (r *Registry) Lookup(identity PortIdentity) (*Probe, bool) {
	v, found := r.cache.Get(identity.Key())
	if !found {
		return nil, false
	}
	return v.(*Probe), true
}

// Drop removes a Probe from the Registry, releasing the Registry's
// reference to it.
func (r *Registry) Drop(identity PortIdentity) {
	r.cache.Delete(identity.Key())
}

// all returns every live Probe, skipping ignored ports, the same gating
// mm_port_probe_list_has_* applies in the original before considering a
// port for an aggregate query.
func (r *Registry) all() []*Probe {
	items := r.cache.Items()
	probes := make([]*Probe, 0, len(items))
	for _, item := range items {
		probe := item.Object.(*Probe)
		if probe.IsIgnored() {
			continue
		}
		probes = append(probes, probe)
	}
	return probes
}

// AnyATPort reports whether any (non-ignored) Probe in the Registry has
// decided is_at = true, honoring the net/cdc-wdm class exclusions: those
// classes can never be AT regardless of probed flags.
func (r *Registry) AnyATPort() bool {
	for _, probe := range r.all() {
		if ClassifyIsAT(probe) {
			return true
		}
	}
	return false
}

// AnyQMIPort reports whether any Probe has decided is_qmi = true.
func (r *Registry) AnyQMIPort() bool {
	for _, probe := range r.all() {
		if ClassifyIsQMI(probe) {
			return true
		}
	}
	return false
}

// AnyMBIMPort reports whether any Probe has decided is_mbim = true.
func (r *Registry) AnyMBIMPort() bool {
	for _, probe := range r.all() {
		if ClassifyIsMBIM(probe) {
			return true
		}
	}
	return false
}

// AnyIcera reports whether any Probe has decided is_icera = true.
func (r *Registry) AnyIcera() bool {
	for _, probe := range r.all() {
		if ClassifyIsIcera(probe) {
			return true
		}
	}
	return false
}

// Snapshot returns every decided classification currently held, as served
// by the diagnostics API's /snapshot endpoint (api.go). Undecided Probes (flags == 0) are
// skipped; there is nothing yet worth reporting about them.
func (r *Registry) Snapshot() []ProbeSnapshot {
	var out []ProbeSnapshot
	for _, probe := range r.all() {
		if probe.Flags() == 0 {
			continue
		}
		out = append(out, snapshotOf(probe))
	}
	return out
}
