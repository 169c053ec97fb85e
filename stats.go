package portprobe

import (
	"log"
	"sync"
	"time"
)

// Stats is a snapshot count of decided ports by classification, refreshed at
// each StatsReporter tick.
type Stats struct {
	Total   int
	AT      int
	Icera   int
	QCDM    int
	QMI     int
	MBIM    int
	Unknown int
}

// StatsReporter periodically tallies the registry's decided probes into a
// Stats snapshot and logs it, the same run/stop-channel/ticker shape as the
// teacher's Summarizer, generalized from summarizing timed RTT/loss results
// into summarizing classification counts (there being no analogous
// per-result stream to batch in this domain, only a Registry to poll).
type StatsReporter struct {
	registry *Registry
	interval time.Duration

	mutex    sync.RWMutex
	last     Stats
	ticker   *time.Ticker
	stop     chan struct{}
}

// NewStatsReporter constructs a StatsReporter that polls registry every
// interval once Run is called.
func NewStatsReporter(registry *Registry, interval time.Duration) *StatsReporter {
	return &StatsReporter{registry: registry, interval: interval, stop: make(chan struct{})}
}

// Run starts the reporting ticker in the background.
func (s *StatsReporter) Run() {
	log.Printf("starting ticker for stats reporter at %v intervals\n", s.interval)
	s.ticker = time.NewTicker(s.interval)
	go s.loop()
}

func (s *StatsReporter) loop() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C:
			s.report()
		}
	}
}

func (s *StatsReporter) report() {
	stats := Stats{}
	for _, probe := range s.registry.all() {
		if probe.Flags() == 0 {
			continue
		}
		stats.Total++
		switch Classify(probe) {
		case PortTypeAT:
			stats.AT++
		case PortTypeQCDM:
			stats.QCDM++
		case PortTypeQMI:
			stats.QMI++
		case PortTypeMBIM:
			stats.MBIM++
		default:
			stats.Unknown++
		}
		if ClassifyIsIcera(probe) {
			stats.Icera++
		}
	}
	s.mutex.Lock()
	s.last = stats
	s.mutex.Unlock()
	log.Printf("stats: total=%d at=%d icera=%d qcdm=%d qmi=%d mbim=%d unknown=%d\n",
		stats.Total, stats.AT, stats.Icera, stats.QCDM, stats.QMI, stats.MBIM, stats.Unknown)
}

// Last returns the most recently computed Stats snapshot.
func (s *StatsReporter) Last() Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.last
}

// Stop stops the reporting ticker.
func (s *StatsReporter) Stop() {
	select {
	case <-s.stop:
	default:
		s.ticker.Stop()
		close(s.stop)
	}
}
