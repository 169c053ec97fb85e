package portprobe

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// statsReportInterval governs how often the Engine logs aggregate
// classification counts via its StatsReporter.
const statsReportInterval = 30 * time.Second

const defaultChannelSize = 100

var configFile = flag.String("portprobe.config", "", "Config file to load from")

// Engine reads a YAML configuration, probes submitted ports for their wire
// protocol, and serves the resulting classifications over a JSON HTTP API.
// LoadConfig/Setup/Reload/Run/Stop is its lifecycle, in that order.
type Engine struct {
	cfg       *ProbeConfig
	registry  *Registry
	runner    *Runner
	api       *API
	telemetry *TelemetrySink
	limiter   *rate.Limiter
	stats     *StatsReporter

	submissions chan PortIdentity
	stop        chan struct{}
}

// LoadConfig loads the engine's configuration from the CLI flag if
// provided, otherwise the default.
func (e *Engine) LoadConfig() {
	log.Println("loading engine config")
	if *configFile != "" {
		if err := e.loadConfigFromPath(*configFile); err != nil {
			log.Fatal("failed to load configuration:", err)
		}
		return
	}
	log.Println("no portprobe.config provided; loading default config")
	cfg, err := NewDefaultProbeConfig()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}
	e.cfg = cfg
}

func (e *Engine) loadConfigFromPath(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	cfg, err := NewProbeConfig(data)
	if err != nil {
		return err
	}
	e.cfg = cfg
	return nil
}

// SetupRegistry creates the Probe registry.
func (e *Engine) SetupRegistry() {
	log.Println("setting up registry")
	e.registry = NewRegistry()
}

// SetupRunner creates the Runner and the rate limiter that paces AT open
// retries and command sends, from the at_tuning/rate_limit config blocks.
func (e *Engine) SetupRunner() {
	log.Println("setting up runner")
	e.runner = NewRunner()
	e.limiter = rate.NewLimiter(rate.Limit(e.cfg.RateLimit.CPS), int(e.cfg.RateLimit.CPS)+1)
}

// SetupTelemetry creates the optional InfluxDB sink, if enabled in config.
func (e *Engine) SetupTelemetry() {
	if !e.cfg.Telemetry.Enabled {
		return
	}
	log.Println("setting up telemetry")
	sink, err := NewTelemetrySink(
		e.cfg.Telemetry.DBHost,
		fmt.Sprintf("%d", e.cfg.Telemetry.DBPort),
		"", "",
		e.cfg.Telemetry.DBName,
	)
	if err != nil {
		log.Println("failed to set up telemetry, continuing without it:", err)
		return
	}
	e.telemetry = sink
}

// SetupAPI creates the diagnostics API based on the config.
func (e *Engine) SetupAPI() {
	log.Println("setting up API")
	e.api = NewAPI(e.registry, e.cfg.API.Bind)
}

// Setup is a general wrapper around all of the other Setup* functions.
// Ordering matters: each step depends on state set up by an earlier one.
func (e *Engine) Setup() {
	log.Println("setting up engine")
	e.LoadConfig()
	e.SetupRegistry()
	e.SetupRunner()
	e.SetupTelemetry()
	e.SetupAPI()
	e.stats = NewStatsReporter(e.registry, statsReportInterval)
	e.api.AttachStats(e.stats)
	if e.submissions == nil {
		e.submissions = make(chan PortIdentity, defaultChannelSize)
	}
	e.stop = make(chan struct{})
	log.Println("engine setup complete")
}

// Reload rereads the config. The registry, already-attached probes, and the
// API are left untouched; only tuning knobs (rate limiter, ignored ports)
// take effect for probes started after the reload.
func (e *Engine) Reload() {
	log.Println("reloading engine")
	e.LoadConfig()
	e.SetupRunner()
	log.Println("engine reload complete")
}

// Submit enqueues a port for probing. The caller is expected to be a
// device-enumeration layer handing us a (subsystem, name) tuple as it
// appears; enumeration itself is out of scope here.
func (e *Engine) Submit(identity PortIdentity) {
	e.submissions <- identity
}

// Run starts the API and the submission-consuming loop.
func (e *Engine) Run() {
	log.Println("starting engine")
	e.api.Run()
	e.stats.Run()
	go e.consumeSubmissions()
	log.Println("engine running")
}

// Stop signals the submission loop, stats reporter, and the API to stop.
func (e *Engine) Stop() {
	log.Println("stopping engine")
	close(e.stop)
	e.stats.Stop()
	e.api.Stop()
	if e.telemetry != nil {
		e.telemetry.Close()
	}
	log.Println("engine stopped")
}

func (e *Engine) consumeSubmissions() {
	for {
		select {
		case <-e.stop:
			return
		case identity := <-e.submissions:
			e.runOne(identity)
		}
	}
}

// runOne gets-or-creates the Probe for identity, applies the ignored-port
// config, and runs a probe task against it, recording telemetry on
// completion.
func (e *Engine) runOne(identity PortIdentity) {
	probe := e.registry.GetOrCreate(identity, e.cfg.IsIgnored(identity))
	if probe.IsIgnored() {
		return
	}

	opts := e.cfg.ATTuning.RunOptions(atFamily | FlagQCDM | FlagQMI | FlagMBIM)
	opts.Limiter = e.limiter

	result := e.runner.Run(context.Background(), probe, opts)
	go func() {
		if err := <-result; err != nil {
			log.Println(identity.Key(), "- probe task finished with error:", err)
		}
		if e.telemetry != nil {
			if err := e.telemetry.Record([]ProbeSnapshot{snapshotOf(probe)}); err != nil {
				log.Println("failed to record telemetry:", err)
			}
		}
	}()
}
