package portprobe

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// API serves port classification state over HTTP for diagnostics: a
// *http.Server behind a ServeMux, with Run/Stop and a status healthcheck.
type API struct {
	registry *Registry
	stats    *StatsReporter
	server   *http.Server
	handler  *http.ServeMux
}

// NewAPI constructs an API bound to addr, serving snapshots from registry.
func NewAPI(registry *Registry, addr string) *API {
	handler := http.NewServeMux()
	server := &http.Server{Addr: addr, Handler: handler}
	return &API{registry: registry, server: server, handler: handler}
}

// AttachStats wires a StatsReporter into the API's /stats endpoint. Optional;
// an API with no StatsReporter attached simply doesn't register the route.
func (api *API) AttachStats(stats *StatsReporter) {
	api.stats = stats
}

// StatsHandler responds with the JSON-encoded last Stats snapshot:
// aggregate classification counts across the whole registry.
func (api *API) StatsHandler(rw http.ResponseWriter, request *http.Request) {
	asJSON, err := json.Marshal(api.stats.Last())
	if err != nil {
		log.Println("failed to marshal stats:", err)
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.Write(asJSON)
}

// SnapshotHandler responds with the JSON-encoded classification of every
// decided port.
func (api *API) SnapshotHandler(rw http.ResponseWriter, request *http.Request) {
	snapshots := api.registry.Snapshot()
	asJSON, err := json.Marshal(snapshots)
	if err != nil {
		log.Println("failed to marshal snapshot:", err)
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.Write(asJSON)
}

// StatusHandler acts as a basic healthcheck.
func (api *API) StatusHandler(rw http.ResponseWriter, request *http.Request) {
	fmt.Fprintf(rw, "ok")
}

// Run starts serving in a background goroutine.
func (api *API) Run() {
	go api.RunForever()
}

// RunForever sets up handlers and blocks serving requests until stopped.
func (api *API) RunForever() {
	api.setupHandlers()
	if err := api.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("API server exited:", err)
	}
}

func (api *API) setupHandlers() {
	api.handler.HandleFunc("/status", api.StatusHandler)
	api.handler.HandleFunc("/snapshot", api.SnapshotHandler)
	if api.stats != nil {
		api.handler.HandleFunc("/stats", api.StatsHandler)
	}
}

// Stop closes the server, causing RunForever to return.
func (api *API) Stop() {
	if err := api.server.Close(); err != nil {
		log.Println("error stopping API:", err)
	}
}
