// portprobe runs the port probing engine standalone: it loads a config,
// serves classifications over its diagnostics API, and probes any ports
// named on the portprobe.ports flag (a stand-in for the udev-equivalent
// enumeration layer, which is out of scope for this engine and expected to
// call Engine.Submit directly when embedded).
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/qmux/portprobe"
	"golang.org/x/sys/unix"
)

var ports = flag.String("portprobe.ports", "", "Comma-separated subsystem/name pairs to probe on startup, e.g. tty/ttyUSB2,usbmisc/cdc-wdm0")

func main() {
	flag.Parse()

	engine := &portprobe.Engine{}
	engine.Setup()
	engine.Run()

	for _, spec := range strings.Split(*ports, ",") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		parts := strings.SplitN(spec, "/", 2)
		if len(parts) != 2 {
			log.Println("ignoring malformed port spec:", spec)
			continue
		}
		engine.Submit(portprobe.PortIdentity{Subsystem: parts[0], Name: parts[1]})
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, unix.SIGINT, unix.SIGTERM, unix.SIGHUP)
	for {
		sig := <-sigChan
		switch sig {
		case unix.SIGINT, unix.SIGTERM:
			log.Printf("received %s, shutting down", sig)
			engine.Stop()
			return
		case unix.SIGHUP:
			log.Printf("received %s, reloading and reconfiguring", sig)
			engine.Reload()
		}
	}
}
