// Package cmd holds the small amount of process bootstrap every command
// in cmd/ shares: config loading, logger/metrics construction, a debug
// HTTP server, and signal handling. Grounded on cmd/shell.go's own
// "make the specific command files very small" idiom -- StatsAndLogging,
// FailOnError, DebugServer, VersionString, CatchSignals survive with the
// same names and purpose, rebuilt against this module's actual log and
// metrics packages instead of the teacher's blog.Logger/AMQP-era Config.
package cmd

import (
	"expvar"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/silverline-ca/corepki/log"
	"github.com/silverline-ca/corepki/metrics"
)

// StatsAndLogging constructs a metrics.Scope and a syslog-backed logger,
// the pair every command process needs before doing anything else.
func StatsAndLogging(syslogTag string, debugLogging bool) (metrics.Scope, logr.Logger) {
	if syslogTag == "" {
		syslogTag = path.Base(os.Args[0])
	}
	logger := log.New(syslogTag, debugLogging)
	scope := metrics.NewPromScope(prometheus.DefaultRegisterer, syslogTag)
	return scope, logger
}

// FailOnError logs and exits if err is non-nil, the single error-handling
// idiom every cmd/ entry point uses at its top level.
func FailOnError(logger logr.Logger, err error, msg string) {
	if err == nil {
		return
	}
	log.Fatalf(logger, "%s: %v", msg, err)
}

// DebugServer starts the /metrics and /debug/vars endpoints, typically
// run in a goroutine with an address read from configuration.
func DebugServer(addr string, logger logr.Logger) {
	if addr == "" {
		log.Fatalf(logger, "cmd: no debug address configured")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf(logger, "cmd: unable to bind debug server on %s: %v", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/vars", expvar.Handler())
	if err := http.Serve(ln, mux); err != nil {
		log.Fatalf(logger, "cmd: debug server stopped: %v", err)
	}
}

// VersionString renders a version line from build info embedded by the
// Go toolchain (replacing the teacher's core.GetBuildID/-Time/-Host,
// which depended on -ldflags this module does not set).
func VersionString() string {
	name := path.Base(os.Args[0])
	rev := "unknown"
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				rev = s.Value
			}
		}
	}
	return fmt.Sprintf("%s rev=%s go=%s", name, rev, runtime.Version())
}

var signalToName = map[os.Signal]string{
	syscall.SIGTERM: "SIGTERM",
	syscall.SIGINT:  "SIGINT",
	syscall.SIGHUP:  "SIGHUP",
}

// CatchSignals blocks until SIGTERM/SIGINT/SIGHUP, runs callback, and
// exits, the same graceful-shutdown hook every long-running command uses.
func CatchSignals(logger logr.Logger, callback func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	sig := <-sigChan
	logger.Info("caught signal", "signal", signalToName[sig])

	if callback != nil {
		callback()
	}
	logger.Info("exiting")
	os.Exit(0)
}
