// Package log provides the structured audit logger every other package
// takes as a dependency, generalizing boulder's cmd/shell.go blog setup
// (syslog-backed, level-gated, one log line per significant state
// transition) to a go-logr-compatible surface so call sites can depend
// on logr.Logger instead of a bespoke interface.
package log

import (
	"fmt"
	stdlog "log"
	"log/syslog"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Priority mirrors the syslog priorities cmd/shell.go's blog.New maps
// audit lines onto.
type Priority int

const (
	PriorityErr Priority = iota
	PriorityWarning
	PriorityInfo
	PriorityDebug
)

// New builds a logr.Logger that writes to the local syslog daemon under
// tag, falling back to stderr if the syslog connection cannot be
// established (e.g. in a container with no syslogd, or in tests).
func New(tag string, debug bool) logr.Logger {
	writer, err := syslog.New(syslog.LOG_INFO|syslog.LOG_LOCAL0, tag)
	var std *stdlog.Logger
	if err != nil {
		std = stdlog.New(os.Stderr, tag+": ", stdlog.LstdFlags|stdlog.LUTC)
	} else {
		std = stdlog.New(writer, "", 0)
	}
	logger := stdr.New(std)
	if debug {
		stdr.SetVerbosity(1)
	}
	return logger
}

// AuditEvent is one structured, single-line audit record -- the
// generalization of boulder's "ca.cert.issued"-style audit lines (grep
// for AuditInfo in ca/certificate-authority.go) to every state machine
// in this module (issuance, revocation, CRL generation, OCSP signing).
type AuditEvent struct {
	Action string
	Serial string
	CAName string
	Fields map[string]any
}

// Audit renders an AuditEvent as a single structured log line at info
// level. Fields are appended in Go map iteration order, which varies
// from call to call -- acceptable for a human-read audit trail, not a
// format other tooling should parse positionally.
func Audit(logger logr.Logger, ev AuditEvent) {
	kvs := make([]any, 0, 4+2*len(ev.Fields))
	kvs = append(kvs, "serial", ev.Serial, "ca", ev.CAName)
	for k, v := range ev.Fields {
		kvs = append(kvs, k, v)
	}
	logger.Info(ev.Action, kvs...)
}

// Fatalf logs at error level and exits the process, mirroring
// cmd/shell.go's AuditErr/Fail pattern for unrecoverable startup errors.
func Fatalf(logger logr.Logger, format string, args ...any) {
	logger.Error(fmt.Errorf(format, args...), "fatal")
	os.Exit(1)
}
