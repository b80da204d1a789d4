package snmpengine

import (
	"log"
	"os"
)

// StdLogger is the minimal logging surface the engine depends on, mirroring
// the vendored snmpgo TrapServer's ErrorLog field: callers can plug in
// *log.Logger directly, or adapt any structured logger that exposes a
// printf-style Printf.
type StdLogger interface {
	Printf(format string, v ...interface{})
}

// defaultLogger returns a StdLogger writing to stderr with a package
// prefix, used when an Engine is constructed without one supplied.
func defaultLogger() StdLogger {
	return log.New(os.Stderr, "[snmpengine] ", log.LstdFlags)
}
