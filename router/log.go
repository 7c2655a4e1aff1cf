package router

import (
	stdlog "log"
	"os"

	"github.com/relaywamp/wampcore/logger"
)

// log is an instance of a logger that implements the logger.Logger
// interface.  A stdlib logger is assigned by default (for convenience),
// but this can be reassigned, using SetLogger(), to use any other
// logging package.
var log logger.Logger = stdlog.New(os.Stdout, "", stdlog.LstdFlags)

// SetLogger assigns a logger instance to the router package.  Use this to
// assign an instance of anything that implements the logger.Logger
// interface, before using the router package.
func SetLogger(l logger.Logger) { log = l }

// Logger returns the logger that the router package is set to use.
func Logger() logger.Logger { return log }

// DebugEnabled turns on verbose per-message tracing in the router
// package.
var DebugEnabled bool
