// Package trace collects this VM's diagnostic output behind one switch
// instead of the scattered fmt.Fprintf(os.Stderr, ...) calls the teacher
// repo and the jacobin fragments sprinkle through classloader and
// interpreter code. Debugf output is gated by the COREVM_TRACE environment
// variable; Warnf always prints.
package trace

import (
	"log"
	"os"
)

var logger = log.New(os.Stderr, "corevm: ", 0)

var enabled = os.Getenv("COREVM_TRACE") != ""

// Debugf logs a diagnostic line when COREVM_TRACE is set. Used for class
// loading, linking and initialization-order tracing.
func Debugf(format string, args ...any) {
	if enabled {
		logger.Printf(format, args...)
	}
}

// Warnf always logs; used for conditions that are recoverable but worth a
// human's attention (e.g. a dropped unresolvable attribute).
func Warnf(format string, args ...any) {
	logger.Printf("warning: "+format, args...)
}
