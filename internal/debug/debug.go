// Package debug holds the process-wide logger.
package debug

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// Logger is the root logger. Components derive their own with
// Logger.With.
var Logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Prefix:          "wlsurf",
})

var trace bool

func init() {
	debugLevel, err := strconv.ParseInt(os.Getenv("WAYLAND_DEBUG"), 10, 0)
	if err != nil {
		return
	}
	if debugLevel > 0 {
		trace = true
		Logger.SetLevel(log.DebugLevel)
	}
}

// SetLevel sets the level of the root logger from its name. An empty
// name leaves the level alone. WAYLAND_DEBUG, when set, wins over
// whatever is configured.
func SetLevel(name string) error {
	if trace || (name == "") {
		return nil
	}

	level, err := log.ParseLevel(strings.ToLower(name))
	if err != nil {
		return err
	}
	Logger.SetLevel(level)
	return nil
}

// Tracing reports whether per-message protocol tracing is enabled.
func Tracing() bool {
	return trace
}

// Trace logs a protocol message if WAYLAND_DEBUG is set.
func Trace(format string, args ...any) {
	if trace {
		Logger.Debugf(format, args...)
	}
}
