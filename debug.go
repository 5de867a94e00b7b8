package termsync

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var syncDebug atomic.Bool

func init() {
	if v := os.Getenv("TERMSYNC_DEBUG"); v != "" && v != "0" && v != "false" {
		syncDebug.Store(true)
	}
}

func dbg(msg string, args ...any) {
	if syncDebug.Load() {
		slog.Default().Debug(msg, args...)
	}
}

// SetDebug enables or disables library debug logging.
// When enabled, debug messages are written via slog.Default().
// This allows the calling application to control debug output
// programmatically (e.g., when a CLI debug flag is set).
func SetDebug(enabled bool) {
	syncDebug.Store(enabled)
}
