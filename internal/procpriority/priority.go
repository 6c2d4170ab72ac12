// Package procpriority attempts to raise the current process to the
// highest scheduling priority available to it at startup. Failure (most
// commonly a permissions restriction) is logged and ignored, per spec §5.
package procpriority

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/rpi3seismo/stationd/internal/xlog"
)

// highestPriority is the most favorable "nice" value a process can
// request; actually attaining it typically requires elevated privileges,
// which is why failure here is non-fatal.
const highestPriority = -20

// Raise attempts to set the process's scheduling priority as high as
// the OS allows. It never returns an error: a failure is logged here at
// Warn and the process continues at its default priority.
func Raise() {
	logger := xlog.For("procpriority")

	pid := os.Getpid()
	if err := unix.Setpriority(unix.PRIO_PROCESS, pid, highestPriority); err != nil {
		logger.Warn("could not raise process priority, continuing at default", "err", err)
		return
	}

	logger.Info("raised process priority", "nice", highestPriority)
}
