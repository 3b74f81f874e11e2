//go:build !windows

package signals

import (
	"os"
	"syscall"
)

// ReloadSupported reports whether the platform can deliver Reload.
const ReloadSupported = true

var notified = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}

func translate(sig os.Signal) (Kind, bool) {
	switch sig {
	case syscall.SIGHUP:
		return Reload, true
	case syscall.SIGINT:
		return Interrupt, true
	case syscall.SIGTERM:
		return Terminate, true
	case syscall.SIGQUIT:
		return QuitNow, true
	}
	return 0, false
}
