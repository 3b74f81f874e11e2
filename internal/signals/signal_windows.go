//go:build windows

package signals

import "os"

// ReloadSupported reports whether the platform can deliver Reload.
const ReloadSupported = false

var notified = []os.Signal{os.Interrupt}

func translate(sig os.Signal) (Kind, bool) {
	if sig == os.Interrupt {
		return Interrupt, true
	}
	return 0, false
}
