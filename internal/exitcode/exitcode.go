// Package exitcode holds the process exit statuses, following sysexits.h.
package exitcode

const (
	OK       = 0
	Usage    = 64
	Software = 70
	Config   = 78
)
