//go:build !windows

package escalation

import "context"

// IsElevated is only meaningful on Windows.
func IsElevated() (bool, error) {
	return false, ErrElevationUnsupported
}

// ShellRestarter relaunches the program elevated on Windows; elsewhere it
// always fails so the coordinator falls back.
type ShellRestarter struct {
	Args []string
}

// RequestRestart always fails with ErrElevationUnsupported on this platform.
func (ShellRestarter) RequestRestart(context.Context) error {
	return ErrElevationUnsupported
}
