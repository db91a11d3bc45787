//go:build !linux

package notify

// New returns a backend that shows nothing, with ErrUnavailable: desktop
// notifications are only wired on Linux.
func New() (Backend, error) {
	return nopBackend{}, ErrUnavailable
}
