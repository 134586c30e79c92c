package permissions

import "errors"

// ErrMicrophoneDenied means the OS will deliver silence or refuse to open
// input streams until the user grants access.
var ErrMicrophoneDenied = errors.New("microphone permission not granted")

// Status mirrors the platform authorization states.
type Status int

const (
	NotDetermined Status = iota
	Restricted
	Denied
	Authorized
)

func (s Status) String() string {
	switch s {
	case NotDetermined:
		return "not determined"
	case Restricted:
		return "restricted"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// EnsureMicrophone checks microphone access, asking for it when the user
// has not been asked yet.
func EnsureMicrophone() error {
	status := CheckMicrophone()
	switch status {
	case Authorized:
		return nil
	case NotDetermined:
		RequestMicrophone()
	}
	return ErrMicrophoneDenied
}
