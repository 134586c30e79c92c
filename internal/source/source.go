package source

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSource is returned by Parse for names that map to no Tag.
var ErrUnknownSource = errors.New("unknown audio source")

// Tag identifies an independent audio channel. At most one capture
// session exists per Tag at any time.
type Tag int

const (
	LocalMicrophone Tag = iota
	RemoteAudio
)

// All returns every Tag in declaration order.
func All() []Tag {
	return []Tag{LocalMicrophone, RemoteAudio}
}

func (t Tag) String() string {
	switch t {
	case LocalMicrophone:
		return "local"
	case RemoteAudio:
		return "remote"
	default:
		return fmt.Sprintf("source(%d)", int(t))
	}
}

// Valid reports whether t is one of the declared tags.
func (t Tag) Valid() bool {
	return t == LocalMicrophone || t == RemoteAudio
}

// FileName is the fixed recording file name for the tag,
// e.g. "local_recording.wav".
func (t Tag) FileName() string {
	return t.String() + "_recording.wav"
}

// Parse maps a user-facing name to a Tag.
func Parse(name string) (Tag, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "local", "mic", "microphone":
		return LocalMicrophone, nil
	case "remote", "system":
		return RemoteAudio, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
}

// MarshalText lets tags be used as YAML/JSON map keys.
func (t Tag) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSource, int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tag) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
