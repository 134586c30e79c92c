package capture

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/whisper-capture/internal/audio"
	"github.com/petems/whisper-capture/internal/metrics"
	"github.com/petems/whisper-capture/internal/sink"
	"github.com/petems/whisper-capture/internal/source"
)

// Options configure every session a Registry opens.
type Options struct {
	OutputDir string
	Format    sink.Format
	// Devices maps a source to an input device ID; missing entries use the
	// host's default input.
	Devices map[source.Tag]string
}

// Registry holds at most one active session per source.
type Registry struct {
	host    audio.Host
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[source.Tag]*Handle
}

func NewRegistry(host audio.Host, opts Options, log zerolog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		host:     host,
		opts:     opts,
		log:      log,
		metrics:  m,
		sessions: make(map[source.Tag]*Handle),
	}
}

// Path returns the recording file for tag. It is the same for every
// session, so each Start overwrites the previous recording.
func (r *Registry) Path(tag source.Tag) string {
	return filepath.Join(r.opts.OutputDir, tag.FileName())
}

// Start begins recording tag. A session already running for tag is
// stopped and its file finalized before the new one truncates it.
func (r *Registry) Start(tag source.Tag) error {
	if !tag.Valid() {
		return fmt.Errorf("%w: %d", source.ErrUnknownSource, int(tag))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.sessions[tag]; ok {
		delete(r.sessions, tag)
		r.log.Info().Str("source", tag.String()).Msg("Restarting active recording")
		if err := old.Close(); err != nil {
			r.log.Error().Err(err).Str("source", tag.String()).Msg("Failed to stop previous recording")
		}
	}

	h, err := Open(r.host, OpenParams{
		Source:   tag,
		Path:     r.Path(tag),
		DeviceID: r.opts.Devices[tag],
		Format:   r.opts.Format,
	}, r.log, r.metrics)
	if err != nil {
		return err
	}

	r.sessions[tag] = h
	return nil
}

// Stop ends the session for tag. Stopping an idle source is not an error.
func (r *Registry) Stop(tag source.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.sessions[tag]
	if !ok {
		return nil
	}
	delete(r.sessions, tag)
	return h.Close()
}

// StopAll stops every active session and returns their combined errors.
func (r *Registry) StopAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, tag := range r.activeLocked() {
		h := r.sessions[tag]
		delete(r.sessions, tag)
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tag, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) Active(tag source.Tag) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[tag]
	return ok
}

// Session returns the active handle for tag, if any.
func (r *Registry) Session(tag source.Tag) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sessions[tag]
	return h, ok
}

// ActiveSources lists the recording sources in declaration order.
func (r *Registry) ActiveSources() []source.Tag {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked()
}

func (r *Registry) activeLocked() []source.Tag {
	tags := make([]source.Tag, 0, len(r.sessions))
	for tag := range r.sessions {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Host returns the audio host sessions are opened on.
func (r *Registry) Host() audio.Host { return r.host }
