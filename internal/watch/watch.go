// Package watch defines the file-watcher interface the supervisor consumes
// — a debounced stream of event batches — and ships a default
// fsnotify-backed implementation. The watcher backend itself is explicitly
// out of the session-supervisor core's scope; this package is
// the "known interface" the core is written against.
package watch

import (
	"github.com/janhuddel/ghciwatch/internal/pathset"
)

// Batch is one debounced group of filesystem events, the unit the
// supervisor classifies and reacts to as a whole.
type Batch struct {
	Events []pathset.Event
}

// Watcher is the external collaborator the supervisor depends on only
// through this interface: "the core consumes a debounced
// event stream over a known interface."
type Watcher interface {
	// Batches yields one Batch per debounce window. The channel is closed
	// when the watcher stops, whether via Close or an unrecoverable error.
	Batches() <-chan Batch
	// Errors yields errors reported by the watcher backend. Sending one
	// does not stop the watcher; the supervisor logs each and keeps running.
	Errors() <-chan error
	// Close stops the watcher and releases its resources.
	Close() error
}
