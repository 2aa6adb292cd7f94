// Package registry tracks the live connections of the chat room.
//
// A Registry maps connection IDs to their display name and outbound Sink. All
// access goes through one mutex, including the sends performed by Broadcast
// and SendTo, so two fan-outs never interleave at the level of individual
// peers. Sinks must therefore bound how long Send can block.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

// ID identifies a connection for the lifetime of the process.
type ID uint64

// ErrNotFound is returned when an ID is not (or no longer) registered.
var ErrNotFound = errors.New("registry: connection not found")

// Sink accepts outbound text frames for one connection.
type Sink interface {
	Send(text string) error
}

// DefaultName is the display name assigned to a new connection.
func DefaultName(id ID) string {
	return fmt.Sprintf("user #%d", id)
}

type entry struct {
	name string
	sink Sink
}

// Registry is the set of live connections. The zero value is not usable; use New.
type Registry struct {
	mu      sync.Mutex
	entries map[ID]*entry
	order   []ID
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[ID]*entry)}
}

// Atomically runs fn with the registry locked. fn must not call back into the
// Registry itself; it works through tx instead.
func (r *Registry) Atomically(fn func(tx *Tx)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&Tx{r: r})
}

// Add registers sink under id with a default display name and returns the name.
// A sink already registered under id is replaced.
func (r *Registry) Add(id ID, sink Sink) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := DefaultName(id)
	if e, ok := r.entries[id]; ok {
		e.name, e.sink = name, sink
		return name
	}
	r.entries[id] = &entry{name: name, sink: sink}
	r.order = append(r.order, id)
	return name
}

// Remove unregisters id and returns its last display name.
func (r *Registry) Remove(id ID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return "", ErrNotFound
	}
	delete(r.entries, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return e.name, nil
}

// Rename changes the display name of id and returns the previous one.
func (r *Registry) Rename(id ID, name string) (string, error) {
	var (
		old string
		err error
	)
	r.Atomically(func(tx *Tx) { old, err = tx.Rename(id, name) })
	return old, err
}

// Name returns the current display name of id.
func (r *Registry) Name(id ID) (string, error) {
	var (
		name string
		err  error
	)
	r.Atomically(func(tx *Tx) { name, err = tx.Name(id) })
	return name, err
}

// SnapshotNames returns every display name in join order.
func (r *Registry) SnapshotNames() []string {
	var names []string
	r.Atomically(func(tx *Tx) { names = tx.SnapshotNames() })
	return names
}

// Broadcast sends payload to every registered connection. Failed sends are
// reported in the returned Delivery and do not stop the fan-out.
func (r *Registry) Broadcast(payload string) Delivery {
	var d Delivery
	r.Atomically(func(tx *Tx) { d = tx.Broadcast(payload) })
	return d
}

// SendTo sends payload to a single connection. It returns ErrNotFound when id
// is not registered, or a *SendError when the sink rejects the frame.
func (r *Registry) SendTo(id ID, payload string) error {
	var err error
	r.Atomically(func(tx *Tx) { err = tx.SendTo(id, payload) })
	return err
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
