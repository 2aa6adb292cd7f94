package registry

import (
	"fmt"
	"strings"
)

// Tx is a view of a locked Registry handed to Atomically callbacks. It must not
// be retained after the callback returns.
type Tx struct {
	r *Registry
}

// Name returns the current display name of id.
func (tx *Tx) Name(id ID) (string, error) {
	e, ok := tx.r.entries[id]
	if !ok {
		return "", ErrNotFound
	}
	return e.name, nil
}

// Rename changes the display name of id and returns the previous one.
func (tx *Tx) Rename(id ID, name string) (string, error) {
	e, ok := tx.r.entries[id]
	if !ok {
		return "", ErrNotFound
	}
	old := e.name
	e.name = name
	return old, nil
}

// SnapshotNames returns every display name in join order.
func (tx *Tx) SnapshotNames() []string {
	names := make([]string, 0, len(tx.r.order))
	for _, id := range tx.r.order {
		names = append(names, tx.r.entries[id].name)
	}
	return names
}

// Broadcast sends payload to every registered connection.
func (tx *Tx) Broadcast(payload string) Delivery {
	d := Delivery{Attempted: len(tx.r.order)}
	for _, id := range tx.r.order {
		if err := tx.r.entries[id].sink.Send(payload); err != nil {
			d.Failed = append(d.Failed, &SendError{ID: id, Err: err})
		}
	}
	return d
}

// SendTo sends payload to id only.
func (tx *Tx) SendTo(id ID, payload string) error {
	e, ok := tx.r.entries[id]
	if !ok {
		return ErrNotFound
	}
	if err := e.sink.Send(payload); err != nil {
		return &SendError{ID: id, Err: err}
	}
	return nil
}

// SendError records an outbound frame one connection did not accept.
type SendError struct {
	ID  ID
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("registry: send to connection %d: %v", e.ID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Delivery summarises one fan-out.
type Delivery struct {
	Attempted int
	Failed    []*SendError
}

// Delivered returns the number of connections that accepted the frame.
func (d Delivery) Delivered() int {
	return d.Attempted - len(d.Failed)
}

// Merge adds the counts of other to d.
func (d Delivery) Merge(other Delivery) Delivery {
	d.Attempted += other.Attempted
	d.Failed = append(d.Failed, other.Failed...)
	return d
}

// Err returns nil when every send succeeded, otherwise an error listing the
// failed connections.
func (d Delivery) Err() error {
	if len(d.Failed) == 0 {
		return nil
	}
	msgs := make([]string, len(d.Failed))
	for i, f := range d.Failed {
		msgs[i] = f.Error()
	}
	return fmt.Errorf("%d of %d sends failed: %s", len(d.Failed), d.Attempted, strings.Join(msgs, "; "))
}
