// Package chat implements the broadcast engine of the relay: it turns
// connection lifecycle events and inbound frames into fan-outs over the
// connection registry.
package chat

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/registry"
)

// ErrEmptyUsername is reported when a client asks for a blank display name.
var ErrEmptyUsername = errors.New("chat: empty username")

// Metrics receives connection and event counts. Implementations must be safe
// for concurrent use.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	EventHandled(event string)
	SendFailed(n int)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened()   {}
func (nopMetrics) ConnectionClosed()   {}
func (nopMetrics) EventHandled(string) {}
func (nopMetrics) SendFailed(int)      {}

// Option configures a Room.
type Option func(*Room)

// WithLogger sets the logger used for dropped events and failed sends.
func WithLogger(l *zap.Logger) Option {
	return func(r *Room) { r.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(r *Room) { r.metrics = m }
}

// WithClock overrides the time source used to stamp notices.
func WithClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

// Room is the single chat room. It owns no connection state itself; the
// registry it is built on does.
type Room struct {
	reg     *registry.Registry
	lastID  atomic.Uint64
	log     *zap.Logger
	metrics Metrics
	now     func() time.Time
}

// NewRoom returns a Room that fans out over reg.
func NewRoom(reg *registry.Registry, opts ...Option) *Room {
	r := &Room{
		reg:     reg,
		log:     zap.NewNop(),
		metrics: nopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the registry the room broadcasts over.
func (r *Room) Registry() *registry.Registry {
	return r.reg
}

// Join registers sink under a fresh ID and announces it: the new connection is
// told its name, everyone gets the user list and a join notice.
func (r *Room) Join(sink registry.Sink) (registry.ID, string) {
	id := registry.ID(r.lastID.Add(1))
	name := r.reg.Add(id, sink)
	r.metrics.ConnectionOpened()
	r.metrics.EventHandled(EventJoin.String())
	r.log.Info("connection joined", zap.Uint64("conn_id", uint64(id)), zap.String("name", name))

	var d registry.Delivery
	if err := r.reg.SendTo(id, protocol.NewUsername(name).String()); err != nil {
		d = d.Merge(failedDelivery(err))
	}
	d = d.Merge(r.broadcastUserList())
	d = d.Merge(r.reg.Broadcast(r.notice(fmt.Sprintf("%s join the chat", name))))
	r.reportFailures(EventJoin, d)
	return id, name
}

// Leave removes id and announces the departure. Leaving twice, or leaving an
// ID that never joined, reports registry.ErrNotFound and broadcasts nothing.
func (r *Room) Leave(id registry.ID) Report {
	rep := Report{Event: EventLeave}
	r.metrics.EventHandled(EventLeave.String())
	name, err := r.reg.Remove(id)
	if err != nil {
		rep.Err = err
		r.log.Warn("cannot find connection to remove", zap.Uint64("conn_id", uint64(id)))
		return rep
	}
	r.metrics.ConnectionClosed()
	r.log.Info("connection left", zap.Uint64("conn_id", uint64(id)), zap.String("name", name))

	d := r.reg.Broadcast(r.notice(fmt.Sprintf("%s left the chat", name)))
	d = d.Merge(r.broadcastUserList())
	rep.Delivery = d
	r.reportFailures(EventLeave, d)
	return rep
}

// HandleFrame dispatches one inbound text frame from id. Frames that are not
// valid envelopes are relayed verbatim to everyone.
func (r *Room) HandleFrame(id registry.ID, raw string) Report {
	env, err := protocol.DecodeString(raw)
	if err != nil {
		var perr *protocol.ParseError
		errors.As(err, &perr)
		r.log.Debug("relaying unstructured frame", zap.Uint64("conn_id", uint64(id)), zap.Error(err))
		d := r.reg.Broadcast(raw)
		return r.finish(Report{Event: EventRaw, ParseErr: perr, Delivery: d})
	}

	var rep Report
	switch env.Type {
	case protocol.NewMessage:
		rep = r.chat(id, *env.Message)
	case protocol.UsernameChange:
		rep = r.rename(id, *env.Username)
	case protocol.UserList:
		d := r.broadcastUserList()
		rep = Report{Event: EventUserList, Delivery: d}
	case protocol.System:
		rep = Report{Event: EventSystem}
	default:
		rep = Report{Event: EventRaw, Err: fmt.Errorf("chat: unhandled message type %q", env.Type)}
	}

	if rep.Dropped() {
		r.log.Warn("dropping event",
			zap.Uint64("conn_id", uint64(id)),
			zap.String("event", rep.Event.String()),
			zap.Error(rep.Err),
		)
	}
	return r.finish(rep)
}

func (r *Room) chat(id registry.ID, msg protocol.ChatMessage) Report {
	rep := Report{Event: EventChat}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = protocol.At(r.now())
	}

	r.reg.Atomically(func(tx *registry.Tx) {
		if msg.Author == "" {
			name, err := tx.Name(id)
			if err != nil {
				rep.Err = err
				return
			}
			msg.Author = name
		}
		rep.Delivery = tx.Broadcast(protocol.FromChat(msg).String())
	})
	return rep
}

func (r *Room) rename(id registry.ID, name string) Report {
	rep := Report{Event: EventRename}
	if strings.TrimSpace(name) == "" {
		rep.Err = ErrEmptyUsername
		return rep
	}

	r.reg.Atomically(func(tx *registry.Tx) {
		old, err := tx.Rename(id, name)
		if err != nil {
			rep.Err = err
			return
		}

		var d registry.Delivery
		if err := tx.SendTo(id, protocol.NewUsername(name).String()); err != nil {
			d = d.Merge(failedDelivery(err))
		}
		d = d.Merge(tx.Broadcast(r.notice(fmt.Sprintf("%s changed username to %s", old, name))))
		d = d.Merge(tx.Broadcast(protocol.NewUserList(tx.SnapshotNames()).String()))
		rep.Delivery = d
	})
	return rep
}

func (r *Room) broadcastUserList() registry.Delivery {
	var d registry.Delivery
	r.reg.Atomically(func(tx *registry.Tx) {
		d = tx.Broadcast(protocol.NewUserList(tx.SnapshotNames()).String())
	})
	return d
}

func (r *Room) notice(body string) string {
	return protocol.NewSystem(body, r.now()).String()
}

func (r *Room) finish(rep Report) Report {
	r.metrics.EventHandled(rep.Event.String())
	r.reportFailures(rep.Event, rep.Delivery)
	return rep
}

func (r *Room) reportFailures(ev Event, d registry.Delivery) {
	if len(d.Failed) == 0 {
		return
	}
	r.metrics.SendFailed(len(d.Failed))
	r.log.Info("fan-out incomplete",
		zap.String("event", ev.String()),
		zap.Int("delivered", d.Delivered()),
		zap.Int("failed", len(d.Failed)),
	)
	for _, f := range d.Failed {
		r.log.Debug("send failed",
			zap.String("event", ev.String()),
			zap.Uint64("conn_id", uint64(f.ID)),
			zap.Error(f.Err),
		)
	}
}

// failedDelivery converts a SendTo error into a Delivery. ErrNotFound means
// the peer left between steps and is not counted as a failure.
func failedDelivery(err error) registry.Delivery {
	var sendErr *registry.SendError
	if errors.As(err, &sendErr) {
		return registry.Delivery{Attempted: 1, Failed: []*registry.SendError{sendErr}}
	}
	return registry.Delivery{}
}
