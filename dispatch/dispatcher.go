// Package dispatch classifies inbound frames and routes them to the store.
package dispatch

import (
	"errors"
	"sync/atomic"

	"github.com/moyoez/fleet-notify/notify"
	"github.com/moyoez/fleet-notify/tool"
	"github.com/moyoez/fleet-notify/types"
)

// Sink receives routed messages. The notification store implements it.
type Sink interface {
	// Ingest reports whether the notification was accepted.
	Ingest(n types.Notification) bool
	ReplaceUnreadCount(count int)
	ConfirmRead(id string)
}

// Stats counts frames by outcome.
type Stats struct {
	Received   int64 `json:"received"`
	Dispatched int64 `json:"dispatched"`
	Dropped    int64 `json:"dropped"` // malformed
	Ignored    int64 `json:"ignored"` // unknown or inbound-irrelevant types
}

// Dispatcher is called from the supervisor's single reader, so frames are
// handled in delivery order.
type Dispatcher struct {
	sink   Sink
	alerts notify.AlertSink

	received   atomic.Int64
	dispatched atomic.Int64
	dropped    atomic.Int64
	ignored    atomic.Int64
}

func New(sink Sink, alerts notify.AlertSink) *Dispatcher {
	if alerts == nil {
		alerts = notify.Noop{}
	}
	return &Dispatcher{sink: sink, alerts: alerts}
}

// HandleFrame never fails: a protocol error is not a connection error.
func (d *Dispatcher) HandleFrame(raw []byte) {
	d.received.Add(1)
	msg, err := Decode(raw)
	if err != nil {
		if errors.Is(err, ErrUnknownType) {
			d.ignored.Add(1)
			tool.DefaultLogger.Debugf("[Dispatch] Ignoring frame: %v", err)
			return
		}
		d.dropped.Add(1)
		tool.DefaultLogger.Debugf("[Dispatch] Dropping frame: %v", err)
		return
	}
	d.Dispatch(msg)
}

// Dispatch routes an already decoded message.
func (d *Dispatcher) Dispatch(msg types.Message) {
	switch m := msg.(type) {
	case types.NotificationMessage:
		d.dispatched.Add(1)
		if d.sink.Ingest(m.Notification) {
			d.alerts.Alert(m.Notification)
		}
	case types.UnreadCountMessage:
		d.dispatched.Add(1)
		d.sink.ReplaceUnreadCount(m.Count)
	case types.NotificationReadMessage:
		d.dispatched.Add(1)
		d.sink.ConfirmRead(m.NotificationID)
	case types.SubscribeMessage:
		// outbound only
		d.ignored.Add(1)
	default:
		d.ignored.Add(1)
	}
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Received:   d.received.Load(),
		Dispatched: d.dispatched.Load(),
		Dropped:    d.dropped.Load(),
		Ignored:    d.ignored.Load(),
	}
}
