// Package bus implements the process-wide Event Bus (spec §4.9): a
// typed, fan-out publish/subscribe channel that every flow's engine
// messages, FSM transitions, and mutation notifications funnel into.
// Grounded on the teacher's internal/pipeline/bus memory_bus.go: weak
// (best-effort) subscription with non-blocking hand-off to a concurrent
// worker, so one slow subscriber never stalls publication.
package bus

import (
	"sync"
	"time"

	"github.com/eyevinn-osaas/strom-sub002/internal/ids"
	"github.com/eyevinn-osaas/strom-sub002/internal/metrics"
)

// Kind classifies an Event's payload shape.
type Kind string

const (
	KindPipelineError        Kind = "pipeline_error"
	KindPipelineWarning      Kind = "pipeline_warning"
	KindPipelineInfo         Kind = "pipeline_info"
	KindEOS                  Kind = "eos"
	KindStateChanged         Kind = "state_changed"
	KindPadAdded             Kind = "pad_added"
	KindPTPGrandmasterChange Kind = "ptp_grandmaster_change"
	KindPTPStats             Kind = "ptp_stats"
	KindQoSDrop              Kind = "qos_drop"
	KindPropertyUpdated      Kind = "property_updated"
)

// Event is one typed bus message.
type Event struct {
	Kind      Kind
	FlowID    ids.FlowID
	ElementID string
	Timestamp time.Time

	Text string
	Err  error

	NewPad string // KindPadAdded
	Tee    string // KindPadAdded: set to the duplicator element id when this pad was resolved through a runtime-synthesized tee

	FromState, ToState string // KindStateChanged

	Dropped uint64 // KindQoSDrop

	Domain        int    // KindPTPGrandmasterChange, KindPTPStats
	GrandmasterID string // KindPTPGrandmasterChange
	Synced        bool   // KindPTPGrandmasterChange

	PTPOffsetSeconds float64 // KindPTPStats
	PTPSignificant   bool    // KindPTPStats

	PropertyName string // KindPropertyUpdated
}

// Subscription is a weak handle to a live subscriber: Unsubscribe removes
// it, and a full or already-closed subscriber channel is simply skipped by
// future publishes rather than blocking or panicking.
type Subscription struct {
	id  uint64
	bus *Bus
}

// Unsubscribe removes the subscription. Idempotent.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
}

type subscriber struct {
	ch     chan Event
	filter func(Event) bool
}

// Bus is the process-wide event fan-out. The zero value is not usable;
// construct with New.
type Bus struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64

	publish chan Event
	done    chan struct{}
}

// New starts a Bus with a single concurrent worker draining publishes and
// fanning them out, so Publish itself never blocks on subscriber delivery.
func New() *Bus {
	b := &Bus{
		subs:    map[uint64]*subscriber{},
		publish: make(chan Event, 1024),
		done:    make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Bus) loop() {
	for {
		select {
		case ev := <-b.publish:
			b.fanOut(ev)
		case <-b.done:
			return
		}
	}
}

func (b *Bus) fanOut(ev Event) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if s.filter != nil && !s.filter(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			metrics.IncBusDropped(string(ev.Kind), "subscriber_full")
		}
	}
}

// Publish hands ev off to the fan-out worker. Non-blocking: if the
// internal queue is itself full (an overloaded process), the event is
// dropped and recorded rather than stalling the caller.
func (b *Bus) Publish(ev Event) {
	select {
	case b.publish <- ev:
	default:
		metrics.IncBusDropped(string(ev.Kind), "queue_full")
	}
}

// Subscribe registers a new subscriber. filter may be nil to receive every
// event; otherwise only events for which filter returns true are
// delivered. The returned channel is buffered; slow consumption only ever
// drops events for that one subscriber (spec §4.9 "weak subscription").
func (b *Bus) Subscribe(bufSize int, filter func(Event) bool) (<-chan Event, *Subscription) {
	if bufSize <= 0 {
		bufSize = 64
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	s := &subscriber{ch: make(chan Event, bufSize), filter: filter}
	b.subs[id] = s
	return s.ch, &Subscription{id: id, bus: b}
}

// SubscribeFlow is a convenience wrapper for the common case of watching a
// single flow's events.
func (b *Bus) SubscribeFlow(flowID ids.FlowID, bufSize int) (<-chan Event, *Subscription) {
	return b.Subscribe(bufSize, func(ev Event) bool { return ev.FlowID == flowID })
}

// Close stops the fan-out worker and closes every live subscriber channel.
func (b *Bus) Close() {
	close(b.done)
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}
