package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eyevinn-osaas/strom-sub002/internal/rerr"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

// FakeFactory is an in-memory, single-process Factory. It stands in for the
// real streaming engine (out of scope per spec §1) well enough to exercise
// the Pipeline Builder, Dynamic Pad Resolver, and Live Mutation Engine end
// to end, including simulated request-pad allocation and runtime pad
// arrival driven by test code via (*FakePipeline).SimulateNewPad.
type FakeFactory struct {
	// RequestTemplates lists, per element type, the request-pad template
	// names it exposes (e.g. "videomixer" -> ["sink_%u"]).
	RequestTemplates map[string][]string
}

func NewFakeFactory() *FakeFactory {
	return &FakeFactory{RequestTemplates: map[string][]string{}}
}

func (f *FakeFactory) NewPipeline(name string) (Pipeline, error) {
	return &FakePipeline{
		name:     name,
		elements: map[string]*FakeElement{},
		watchers: map[string][]PadAddedFunc{},
		msgs:     make(chan Message, 256),
		factory:  f,
		state:    types.StateNull,
	}, nil
}

func (f *FakeFactory) NewElement(id, elementType string) (ElementHandle, error) {
	return &FakeElement{
		id: id, elementType: elementType,
		props: map[string]types.PropertyValue{}, reqCounters: map[string]int{},
	}, nil
}

func (f *FakeFactory) NewPTPClock(domain int) (Clock, error) {
	return &fakeClock{kind: types.ClockPTP, domain: domain}, nil
}

func (f *FakeFactory) SystemClock(kind types.ClockKind) Clock {
	return &fakeClock{kind: kind}
}

type fakeClock struct {
	kind   types.ClockKind
	domain int
}

func (c *fakeClock) Kind() types.ClockKind { return c.kind }
func (c *fakeClock) Domain() int           { return c.domain }

// FakeElement is an in-memory engine element.
type FakeElement struct {
	mu          sync.Mutex
	id          string
	elementType string
	props       map[string]types.PropertyValue
	addedToPipe bool
	qosEnabled  bool
	reqCounters map[string]int
}

func (e *FakeElement) ID() string          { return e.id }
func (e *FakeElement) ElementType() string { return e.elementType }

func (e *FakeElement) SetProperty(name string, v types.PropertyValue) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.props[name] = v
	return nil
}

func (e *FakeElement) GetProperty(name string) (types.PropertyValue, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.props[name]
	return v, ok
}

func (e *FakeElement) RequestPad(templateName string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.reqCounters[templateName]
	e.reqCounters[templateName] = n + 1
	instance := instantiateTemplate(templateName, n)
	return instance, nil
}

func instantiateTemplate(template string, n int) string {
	out := ""
	for i := 0; i < len(template); i++ {
		if (template[i] == '%') && i+1 < len(template) && (template[i+1] == 'u' || template[i+1] == 'd') {
			out += fmt.Sprintf("%d", n)
			i++
			continue
		}
		out += string(template[i])
	}
	return out
}

// AddedToPipeline reports whether the element has been added to a
// pipeline, letting tests verify spec §8 invariant 4 (properties set
// before add) by checking property values captured prior to this flag
// flipping true.
func (e *FakeElement) AddedToPipeline() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addedToPipe
}

func (e *FakeElement) SupportsQoS() bool { return true }
func (e *FakeElement) EnableQoS() {
	e.mu.Lock()
	e.qosEnabled = true
	e.mu.Unlock()
}

// FakePipeline is an in-memory Pipeline.
type FakePipeline struct {
	mu       sync.Mutex
	name     string
	factory  *FakeFactory
	elements map[string]*FakeElement
	links    []fakeLink
	watchers map[string][]PadAddedFunc
	clock    Clock
	direct   bool
	state    types.PipelineState
	msgs     chan Message
	closed   bool
}

type fakeLink struct {
	fromElem, fromPad, toElem, toPad string
}

func (p *FakePipeline) Name() string { return p.name }

func (p *FakePipeline) SetClock(c Clock) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = c
	return nil
}

func (p *FakePipeline) SetDirectMediaClock() {
	p.mu.Lock()
	p.direct = true
	p.mu.Unlock()
}

// DirectMediaClock reports whether SetDirectMediaClock was called; used by
// tests asserting spec §4.8's PTP-only base_time=0/start_time=None step.
func (p *FakePipeline) DirectMediaClock() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.direct
}

// Clock returns the configured clock, for test assertions.
func (p *FakePipeline) Clock() Clock {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock
}

func (p *FakePipeline) Add(el ElementHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	fe, ok := el.(*FakeElement)
	if !ok {
		return rerr.New(rerr.ElementCreation, "element %q is not a FakeElement", el.ID())
	}
	if _, dup := p.elements[fe.id]; dup {
		return rerr.New(rerr.ElementCreation, "element %q already exists in pipeline %q", fe.id, p.name)
	}
	fe.mu.Lock()
	fe.addedToPipe = true
	fe.mu.Unlock()
	p.elements[fe.id] = fe
	return nil
}

func (p *FakePipeline) Element(id string) (ElementHandle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[id]
	return el, ok
}

func (p *FakePipeline) Link(fromElem, fromPad, toElem, toPad string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.elements[fromElem]; !ok {
		return false, nil
	}
	if _, ok := p.elements[toElem]; !ok {
		return false, nil
	}
	p.links = append(p.links, fakeLink{fromElem, fromPad, toElem, toPad})
	return true, nil
}

// Links exposes the linked set for test assertions.
func (p *FakePipeline) Links() []fakeLink {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]fakeLink, len(p.links))
	copy(out, p.links)
	return out
}

func (p *FakePipeline) WatchDynamicPads(elementID string, fn PadAddedFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watchers[elementID] = append(p.watchers[elementID], fn)
}

// SimulateNewPad is test-only: it fires as if the engine had just created a
// sometimes/request pad at runtime, notifying registered watchers and
// emitting a MsgPadAdded bus message.
func (p *FakePipeline) SimulateNewPad(elementID, padName string) {
	p.mu.Lock()
	watchers := append([]PadAddedFunc(nil), p.watchers[elementID]...)
	p.mu.Unlock()
	for _, w := range watchers {
		w(elementID, padName)
	}
	p.emit(Message{Kind: MsgPadAdded, Element: elementID, NewPad: padName, Timestamp: time.Now()})
}

func (p *FakePipeline) SetState(ctx context.Context, s types.PipelineState) error {
	p.mu.Lock()
	old := p.state
	p.state = s
	p.mu.Unlock()
	p.emit(Message{Kind: MsgStateChange, Text: string(old) + "->" + string(s), Timestamp: time.Now()})
	return nil
}

func (p *FakePipeline) State() types.PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *FakePipeline) Messages() <-chan Message { return p.msgs }

func (p *FakePipeline) emit(m Message) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	select {
	case p.msgs <- m:
	default:
	}
}

// EmitQoSDrop lets test code (and a future real-engine adapter) simulate a
// QoS drop message for an element.
func (p *FakePipeline) EmitQoSDrop(elementID string, dropped uint64) {
	p.emit(Message{Kind: MsgQoSDrop, Element: elementID, Dropped: dropped, Timestamp: time.Now()})
}

// EmitError lets test code simulate an asynchronous engine error.
func (p *FakePipeline) EmitError(elementID string, err error) {
	p.emit(Message{Kind: MsgError, Element: elementID, Err: err, Timestamp: time.Now()})
}

// EmitInfo lets test code simulate an informational engine message, such
// as the "ptp_locked" notification the Lifecycle Controller waits on
// during a PTP-clocked flow's start sequence.
func (p *FakePipeline) EmitInfo(elementID, text string) {
	p.emit(Message{Kind: MsgInfo, Element: elementID, Text: text, Timestamp: time.Now()})
}

// EmitPTPGrandmasterChange lets test code (and a future real-engine
// adapter) simulate a PTP grandmaster-change notification (spec §4.8).
func (p *FakePipeline) EmitPTPGrandmasterChange(domain int, grandmasterID string, synced bool) {
	p.emit(Message{
		Kind:             MsgPTPGrandmasterChange,
		PTPDomain:        domain,
		PTPGrandmasterID: grandmasterID,
		PTPSynced:        synced,
		Timestamp:        time.Now(),
	})
}

// EmitPTPStats lets test code simulate a PTP statistics callback (mean
// path delay, clock offset, rate, r²), filtered per flow domain (spec
// §4.8).
func (p *FakePipeline) EmitPTPStats(domain int, offsetSeconds, meanPathDelaySeconds, rate, r2 float64) {
	p.emit(Message{
		Kind:             MsgPTPStats,
		PTPDomain:        domain,
		PTPOffsetSeconds: offsetSeconds,
		PTPMeanPathDelay: meanPathDelaySeconds,
		PTPRate:          rate,
		PTPR2:            r2,
		Timestamp:        time.Now(),
	})
}

func (p *FakePipeline) Teardown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.msgs)
}
