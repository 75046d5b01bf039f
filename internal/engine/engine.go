// Package engine defines the interface contract between the Pipeline
// Graph Runtime and the underlying real-time streaming engine (spec §1:
// "The streaming engine's internal element implementations... [are]
// external collaborators with interfaces only"). The concrete encoders,
// muxers, and protocol elements a production engine provides are out of
// scope; this package only specifies the shape the Pipeline Builder,
// Dynamic Pad Resolver, and Live Mutation Engine program against, plus an
// in-memory Fake implementation (internal/engine/fake.go) used to exercise
// that contract end-to-end in this repository's own tests.
package engine

import (
	"context"
	"time"

	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

// PadDirection mirrors types.Direction but lives here so engine.go has no
// import-cycle dependency surprises for consumers that only need pads.
type PadDirection = types.Direction

// ElementHandle is a live engine element: a constructed, possibly-added
// node the builder and mutation engine act on.
type ElementHandle interface {
	ID() string
	ElementType() string
	// SetProperty sets a property on the element. Per spec §4.2 point 3,
	// callers MUST call SetProperty before the element is added to any
	// pipeline for properties that must be present at construction time;
	// the Fake implementation records the add (FakeElement.AddedToPipeline)
	// but does not reject a SetProperty call made after it.
	SetProperty(name string, v types.PropertyValue) error
	GetProperty(name string) (types.PropertyValue, bool)
	// RequestPad allocates a new pad instance from a request pad template
	// (e.g. "sink_%u" -> "sink_0"), returning the concrete instance name.
	RequestPad(templateName string) (string, error)
	// SupportsQoS reports whether EnableQoS should be called for this element.
	SupportsQoS() bool
	EnableQoS()
}

// PadAddedFunc is invoked when a new (sometimes/request-origin) pad appears
// at runtime on an element that was registered via Pipeline.WatchDynamicPads.
type PadAddedFunc func(elementID, padName string)

// Clock abstracts the engine's selectable pipeline clock (spec §4.8).
type Clock interface {
	Kind() types.ClockKind
	Domain() int // meaningful only for ClockPTP
}

// Message is a low-level engine bus message, the raw material the Pipeline
// Builder's bus watch (spec §4.4 step 8) translates into typed Event Bus
// events (spec §4.9).
type Message struct {
	Kind      MessageKind
	Element   string // originating element id, if any
	Text      string
	Err       error
	NewPad    string // for MsgPadAdded
	Dropped   uint64 // for MsgQoSDrop
	Timestamp time.Time

	// PTP fields, populated for MsgPTPGrandmasterChange / MsgPTPStats only
	// (spec §4.8's grandmaster-change and statistics callbacks).
	PTPDomain         int
	PTPGrandmasterID  string
	PTPSynced         bool
	PTPOffsetSeconds  float64
	PTPMeanPathDelay  float64
	PTPRate           float64
	PTPR2             float64
}

type MessageKind string

const (
	MsgError              MessageKind = "error"
	MsgWarning            MessageKind = "warning"
	MsgInfo               MessageKind = "info"
	MsgEOS                MessageKind = "eos"
	MsgStateChange        MessageKind = "state_change"
	MsgPadAdded           MessageKind = "pad_added"
	MsgQoSDrop            MessageKind = "qos_drop"
	MsgPTPGrandmasterChange MessageKind = "ptp_grandmaster_change"
	MsgPTPStats           MessageKind = "ptp_stats"
)

// Pipeline is one flow's materialized engine pipeline.
type Pipeline interface {
	Name() string

	// SetClock configures the pipeline clock. Spec §4.4 step 2: this MUST
	// happen before any element is added.
	SetClock(c Clock) error
	// SetDirectMediaClock sets base_time=0, start_time=None, the PTP-only
	// step of spec §4.8.
	SetDirectMediaClock()

	// Add adds an already-constructed element (see Factory.NewElement) to
	// the pipeline. Callers MUST have set every property the element needs
	// before calling Add (spec §4.2 point 3): the builder never adds an
	// element and then configures it.
	Add(el ElementHandle) error
	Element(id string) (ElementHandle, bool)

	// Link attempts an immediate link; ok=false means the pads don't exist
	// yet and the caller should treat this as deferred (spec §4.4 step 6).
	Link(fromElem, fromPad, toElem, toPad string) (ok bool, err error)

	// WatchDynamicPads registers a callback invoked whenever a new pad
	// appears on elementID at runtime (spec §4.4 step 7 / §4.5).
	WatchDynamicPads(elementID string, fn PadAddedFunc)

	// SetState requests a pipeline state transition (spec §4.6). It
	// returns once the engine has acknowledged the request; reaching the
	// target state is asynchronous and reported via Messages().
	SetState(ctx context.Context, s types.PipelineState) error
	State() types.PipelineState

	// Messages returns the channel of low-level bus messages for this
	// pipeline; closed when the pipeline is torn down.
	Messages() <-chan Message

	// Teardown releases all engine resources. Idempotent.
	Teardown()
}

// Factory constructs new pipelines, the engine-facing half of the Pipeline
// Builder (spec §4.4 step 1).
type Factory interface {
	NewPipeline(name string) (Pipeline, error)
	// NewElement constructs a detached element, not yet part of any
	// pipeline, so callers can set its properties before Pipeline.Add.
	NewElement(id, elementType string) (ElementHandle, error)
	NewPTPClock(domain int) (Clock, error)
	SystemClock(kind types.ClockKind) Clock
}
