// Package lifecycle implements the Lifecycle Controller (spec §4.6): the
// Null/Ready/Paused/Playing state machine each flow runs through, its
// start sequence (pipeline build, bounded PTP sync wait, the post-start
// QoS-drop grace window, bus watch installation), its stop sequence, and
// its failure model (engine errors surface only via the Event Bus, never
// a silent restart). Built on the generic Machine in fsm.go, itself
// adapted from the teacher's internal/pipeline/fsm package.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/eyevinn-osaas/strom-sub002/internal/bus"
	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/clockcfg"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/log"
	"github.com/eyevinn-osaas/strom-sub002/internal/metrics"
	"github.com/eyevinn-osaas/strom-sub002/internal/pipelinebuild"
	"github.com/eyevinn-osaas/strom-sub002/internal/rerr"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

// Event is a lifecycle transition trigger.
type Event string

const (
	evPrepare Event = "prepare"
	evPlay    Event = "play"
	evPause   Event = "pause"
	evStop    Event = "stop"
)

// qosGracePeriod is how long QoS drop messages are suppressed right after
// reaching Playing, since the engine commonly reports a burst of drops
// while buffers prime (spec §4.6).
const qosGracePeriod = 2 * time.Second

// PTPSyncWait bounds how long Start blocks waiting for the PTP clock to
// report its first lock before giving up with rerr.PtpSyncTimeout.
var PTPSyncWait = 5 * time.Second

// Controller owns one flow's engine pipeline and its Null/Ready/Paused/Playing
// state machine.
type Controller struct {
	flow       *flow.Flow
	factory    engine.Factory
	elementCat *catalog.ElementCatalog
	blockCat   *catalog.BlockCatalog
	eventBus   *bus.Bus

	machine *Machine[types.PipelineState, Event]

	built       *pipelinebuild.Built
	gracePeriod time.Time
	msgDone     chan struct{}
}

// New constructs a Controller for flw in the Null state. No engine
// resources are allocated until Start is called.
func New(flw *flow.Flow, factory engine.Factory, elementCat *catalog.ElementCatalog, blockCat *catalog.BlockCatalog, eventBus *bus.Bus) (*Controller, error) {
	c := &Controller{flow: flw, factory: factory, elementCat: elementCat, blockCat: blockCat, eventBus: eventBus}

	m, err := NewMachine(types.StateNull, []Transition[types.PipelineState, Event]{
		{From: types.StateNull, Event: evPrepare, To: types.StateReady, Action: c.doPrepare},
		{From: types.StateReady, Event: evPlay, To: types.StatePlaying, Action: c.doPlay},
		{From: types.StatePaused, Event: evPlay, To: types.StatePlaying, Action: c.doPlay},
		{From: types.StatePlaying, Event: evPause, To: types.StatePaused, Action: c.doPause},
		{From: types.StateReady, Event: evPause, To: types.StatePaused, Action: c.doPause},
		{From: types.StateReady, Event: evStop, To: types.StateNull, Action: c.doStop},
		{From: types.StatePaused, Event: evStop, To: types.StateNull, Action: c.doStop},
		{From: types.StatePlaying, Event: evStop, To: types.StateNull, Action: c.doStop},
	})
	if err != nil {
		return nil, err
	}
	c.machine = m
	return c, nil
}

// State returns the flow's current lifecycle state.
func (c *Controller) State() types.PipelineState { return c.machine.State() }

// Start runs the full start sequence: building the pipeline if still Null,
// then transitioning to Playing. From Paused it resumes playback; from
// Playing it returns a StateChangeFailed error.
func (c *Controller) Start(ctx context.Context) error {
	if c.machine.State() == types.StateNull {
		if _, err := c.fire(ctx, evPrepare); err != nil {
			return err
		}
	}
	_, err := c.fire(ctx, evPlay)
	return err
}

// Pause transitions a Playing or Ready flow to Paused. Pausing a flow
// that has never been started prepares it first, the same way Start does
// for Play, so a freshly created flow can be paused directly.
func (c *Controller) Pause(ctx context.Context) error {
	if c.machine.State() == types.StateNull {
		if _, err := c.fire(ctx, evPrepare); err != nil {
			return err
		}
	}
	_, err := c.fire(ctx, evPause)
	return err
}

// Stop tears the pipeline down and returns the flow to Null. Safe to call
// from Ready, Paused, or Playing.
func (c *Controller) Stop(ctx context.Context) error {
	_, err := c.fire(ctx, evStop)
	return err
}

func (c *Controller) fire(ctx context.Context, ev Event) (types.PipelineState, error) {
	from := c.machine.State()
	to, err := c.machine.Fire(ctx, ev)
	if err != nil {
		metrics.FSMTransitionErrorsTotal.WithLabelValues(string(from), string(ev)).Inc()
		return from, rerr.Wrap(rerr.StateChangeFailed, err, "flow %q: %s", c.flow.ID, ev)
	}
	metrics.FSMTransitionsTotal.WithLabelValues(string(from), string(to), string(ev)).Inc()
	if to != types.StateNull {
		metrics.FlowsActive.WithLabelValues(string(to)).Inc()
	}
	if from != types.StateNull {
		metrics.FlowsActive.WithLabelValues(string(from)).Dec()
	}
	return to, nil
}

func (c *Controller) doPrepare(ctx context.Context, from, to types.PipelineState, ev Event) error {
	built, err := pipelinebuild.Build(ctx, c.factory, c.elementCat, c.blockCat, c.flow)
	if err != nil {
		return err
	}
	c.built = built

	if c.flow.Properties.ClockType == types.ClockPTP {
		if err := c.waitForPTPLock(ctx, built.Pipeline); err != nil {
			built.Pipeline.Teardown()
			c.built = nil
			return err
		}
	}

	return built.Pipeline.SetState(ctx, types.StateReady)
}

func (c *Controller) waitForPTPLock(ctx context.Context, pipe engine.Pipeline) error {
	deadline := time.Now().Add(PTPSyncWait)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for {
		select {
		case msg, ok := <-pipe.Messages():
			if !ok {
				return rerr.New(rerr.PtpSyncTimeout, "flow %q: engine closed before ptp lock", c.flow.ID)
			}
			if msg.Kind == engine.MsgInfo && msg.Text == "ptp_locked" {
				return nil
			}
		case <-waitCtx.Done():
			return rerr.New(rerr.PtpSyncTimeout, "flow %q: ptp lock not achieved within %s", c.flow.ID, PTPSyncWait)
		}
	}
}

func (c *Controller) doPlay(ctx context.Context, from, to types.PipelineState, ev Event) error {
	if err := c.built.Pipeline.SetState(ctx, types.StatePlaying); err != nil {
		return err
	}
	c.gracePeriod = time.Now().Add(qosGracePeriod)
	if c.msgDone == nil {
		c.msgDone = make(chan struct{})
		go c.pumpMessages()
	}
	return nil
}

func (c *Controller) doPause(ctx context.Context, from, to types.PipelineState, ev Event) error {
	return c.built.Pipeline.SetState(ctx, types.StatePaused)
}

func (c *Controller) doStop(ctx context.Context, from, to types.PipelineState, ev Event) error {
	if c.msgDone != nil {
		close(c.msgDone)
		c.msgDone = nil
	}
	if c.built != nil {
		if err := c.built.Pipeline.SetState(ctx, types.StateNull); err != nil {
			return err
		}
		c.built.Pipeline.Teardown()
	}
	c.built = nil
	c.eventBus.Publish(bus.Event{Kind: bus.KindStateChanged, FlowID: c.flow.ID, FromState: string(from), ToState: string(types.StateNull), Timestamp: time.Now()})
	return nil
}

// pumpMessages forwards built.Pipeline.Messages() onto the Event Bus as
// typed events, for as long as the pipeline is Playing or Paused (never a
// silent restart: every engine error reaches the bus, spec §4.6 failure
// model). QoS drops arriving within the post-start grace window are
// suppressed.
func (c *Controller) pumpMessages() {
	built := c.built
	if built == nil {
		return
	}
	done := c.msgDone
	for {
		select {
		case msg, ok := <-built.Pipeline.Messages():
			if !ok {
				return
			}
			c.translate(msg)
		case <-done:
			return
		}
	}
}

func (c *Controller) translate(msg engine.Message) {
	switch msg.Kind {
	case engine.MsgError:
		c.eventBus.Publish(bus.Event{Kind: bus.KindPipelineError, FlowID: c.flow.ID, ElementID: msg.Element, Err: msg.Err, Timestamp: msg.Timestamp})
	case engine.MsgWarning:
		c.eventBus.Publish(bus.Event{Kind: bus.KindPipelineWarning, FlowID: c.flow.ID, ElementID: msg.Element, Text: msg.Text, Timestamp: msg.Timestamp})
	case engine.MsgInfo:
		c.eventBus.Publish(bus.Event{Kind: bus.KindPipelineInfo, FlowID: c.flow.ID, ElementID: msg.Element, Text: msg.Text, Timestamp: msg.Timestamp})
	case engine.MsgEOS:
		c.eventBus.Publish(bus.Event{Kind: bus.KindEOS, FlowID: c.flow.ID, ElementID: msg.Element, Timestamp: msg.Timestamp})
	case engine.MsgQoSDrop:
		if time.Now().Before(c.gracePeriod) {
			return
		}
		metrics.QoSDropsTotal.WithLabelValues(string(c.flow.ID), msg.Element).Inc()
		c.eventBus.Publish(bus.Event{Kind: bus.KindQoSDrop, FlowID: c.flow.ID, ElementID: msg.Element, Dropped: msg.Dropped, Timestamp: msg.Timestamp})
	case engine.MsgPadAdded:
		// The Dynamic Pad Resolver (internal/dynpads) publishes KindPadAdded
		// itself, once it knows whether the pad's pending links resolved
		// through a runtime-synthesized tee, so the event carries a Tee
		// value when one applies. Nothing to forward here.
	case engine.MsgStateChange:
		c.eventBus.Publish(bus.Event{Kind: bus.KindStateChanged, FlowID: c.flow.ID, Text: msg.Text, Timestamp: msg.Timestamp})
	case engine.MsgPTPGrandmasterChange:
		c.eventBus.Publish(bus.Event{
			Kind: bus.KindPTPGrandmasterChange, FlowID: c.flow.ID,
			Domain: msg.PTPDomain, GrandmasterID: msg.PTPGrandmasterID, Synced: msg.PTPSynced,
			Timestamp: msg.Timestamp,
		})
	case engine.MsgPTPStats:
		significant := clockcfg.Significant(msg.PTPOffsetSeconds)
		metrics.PTPOffsetSeconds.WithLabelValues(string(c.flow.ID), domainLabel(msg.PTPDomain)).Set(msg.PTPOffsetSeconds)
		if significant {
			metrics.PTPSignificantCorrectionsTotal.WithLabelValues(string(c.flow.ID), domainLabel(msg.PTPDomain)).Inc()
		}
		c.eventBus.Publish(bus.Event{
			Kind: bus.KindPTPStats, FlowID: c.flow.ID, Domain: msg.PTPDomain,
			PTPOffsetSeconds: msg.PTPOffsetSeconds, PTPSignificant: significant,
			Timestamp: msg.Timestamp,
		})
	default:
		log.L().Warn().Str("kind", string(msg.Kind)).Str("flow_id", string(c.flow.ID)).Msg("unrecognized engine message kind")
	}
}

func domainLabel(domain int) string {
	return fmt.Sprintf("%d", domain)
}

// Built exposes the current pipeline build (nil when Null), for the
// Dynamic Pad Resolver and Live Mutation Engine to attach against.
func (c *Controller) Built() *pipelinebuild.Built { return c.built }
