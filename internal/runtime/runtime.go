// Package runtime implements the process-level Flow Table (spec §5): the
// single place that owns every live flow's lifecycle controller, dynamic
// pad resolver attachment, and mutation engine, and that exposes the
// control operations external collaborators call (upsert/delete/start/
// stop/pause/update_element_property/get_element_properties/
// subscribe_events). Grounded on the teacher's internal/daemon.App, which
// plays the same role of owning every long-lived subsystem and handing
// out a shared errgroup-bounded executor to them.
package runtime

import (
	"context"
	"sync"

	"github.com/eyevinn-osaas/strom-sub002/internal/bus"
	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/dynpads"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/ids"
	"github.com/eyevinn-osaas/strom-sub002/internal/lifecycle"
	"github.com/eyevinn-osaas/strom-sub002/internal/log"
	"github.com/eyevinn-osaas/strom-sub002/internal/mutation"
	"github.com/eyevinn-osaas/strom-sub002/internal/rerr"
	"github.com/eyevinn-osaas/strom-sub002/internal/taskexec"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

// entry is everything the Flow Table tracks for one live flow. mu guards
// the flow document and the mutation engine pointer against concurrent
// property updates and re-upserts; the lifecycle Controller has its own
// internal locking for state transitions.
type entry struct {
	mu         sync.Mutex
	flow       *flow.Flow
	controller *lifecycle.Controller
	mutator    *mutation.Engine
}

// Runtime is the process-wide Flow Table (spec §5: "Flow table is
// process-wide, guarded by a read/write lock ... a per-flow lock protects
// live mutations"). One Runtime serves every flow a process hosts.
type Runtime struct {
	factory    engine.Factory
	elementCat *catalog.Holder
	blockCat   *catalog.BlockHolder
	eventBus   *bus.Bus
	dyn        *dynpads.Registry
	exec       *taskexec.Executor

	mu    sync.RWMutex
	flows map[ids.FlowID]*entry
}

// New constructs a Runtime. parallelism bounds the shared task executor
// that runs controller start/stop/pause work (spec §5: "the controller,
// expander, and API adapters run on a shared task executor with
// configurable parallelism").
func New(factory engine.Factory, elementCat *catalog.Holder, blockCat *catalog.BlockHolder, eventBus *bus.Bus, parallelism int64) *Runtime {
	return &Runtime{
		factory:    factory,
		elementCat: elementCat,
		blockCat:   blockCat,
		eventBus:   eventBus,
		dyn:        dynpads.NewRegistry(),
		exec:       taskexec.New(parallelism),
		flows:      map[ids.FlowID]*entry{},
	}
}

// UpsertFlow validates flw and installs it as the flow table's entry for
// flw.ID, replacing any prior document. A flow already running keeps
// running: the new document takes effect on its next start (spec §5 does
// not require a live flow to be rebuilt on every document edit).
func (r *Runtime) UpsertFlow(flw *flow.Flow) error {
	if err := flw.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	e, ok := r.flows[flw.ID]
	if !ok {
		e = &entry{}
		r.flows[flw.ID] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.flow = flw
	if e.controller == nil {
		c, err := lifecycle.New(flw, r.factory, r.elementCat.Current(), r.blockCat.Current(), r.eventBus)
		if err != nil {
			return err
		}
		e.controller = c
	}
	return nil
}

// DeleteFlow stops and removes flw_id's entry, returning false if it was
// not present.
func (r *Runtime) DeleteFlow(ctx context.Context, flowID ids.FlowID) (bool, error) {
	r.mu.Lock()
	e, ok := r.flows[flowID]
	if ok {
		delete(r.flows, flowID)
	}
	r.mu.Unlock()
	if !ok {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.controller.State() != types.StateNull {
		if err := e.controller.Stop(ctx); err != nil {
			return true, err
		}
	}
	r.dyn.Forget(flowID)
	return true, nil
}

// StartFlow builds (if necessary) and plays flow_id's pipeline, attaching
// the Dynamic Pad Resolver and constructing a fresh Live Mutation Engine
// against the newly built pipeline.
func (r *Runtime) StartFlow(ctx context.Context, flowID ids.FlowID) (types.PipelineState, error) {
	e, err := r.lookup(flowID)
	if err != nil {
		return types.StateNull, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// A flow in Null is rebuilt from its latest document and the current
	// catalogs, so re-upserts and catalog reloads take effect here.
	if e.controller.State() == types.StateNull {
		c, err := lifecycle.New(e.flow, r.factory, r.elementCat.Current(), r.blockCat.Current(), r.eventBus)
		if err != nil {
			return types.StateNull, err
		}
		e.controller = c
	}

	var startErr error
	runErr := r.exec.Run(ctx, func(ctx context.Context) error {
		startErr = e.controller.Start(ctx)
		return nil
	})
	if runErr != nil {
		return e.controller.State(), runErr
	}
	if startErr != nil {
		return e.controller.State(), startErr
	}

	if built := e.controller.Built(); built != nil {
		dynpads.Attach(r.dyn, flowID, r.factory, built, r.eventBus)
		e.mutator = mutation.New(e.flow, r.elementCat.Current(), r.blockCat.Current(), built, r.eventBus)
	}
	return e.controller.State(), nil
}

// StopFlow tears flow_id's pipeline down to Null.
func (r *Runtime) StopFlow(ctx context.Context, flowID ids.FlowID) (types.PipelineState, error) {
	e, err := r.lookup(flowID)
	if err != nil {
		return types.StateNull, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var stopErr error
	runErr := r.exec.Run(ctx, func(ctx context.Context) error {
		stopErr = e.controller.Stop(ctx)
		return nil
	})
	e.mutator = nil
	r.dyn.Forget(flowID)
	if runErr != nil {
		return e.controller.State(), runErr
	}
	return e.controller.State(), stopErr
}

// PauseFlow transitions flow_id's pipeline to Paused, from Playing or
// Ready.
func (r *Runtime) PauseFlow(ctx context.Context, flowID ids.FlowID) (types.PipelineState, error) {
	e, err := r.lookup(flowID)
	if err != nil {
		return types.StateNull, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var pauseErr error
	runErr := r.exec.Run(ctx, func(ctx context.Context) error {
		pauseErr = e.controller.Pause(ctx)
		return nil
	})
	if runErr != nil {
		return e.controller.State(), runErr
	}
	return e.controller.State(), pauseErr
}

// UpdateElementProperty applies a live mutation to elementID/property on
// flow_id's running pipeline. Returns NotMutableInState if the flow has
// not been started (no mutation engine attached yet).
func (r *Runtime) UpdateElementProperty(flowID ids.FlowID, elementID, property string, value types.PropertyValue, hint types.MutabilityHint) error {
	e, err := r.lookup(flowID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mutator == nil {
		return rerr.New(rerr.NotMutableInState, "flow %q is not started", flowID)
	}
	return e.mutator.Apply(mutation.Request{OwnerID: elementID, Property: property, Value: value, Hint: hint})
}

// GetElementProperties returns the flow-document-declared properties for
// elementID (or a block instance's declared properties), not a live
// read-back from the engine — the runtime never reads engine state back
// into the flow document (spec §6 persisted-state-layout note).
func (r *Runtime) GetElementProperties(flowID ids.FlowID, elementID string) (map[string]types.PropertyValue, error) {
	e, err := r.lookup(flowID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if el, ok := e.flow.ElementByID(elementID); ok {
		return el.Properties, nil
	}
	if blk, ok := e.flow.BlockByID(elementID); ok {
		return blk.Properties, nil
	}
	return nil, rerr.New(rerr.UnknownElement, "no element or block %q in flow %q", elementID, flowID)
}

// SubscribeEvents returns a channel of every event on the process-wide bus,
// with the given buffer size (0 uses the bus's default).
func (r *Runtime) SubscribeEvents(bufSize int) (<-chan bus.Event, *bus.Subscription) {
	return r.eventBus.Subscribe(bufSize, nil)
}

// SubscribeFlowEvents is a convenience wrapper scoped to a single flow.
func (r *Runtime) SubscribeFlowEvents(flowID ids.FlowID, bufSize int) (<-chan bus.Event, *bus.Subscription) {
	return r.eventBus.SubscribeFlow(flowID, bufSize)
}

// State reports flow_id's current lifecycle state.
func (r *Runtime) State(flowID ids.FlowID) (types.PipelineState, error) {
	e, err := r.lookup(flowID)
	if err != nil {
		return types.StateNull, err
	}
	return e.controller.State(), nil
}

func (r *Runtime) lookup(flowID ids.FlowID) (*entry, error) {
	r.mu.RLock()
	e, ok := r.flows[flowID]
	r.mu.RUnlock()
	if !ok {
		return nil, rerr.New(rerr.UnknownFlow, "flow %q not found", flowID)
	}
	return e, nil
}

// Shutdown stops every currently tracked flow, best-effort, collecting the
// first error encountered while continuing to stop the rest. Intended for
// process shutdown, where leaving an engine pipeline running past process
// exit would leak whatever OS resources it holds.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	flowIDs := make([]ids.FlowID, 0, len(r.flows))
	for id := range r.flows {
		flowIDs = append(flowIDs, id)
	}
	r.mu.RUnlock()

	var firstErr error
	for _, id := range flowIDs {
		if _, err := r.StopFlow(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReloadCatalogs swaps in freshly loaded element/block catalogs, the way
// the teacher's config.ConfigHolder applies a hot-reloaded snapshot. Flows
// already built keep referencing the catalog snapshot they were built
// with; only the next start picks up the new one.
func (r *Runtime) ReloadCatalogs(elementCat *catalog.ElementCatalog, blockCat *catalog.BlockCatalog) {
	if elementCat != nil {
		r.elementCat.Swap(elementCat)
		log.L().Info().Msg("runtime: element catalog reloaded")
	}
	if blockCat != nil {
		r.blockCat.Swap(blockCat)
		log.L().Info().Msg("runtime: block catalog reloaded")
	}
}
