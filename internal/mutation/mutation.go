// Package mutation implements the Live Mutation Engine (spec §4.7):
// applying a (flow_id, element_id, property_name, new_value) request to a
// running pipeline, resolving block-backed property aliases, enforcing
// the mutable-in-playing rule, and throttling continuous per-property
// updates to a 50ms minimum interval with an explicit flush bypass.
// Grounded on the teacher's internal/domain/session property-update path,
// which applies the same serialize-per-key, collapse-while-throttled
// pattern for tuner parameter writes.
package mutation

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/eyevinn-osaas/strom-sub002/internal/bus"
	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/metrics"
	"github.com/eyevinn-osaas/strom-sub002/internal/pipelinebuild"
	"github.com/eyevinn-osaas/strom-sub002/internal/rerr"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
	"github.com/eyevinn-osaas/strom-sub002/internal/unitconv"
)

// MinInterval is the minimum spacing between applied updates to the same
// (element, property) key absent an explicit flush hint (spec §4.7
// "Throttling").
const MinInterval = 50 * time.Millisecond

// Request is one live property mutation, addressed at flow level: OwnerID
// names either a flow-declared element or a block instance whose exposed
// property aliases an internal element/property (spec §4.7 point 3).
type Request struct {
	OwnerID  string
	Property string
	Value    types.PropertyValue
	Hint     types.MutabilityHint
}

type key struct {
	elementID, property string
}

// resolved is a request after alias resolution: the engine-facing element
// id and property name it actually targets.
type resolved struct {
	elementID        string
	property         string
	value            types.PropertyValue
	mutableInPlaying bool
}

// Engine applies live mutations to one flow's running pipeline.
type Engine struct {
	flw        *flow.Flow
	elementCat *catalog.ElementCatalog
	blockCat   *catalog.BlockCatalog
	built      *pipelinebuild.Built
	eventBus   *bus.Bus

	mu       sync.Mutex
	limiters map[key]*rate.Limiter
	timers   map[key]*time.Timer
	pending  map[key]resolved
}

// New constructs a mutation Engine bound to one flow's materialized
// pipeline. eventBus may be nil in tests that don't care about
// PropertyUpdated notifications.
func New(flw *flow.Flow, elementCat *catalog.ElementCatalog, blockCat *catalog.BlockCatalog, built *pipelinebuild.Built, eventBus *bus.Bus) *Engine {
	return &Engine{
		flw: flw, elementCat: elementCat, blockCat: blockCat, built: built, eventBus: eventBus,
		limiters: map[key]*rate.Limiter{},
		timers:   map[key]*time.Timer{},
		pending:  map[key]resolved{},
	}
}

// Apply resolves req against the flow/catalogs, enforces the
// mutable-in-playing rule, and either applies it immediately or collapses
// it into the pending write for its (element, property) key until the
// throttle interval elapses (spec §4.7).
func (e *Engine) Apply(req Request) error {
	r, err := e.resolve(req)
	if err != nil {
		return err
	}

	if e.built.Pipeline.State() == types.StatePlaying && !r.mutableInPlaying {
		return rerr.New(rerr.NotMutableInState, "property %q on %q is not mutable while playing", req.Property, req.OwnerID)
	}

	k := key{elementID: r.elementID, property: r.property}

	if req.Hint == types.HintFlush {
		e.cancelPending(k)
		return e.applyNow(k, r)
	}

	e.mu.Lock()
	limiter, ok := e.limiters[k]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(MinInterval), 1)
		e.limiters[k] = limiter
	}
	delay := limiter.ReserveN(time.Now(), 1).Delay()
	if delay <= 0 {
		e.mu.Unlock()
		return e.applyNow(k, r)
	}

	// Later writes supersede pending throttled writes (spec §5 ordering
	// guarantee): overwrite whatever was queued, and only arm a timer the
	// first time a write for this key starts waiting.
	_, hadTimer := e.timers[k]
	e.pending[k] = r
	if !hadTimer {
		e.timers[k] = time.AfterFunc(delay, func() { e.flushPending(k) })
	}
	metrics.MutationsThrottledTotal.WithLabelValues(r.elementID, r.property).Inc()
	e.mu.Unlock()
	return nil
}

func (e *Engine) flushPending(k key) {
	e.mu.Lock()
	r, ok := e.pending[k]
	delete(e.pending, k)
	delete(e.timers, k)
	e.mu.Unlock()
	if !ok {
		return
	}
	_ = e.applyNow(k, r)
}

func (e *Engine) cancelPending(k key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[k]; ok {
		t.Stop()
		delete(e.timers, k)
	}
	delete(e.pending, k)
}

func (e *Engine) applyNow(k key, r resolved) error {
	el, ok := e.built.Pipeline.Element(r.elementID)
	if !ok {
		return rerr.New(rerr.UnknownElement, "element %q not found in materialized pipeline", r.elementID)
	}
	if err := el.SetProperty(r.property, r.value); err != nil {
		return rerr.Wrap(rerr.InvalidConfiguration, err, "setting %q on %q", r.property, r.elementID)
	}
	metrics.MutationsAppliedTotal.WithLabelValues(r.elementID, r.property).Inc()
	if e.eventBus != nil {
		e.eventBus.Publish(bus.Event{
			Kind: bus.KindPropertyUpdated, FlowID: e.flw.ID, ElementID: r.elementID,
			PropertyName: r.property, Timestamp: time.Now(),
		})
	}
	return nil
}

// resolve implements spec §4.7's resolution steps: a direct flow-declared
// element property, or a block instance's exposed-property alias.
func (e *Engine) resolve(req Request) (resolved, error) {
	if el, ok := e.flw.ElementByID(req.OwnerID); ok {
		def, err := e.elementCat.Lookup(el.ElementType)
		if err != nil {
			return resolved{}, err
		}
		propDef, ok := def.PropertyByName(req.Property)
		if !ok {
			return resolved{}, rerr.New(rerr.InvalidConfiguration, "unknown property %q on element %q", req.Property, req.OwnerID)
		}
		if req.Value.Kind != propDef.Kind {
			return resolved{}, rerr.New(rerr.InvalidConfiguration, "property %q on %q: expected kind %s, got %s", req.Property, req.OwnerID, propDef.Kind, req.Value.Kind)
		}
		return resolved{
			elementID: req.OwnerID, property: req.Property,
			value: applyTransform(propDef.Transform, req.Value), mutableInPlaying: propDef.MutableInPlaying,
		}, nil
	}

	if blk, ok := e.flw.BlockByID(req.OwnerID); ok {
		def, err := e.blockCat.Lookup(blk.DefinitionID)
		if err != nil {
			return resolved{}, err
		}
		exposed, ok := def.ExposedPropertyByName(req.Property)
		if !ok {
			return resolved{}, rerr.New(rerr.InvalidConfiguration, "unknown exposed property %q on block %q", req.Property, req.OwnerID)
		}
		if req.Value.Kind != exposed.Default.Kind {
			return resolved{}, rerr.New(rerr.InvalidConfiguration, "exposed property %q on %q: expected kind %s, got %s", req.Property, req.OwnerID, exposed.Default.Kind, req.Value.Kind)
		}
		return resolved{
			elementID: catalog.Namespace(req.OwnerID, exposed.InternalElement),
			property:  exposed.InternalProperty,
			value:     applyTransform(exposed.Transform, req.Value),
			mutableInPlaying: exposed.MutableInPlaying,
		}, nil
	}

	return resolved{}, rerr.New(rerr.UnknownElement, "no element or block %q declared in flow %q", req.OwnerID, e.flw.ID)
}

func applyTransform(t types.UnitTransform, v types.PropertyValue) types.PropertyValue {
	if t == types.TransformNone {
		return v
	}
	f, ok := v.AsFloat64()
	if !ok {
		return v
	}
	return types.Float(unitconv.Apply(string(t), f))
}
