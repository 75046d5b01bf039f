// Package dynpads implements the Dynamic Pad Resolver (spec §4.5): it
// subscribes to new-pad notifications on every element the Pipeline
// Builder flagged as having sometimes/request src templates, completes
// whatever pending links that pad satisfies, creates a runtime duplicator
// exactly once per (element, pad-name) when more than one consumer is
// waiting on the same dynamic pad, publishes a PadAdded event for each
// resolved consumer (spec §4.9, tagged with the duplicator id when one was
// synthesized), and forgets everything for a flow when its pipeline
// returns to Null. Grounded on the teacher's internal/pipeline/exec
// dynamic-worker-attach logic, which resolves late-bound producers the
// same way.
package dynpads

import (
	"sync"
	"time"

	"github.com/eyevinn-osaas/strom-sub002/internal/bus"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/ids"
	"github.com/eyevinn-osaas/strom-sub002/internal/log"
	"github.com/eyevinn-osaas/strom-sub002/internal/pipelinebuild"
	"github.com/eyevinn-osaas/strom-sub002/internal/tee"
)

// key identifies one dynamic pad within one flow's pipeline.
type key struct {
	flowID    ids.FlowID
	elementID string
	padName   string
}

// Registry tracks, process-wide, which (flow, element, pad) triples have
// already had a runtime duplicator created for them, and serializes
// resolution per element so a flood of pad-added notifications can't race
// the same link set.
type Registry struct {
	mu        sync.Mutex
	teeByKey  map[key]string // key -> synthesized tee element id
	elemLocks map[elemKey]*sync.Mutex
}

type elemKey struct {
	flowID    ids.FlowID
	elementID string
}

func NewRegistry() *Registry {
	return &Registry{teeByKey: map[key]string{}, elemLocks: map[elemKey]*sync.Mutex{}}
}

func (r *Registry) lockFor(flowID ids.FlowID, elementID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	ek := elemKey{flowID, elementID}
	l, ok := r.elemLocks[ek]
	if !ok {
		l = &sync.Mutex{}
		r.elemLocks[ek] = l
	}
	return l
}

// Forget drops all registry entries for a flow, called when its pipeline
// returns to Null (spec §4.5: "forgets dynamic pads on ... flow-to-Null").
func (r *Registry) Forget(flowID ids.FlowID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.teeByKey {
		if k.flowID == flowID {
			delete(r.teeByKey, k)
		}
	}
	for ek := range r.elemLocks {
		if ek.flowID == flowID {
			delete(r.elemLocks, ek)
		}
	}
}

// Attach installs the resolver's watchers on built's dynamic elements and
// publishes a PadAdded event (spec §4.9) on eventBus once each pad's
// pending links are resolved. Resolution serializes per element: a flurry
// of SimulateNewPad-equivalent engine notifications on the same element
// processes one at a time.
func Attach(reg *Registry, flowID ids.FlowID, factory engine.Factory, built *pipelinebuild.Built, eventBus *bus.Bus) {
	for _, elementID := range built.DynamicElements {
		elementID := elementID
		built.Pipeline.WatchDynamicPads(elementID, func(elID, padName string) {
			lock := reg.lockFor(flowID, elID)
			lock.Lock()
			defer lock.Unlock()
			resolve(reg, flowID, factory, built, eventBus, elID, padName)
		})
	}
}

// takePending removes and returns every pending link whose source is
// (elementID, padName), guarded by reg.mu since built.PendingLinks is a
// single flow-wide slice shared across every dynamic element's resolve
// call, while lockFor only serializes calls for one element at a time.
func takePending(reg *Registry, built *pipelinebuild.Built, elementID, padName string) []pipelinebuild.PendingLink {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var matched []pipelinebuild.PendingLink
	var idxs []int
	for i, pl := range built.PendingLinks {
		if pl.FromElem == elementID && pl.FromPad == padName {
			matched = append(matched, pl)
			idxs = append(idxs, i)
		}
	}
	for i := len(idxs) - 1; i >= 0; i-- {
		removePending(built, idxs[i])
	}
	return matched
}

// resolve completes every pending link whose source is (elementID,
// padName). If more than one pending link shares that exact source, a
// runtime duplicator is created the first time and reused afterwards.
func resolve(reg *Registry, flowID ids.FlowID, factory engine.Factory, built *pipelinebuild.Built, eventBus *bus.Bus, elementID, padName string) {
	matches := takePending(reg, built, elementID, padName)
	if len(matches) == 0 {
		return
	}

	if len(matches) == 1 {
		linkOne(built, matches[0])
		publishPadAdded(eventBus, flowID, elementID, padName, "")
		return
	}

	reg.mu.Lock()
	k := key{flowID: flowID, elementID: elementID, padName: padName}
	dupID, exists := reg.teeByKey[k]
	reg.mu.Unlock()

	if !exists {
		dupID = "dyn_tee_" + elementID + "_" + padName
		el, err := factory.NewElement(dupID, tee.DuplicatorElementType)
		if err != nil {
			log.L().Warn().Err(err).Str("element", elementID).Str("pad", padName).Msg("dynamic duplicator creation failed")
			return
		}
		if err := built.Pipeline.Add(el); err != nil {
			log.L().Warn().Err(err).Msg("adding dynamic duplicator failed")
			return
		}
		if ok, err := built.Pipeline.Link(elementID, padName, dupID, ""); err != nil || !ok {
			log.L().Warn().Err(err).Msg("linking source to dynamic duplicator failed")
			return
		}
		reg.mu.Lock()
		reg.teeByKey[k] = dupID
		reg.mu.Unlock()
	}

	for _, pl := range matches {
		padInstance, err := duplicatorRequestPad(built, dupID)
		if err != nil {
			log.L().Warn().Err(err).Msg("requesting duplicator pad failed")
			continue
		}
		if ok, err := built.Pipeline.Link(dupID, padInstance, pl.ToElem, pl.ToPad); err != nil || !ok {
			log.L().Warn().Err(err).Msg("linking dynamic duplicator to consumer failed")
			continue
		}
		publishPadAdded(eventBus, flowID, elementID, padName, dupID)
	}
}

func publishPadAdded(eventBus *bus.Bus, flowID ids.FlowID, elementID, padName, tee string) {
	if eventBus == nil {
		return
	}
	eventBus.Publish(bus.Event{
		Kind: bus.KindPadAdded, FlowID: flowID, ElementID: elementID,
		NewPad: padName, Tee: tee, Timestamp: time.Now(),
	})
}

func duplicatorRequestPad(built *pipelinebuild.Built, dupID string) (string, error) {
	el, ok := built.Pipeline.Element(dupID)
	if !ok {
		return "", errElementNotFound(dupID)
	}
	return el.RequestPad(tee.DuplicatorRequestTemplate)
}

func linkOne(built *pipelinebuild.Built, pl pipelinebuild.PendingLink) {
	if ok, err := built.Pipeline.Link(pl.FromElem, pl.FromPad, pl.ToElem, pl.ToPad); err != nil || !ok {
		log.L().Warn().Err(err).Str("from", pl.FromElem).Str("to", pl.ToElem).Msg("resolving pending link failed")
	}
}

func removePending(built *pipelinebuild.Built, idx int) {
	built.PendingLinks = append(built.PendingLinks[:idx], built.PendingLinks[idx+1:]...)
}

type errElementNotFound string

func (e errElementNotFound) Error() string { return "dynpads: element not found: " + string(e) }
