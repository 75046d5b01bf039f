// Package pipelinebuild implements the Pipeline Builder (spec §4.4): the
// single place that turns a validated, block-expanded, tee-inserted Flow
// into a live engine.Pipeline, in the exact order the invariants require.
// Grounded on the teacher's internal/pipeline/exec builder, which wires a
// worker graph together in the same create-configure-link-watch sequence.
package pipelinebuild

import (
	"context"
	"fmt"

	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/clockcfg"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/expand"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/rerr"
	"github.com/eyevinn-osaas/strom-sub002/internal/tee"
	"github.com/eyevinn-osaas/strom-sub002/internal/telemetry"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

// Built is the materialized pipeline plus the bookkeeping the rest of the
// runtime (dynamic pad resolver, lifecycle controller, live mutation
// engine) needs afterwards.
type Built struct {
	Pipeline     engine.Pipeline
	Expanded     *expand.Expanded
	Tee          tee.Result
	PendingLinks []PendingLink
	// DynamicElements lists the ids of elements whose catalog entry
	// declares sometimes/request src templates (step 7): the Dynamic Pad
	// Resolver (internal/dynpads) registers its own WatchDynamicPads
	// callback against each of these once it takes ownership of Built.
	DynamicElements []string
}

// PendingLink is a link whose endpoints didn't both exist yet at build
// time (spec §4.4 step 6); the Dynamic Pad Resolver completes these once
// the producing element's pad actually appears.
type PendingLink struct {
	FromElem, FromPad, ToElem, ToPad string
}

// Build executes the Pipeline Builder's nine-step contract against flw,
// using elementCat to resolve element types and blockCat to expand block
// instances. f constructs engine-native pipelines/elements/clocks.
func Build(ctx context.Context, f engine.Factory, elementCat *catalog.ElementCatalog, blockCat *catalog.BlockCatalog, flw *flow.Flow) (*Built, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipelinebuild.Build")
	defer span.End()

	if err := flw.Validate(); err != nil {
		return nil, err
	}

	// Step 1: create an empty pipeline.
	pipe, err := f.NewPipeline(string(flw.ID))
	if err != nil {
		return nil, rerr.Wrap(rerr.ElementCreation, err, "creating pipeline for flow %q", flw.ID)
	}

	// Step 2: configure the clock before any element is added.
	if err := clockcfg.Configure(f, pipe, flw.Properties); err != nil {
		return nil, err
	}

	// Block expansion happens before element/link wiring so link rewriting
	// and tee insertion see the fully flattened graph.
	_, expandSpan := telemetry.StartSpan(ctx, "pipelinebuild.expand")
	exp, err := expand.Expand(f, blockCat, flw)
	expandSpan.End()
	if err != nil {
		return nil, err
	}
	teeResult := tee.Insert(exp.Links)

	// Step 3: add originally-declared elements (those not produced by block
	// expansion), enabling QoS where the catalog supports it.
	for id, spec := range exp.Elements {
		if _, lookupErr := elementCat.Lookup(spec.ElementType); lookupErr != nil {
			return nil, lookupErr
		}
		el, newErr := f.NewElement(id, spec.ElementType)
		if newErr != nil {
			return nil, rerr.Wrap(rerr.ElementCreation, newErr, "element %q (%s)", id, spec.ElementType)
		}
		if err := applyProperties(el, spec.Properties); err != nil {
			return nil, rerr.Wrap(rerr.InvalidConfiguration, err, "element %q", id)
		}
		if el.SupportsQoS() {
			el.EnableQoS()
		}
		if err := pipe.Add(el); err != nil {
			return nil, err
		}
	}

	// Step 4: add block-expanded elements. These were already constructed
	// and configured by the block's Build; the builder only adds them.
	for id, el := range exp.BlockHandles {
		if el.SupportsQoS() {
			el.EnableQoS()
		}
		if err := pipe.Add(el); err != nil {
			return nil, fmt.Errorf("adding block element %q: %w", id, err)
		}
	}

	// Step 5: add auto-inserted duplicators (tee elements), one per
	// fan-out source, before attempting any link that touches them.
	for _, dup := range teeResult.Duplicators {
		el, newErr := f.NewElement(dup.ElementID, tee.DuplicatorElementType)
		if newErr != nil {
			return nil, rerr.Wrap(rerr.ElementCreation, newErr, "duplicator %q", dup.ElementID)
		}
		if err := pipe.Add(el); err != nil {
			return nil, err
		}
	}

	// elementTypeOf resolves an owner id to its element type, needed to
	// recognize sometimes-pad sources that must be deferred proactively:
	// the engine has no element to ask (the pad doesn't exist yet), so the
	// builder itself must recognize it from the catalog.
	elementTypeOf := map[string]string{}
	for id, spec := range exp.Elements {
		elementTypeOf[id] = spec.ElementType
	}
	for id, el := range exp.BlockHandles {
		elementTypeOf[id] = el.ElementType()
	}

	// Step 6: attempt every link; pads that don't exist yet (sometimes /
	// request-origin, not yet resolved) are recorded as pending instead of
	// failing the build.
	built := &Built{Pipeline: pipe, Expanded: exp, Tee: teeResult}
	for _, l := range teeResult.Links {
		from := l.FromRef()
		to := l.ToRef()

		if elementType, ok := elementTypeOf[from.Owner]; ok {
			if def, lookupErr := elementCat.Lookup(elementType); lookupErr == nil && def.IsSometimesPad(from.Pad) {
				built.PendingLinks = append(built.PendingLinks, PendingLink{
					FromElem: from.Owner, FromPad: from.Pad, ToElem: to.Owner, ToPad: to.Pad,
				})
				continue
			}
		}

		ok, linkErr := pipe.Link(from.Owner, from.Pad, to.Owner, to.Pad)
		if linkErr != nil {
			return nil, rerr.Wrap(rerr.InvalidLink, linkErr, "linking %q -> %q", l.From, l.To)
		}
		if !ok {
			built.PendingLinks = append(built.PendingLinks, PendingLink{
				FromElem: from.Owner, FromPad: from.Pad, ToElem: to.Owner, ToPad: to.Pad,
			})
		}
	}

	// Step 7: identify every element whose catalog entry declares
	// sometimes/request src templates, so the Dynamic Pad Resolver knows
	// which elements to watch once it takes ownership of built.
	for id, elementType := range elementTypeOf {
		def, lookupErr := elementCat.Lookup(elementType)
		if lookupErr != nil {
			continue
		}
		if def.HasDynamicSrcTemplates() {
			built.DynamicElements = append(built.DynamicElements, id)
		}
	}

	// Step 8 (event bus watch) is the Lifecycle Controller's
	// responsibility once it takes ownership of this Built value; see
	// internal/lifecycle. Step 9: the pad properties collected in
	// Expanded.PadProperties are not applied to the pipeline, here or in
	// the controller; engine.ElementHandle has no pad-property setter.
	return built, nil
}

func applyProperties(el engine.ElementHandle, props map[string]types.PropertyValue) error {
	for name, v := range props {
		if err := el.SetProperty(name, v); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
	}
	return nil
}
