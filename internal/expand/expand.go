// Package expand implements the Block Expander (spec §4.2): it turns a
// flow's declared Block instances into namespaced primitive element
// subgraphs, rewrites flow-level links that touch a block's external pads
// into links against the block's internal elements, and folds the result
// back into a flat element+link set the Pipeline Builder can consume
// directly. Grounded on the teacher's internal/pipeline/model expansion
// pass, which performs the analogous "stage config -> concrete worker set"
// resolution before a pipeline is built.
package expand

import (
	"fmt"

	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/ids"
	"github.com/eyevinn-osaas/strom-sub002/internal/rerr"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

// Expanded is the flattened result of expanding every block in a flow: the
// original elements plus every block's internal elements, internal links,
// rewritten flow-level links, and the pad-property set to apply once pads
// exist.
type Expanded struct {
	// Elements maps element id -> (element type, resolved construction
	// properties) for elements declared directly in the flow. The Pipeline
	// Builder still must call Factory.NewElement and SetProperty for each
	// before Pipeline.Add.
	Elements map[string]ElementSpec
	// BlockHandles holds the already-constructed, already-configured
	// ElementHandles a block's Build produced. The Pipeline Builder adds
	// these directly; it must not reconstruct or reconfigure them.
	BlockHandles map[string]engine.ElementHandle
	// Links is the full link set, in order: every block's internal links
	// first, then every flow-level link, with block-touching endpoints
	// rewritten and element endpoints unchanged.
	Links []flow.Link
	// PadProperties accumulates per-(element,pad,property) values from
	// block expansion and from elements declared directly in the flow:
	// elementID -> pad name -> property name -> value.
	PadProperties map[string]map[string]map[string]types.PropertyValue
	// BlockElements records which internal element ids belong to a given
	// block instance, for teardown and diagnostics.
	BlockElements map[ids.BlockID][]string
}

// ElementSpec is a fully-resolved element construction request: a type
// name plus the properties to apply before the element is added to the
// pipeline.
type ElementSpec struct {
	ElementType string
	Properties  map[string]types.PropertyValue
}

// Expand walks f's declared blocks, calling each one's Build to obtain its
// internal element subgraph, and produces a flattened Expanded suitable
// for direct consumption by the Pipeline Builder. flw must already have
// passed Flow.Validate.
func Expand(f engine.Factory, blocks *catalog.BlockCatalog, flw *flow.Flow) (*Expanded, error) {
	out := &Expanded{
		Elements:      map[string]ElementSpec{},
		BlockHandles:  map[string]engine.ElementHandle{},
		PadProperties: map[string]map[string]map[string]types.PropertyValue{},
		BlockElements: map[ids.BlockID][]string{},
	}

	for _, e := range flw.Elements {
		out.Elements[string(e.ID)] = ElementSpec{ElementType: e.ElementType, Properties: e.Properties}
		for pad, props := range e.PadProperties {
			out.mergePadProperties(string(e.ID), pad, props)
		}
	}

	// external: block id -> external pad name -> resolved internal PadRef.
	external := map[ids.BlockID]map[string]ids.PadRef{}

	for i := range flw.Blocks {
		b := &flw.Blocks[i]
		def, err := blocks.Lookup(b.DefinitionID)
		if err != nil {
			return nil, err
		}

		props, err := resolveBlockProperties(def, b.Properties)
		if err != nil {
			return nil, rerr.Wrap(rerr.InvalidConfiguration, err, "block %q", b.ID)
		}

		pads, err := def.ExternalPads(props)
		if err != nil {
			return nil, rerr.Wrap(rerr.InvalidConfiguration, err, "block %q: computing external pads", b.ID)
		}
		b.ComputedExternalPads = pads

		res, err := def.Build(f, string(b.ID), props)
		if err != nil {
			return nil, rerr.Wrap(rerr.ElementCreation, err, "block %q (definition %q)", b.ID, b.DefinitionID)
		}

		ext := map[string]ids.PadRef{}
		for _, spec := range pads.Inputs {
			ext[spec.ExternalName] = ids.PadRef{Owner: spec.InternalElement, Pad: spec.InternalPad}
		}
		for _, spec := range pads.Outputs {
			ext[spec.ExternalName] = ids.PadRef{Owner: spec.InternalElement, Pad: spec.InternalPad}
		}
		external[b.ID] = ext

		var elemIDs []string
		for id, handle := range res.Elements {
			elemIDs = append(elemIDs, id)
			out.BlockHandles[id] = handle
		}
		out.BlockElements[b.ID] = elemIDs

		for _, il := range res.InternalLinks {
			out.Links = append(out.Links, flow.Link{
				From: ids.PadRef{Owner: il.FromElement, Pad: il.FromPad}.String(),
				To:   ids.PadRef{Owner: il.ToElement, Pad: il.ToPad}.String(),
			})
		}
		for elemID, padProps := range res.PadProperties {
			for pad, props := range padProps {
				out.mergePadProperties(elemID, pad, props)
			}
		}
	}

	for _, l := range flw.Links {
		from, err := rewriteRef(l.FromRef(), flw, external)
		if err != nil {
			return nil, err
		}
		to, err := rewriteRef(l.ToRef(), flw, external)
		if err != nil {
			return nil, err
		}
		out.Links = append(out.Links, flow.Link{From: from.String(), To: to.String()})
	}

	return out, nil
}

// rewriteRef resolves a flow-level pad-ref into the internal element+pad
// it actually denotes: element refs pass through unchanged, block refs are
// looked up in that block's external-pad map.
func rewriteRef(ref ids.PadRef, flw *flow.Flow, external map[ids.BlockID]map[string]ids.PadRef) (ids.PadRef, error) {
	if _, ok := flw.ElementByID(ref.Owner); ok {
		return ref, nil
	}
	b, ok := flw.BlockByID(ref.Owner)
	if !ok {
		return ids.PadRef{}, rerr.New(rerr.InvalidLink, "link references unknown owner %q", ref.Owner)
	}
	ext, ok := external[b.ID]
	if !ok {
		return ids.PadRef{}, rerr.New(rerr.InvalidConfiguration, "block %q has no computed external pads", b.ID)
	}
	resolved, ok := ext[ref.Pad]
	if !ok {
		return ids.PadRef{}, rerr.New(rerr.InvalidLink, "block %q has no external pad %q", b.ID, ref.Pad)
	}
	return resolved, nil
}

// resolveBlockProperties merges a block definition's declared defaults
// with the instance's overrides (spec §4.2 point 2).
func resolveBlockProperties(def *catalog.BlockDefinition, instance map[string]types.PropertyValue) (map[string]types.PropertyValue, error) {
	out := make(map[string]types.PropertyValue, len(def.ExposedProperties))
	for _, p := range def.ExposedProperties {
		out[p.Name] = p.Default
	}
	for name, v := range instance {
		exposed, hasDef := def.ExposedPropertyByName(name)
		if hasDef && exposed.Default.Kind != "" && !exposed.Default.SameKind(v) {
			return nil, fmt.Errorf("property %q: expected kind %s, got %s", name, exposed.Default.Kind, v.Kind)
		}
		out[name] = v
	}
	return out, nil
}

func (e *Expanded) mergePadProperties(elementID, pad string, props map[string]types.PropertyValue) {
	if e.PadProperties[elementID] == nil {
		e.PadProperties[elementID] = map[string]map[string]types.PropertyValue{}
	}
	if e.PadProperties[elementID][pad] == nil {
		e.PadProperties[elementID][pad] = map[string]types.PropertyValue{}
	}
	for name, v := range props {
		e.PadProperties[elementID][pad][name] = v
	}
}
