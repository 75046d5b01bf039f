package catalog

import (
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

// ExposedProperty maps one block-level property name to the internal
// element property it actually drives, optionally applying a unit
// transform (spec §4.2 point 2, e.g. a block exposing "gain_db" backed by
// an internal element's linear "volume" property).
type ExposedProperty struct {
	Name             string
	Default          types.PropertyValue
	InternalElement  string
	InternalProperty string
	Transform        types.UnitTransform
	MutableInPlaying bool
}

// InternalLink is an edge the block wires between its own expanded
// elements, never visible at flow level.
type InternalLink struct {
	FromElement, FromPad string
	ToElement, ToPad     string
}

// BuildResult is what a block definition's Build produces: the namespaced
// elements it expands into, the links between them, and any pad-level
// properties (e.g. caps) that must be applied to specific pads.
type BuildResult struct {
	Elements      map[string]engine.ElementHandle
	InternalLinks []InternalLink
	// PadProperties carries per-(element,pad) properties: elementID -> pad
	// name -> property name -> value. The expander collects them into
	// Expanded.PadProperties; neither the Pipeline Builder nor the
	// Lifecycle Controller applies them to the engine.
	PadProperties map[string]map[string]map[string]types.PropertyValue
}

// BlockDefinition is one entry of the Block Catalog: a composite unit that
// expands, at flow-build time, into a namespaced subgraph of primitive
// elements (spec §4.2). Definitions are immutable and process-lifetime,
// registered once at startup the way the teacher's pipeline model
// registers its stage constructors.
type BlockDefinition struct {
	ID          string
	Name        string
	Description string
	Category    string

	ExposedProperties []ExposedProperty

	// StaticExternalPads is used when the block's external pad shape never
	// depends on instance properties. Leave nil and set GetExternalPads
	// instead for blocks whose shape is data-dependent (e.g. a compositor
	// block whose input count tracks a "num_inputs" property).
	StaticExternalPads *flow.ExternalPads

	// GetExternalPads computes the block's external pad shape from its
	// resolved instance properties, for blocks whose pads are dynamic.
	GetExternalPads func(props map[string]types.PropertyValue) (*flow.ExternalPads, error)

	// Build constructs the block's internal element subgraph. instanceID
	// is the block instance's flow-level id, used as the namespace prefix
	// for every expanded element so two instances of the same definition
	// never collide (spec §4.2 point 1: "<block_id>__<local_name>").
	Build func(f engine.Factory, instanceID string, props map[string]types.PropertyValue) (*BuildResult, error)
}

// ExternalPads resolves the block's external pad shape, using the static
// shape if present or calling GetExternalPads otherwise.
func (d *BlockDefinition) ExternalPads(props map[string]types.PropertyValue) (*flow.ExternalPads, error) {
	if d.StaticExternalPads != nil {
		return d.StaticExternalPads, nil
	}
	if d.GetExternalPads != nil {
		return d.GetExternalPads(props)
	}
	return &flow.ExternalPads{}, nil
}

// ExposedPropertyByName finds an exposed property definition by name.
func (d *BlockDefinition) ExposedPropertyByName(name string) (ExposedProperty, bool) {
	for _, p := range d.ExposedProperties {
		if p.Name == name {
			return p, true
		}
	}
	return ExposedProperty{}, false
}

// Namespace returns the namespaced internal element id for a block
// instance's local element name.
func Namespace(instanceID, localName string) string {
	return instanceID + "__" + localName
}
