// Package catalog implements the Element Catalog and Block Catalog (spec
// §2.2-§2.3): read-only, process-wide introspection of the engine's
// primitive elements and the registry of composite block definitions.
// Grounded on the teacher's pattern of process-lifetime immutable
// structures (internal/pipeline/model for the data shape) combined with
// the hot-reloadable YAML config loader under internal/config.
package catalog

import "github.com/eyevinn-osaas/strom-sub002/internal/types"

// PropertyDef describes one property a catalog element exposes.
type PropertyDef struct {
	Name             string               `yaml:"name" json:"name"`
	Kind             types.ValueKind      `yaml:"kind" json:"kind"`
	Default          types.PropertyValue  `yaml:"-" json:"default"`
	MutableInPlaying bool                 `yaml:"mutable_in_playing" json:"mutableInPlaying"`
	// Transform names a unit conversion applied when the Live Mutation
	// Engine sets this property (spec §4.7 point 2), e.g. a "gain_db"
	// property backed by an engine element that wants linear amplitude.
	Transform        types.UnitTransform  `yaml:"transform,omitempty" json:"transform,omitempty"`
}

// ElementDef is one entry of the Element Catalog: a primitive element
// type's pad templates and property schema.
type ElementDef struct {
	Type         string              `yaml:"type" json:"type"`
	PadTemplates []types.PadTemplate `yaml:"-" json:"padTemplates"`
	Properties   []PropertyDef       `yaml:"-" json:"properties"`
}

// PropertyByName finds a property definition by name.
func (d ElementDef) PropertyByName(name string) (PropertyDef, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyDef{}, false
}

// RequestTemplates returns d's request-pad templates, used by request-pad
// resolution (spec §4.2 point 6).
func (d ElementDef) RequestTemplates() []types.PadTemplate {
	var out []types.PadTemplate
	for _, t := range d.PadTemplates {
		if t.Presence == types.PresenceRequest {
			out = append(out, t)
		}
	}
	return out
}

// SometimesTemplates returns the element's sometimes-pad templates, the
// ones the Dynamic Pad Resolver watches for (spec §4.5).
func (d ElementDef) SometimesTemplates() []types.PadTemplate {
	var out []types.PadTemplate
	for _, t := range d.PadTemplates {
		if t.Presence == types.PresenceSometimes {
			out = append(out, t)
		}
	}
	return out
}

// HasDynamicSrcTemplates reports whether d has any sometimes/request src
// templates, i.e. whether the Pipeline Builder must attach a dynamic-pad
// handler to elements of this type (spec §4.4 step 7).
func (d ElementDef) HasDynamicSrcTemplates() bool {
	for _, t := range d.PadTemplates {
		if t.Direction == types.DirSrc && (t.Presence == types.PresenceSometimes || t.Presence == types.PresenceRequest) {
			return true
		}
	}
	return false
}

// IsSometimesPad reports whether padName matches one of d's sometimes-pad
// templates: such a pad is not guaranteed to exist until the engine
// signals its arrival, so the Pipeline Builder must defer any link
// sourced from it rather than attempt it immediately (spec §4.4 step 6).
func (d ElementDef) IsSometimesPad(padName string) bool {
	for _, t := range d.SometimesTemplates() {
		if t.Matches(padName) {
			return true
		}
	}
	return false
}
