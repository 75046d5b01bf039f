// Package ids implements the Identifier & Reference Model (spec §3, §6):
// stable flow/element/block identifiers and the pad-ref syntax
// `element_id:pad_name` used uniformly across links.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// FlowID is a 128-bit identifier, rendered as lower-hex with dashes.
type FlowID string

// NewFlowID generates a fresh random flow id.
func NewFlowID() FlowID {
	return FlowID(uuid.New().String())
}

// ElementID and BlockID are short ASCII strings, unique within a flow. They
// must not contain ':' or whitespace (spec §3 invariant).
type ElementID string
type BlockID string

// NewElementID produces a default-generator element id: e<uuid-nosep>.
func NewElementID() ElementID {
	return ElementID("e" + strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// NewBlockID produces a default-generator block id: b<uuid-nosep>.
func NewBlockID() BlockID {
	return BlockID("b" + strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// Valid reports whether s is a legal element/block id: non-empty ASCII with
// no ':' and no whitespace.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > 127 || r == ':' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return false
		}
	}
	return true
}

// PadRef is a parsed `owner_id[:pad_name]` reference, as used in Link.From/To.
type PadRef struct {
	Owner string
	Pad   string // empty means "default pad for this owner"
}

// HasPad reports whether an explicit pad name was given.
func (p PadRef) HasPad() bool { return p.Pad != "" }

// String renders the pad-ref back to its wire form.
func (p PadRef) String() string {
	if p.Pad == "" {
		return p.Owner
	}
	return p.Owner + ":" + p.Pad
}

// ParsePadRef parses `element_id` or `element_id:pad_name` using split_once(':')
// semantics: only the first colon separates owner from pad name.
func ParsePadRef(s string) PadRef {
	owner, pad, found := strings.Cut(s, ":")
	if !found {
		return PadRef{Owner: s}
	}
	return PadRef{Owner: owner, Pad: pad}
}
