// Package blocks holds worked-example Block Catalog entries exercising
// the Block Expander's namespacing and request-pad resolution beyond the
// minimal gain-block fixture used by the catalog/mutation/expand tests.
// Grounded on the original project's builtin block library
// (blocks/builtin/mixer, blocks/builtin/compositor, blocks/builtin/ndi):
// an audio mixer, a video compositor, and an NDI source/sink pair, all
// registered the way a hosting binary populates its Block Catalog at
// startup (spec §4.2, "Block definitions are registered in code, not
// loaded from a document").
package blocks

import (
	"strconv"

	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

// propInt reads a property as an integer, accepting Int, UInt, or a
// parseable String, and falls back to def otherwise.
func propInt(props map[string]types.PropertyValue, name string, def int) int {
	v, ok := props[name]
	if !ok {
		return def
	}
	switch v.Kind {
	case types.KindInt:
		return int(v.I)
	case types.KindUInt:
		return int(v.U)
	case types.KindString:
		n, err := strconv.Atoi(v.S)
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// propFloat reads a property as a float, accepting Float, Int, or UInt,
// and falls back to def otherwise. Grounded on the original mixer's
// get_float_prop helper.
func propFloat(props map[string]types.PropertyValue, name string, def float64) float64 {
	v, ok := props[name]
	if !ok {
		return def
	}
	f, ok := v.AsFloat64()
	if !ok {
		return def
	}
	return f
}

// propBool reads a property as a bool, falling back to def when absent or
// of a different kind. Grounded on the original mixer's get_bool_prop
// helper.
func propBool(props map[string]types.PropertyValue, name string, def bool) bool {
	v, ok := props[name]
	if !ok || v.Kind != types.KindBool {
		return def
	}
	return v.B
}

func propString(props map[string]types.PropertyValue, name, def string) string {
	v, ok := props[name]
	if !ok || v.Kind != types.KindString {
		return def
	}
	return v.S
}
