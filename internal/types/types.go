// Package types holds the small value types shared across the pipeline
// runtime: PropertyValue, MediaType, pad templates and presence, and the
// flow-level enums from spec §3/§6.
package types

import (
	"encoding/json"
	"fmt"
)

// ValueKind tags a PropertyValue's underlying representation.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindInt    ValueKind = "int"
	KindUInt   ValueKind = "uint"
	KindFloat  ValueKind = "float"
	KindBool   ValueKind = "bool"
)

// PropertyValue is the tagged union String | Int | UInt | Float | Bool.
// Only one field is meaningful, selected by Kind.
type PropertyValue struct {
	Kind ValueKind
	S    string
	I    int64
	U    uint64
	F    float64
	B    bool
}

func String(s string) PropertyValue  { return PropertyValue{Kind: KindString, S: s} }
func Int(i int64) PropertyValue      { return PropertyValue{Kind: KindInt, I: i} }
func UInt(u uint64) PropertyValue    { return PropertyValue{Kind: KindUInt, U: u} }
func Float(f float64) PropertyValue  { return PropertyValue{Kind: KindFloat, F: f} }
func Bool(b bool) PropertyValue      { return PropertyValue{Kind: KindBool, B: b} }

// AsFloat64 returns the value coerced to float64, for numeric unit transforms.
// It accepts Int, UInt, and Float kinds.
func (v PropertyValue) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.F, true
	case KindInt:
		return float64(v.I), true
	case KindUInt:
		return float64(v.U), true
	default:
		return 0, false
	}
}

// MarshalJSON renders the tagged union in externally-tagged form, e.g.
// {"String":"foo"} or {"Int":5}, matching the wire shape implied by
// spec §6's `PropertyValue = String(s) | Int(i64) | ...`.
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(map[string]string{"String": v.S})
	case KindInt:
		return json.Marshal(map[string]int64{"Int": v.I})
	case KindUInt:
		return json.Marshal(map[string]uint64{"UInt": v.U})
	case KindFloat:
		return json.Marshal(map[string]float64{"Float": v.F})
	case KindBool:
		return json.Marshal(map[string]bool{"Bool": v.B})
	default:
		return nil, fmt.Errorf("property value: unknown kind %q", v.Kind)
	}
}

func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if raw, ok := tagged["String"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	}
	if raw, ok := tagged["Int"]; ok {
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return err
		}
		*v = Int(i)
		return nil
	}
	if raw, ok := tagged["UInt"]; ok {
		var u uint64
		if err := json.Unmarshal(raw, &u); err != nil {
			return err
		}
		*v = UInt(u)
		return nil
	}
	if raw, ok := tagged["Float"]; ok {
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return err
		}
		*v = Float(f)
		return nil
	}
	if raw, ok := tagged["Bool"]; ok {
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return err
		}
		*v = Bool(b)
		return nil
	}
	return fmt.Errorf("property value: no recognized tag in %s", data)
}

// SameKind reports whether v and other carry the same ValueKind, the basic
// type-validation check performed before a live mutation is applied.
func (v PropertyValue) SameKind(other PropertyValue) bool { return v.Kind == other.Kind }

func (v PropertyValue) String() string {
	switch v.Kind {
	case KindString:
		return v.S
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindUInt:
		return fmt.Sprintf("%d", v.U)
	case KindFloat:
		return fmt.Sprintf("%g", v.F)
	case KindBool:
		return fmt.Sprintf("%t", v.B)
	default:
		return ""
	}
}

// MediaType classifies a pad's payload.
type MediaType string

const (
	MediaVideo    MediaType = "video"
	MediaAudio    MediaType = "audio"
	MediaSubtitle MediaType = "subtitle"
	MediaData     MediaType = "data"
	MediaGeneric  MediaType = "generic"
)

// Presence is a pad template's availability class.
type Presence string

const (
	PresenceAlways    Presence = "always"
	PresenceSometimes Presence = "sometimes"
	PresenceRequest   Presence = "request"
)

// PadTemplate describes one pad template on a catalog element. Request
// templates may carry a %u/%d placeholder in Name (e.g. "sink_%u").
type PadTemplate struct {
	Name      string
	Direction Direction
	Media     MediaType
	Presence  Presence
}

// Matches reports whether a concrete pad name (e.g. "video_0") is an
// instance of this template: an exact match for templates with no
// placeholder, or a prefix-plus-digits match for templates using %u/%d.
func (t PadTemplate) Matches(padName string) bool {
	i := indexPlaceholder(t.Name)
	if i < 0 {
		return t.Name == padName
	}
	prefix := t.Name[:i]
	suffix := t.Name[i+2:]
	if len(padName) < len(prefix)+len(suffix) {
		return false
	}
	if padName[:len(prefix)] != prefix || padName[len(padName)-len(suffix):] != suffix {
		return false
	}
	digits := padName[len(prefix) : len(padName)-len(suffix)]
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func indexPlaceholder(name string) int {
	for i := 0; i+1 < len(name); i++ {
		if name[i] == '%' && (name[i+1] == 'u' || name[i+1] == 'd') {
			return i
		}
	}
	return -1
}

// Direction is src (producing) or sink (consuming).
type Direction string

const (
	DirSrc  Direction = "src"
	DirSink Direction = "sink"
)

// ClockKind selects the pipeline clock (spec §3, §4.8).
type ClockKind string

const (
	ClockMonotonic ClockKind = "monotonic"
	ClockRealtime  ClockKind = "realtime"
	ClockPTP       ClockKind = "ptp"
	ClockNTP       ClockKind = "ntp"
)

// ThreadPriority is the flow's requested scheduling priority.
type ThreadPriority string

const (
	PriorityDefault  ThreadPriority = "default"
	PriorityHigh     ThreadPriority = "high"
	PriorityRealtime ThreadPriority = "realtime"
)

// PipelineState is the flow/pipeline lifecycle state (spec §3, §4.6).
type PipelineState string

const (
	StateNull    PipelineState = "null"
	StateReady   PipelineState = "ready"
	StatePaused  PipelineState = "paused"
	StatePlaying PipelineState = "playing"
)

// MutabilityHint distinguishes continuous UI-driven updates (throttled)
// from discrete actions (flushed immediately), spec §4.7.
type MutabilityHint string

const (
	HintThrottle MutabilityHint = "throttle"
	HintFlush    MutabilityHint = "flush"
)

// UnitTransform names a declared property unit conversion (spec §4.7).
type UnitTransform string

const (
	TransformNone        UnitTransform = ""
	TransformDBToLinear  UnitTransform = "db_to_linear"
	TransformLinearToDB  UnitTransform = "linear_to_db"
	TransformMSToNS      UnitTransform = "ms_to_ns"
)
