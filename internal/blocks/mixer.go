package blocks

import (
	"fmt"

	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
	"github.com/eyevinn-osaas/strom-sub002/internal/unitconv"
)

// Audio mixer cardinality limits, mirroring the original block's
// parse_num_channels/parse_num_aux_buses clamping (default channel count,
// ceiling on channels, ceiling on aux buses).
const (
	DefaultMixerChannels = 4
	MaxMixerChannels     = 8
	MaxAuxBuses          = 2
)

// The mixer and its output capsfilter are the block's two externally
// addressed elements; the Block Catalog contract resolves a block's
// external pads from properties alone (catalog.BlockDefinition.GetExternalPads
// takes no instance id), so these two ids are deliberately left
// unnamespaced rather than passed through catalog.Namespace. Per-channel
// elements never appear on an external pad and are namespaced normally.
// One mixer_block instance per flow is therefore assumed; see DESIGN.md.
const (
	mixerElementID       = "mixer"
	mixerOutputElementID = "mixer_out"
)

func channelElementName(i int) string { return fmt.Sprintf("channel_%d", i) }

// NewMixerBlock builds the audio mixer block definition: a dynamic number
// of audio inputs, each routed through a per-channel volume/mute element
// into a shared audiomixer, with an optional aux-bus and group count
// passed straight through to the mixer element (spec §4.2 point 6's
// worked request-pad example).
func NewMixerBlock() *catalog.BlockDefinition {
	return &catalog.BlockDefinition{
		ID:                "mixer_block",
		Name:              "Audio Mixer",
		Description:       "N-input audio mixer with per-channel gain, mute, and aux-bus/group routing.",
		Category:          "audio",
		ExposedProperties: mixerExposedProperties(),
		GetExternalPads:   mixerExternalPads,
		Build:             mixerBuild,
	}
}

func mixerExposedProperties() []catalog.ExposedProperty {
	props := make([]catalog.ExposedProperty, 0, MaxMixerChannels*2)
	for i := 0; i < MaxMixerChannels; i++ {
		props = append(props,
			catalog.ExposedProperty{
				Name:             fmt.Sprintf("channel_%d_volume_db", i),
				Default:          types.Float(0),
				InternalElement:  channelElementName(i),
				InternalProperty: "volume",
				Transform:        types.TransformDBToLinear,
				MutableInPlaying: true,
			},
			catalog.ExposedProperty{
				Name:             fmt.Sprintf("channel_%d_mute", i),
				Default:          types.Bool(false),
				InternalElement:  channelElementName(i),
				InternalProperty: "mute",
				MutableInPlaying: true,
			},
		)
	}
	return props
}

func parseNumChannels(props map[string]types.PropertyValue) int {
	return clamp(propInt(props, "num_channels", DefaultMixerChannels), 1, MaxMixerChannels)
}

func parseNumAuxBuses(props map[string]types.PropertyValue) int {
	return clamp(propInt(props, "num_aux_buses", 0), 0, MaxAuxBuses)
}

func parseNumGroups(props map[string]types.PropertyValue) int {
	return clamp(propInt(props, "num_groups", 0), 0, MaxMixerChannels)
}

func mixerExternalPads(props map[string]types.PropertyValue) (*flow.ExternalPads, error) {
	n := parseNumChannels(props)
	inputs := make([]flow.PadSpec, n)
	for i := 0; i < n; i++ {
		inputs[i] = flow.PadSpec{
			ExternalName:    fmt.Sprintf("audio_in_%d", i),
			InternalElement: mixerElementID,
			InternalPad:     fmt.Sprintf("sink_%d", i),
			Media:           types.MediaAudio,
		}
	}
	return &flow.ExternalPads{
		Inputs: inputs,
		Outputs: []flow.PadSpec{
			{ExternalName: "audio_out", InternalElement: mixerOutputElementID, InternalPad: "src", Media: types.MediaAudio},
		},
	}, nil
}

func mixerBuild(f engine.Factory, instanceID string, props map[string]types.PropertyValue) (*catalog.BuildResult, error) {
	n := parseNumChannels(props)
	auxBuses := parseNumAuxBuses(props)
	groups := parseNumGroups(props)

	mixer, err := f.NewElement(mixerElementID, "audiomixer")
	if err != nil {
		return nil, err
	}
	if auxBuses > 0 {
		if err := mixer.SetProperty("num-aux-buses", types.Int(int64(auxBuses))); err != nil {
			return nil, err
		}
	}
	if groups > 0 {
		if err := mixer.SetProperty("num-groups", types.Int(int64(groups))); err != nil {
			return nil, err
		}
	}

	elements := map[string]engine.ElementHandle{mixerElementID: mixer}
	var links []catalog.InternalLink

	for i := 0; i < n; i++ {
		sinkPad, err := mixer.RequestPad("sink_%u")
		if err != nil {
			return nil, fmt.Errorf("requesting mixer sink pad %d: %w", i, err)
		}

		chanID := catalog.Namespace(instanceID, channelElementName(i))
		vol, err := f.NewElement(chanID, "volume")
		if err != nil {
			return nil, err
		}
		gainDB := propFloat(props, fmt.Sprintf("channel_%d_volume_db", i), 0)
		if err := vol.SetProperty("volume", types.Float(unitconv.DBToLinear(gainDB))); err != nil {
			return nil, err
		}
		if err := vol.SetProperty("mute", types.Bool(propBool(props, fmt.Sprintf("channel_%d_mute", i), false))); err != nil {
			return nil, err
		}
		elements[chanID] = vol

		links = append(links, catalog.InternalLink{
			FromElement: chanID, FromPad: "src",
			ToElement: mixerElementID, ToPad: sinkPad,
		})
	}

	out, err := f.NewElement(mixerOutputElementID, "capsfilter")
	if err != nil {
		return nil, err
	}
	elements[mixerOutputElementID] = out
	links = append(links, catalog.InternalLink{
		FromElement: mixerElementID, FromPad: "src",
		ToElement: mixerOutputElementID, ToPad: "sink",
	})

	return &catalog.BuildResult{Elements: elements, InternalLinks: links}, nil
}
