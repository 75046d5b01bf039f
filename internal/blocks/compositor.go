package blocks

import (
	"fmt"

	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

// Video compositor cardinality and canvas defaults, mirroring the
// original block's parse_num_inputs/parse_output_resolution.
const (
	DefaultCompositorInputs = 2
	MaxCompositorInputs     = 16
	defaultCanvasWidth      = 1280
	defaultCanvasHeight     = 720
)

const (
	compositorElementID       = "compositor"
	compositorOutputElementID = "compositor_out"
)

// compositorInputElementID names the head-of-chain element for input i
// (a queue if use_queues is set, otherwise a converter directly): like
// the mixer's externally-addressed elements, it is intentionally left
// unnamespaced because GetExternalPads has no instance id to namespace
// with. See mixer.go's comment on mixerElementID.
func compositorInputElementID(i int) string { return fmt.Sprintf("compositor_in_%d", i) }

// NewCompositorBlock builds the video compositor block definition: a
// dynamic number of video inputs, each optionally queued before a
// converter feeding a shared compositor element, with per-input
// position/size/alpha/z-order recorded for the compositor's request pad
// in BuildResult.PadProperties (not applied to the engine element by the
// builder or the controller), and a fixed-resolution capsfilter on the
// output (spec §4.2 point 6's
// worked request-pad example, video variant).
func NewCompositorBlock() *catalog.BlockDefinition {
	return &catalog.BlockDefinition{
		ID:              "compositor_block",
		Name:            "Video Compositor",
		Description:     "N-input video compositor with per-input position, size, alpha, and z-order.",
		Category:        "video",
		GetExternalPads: compositorExternalPads,
		Build:           compositorBuild,
	}
}

func parseNumInputs(props map[string]types.PropertyValue) int {
	return clamp(propInt(props, "num_inputs", DefaultCompositorInputs), 1, MaxCompositorInputs)
}

func parseOutputResolution(props map[string]types.PropertyValue) (int, int) {
	return propInt(props, "output_width", defaultCanvasWidth), propInt(props, "output_height", defaultCanvasHeight)
}

func compositorExternalPads(props map[string]types.PropertyValue) (*flow.ExternalPads, error) {
	n := parseNumInputs(props)
	inputs := make([]flow.PadSpec, n)
	for i := 0; i < n; i++ {
		inputs[i] = flow.PadSpec{
			ExternalName:    fmt.Sprintf("video_in_%d", i),
			InternalElement: compositorInputElementID(i),
			InternalPad:     "sink",
			Media:           types.MediaVideo,
		}
	}
	return &flow.ExternalPads{
		Inputs: inputs,
		Outputs: []flow.PadSpec{
			{ExternalName: "video_out", InternalElement: compositorOutputElementID, InternalPad: "src", Media: types.MediaVideo},
		},
	}, nil
}

func compositorBuild(f engine.Factory, instanceID string, props map[string]types.PropertyValue) (*catalog.BuildResult, error) {
	n := parseNumInputs(props)
	width, height := parseOutputResolution(props)
	background := propString(props, "background", "black")
	useQueues := propBool(props, "use_queues", true)

	mixer, err := f.NewElement(compositorElementID, "compositor")
	if err != nil {
		return nil, err
	}
	if err := mixer.SetProperty("background", types.String(background)); err != nil {
		return nil, err
	}

	elements := map[string]engine.ElementHandle{compositorElementID: mixer}
	var links []catalog.InternalLink
	padProps := map[string]map[string]map[string]types.PropertyValue{compositorElementID: {}}

	for i := 0; i < n; i++ {
		sinkPad, err := mixer.RequestPad("sink_%u")
		if err != nil {
			return nil, fmt.Errorf("requesting compositor sink pad %d: %w", i, err)
		}

		headID := compositorInputElementID(i)
		headType := "videoconvert"
		if useQueues {
			headType = "queue"
		}
		head, err := f.NewElement(headID, headType)
		if err != nil {
			return nil, err
		}
		elements[headID] = head

		fromID, fromPad := headID, "src"
		if useQueues {
			convID := catalog.Namespace(instanceID, fmt.Sprintf("videoconvert_%d", i))
			conv, err := f.NewElement(convID, "videoconvert")
			if err != nil {
				return nil, err
			}
			elements[convID] = conv
			links = append(links, catalog.InternalLink{FromElement: headID, FromPad: "src", ToElement: convID, ToPad: "sink"})
			fromID, fromPad = convID, "src"
		}
		links = append(links, catalog.InternalLink{FromElement: fromID, FromPad: fromPad, ToElement: compositorElementID, ToPad: sinkPad})

		padProps[compositorElementID][sinkPad] = map[string]types.PropertyValue{
			"xpos":   types.Int(int64(propInt(props, fmt.Sprintf("input_%d_xpos", i), 0))),
			"ypos":   types.Int(int64(propInt(props, fmt.Sprintf("input_%d_ypos", i), 0))),
			"width":  types.Int(int64(propInt(props, fmt.Sprintf("input_%d_width", i), width))),
			"height": types.Int(int64(propInt(props, fmt.Sprintf("input_%d_height", i), height))),
			"alpha":  types.Float(propFloat(props, fmt.Sprintf("input_%d_alpha", i), 1.0)),
			"zorder": types.Int(int64(propInt(props, fmt.Sprintf("input_%d_zorder", i), i))),
		}
	}

	out, err := f.NewElement(compositorOutputElementID, "capsfilter")
	if err != nil {
		return nil, err
	}
	if err := out.SetProperty("caps", types.String(fmt.Sprintf("video/x-raw,width=%d,height=%d", width, height))); err != nil {
		return nil, err
	}
	elements[compositorOutputElementID] = out
	links = append(links, catalog.InternalLink{FromElement: compositorElementID, FromPad: "src", ToElement: compositorOutputElementID, ToPad: "sink"})

	return &catalog.BuildResult{Elements: elements, InternalLinks: links, PadProperties: padProps}, nil
}
