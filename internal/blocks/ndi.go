package blocks

import (
	"context"

	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/discovery"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

// NDI input defaults, mirroring the original block's NDI_INPUT_DEFAULT_*
// constants.
const (
	DefaultNDITimeoutMS        = 5000
	DefaultNDIConnectTimeoutMS = 10000
	defaultVideoOutputName     = "Strom Video"
	defaultAudioOutputName     = "Strom Audio"
)

// The source/sink's terminal element is externally addressed, so (as with
// the mixer and compositor blocks above) it keeps a fixed, unnamespaced
// id; everything upstream/downstream of it within the same instance is
// namespaced normally since only Build itself ever references those ids.

// NewNDIVideoSourceBlock builds the ndi_video_source block: an ndisrc
// resolved by ndi_name or url_address (auto-resolved via disc's NDI
// device list when neither is set), converted to raw video. Grounded on
// NDIVideoInputBuilder.
func NewNDIVideoSourceBlock(disc discovery.DeviceDiscovery) *catalog.BlockDefinition {
	const outID = "ndi_video_source_out"
	return &catalog.BlockDefinition{
		ID:          "ndi_video_source_block",
		Name:        "NDI Video Input",
		Description: "Receives video from an NDI source, resolved by name, URL, or automatic discovery.",
		Category:    "network",
		StaticExternalPads: &flow.ExternalPads{
			Outputs: []flow.PadSpec{{ExternalName: "video_out", InternalElement: outID, InternalPad: "src", Media: types.MediaVideo}},
		},
		Build: func(f engine.Factory, instanceID string, props map[string]types.PropertyValue) (*catalog.BuildResult, error) {
			ndiName, urlAddress := resolveNDIAddress(disc, props)

			srcID := catalog.Namespace(instanceID, "ndisrc")
			src, err := f.NewElement(srcID, "ndisrc")
			if err != nil {
				return nil, err
			}
			if err := configureNDISrc(src, ndiName, urlAddress, propInt(props, "bandwidth", 100), props); err != nil {
				return nil, err
			}

			out, err := f.NewElement(outID, "videoconvert")
			if err != nil {
				return nil, err
			}
			elements := map[string]engine.ElementHandle{srcID: src, outID: out}
			links := []catalog.InternalLink{{FromElement: srcID, FromPad: "video", ToElement: outID, ToPad: "sink"}}
			return &catalog.BuildResult{Elements: elements, InternalLinks: links}, nil
		},
	}
}

// NewNDIAudioSourceBlock builds the ndi_audio_source block: an ndisrc
// resolved the same way as the video source, converted and resampled to
// raw audio. Grounded on NDIAudioInputBuilder.
func NewNDIAudioSourceBlock(disc discovery.DeviceDiscovery) *catalog.BlockDefinition {
	const outID = "ndi_audio_source_out"
	return &catalog.BlockDefinition{
		ID:          "ndi_audio_source_block",
		Name:        "NDI Audio Input",
		Description: "Receives audio from an NDI source, resolved by name, URL, or automatic discovery.",
		Category:    "network",
		StaticExternalPads: &flow.ExternalPads{
			Outputs: []flow.PadSpec{{ExternalName: "audio_out", InternalElement: outID, InternalPad: "src", Media: types.MediaAudio}},
		},
		Build: func(f engine.Factory, instanceID string, props map[string]types.PropertyValue) (*catalog.BuildResult, error) {
			ndiName, urlAddress := resolveNDIAddress(disc, props)

			srcID := catalog.Namespace(instanceID, "ndisrc")
			src, err := f.NewElement(srcID, "ndisrc")
			if err != nil {
				return nil, err
			}
			if err := configureNDISrc(src, ndiName, urlAddress, propInt(props, "bandwidth", 10), props); err != nil {
				return nil, err
			}

			convertID := catalog.Namespace(instanceID, "audioconvert")
			convert, err := f.NewElement(convertID, "audioconvert")
			if err != nil {
				return nil, err
			}

			out, err := f.NewElement(outID, "audioresample")
			if err != nil {
				return nil, err
			}

			elements := map[string]engine.ElementHandle{srcID: src, convertID: convert, outID: out}
			links := []catalog.InternalLink{
				{FromElement: srcID, FromPad: "audio", ToElement: convertID, ToPad: "sink"},
				{FromElement: convertID, FromPad: "src", ToElement: outID, ToPad: "sink"},
			}
			return &catalog.BuildResult{Elements: elements, InternalLinks: links}, nil
		},
	}
}

// NewNDIVideoSinkBlock builds the ndi_video_sink block: a converter
// feeding an ndisink published under ndi_name. Grounded on
// NDIVideoOutputBuilder.
func NewNDIVideoSinkBlock() *catalog.BlockDefinition {
	const inID = "ndi_video_sink_in"
	return &catalog.BlockDefinition{
		ID:          "ndi_video_sink_block",
		Name:        "NDI Video Output",
		Description: "Publishes video as an NDI source.",
		Category:    "network",
		StaticExternalPads: &flow.ExternalPads{
			Inputs: []flow.PadSpec{{ExternalName: "video_in", InternalElement: inID, InternalPad: "sink", Media: types.MediaVideo}},
		},
		Build: func(f engine.Factory, instanceID string, props map[string]types.PropertyValue) (*catalog.BuildResult, error) {
			in, err := f.NewElement(inID, "videoconvert")
			if err != nil {
				return nil, err
			}
			sinkID := catalog.Namespace(instanceID, "ndisink")
			sink, err := f.NewElement(sinkID, "ndisink")
			if err != nil {
				return nil, err
			}
			if err := sink.SetProperty("ndi-name", types.String(propString(props, "ndi_name", defaultVideoOutputName))); err != nil {
				return nil, err
			}
			elements := map[string]engine.ElementHandle{inID: in, sinkID: sink}
			links := []catalog.InternalLink{{FromElement: inID, FromPad: "src", ToElement: sinkID, ToPad: "video"}}
			return &catalog.BuildResult{Elements: elements, InternalLinks: links}, nil
		},
	}
}

// NewNDIAudioSinkBlock builds the ndi_audio_sink block: a
// convert/resample chain feeding an ndisink published under ndi_name.
// Grounded on NDIAudioOutputBuilder.
func NewNDIAudioSinkBlock() *catalog.BlockDefinition {
	const inID = "ndi_audio_sink_in"
	return &catalog.BlockDefinition{
		ID:          "ndi_audio_sink_block",
		Name:        "NDI Audio Output",
		Description: "Publishes audio as an NDI source.",
		Category:    "network",
		StaticExternalPads: &flow.ExternalPads{
			Inputs: []flow.PadSpec{{ExternalName: "audio_in", InternalElement: inID, InternalPad: "sink", Media: types.MediaAudio}},
		},
		Build: func(f engine.Factory, instanceID string, props map[string]types.PropertyValue) (*catalog.BuildResult, error) {
			in, err := f.NewElement(inID, "audioconvert")
			if err != nil {
				return nil, err
			}
			resampleID := catalog.Namespace(instanceID, "audioresample")
			resample, err := f.NewElement(resampleID, "audioresample")
			if err != nil {
				return nil, err
			}
			sinkID := catalog.Namespace(instanceID, "ndisink")
			sink, err := f.NewElement(sinkID, "ndisink")
			if err != nil {
				return nil, err
			}
			if err := sink.SetProperty("ndi-name", types.String(propString(props, "ndi_name", defaultAudioOutputName))); err != nil {
				return nil, err
			}
			elements := map[string]engine.ElementHandle{inID: in, resampleID: resample, sinkID: sink}
			links := []catalog.InternalLink{
				{FromElement: inID, FromPad: "src", ToElement: resampleID, ToPad: "sink"},
				{FromElement: resampleID, FromPad: "src", ToElement: sinkID, ToPad: "audio"},
			}
			return &catalog.BuildResult{Elements: elements, InternalLinks: links}, nil
		},
	}
}

// resolveNDIAddress reads ndi_name/url_address from props, falling back
// to the first device disc reports as NDI when both are unset. disc may
// be nil in tests that only cover explicit addressing.
func resolveNDIAddress(disc discovery.DeviceDiscovery, props map[string]types.PropertyValue) (ndiName, urlAddress string) {
	ndiName = propString(props, "ndi_name", "")
	urlAddress = propString(props, "url_address", "")
	if ndiName != "" || urlAddress != "" || disc == nil {
		return ndiName, urlAddress
	}
	devices, err := disc.NDIDevices(context.Background())
	if err != nil || len(devices) == 0 {
		return ndiName, urlAddress
	}
	return devices[0].Name, urlAddress
}

func configureNDISrc(src engine.ElementHandle, ndiName, urlAddress string, bandwidth int, props map[string]types.PropertyValue) error {
	if err := src.SetProperty("bandwidth", types.Int(int64(bandwidth))); err != nil {
		return err
	}
	timeoutMS := propInt(props, "timeout_ms", DefaultNDITimeoutMS)
	if err := src.SetProperty("timeout", types.Int(int64(timeoutMS))); err != nil {
		return err
	}
	connectTimeoutMS := propInt(props, "connect_timeout_ms", DefaultNDIConnectTimeoutMS)
	if err := src.SetProperty("connect-timeout", types.Int(int64(connectTimeoutMS))); err != nil {
		return err
	}
	if ndiName != "" {
		if err := src.SetProperty("ndi-name", types.String(ndiName)); err != nil {
			return err
		}
	}
	if urlAddress != "" {
		if err := src.SetProperty("url-address", types.String(urlAddress)); err != nil {
			return err
		}
	}
	return nil
}
