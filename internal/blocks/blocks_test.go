package blocks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub002/internal/blocks"
	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/discovery"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/ids"
	"github.com/eyevinn-osaas/strom-sub002/internal/pipelinebuild"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
	"github.com/eyevinn-osaas/strom-sub002/internal/unitconv"
)

func buildFlow(t *testing.T, blockCat *catalog.BlockCatalog, blockProps map[string]types.PropertyValue) *pipelinebuild.Built {
	t.Helper()
	f := engine.NewFakeFactory()
	elementCat, err := catalog.NewElementCatalog(nil)
	require.NoError(t, err)

	flw := &flow.Flow{
		ID: ids.NewFlowID(),
		Blocks: []flow.Block{
			{ID: "b1", DefinitionID: "under-test", Properties: blockProps},
		},
	}

	built, err := pipelinebuild.Build(context.Background(), f, elementCat, blockCat, flw)
	require.NoError(t, err)
	return built
}

func catalogWith(t *testing.T, def *catalog.BlockDefinition) *catalog.BlockCatalog {
	t.Helper()
	def.ID = "under-test"
	c, err := catalog.NewBlockCatalog([]*catalog.BlockDefinition{def})
	require.NoError(t, err)
	return c
}

func TestMixerBlock_ExternalPadsDefaultChannelCount(t *testing.T) {
	def := blocks.NewMixerBlock()
	pads, err := def.ExternalPads(nil)
	require.NoError(t, err)
	require.Len(t, pads.Inputs, blocks.DefaultMixerChannels)
	require.Len(t, pads.Outputs, 1)
}

func TestMixerBlock_ExternalPadsClampsToMax(t *testing.T) {
	def := blocks.NewMixerBlock()
	pads, err := def.ExternalPads(map[string]types.PropertyValue{"num_channels": types.Int(99)})
	require.NoError(t, err)
	require.Len(t, pads.Inputs, blocks.MaxMixerChannels)
}

func TestMixerBlock_Build_WiresChannelsAndAppliesGain(t *testing.T) {
	built := buildFlow(t, catalogWith(t, blocks.NewMixerBlock()), map[string]types.PropertyValue{
		"num_channels":         types.Int(2),
		"channel_0_volume_db":  types.Float(-6),
		"channel_1_mute":       types.Bool(true),
	})

	mixer, ok := built.Pipeline.Element("mixer")
	require.True(t, ok)
	require.Equal(t, "audiomixer", mixer.ElementType())

	ch0, ok := built.Pipeline.Element(catalog.Namespace("b1", "channel_0"))
	require.True(t, ok)
	v, ok := ch0.GetProperty("volume")
	require.True(t, ok)
	require.InDelta(t, unitconv.DBToLinear(-6), v.F, 1e-9)

	ch1, ok := built.Pipeline.Element(catalog.Namespace("b1", "channel_1"))
	require.True(t, ok)
	muted, ok := ch1.GetProperty("mute")
	require.True(t, ok)
	require.True(t, muted.B)

	_, ok = built.Pipeline.Element("mixer_out")
	require.True(t, ok)
}

func TestCompositorBlock_ExternalPadsClampsToRange(t *testing.T) {
	def := blocks.NewCompositorBlock()

	pads, err := def.ExternalPads(map[string]types.PropertyValue{"num_inputs": types.Int(0)})
	require.NoError(t, err)
	require.Len(t, pads.Inputs, 1)

	pads, err = def.ExternalPads(map[string]types.PropertyValue{"num_inputs": types.Int(100)})
	require.NoError(t, err)
	require.Len(t, pads.Inputs, blocks.MaxCompositorInputs)
}

func TestCompositorBlock_Build_ChainsQueueAndConvertToMixer(t *testing.T) {
	built := buildFlow(t, catalogWith(t, blocks.NewCompositorBlock()), map[string]types.PropertyValue{
		"num_inputs": types.Int(2),
	})

	_, ok := built.Pipeline.Element("compositor")
	require.True(t, ok)

	in0, ok := built.Pipeline.Element("compositor_in_0")
	require.True(t, ok)
	require.Equal(t, "queue", in0.ElementType())

	convID := catalog.Namespace("b1", "videoconvert_0")
	_, ok = built.Pipeline.Element(convID)
	require.True(t, ok)

	out, ok := built.Pipeline.Element("compositor_out")
	require.True(t, ok)
	caps, ok := out.GetProperty("caps")
	require.True(t, ok)
	require.Contains(t, caps.S, "1280")
}

func TestCompositorBlock_Build_WithoutQueuesLinksConvertDirectly(t *testing.T) {
	built := buildFlow(t, catalogWith(t, blocks.NewCompositorBlock()), map[string]types.PropertyValue{
		"num_inputs": types.Int(1),
		"use_queues": types.Bool(false),
	})

	in0, ok := built.Pipeline.Element("compositor_in_0")
	require.True(t, ok)
	require.Equal(t, "videoconvert", in0.ElementType())
}

func TestNDIVideoSourceBlock_Build_UsesExplicitNDIName(t *testing.T) {
	def := blocks.NewNDIVideoSourceBlock(nil)
	built := buildFlow(t, catalogWith(t, def), map[string]types.PropertyValue{
		"ndi_name": types.String("Camera One"),
	})

	src, ok := built.Pipeline.Element(catalog.Namespace("b1", "ndisrc"))
	require.True(t, ok)
	v, ok := src.GetProperty("ndi-name")
	require.True(t, ok)
	require.Equal(t, "Camera One", v.S)
}

func TestNDIVideoSourceBlock_Build_FallsBackToDiscoveredDevice(t *testing.T) {
	disc := discovery.NewStatic(discovery.Device{
		Name: "Studio Feed", Provider: "ndideviceprovider", Category: discovery.CategoryNetworkSource,
	})
	def := blocks.NewNDIVideoSourceBlock(disc)
	built := buildFlow(t, catalogWith(t, def), nil)

	src, ok := built.Pipeline.Element(catalog.Namespace("b1", "ndisrc"))
	require.True(t, ok)
	v, ok := src.GetProperty("ndi-name")
	require.True(t, ok)
	require.Equal(t, "Studio Feed", v.S)
}

func TestNDIAudioSinkBlock_Build_SetsNDIName(t *testing.T) {
	def := blocks.NewNDIAudioSinkBlock()
	built := buildFlow(t, catalogWith(t, def), map[string]types.PropertyValue{
		"ndi_name": types.String("Commentary Feed"),
	})

	sink, ok := built.Pipeline.Element(catalog.Namespace("b1", "ndisink"))
	require.True(t, ok)
	v, ok := sink.GetProperty("ndi-name")
	require.True(t, ok)
	require.Equal(t, "Commentary Feed", v.S)
}

func TestNDIVideoSinkBlock_Build_DefaultsNDIName(t *testing.T) {
	def := blocks.NewNDIVideoSinkBlock()
	built := buildFlow(t, catalogWith(t, def), nil)

	sink, ok := built.Pipeline.Element(catalog.Namespace("b1", "ndisink"))
	require.True(t, ok)
	v, ok := sink.GetProperty("ndi-name")
	require.True(t, ok)
	require.Equal(t, "Strom Video", v.S)
}
