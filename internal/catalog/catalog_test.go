package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/rerr"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

func TestElementCatalog_LookupUnknown(t *testing.T) {
	c, err := catalog.NewElementCatalog([]catalog.ElementDef{{Type: "videotestsrc"}})
	require.NoError(t, err)

	_, err = c.Lookup("nope")
	kind, ok := rerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, rerr.InvalidConfiguration, kind)

	d, err := c.Lookup("videotestsrc")
	require.NoError(t, err)
	require.Equal(t, "videotestsrc", d.Type)
}

func TestElementCatalog_RejectsDuplicates(t *testing.T) {
	_, err := catalog.NewElementCatalog([]catalog.ElementDef{{Type: "x"}, {Type: "x"}})
	require.Error(t, err)
}

func TestElementDef_RequestAndSometimesTemplates(t *testing.T) {
	d := catalog.ElementDef{
		Type: "tee",
		PadTemplates: []types.PadTemplate{
			{Name: "sink", Direction: types.DirSink, Presence: types.PresenceAlways},
			{Name: "src_%u", Direction: types.DirSrc, Presence: types.PresenceRequest},
			{Name: "video_%u", Direction: types.DirSrc, Presence: types.PresenceSometimes},
		},
	}
	require.Len(t, d.RequestTemplates(), 1)
	require.Len(t, d.SometimesTemplates(), 1)
	require.True(t, d.HasDynamicSrcTemplates())
}

func TestHolder_SwapIsAtomic(t *testing.T) {
	c1, _ := catalog.NewElementCatalog([]catalog.ElementDef{{Type: "a"}})
	c2, _ := catalog.NewElementCatalog([]catalog.ElementDef{{Type: "b"}})
	h := catalog.NewHolder(c1)
	require.Equal(t, c1, h.Current())
	prev := h.Swap(c2)
	require.Equal(t, c1, prev)
	require.Equal(t, c2, h.Current())
}

func TestBlockCatalog_LookupUnknown(t *testing.T) {
	d := &catalog.BlockDefinition{ID: "simple_relay"}
	c, err := catalog.NewBlockCatalog([]*catalog.BlockDefinition{d})
	require.NoError(t, err)

	_, err = c.Lookup("nope")
	kind, ok := rerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, rerr.UnknownBlock, kind)

	got, err := c.Lookup("simple_relay")
	require.NoError(t, err)
	require.Same(t, d, got)
}

func TestBlockDefinition_ExternalPadsStaticVsDynamic(t *testing.T) {
	static := &catalog.BlockDefinition{
		ID: "static_block",
		StaticExternalPads: &flow.ExternalPads{
			Inputs: []flow.PadSpec{{ExternalName: "in", InternalElement: "e1", InternalPad: "sink"}},
		},
	}
	pads, err := static.ExternalPads(nil)
	require.NoError(t, err)
	require.Len(t, pads.Inputs, 1)

	called := false
	dynamic := &catalog.BlockDefinition{
		ID: "dynamic_block",
		GetExternalPads: func(props map[string]types.PropertyValue) (*flow.ExternalPads, error) {
			called = true
			return &flow.ExternalPads{}, nil
		},
	}
	_, err = dynamic.ExternalPads(map[string]types.PropertyValue{})
	require.NoError(t, err)
	require.True(t, called)
}

func TestNamespace(t *testing.T) {
	require.Equal(t, "b123__mixer", catalog.Namespace("b123", "mixer"))
}
