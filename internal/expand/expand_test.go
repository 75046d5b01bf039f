package expand_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/expand"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/ids"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

// relayDefinition is a minimal single-element pass-through block: an external
// "in" sink wired straight to an external "out" src via one internal
// identity element, used to exercise namespacing and link rewriting.
func relayDefinition() *catalog.BlockDefinition {
	return &catalog.BlockDefinition{
		ID: "relay",
		StaticExternalPads: &flow.ExternalPads{
			Inputs:  []flow.PadSpec{{ExternalName: "in", InternalElement: "", InternalPad: "sink"}},
			Outputs: []flow.PadSpec{{ExternalName: "out", InternalElement: "", InternalPad: "src"}},
		},
		Build: func(f engine.Factory, instanceID string, props map[string]types.PropertyValue) (*catalog.BuildResult, error) {
			identityID := catalog.Namespace(instanceID, "identity")
			el, err := f.NewElement(identityID, "identity")
			if err != nil {
				return nil, err
			}
			return &catalog.BuildResult{
				Elements: map[string]engine.ElementHandle{identityID: el},
			}, nil
		},
	}
}

func relayPads(instanceID string) *flow.ExternalPads {
	return &flow.ExternalPads{
		Inputs:  []flow.PadSpec{{ExternalName: "in", InternalElement: catalog.Namespace(instanceID, "identity"), InternalPad: "sink"}},
		Outputs: []flow.PadSpec{{ExternalName: "out", InternalElement: catalog.Namespace(instanceID, "identity"), InternalPad: "src"}},
	}
}

func TestExpand_NamespacesBlockElementsAndRewritesLinks(t *testing.T) {
	// GetExternalPads receives only the block's properties, not its
	// instance id, while Build namespaces its element with the instance
	// id; here the pads are keyed off the known instance id "b1" used by
	// the flow below so they name the element Build creates.
	real := &catalog.BlockDefinition{
		ID: "relay",
		GetExternalPads: func(props map[string]types.PropertyValue) (*flow.ExternalPads, error) {
			return relayPads("b1"), nil
		},
		Build: relayDefinition().Build,
	}

	catalogReal, err := catalog.NewBlockCatalog([]*catalog.BlockDefinition{real})
	require.NoError(t, err)

	f := engine.NewFakeFactory()

	flw := &flow.Flow{
		ID: ids.NewFlowID(),
		Elements: []flow.Element{
			{ID: "src1", ElementType: "videotestsrc"},
			{ID: "sink1", ElementType: "fakesink"},
		},
		Blocks: []flow.Block{
			{ID: "b1", DefinitionID: "relay"},
		},
		Links: []flow.Link{
			{From: "src1", To: "b1:in"},
			{From: "b1:out", To: "sink1"},
		},
	}

	exp, err := expand.Expand(f, catalogReal, flw)
	require.NoError(t, err)

	namespaced := catalog.Namespace("b1", "identity")
	require.Contains(t, exp.BlockHandles, namespaced)
	require.Contains(t, exp.Elements, "src1")
	require.Contains(t, exp.Elements, "sink1")

	require.Len(t, exp.Links, 2)
	require.Equal(t, "src1", exp.Links[0].From)
	require.Equal(t, namespaced+":sink", exp.Links[0].To)
	require.Equal(t, namespaced+":src", exp.Links[1].From)
	require.Equal(t, "sink1", exp.Links[1].To)
}

func TestExpand_UnknownBlockDefinition(t *testing.T) {
	f := engine.NewFakeFactory()
	bc, err := catalog.NewBlockCatalog(nil)
	require.NoError(t, err)

	flw := &flow.Flow{
		Blocks: []flow.Block{{ID: "b1", DefinitionID: "missing"}},
	}
	_, err = expand.Expand(f, bc, flw)
	require.Error(t, err)
}

func TestExpand_LinkToUnknownBlockPad(t *testing.T) {
	f := engine.NewFakeFactory()
	real := relayDefinition()
	real.GetExternalPads = func(props map[string]types.PropertyValue) (*flow.ExternalPads, error) {
		return relayPads("b1"), nil
	}
	bc, err := catalog.NewBlockCatalog([]*catalog.BlockDefinition{real})
	require.NoError(t, err)

	flw := &flow.Flow{
		Elements: []flow.Element{{ID: "src1", ElementType: "videotestsrc"}},
		Blocks:   []flow.Block{{ID: "b1", DefinitionID: "relay"}},
		Links:    []flow.Link{{From: "src1", To: "b1:nonexistent"}},
	}
	_, err = expand.Expand(f, bc, flw)
	require.Error(t, err)
}
