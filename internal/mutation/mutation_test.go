package mutation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub002/internal/bus"
	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/ids"
	"github.com/eyevinn-osaas/strom-sub002/internal/mutation"
	"github.com/eyevinn-osaas/strom-sub002/internal/pipelinebuild"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

func testSetup(t *testing.T) (*flow.Flow, *catalog.ElementCatalog, *catalog.BlockCatalog, *pipelinebuild.Built) {
	t.Helper()
	f := engine.NewFakeFactory()

	elementCat, err := catalog.NewElementCatalog([]catalog.ElementDef{
		{Type: "volume", Properties: []catalog.PropertyDef{
			{Name: "level", Kind: types.KindFloat, MutableInPlaying: true},
			{Name: "preset", Kind: types.KindString, MutableInPlaying: false},
		}},
	})
	require.NoError(t, err)

	blockCat, err := catalog.NewBlockCatalog([]*catalog.BlockDefinition{
		{
			ID: "gain_block",
			ExposedProperties: []catalog.ExposedProperty{
				{Name: "gain_db", Default: types.Float(0), InternalElement: "vol", InternalProperty: "level", Transform: types.TransformDBToLinear, MutableInPlaying: true},
			},
			StaticExternalPads: &flow.ExternalPads{},
			Build: func(fac engine.Factory, instanceID string, props map[string]types.PropertyValue) (*catalog.BuildResult, error) {
				el, err := fac.NewElement(catalog.Namespace(instanceID, "vol"), "volume")
				if err != nil {
					return nil, err
				}
				return &catalog.BuildResult{Elements: map[string]engine.ElementHandle{catalog.Namespace(instanceID, "vol"): el}}, nil
			},
		},
	})
	require.NoError(t, err)

	flw := &flow.Flow{
		ID: ids.NewFlowID(),
		Elements: []flow.Element{
			{ID: "vol1", ElementType: "volume"},
		},
		Blocks: []flow.Block{
			{ID: "b1", DefinitionID: "gain_block"},
		},
	}

	built, err := pipelinebuild.Build(context.Background(), f, elementCat, blockCat, flw)
	require.NoError(t, err)

	return flw, elementCat, blockCat, built
}

func TestApply_DirectElementProperty(t *testing.T) {
	flw, elementCat, blockCat, built := testSetup(t)
	eng := mutation.New(flw, elementCat, blockCat, built, nil)

	err := eng.Apply(mutation.Request{OwnerID: "vol1", Property: "level", Value: types.Float(0.5), Hint: types.HintFlush})
	require.NoError(t, err)

	el, ok := built.Pipeline.Element("vol1")
	require.True(t, ok)
	v, ok := el.GetProperty("level")
	require.True(t, ok)
	require.Equal(t, 0.5, v.F)
}

func TestApply_BlockBackedAliasAppliesTransform(t *testing.T) {
	flw, elementCat, blockCat, built := testSetup(t)
	eng := mutation.New(flw, elementCat, blockCat, built, nil)

	err := eng.Apply(mutation.Request{OwnerID: "b1", Property: "gain_db", Value: types.Float(0), Hint: types.HintFlush})
	require.NoError(t, err)

	el, ok := built.Pipeline.Element(catalog.Namespace("b1", "vol"))
	require.True(t, ok)
	v, ok := el.GetProperty("level")
	require.True(t, ok)
	require.InDelta(t, 1.0, v.F, 1e-9) // db_to_linear(0dB) == 1.0
}

func TestApply_NotMutableInPlayingRejected(t *testing.T) {
	flw, elementCat, blockCat, built := testSetup(t)
	eng := mutation.New(flw, elementCat, blockCat, built, nil)

	fp := built.Pipeline.(*engine.FakePipeline)
	require.NoError(t, fp.SetState(context.Background(), types.StatePlaying))

	err := eng.Apply(mutation.Request{OwnerID: "vol1", Property: "preset", Value: types.String("warm"), Hint: types.HintFlush})
	require.Error(t, err)
}

func TestApply_UnknownOwnerRejected(t *testing.T) {
	flw, elementCat, blockCat, built := testSetup(t)
	eng := mutation.New(flw, elementCat, blockCat, built, nil)

	err := eng.Apply(mutation.Request{OwnerID: "nope", Property: "level", Value: types.Float(1), Hint: types.HintFlush})
	require.Error(t, err)
}

func TestApply_ThrottleCollapsesRapidUpdates(t *testing.T) {
	flw, elementCat, blockCat, built := testSetup(t)
	b := bus.New()
	defer b.Close()
	eng := mutation.New(flw, elementCat, blockCat, built, b)

	ch, _ := b.Subscribe(8, func(ev bus.Event) bool { return ev.Kind == bus.KindPropertyUpdated })

	require.NoError(t, eng.Apply(mutation.Request{OwnerID: "vol1", Property: "level", Value: types.Float(0.1)}))
	require.NoError(t, eng.Apply(mutation.Request{OwnerID: "vol1", Property: "level", Value: types.Float(0.2)}))
	require.NoError(t, eng.Apply(mutation.Request{OwnerID: "vol1", Property: "level", Value: types.Float(0.3)}))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected first immediate apply to publish PropertyUpdated")
	}

	select {
	case <-ch:
		t.Fatal("second and third updates should have collapsed into one pending write, not applied immediately")
	case <-time.After(10 * time.Millisecond):
	}

	select {
	case <-ch:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected collapsed pending write to flush after the throttle interval")
	}

	el, ok := built.Pipeline.Element("vol1")
	require.True(t, ok)
	v, ok := el.GetProperty("level")
	require.True(t, ok)
	require.Equal(t, 0.3, v.F) // latest write wins
}
