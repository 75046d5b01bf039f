package lifecycle_test

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
	"github.com/eyevinn-osaas/strom-sub002/internal/lifecycle"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

func testFlow() *flow.Flow {
	return &flow.Flow{
		ID: ids.NewFlowID(),
		Elements: []flow.Element{
			{ID: "src1", ElementType: "videotestsrc"},
			{ID: "sink1", ElementType: "fakesink"},
		},
		Links: []flow.Link{{From: "src1", To: "sink1"}},
	}
}

func testController(t *testing.T) (*lifecycle.Controller, *bus.Bus) {
	t.Helper()
	f := engine.NewFakeFactory()
	elementCat, err := catalog.NewElementCatalog([]catalog.ElementDef{{Type: "videotestsrc"}, {Type: "fakesink"}})
	require.NoError(t, err)
	blockCat, err := catalog.NewBlockCatalog(nil)
	require.NoError(t, err)
	b := bus.New()
	c, err := lifecycle.New(testFlow(), f, elementCat, blockCat, b)
	require.NoError(t, err)
	return c, b
}

func TestController_StartPauseStop(t *testing.T) {
	c, b := testController(t)
	defer b.Close()
	ctx := context.Background()

	require.Equal(t, types.StateNull, c.State())
	require.NoError(t, c.Start(ctx))
	require.Equal(t, types.StatePlaying, c.State())

	require.NoError(t, c.Pause(ctx))
	require.Equal(t, types.StatePaused, c.State())

	require.NoError(t, c.Start(ctx))
	require.Equal(t, types.StatePlaying, c.State())

	require.NoError(t, c.Stop(ctx))
	require.Equal(t, types.StateNull, c.State())
}

func TestController_PauseFromNullPreparesThenPauses(t *testing.T) {
	c, b := testController(t)
	defer b.Close()
	require.NoError(t, c.Pause(context.Background()))
	require.Equal(t, types.StatePaused, c.State())
}

func TestController_PauseFromReady(t *testing.T) {
	c, b := testController(t)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, c.Pause(ctx))
	require.Equal(t, types.StatePaused, c.State())

	require.NoError(t, c.Start(ctx))
	require.Equal(t, types.StatePlaying, c.State())
}

func TestController_QoSDropsSuppressedDuringGracePeriod(t *testing.T) {
	c, b := testController(t)
	defer b.Close()
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	ch, _ := b.Subscribe(8, func(ev bus.Event) bool { return ev.Kind == bus.KindQoSDrop })

	fp := c.Built().Pipeline.(*engine.FakePipeline)
	fp.EmitQoSDrop("src1", 5)

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event during grace period: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestController_ErrorAlwaysReachesBus(t *testing.T) {
	c, b := testController(t)
	defer b.Close()
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	ch, _ := b.Subscribe(8, func(ev bus.Event) bool { return ev.Kind == bus.KindPipelineError })

	fp := c.Built().Pipeline.(*engine.FakePipeline)
	fp.EmitError("src1", errTest{})

	select {
	case ev := <-ch:
		require.Equal(t, "src1", ev.ElementID)
	case <-time.After(time.Second):
		t.Fatal("expected error event on bus")
	}
}

func TestController_PTPStatsTaggedSignificant(t *testing.T) {
	c, b := testController(t)
	defer b.Close()
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	ch, _ := b.Subscribe(8, func(ev bus.Event) bool { return ev.Kind == bus.KindPTPStats })

	fp := c.Built().Pipeline.(*engine.FakePipeline)
	fp.EmitPTPStats(0, 250e-6, 10e-6, 1.0, 0.99)

	select {
	case ev := <-ch:
		require.True(t, ev.PTPSignificant)
		require.InDelta(t, 250e-6, ev.PTPOffsetSeconds, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("expected ptp stats event on bus")
	}
}

func TestController_PTPGrandmasterChangeForwarded(t *testing.T) {
	c, b := testController(t)
	defer b.Close()
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	ch, _ := b.Subscribe(8, func(ev bus.Event) bool { return ev.Kind == bus.KindPTPGrandmasterChange })

	fp := c.Built().Pipeline.(*engine.FakePipeline)
	fp.EmitPTPGrandmasterChange(0, "gm-1", true)

	select {
	case ev := <-ch:
		require.Equal(t, "gm-1", ev.GrandmasterID)
		require.True(t, ev.Synced)
	case <-time.After(time.Second):
		t.Fatal("expected ptp grandmaster event on bus")
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
