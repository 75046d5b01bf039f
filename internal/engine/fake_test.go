package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

func TestFakePipeline_PropertiesSetBeforeAdd(t *testing.T) {
	f := engine.NewFakeFactory()
	p, err := f.NewPipeline("flow1")
	require.NoError(t, err)

	el, err := f.NewElement("src", "videotestsrc")
	require.NoError(t, err)
	require.NoError(t, el.SetProperty("pattern", types.Int(1)))

	require.NoError(t, p.Add(el))
	fe := el.(*engine.FakeElement)
	require.True(t, fe.AddedToPipeline())

	v, ok := el.GetProperty("pattern")
	require.True(t, ok)
	require.Equal(t, types.Int(1), v)
}

func TestFakePipeline_LinkDeferredWhenMissing(t *testing.T) {
	f := engine.NewFakeFactory()
	p, _ := f.NewPipeline("flow1")
	src, _ := f.NewElement("src", "x")
	require.NoError(t, p.Add(src))

	ok, err := p.Link("src", "", "sink", "")
	require.NoError(t, err)
	require.False(t, ok, "link to a not-yet-added element must be deferred, not an error")
}

func TestFakePipeline_DynamicPadNotification(t *testing.T) {
	f := engine.NewFakeFactory()
	p, _ := f.NewPipeline("flow1")
	demux, _ := f.NewElement("demux", "qtdemux")
	require.NoError(t, p.Add(demux))

	var gotElement, gotPad string
	p.WatchDynamicPads("demux", func(elementID, padName string) {
		gotElement, gotPad = elementID, padName
	})

	fp := p.(*engine.FakePipeline)
	fp.SimulateNewPad("demux", "video_0")

	require.Equal(t, "demux", gotElement)
	require.Equal(t, "video_0", gotPad)

	msg := <-fp.Messages()
	require.Equal(t, engine.MsgPadAdded, msg.Kind)
	require.Equal(t, "video_0", msg.NewPad)
}

func TestFakePipeline_StateChangeEmitsMessage(t *testing.T) {
	f := engine.NewFakeFactory()
	p, _ := f.NewPipeline("flow1")
	require.NoError(t, p.SetState(context.Background(), types.StatePlaying))
	require.Equal(t, types.StatePlaying, p.State())
	msg := <-p.Messages()
	require.Equal(t, engine.MsgStateChange, msg.Kind)
}

func TestFakeElement_RequestPadSequentialNaming(t *testing.T) {
	f := engine.NewFakeFactory()
	el, _ := f.NewElement("tee1", "tee")
	a, err := el.RequestPad("src_%u")
	require.NoError(t, err)
	b, err := el.RequestPad("src_%u")
	require.NoError(t, err)
	require.Equal(t, "src_0", a)
	require.Equal(t, "src_1", b)
}
