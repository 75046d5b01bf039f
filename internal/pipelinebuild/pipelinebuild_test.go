package pipelinebuild_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/ids"
	"github.com/eyevinn-osaas/strom-sub002/internal/pipelinebuild"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

func testElementCatalog(t *testing.T) *catalog.ElementCatalog {
	t.Helper()
	c, err := catalog.NewElementCatalog([]catalog.ElementDef{
		{Type: "videotestsrc"},
		{Type: "fakesink"},
		{Type: "qtdemux", PadTemplates: []types.PadTemplate{
			{Name: "video_%u", Direction: types.DirSrc, Presence: types.PresenceSometimes},
		}},
	})
	require.NoError(t, err)
	return c
}

func TestBuild_SimpleLinearFlow(t *testing.T) {
	f := engine.NewFakeFactory()
	elementCat := testElementCatalog(t)
	blockCat, err := catalog.NewBlockCatalog(nil)
	require.NoError(t, err)

	flw := &flow.Flow{
		ID: ids.NewFlowID(),
		Elements: []flow.Element{
			{ID: "src1", ElementType: "videotestsrc"},
			{ID: "sink1", ElementType: "fakesink"},
		},
		Links: []flow.Link{{From: "src1", To: "sink1"}},
	}

	built, err := pipelinebuild.Build(context.Background(), f, elementCat, blockCat, flw)
	require.NoError(t, err)
	require.Empty(t, built.PendingLinks)

	fp := built.Pipeline.(*engine.FakePipeline)
	_, ok := fp.Element("src1")
	require.True(t, ok)
	_, ok = fp.Element("sink1")
	require.True(t, ok)
}

func TestBuild_DynamicSrcPendingLink(t *testing.T) {
	f := engine.NewFakeFactory()
	elementCat := testElementCatalog(t)
	blockCat, err := catalog.NewBlockCatalog(nil)
	require.NoError(t, err)

	flw := &flow.Flow{
		ID: ids.NewFlowID(),
		Elements: []flow.Element{
			{ID: "demux", ElementType: "qtdemux"},
			{ID: "sink1", ElementType: "fakesink"},
		},
		Links: []flow.Link{{From: "demux:video_0", To: "sink1"}},
	}

	built, err := pipelinebuild.Build(context.Background(), f, elementCat, blockCat, flw)
	require.NoError(t, err)
	require.Len(t, built.PendingLinks, 1)
	require.Equal(t, "demux", built.PendingLinks[0].FromElem)
	require.Contains(t, built.DynamicElements, "demux")
}

func TestBuild_FanOutInsertsDuplicator(t *testing.T) {
	f := engine.NewFakeFactory()
	elementCat := testElementCatalog(t)
	blockCat, err := catalog.NewBlockCatalog(nil)
	require.NoError(t, err)

	flw := &flow.Flow{
		ID: ids.NewFlowID(),
		Elements: []flow.Element{
			{ID: "src1", ElementType: "videotestsrc"},
			{ID: "sink1", ElementType: "fakesink"},
			{ID: "sink2", ElementType: "fakesink"},
		},
		Links: []flow.Link{
			{From: "src1", To: "sink1"},
			{From: "src1", To: "sink2"},
		},
	}

	built, err := pipelinebuild.Build(context.Background(), f, elementCat, blockCat, flw)
	require.NoError(t, err)
	require.Len(t, built.Tee.Duplicators, 1)

	fp := built.Pipeline.(*engine.FakePipeline)
	_, ok := fp.Element("auto_tee_src1")
	require.True(t, ok)
}

func TestBuild_UnknownElementType(t *testing.T) {
	f := engine.NewFakeFactory()
	elementCat := testElementCatalog(t)
	blockCat, err := catalog.NewBlockCatalog(nil)
	require.NoError(t, err)

	flw := &flow.Flow{
		ID:       ids.NewFlowID(),
		Elements: []flow.Element{{ID: "x1", ElementType: "nonexistent"}},
	}
	_, err = pipelinebuild.Build(context.Background(), f, elementCat, blockCat, flw)
	require.Error(t, err)
}
