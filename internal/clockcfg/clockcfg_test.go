package clockcfg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub002/internal/clockcfg"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

func TestConfigure_PTPForcesDirectMediaClock(t *testing.T) {
	f := engine.NewFakeFactory()
	pipe, err := f.NewPipeline("p1")
	require.NoError(t, err)

	domain := 7
	err = clockcfg.Configure(f, pipe, flow.FlowProperties{ClockType: types.ClockPTP, PTPDomain: &domain})
	require.NoError(t, err)

	fp := pipe.(*engine.FakePipeline)
	require.True(t, fp.DirectMediaClock())
	require.Equal(t, types.ClockPTP, fp.Clock().Kind())
	require.Equal(t, domain, fp.Clock().Domain())
}

func TestConfigure_DefaultsToMonotonic(t *testing.T) {
	f := engine.NewFakeFactory()
	pipe, err := f.NewPipeline("p1")
	require.NoError(t, err)

	err = clockcfg.Configure(f, pipe, flow.FlowProperties{})
	require.NoError(t, err)

	fp := pipe.(*engine.FakePipeline)
	require.False(t, fp.DirectMediaClock())
	require.Equal(t, types.ClockMonotonic, fp.Clock().Kind())
}

func TestSignificant(t *testing.T) {
	require.False(t, clockcfg.Significant(50e-6))
	require.False(t, clockcfg.Significant(-50e-6))
	require.True(t, clockcfg.Significant(150e-6))
	require.True(t, clockcfg.Significant(-150e-6))
}
