package discovery_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub002/internal/discovery"
)

func testDevices() []discovery.Device {
	return []discovery.Device{
		{ID: "dev-1", Name: "Camera One", DeviceClass: "Video/Source", Category: discovery.CategoryVideoSource, Provider: "v4l2deviceprovider"},
		{ID: "dev-2", Name: "Studio NDI Feed", DeviceClass: "Source/Network", Category: discovery.CategoryNetworkSource, Provider: "ndideviceprovider"},
		{ID: "dev-3", Name: "Legacy Encoder", DeviceClass: "Source/Network", Category: discovery.CategoryNetworkSource, Provider: "customprovider", Properties: map[string]string{"ndi-name": "Legacy Encoder"}},
	}
}

func TestStatic_Devices_ReturnsAllDevices(t *testing.T) {
	d := discovery.NewStatic(testDevices()...)
	got, err := d.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestStatic_DevicesByCategory_Filters(t *testing.T) {
	d := discovery.NewStatic(testDevices()...)
	got, err := d.DevicesByCategory(context.Background(), discovery.CategoryNetworkSource)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestStatic_NDIDevices_MatchesProviderOrProperty(t *testing.T) {
	d := discovery.NewStatic(testDevices()...)
	got, err := d.NDIDevices(context.Background())
	require.NoError(t, err)

	var names []string
	for _, dev := range got {
		names = append(names, dev.Name)
	}
	require.ElementsMatch(t, []string{"Studio NDI Feed", "Legacy Encoder"}, names)
}

func TestDevice_IsNDI(t *testing.T) {
	require.False(t, discovery.Device{Provider: "v4l2deviceprovider"}.IsNDI())
	require.True(t, discovery.Device{Provider: "ndideviceprovider"}.IsNDI())
	require.True(t, discovery.Device{Provider: "x", Properties: map[string]string{"ndi-name": "y"}}.IsNDI())
}
