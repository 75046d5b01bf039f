// Package discovery defines the Device Discovery collaborator (spec §1:
// the streaming engine's device-monitoring facilities are an external
// collaborator with an interface only, same treatment as
// internal/engine's Factory/Pipeline). The NDI source blocks in
// internal/blocks consult it at flow-build time when neither ndi_name nor
// url_address is set, taking the first device it reports as NDI; the NDI
// sink blocks do not use it. Grounded on the original project's generic
// GStreamer-DeviceMonitor-backed discovery service.
package discovery

import (
	"context"
	"strings"
)

// Category classifies a discovered device for filtering.
type Category string

const (
	CategoryAudioSource   Category = "audio_source"
	CategoryAudioSink     Category = "audio_sink"
	CategoryVideoSource   Category = "video_source"
	CategoryNetworkSource Category = "network_source"
	CategoryOther         Category = "other"
)

// Device is one discovered input/output device.
type Device struct {
	ID          string
	Name        string
	DeviceClass string
	Category    Category
	Provider    string
	Properties  map[string]string
}

// IsNDI reports whether the device was surfaced by an NDI provider,
// mirroring the original's provider-name/ndi-name-property heuristic.
func (d Device) IsNDI() bool {
	if d.Properties != nil {
		if _, ok := d.Properties["ndi-name"]; ok {
			return true
		}
	}
	return strings.Contains(strings.ToLower(d.Provider), "ndi")
}

// DeviceDiscovery enumerates devices the streaming engine can see. It is
// an external collaborator: the concrete provider (GStreamer's
// DeviceMonitor and its NDI plugin in the original project) is out of
// scope here, same as internal/engine.Factory.
type DeviceDiscovery interface {
	// Devices returns every currently known device.
	Devices(ctx context.Context) ([]Device, error)
	// DevicesByCategory returns only devices in the given category.
	DevicesByCategory(ctx context.Context, category Category) ([]Device, error)
	// NDIDevices returns devices surfaced by an NDI provider specifically.
	NDIDevices(ctx context.Context) ([]Device, error)
}
