package discovery

import "context"

// Static is an in-memory DeviceDiscovery backed by a fixed device list,
// standing in for the engine's real device monitor well enough to
// exercise the NDI source blocks' discovery-driven ndi_name fallback end
// to end (the same role FakeFactory plays for
// internal/engine).
type Static struct {
	devices []Device
}

// NewStatic builds a Static discovery service over the given devices.
func NewStatic(devices ...Device) *Static {
	return &Static{devices: devices}
}

func (s *Static) Devices(ctx context.Context) ([]Device, error) {
	out := make([]Device, len(s.devices))
	copy(out, s.devices)
	return out, nil
}

func (s *Static) DevicesByCategory(ctx context.Context, category Category) ([]Device, error) {
	var out []Device
	for _, d := range s.devices {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Static) NDIDevices(ctx context.Context) ([]Device, error) {
	var out []Device
	for _, d := range s.devices {
		if d.IsNDI() {
			out = append(out, d)
		}
	}
	return out, nil
}
