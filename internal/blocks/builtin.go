package blocks

import (
	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/discovery"
)

// Builtin returns every block definition this package ships, ready to
// hand to catalog.NewBlockCatalog. disc resolves NDI source blocks'
// ndi_name when a flow leaves it unset; pass nil to disable
// auto-resolution (explicit ndi_name/url_address still works).
func Builtin(disc discovery.DeviceDiscovery) []*catalog.BlockDefinition {
	return []*catalog.BlockDefinition{
		NewMixerBlock(),
		NewCompositorBlock(),
		NewNDIVideoSourceBlock(disc),
		NewNDIAudioSourceBlock(disc),
		NewNDIVideoSinkBlock(),
		NewNDIAudioSinkBlock(),
	}
}
