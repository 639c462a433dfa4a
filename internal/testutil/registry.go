package testutil

import (
	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/registry"
)

// NewRegistry returns a registry decoding with conv and holding modules.
func NewRegistry(conv config.Converter, modules ...registry.Module) *registry.Registry {
	reg := registry.New()
	reg.SetConverter(conv)
	for _, m := range modules {
		m.Register(reg)
	}
	return reg
}
