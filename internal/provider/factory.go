package provider

import (
	"fmt"

	"github.com/sublarr/sublarr/internal/config"
)

// BuildRegistry constructs every provider named in cfg.Providers.Entries,
// regardless of its Enabled flag: the manager filters disabled providers
// out at call time, so the registry itself holds every known instance.
func BuildRegistry(cfg *config.Config) (*Registry, error) {
	reg := NewRegistry()

	for _, entry := range cfg.Providers.Entries {
		p, err := buildOne(entry.Name, entry.Fields)
		if err != nil {
			return nil, fmt.Errorf("provider: building %q: %w", entry.Name, err)
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildOne(name string, fields map[string]string) (Provider, error) {
	switch name {
	case "napisy24":
		return NewNapisy24(fields), nil
	case "jimaku":
		return NewJimaku(fields), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
