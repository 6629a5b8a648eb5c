// api/platform/registry.go
package platform

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/propsync/keyway/api/config"
	keyway_errors "github.com/propsync/keyway/api/errors"
	logger "github.com/propsync/keyway/api/logging"
)

// Registry maps a platform identifier to a constructed vendor adapter. It is
// built once at startup from configured credentials and passed to every
// component that needs adapter resolution; it holds no business state and is
// read-only after construction.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry constructs a registry for the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
		logger.Info("Registered lock platform adapter", zap.String("platform", a.Platform()))
	}
	return r
}

// NewRegistryFromConfig builds adapters for every vendor with credentials
// present in the configuration.
func NewRegistryFromConfig() *Registry {
	var adapters []Adapter

	timeout := config.GetDuration("platforms.requestTimeout")

	if config.GetString("platforms.ttlock.clientId") != "" {
		adapters = append(adapters, NewTTLockClient(
			config.GetString("platforms.ttlock.baseUrl"),
			config.GetString("platforms.ttlock.clientId"),
			config.GetString("platforms.ttlock.clientSecret"),
			config.GetString("platforms.ttlock.accessToken"),
			config.GetString("platforms.ttlock.refreshToken"),
			timeout,
		))
	}

	if config.GetString("platforms.nuki.apiToken") != "" {
		adapters = append(adapters, NewNukiClient(
			config.GetString("platforms.nuki.baseUrl"),
			config.GetString("platforms.nuki.apiToken"),
			timeout,
		))
	}

	if len(adapters) == 0 {
		logger.Warn("No lock platform credentials configured; registry is empty")
	}

	return NewRegistry(adapters...)
}

// Resolve returns the adapter responsible for the given platform.
func (r *Registry) Resolve(platform string) (Adapter, error) {
	adapter, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", keyway_errors.ErrPlatformNotRegistered, platform)
	}
	return adapter, nil
}

// Platforms lists the registered platform identifiers.
func (r *Registry) Platforms() []string {
	platforms := make([]string, 0, len(r.adapters))
	for p := range r.adapters {
		platforms = append(platforms, p)
	}
	return platforms
}
