// api/platform/registry_test.go
package platform_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	keyway_errors "github.com/propsync/keyway/api/errors"
	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/platform"
)

func TestRegistry_ResolvesRegisteredAdapter(t *testing.T) {
	logger.InitLogger("")
	nuki := platform.NewNukiClient("http://localhost", "token-1", time.Second)
	registry := platform.NewRegistry(nuki)

	adapter, err := registry.Resolve("nuki")
	assert.NoError(t, err)
	assert.Equal(t, "nuki", adapter.Platform())
}

func TestRegistry_UnknownPlatform(t *testing.T) {
	logger.InitLogger("")
	registry := platform.NewRegistry()

	_, err := registry.Resolve("august")
	assert.ErrorIs(t, err, keyway_errors.ErrPlatformNotRegistered)
}

func TestRegistry_ListsPlatforms(t *testing.T) {
	logger.InitLogger("")
	registry := platform.NewRegistry(
		platform.NewNukiClient("http://localhost", "token-1", time.Second),
		platform.NewTTLockClient("http://localhost", "client-1", "secret-1", "access-1", "refresh-1", time.Second),
	)

	assert.ElementsMatch(t, []string{"nuki", "ttlock"}, registry.Platforms())
}
