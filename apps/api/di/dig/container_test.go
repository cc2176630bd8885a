package dig_container

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/library"
	catalogsvc "github.com/trezcool/darasa/services/catalog"
	logsvc "github.com/trezcool/darasa/services/logger"
)

func TestNew_catalogWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	unreachable := mr.Addr()
	mr.Close()

	tests := []struct {
		name      string
		redisAddr string
	}{
		{name: "not configured", redisAddr: ""},
		{name: "unreachable", redisAddr: unreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			require.NoError(t, c.Decorate(func(*core.Config) *core.Config {
				conf := core.NewTestConfig()
				conf.Redis.Addr = tt.redisAddr
				return conf
			}))

			err := c.Invoke(func(cache catalogsvc.Cache, catalog library.Catalog, _ echoapi.IdentityProvider, _ *validator.Validate, _ core.EmailService) {
				assert.IsType(t, new(catalogsvc.NoopCache), cache)
				assert.NotNil(t, catalog)
			})
			assert.NoError(t, err)
		})
	}
}

func TestNewCatalogCache_redis(t *testing.T) {
	mr := miniredis.RunT(t)
	conf := core.NewTestConfig()
	conf.Redis.Addr = mr.Addr()

	cache := newCatalogCache(conf, logsvc.NewNopLogger())
	assert.IsType(t, new(catalogsvc.RedisCache), cache)
}
