package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetConfigNilRestoresDefaults(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{Port: ":9999", MaxMessageSize: 10})
	SetConfig(nil)

	assert.Equal(t, defaultConfig(), currentConfig())
}

func TestSetConfigSanitizesInvalidValues(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{
		MaxMessageSize: -1,
		RateLimit:      RateLimitConfig{Burst: 0, RefillInterval: -time.Second},
		SendTimeout:    0,
		SendBuffer:     -3,
	})

	cfg := currentConfig()
	def := defaultConfig()
	assert.Equal(t, def.Port, cfg.Port)
	assert.Equal(t, def.MaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, def.RateLimit, cfg.RateLimit)
	assert.Equal(t, def.SendTimeout, cfg.SendTimeout)
	assert.Equal(t, def.SendBuffer, cfg.SendBuffer)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestSetConfigCopiesOrigins(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	origins := []string{"http://a.example"}
	SetConfig(&Config{AllowedOrigins: origins})
	origins[0] = "http://mutated.example"

	assert.Equal(t, []string{"http://a.example"}, currentConfig().AllowedOrigins)

	got := currentConfig()
	got.AllowedOrigins[0] = "http://other.example"
	assert.Equal(t, []string{"http://a.example"}, currentConfig().AllowedOrigins)
}

func TestNewConfigReturnsDefaults(t *testing.T) {
	assert.Equal(t, defaultConfig(), *NewConfig())
}
