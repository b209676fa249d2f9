package reviewstub_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procedure-review/internal/reviewstub"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("STUB_PORT", "9000")
	t.Setenv("STUB_CORS_ORIGINS", "http://a.local,http://b.local")

	cfg, err := reviewstub.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "development", cfg.Env)
}
