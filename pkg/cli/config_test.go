package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := &UserConfig{
		CurrentProfile: "staging",
		Profiles: map[string]Profile{
			"staging": {Endpoint: "https://agent.staging:9090", Token: "tok", Output: "json"},
		},
	}
	require.NoError(t, saveUserConfigTo(path, cfg))

	loaded, err := loadUserConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", loaded.CurrentProfile)
	assert.Equal(t, cfg.Profiles["staging"], loaded.Profiles["staging"])
}

func TestLoadUserConfig_Missing(t *testing.T) {
	_, err := loadUserConfigFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestActiveProfile(t *testing.T) {
	cfg := &UserConfig{
		CurrentProfile: "default",
		Profiles: map[string]Profile{
			"default": {Endpoint: "http://localhost:9090"},
			"prod":    {Endpoint: "https://agent.prod:9090"},
		},
	}

	assert.Equal(t, "http://localhost:9090", cfg.ActiveProfile("").Endpoint)
	assert.Equal(t, "https://agent.prod:9090", cfg.ActiveProfile("prod").Endpoint)
	assert.Equal(t, Profile{}, cfg.ActiveProfile("missing"))
}
