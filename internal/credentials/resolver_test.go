package credentials

import (
	"testing"

	"github.com/nulzo/prism-gateway/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	r := NewResolver(Static(map[string]string{
		"GROQ_API_KEY": "gsk-123",
		"BLANK_KEY":    "   ",
	}))

	secret, ok := r.Resolve(config.ProviderConfig{CredentialEnv: "GROQ_API_KEY"})
	assert.True(t, ok)
	assert.Equal(t, "gsk-123", secret)

	_, ok = r.Resolve(config.ProviderConfig{CredentialEnv: "BLANK_KEY"})
	assert.False(t, ok)

	_, ok = r.Resolve(config.ProviderConfig{CredentialEnv: "UNSET_KEY"})
	assert.False(t, ok)

	_, ok = r.Resolve(config.ProviderConfig{})
	assert.False(t, ok)
}

func TestNewEnvResolver(t *testing.T) {
	t.Setenv("PRISM_TEST_KEY", "sk-env")

	secret, ok := NewEnvResolver().Resolve(config.ProviderConfig{CredentialEnv: "PRISM_TEST_KEY"})
	assert.True(t, ok)
	assert.Equal(t, "sk-env", secret)
}
