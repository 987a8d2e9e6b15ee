package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ENV", "test")
	t.Setenv("DIRECTORY_REDIS_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.Env)
	assert.True(t, cfg.Directory.Redis.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Directory.TTL)
	assert.Equal(t, 30*time.Second, cfg.Upstream.ResponseHeaderTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadFile_Providers(t *testing.T) {
	configContent := `
server:
  port: "7070"
directory:
  ttl: 90s
providers:
  - id: "groq"
    name: "Groq"
    kind: "openai-compatible"
    base_endpoint: "https://api.groq.com/openai/v1"
    credential_env: "GROQ_API_KEY"
    discovery_path: "/models"
    default_models: ["llama-3.1-8b-instant"]
  - id: "sandbox"
    name: "Sandbox"
    kind: "sandboxed-exec"
    base_endpoint: "http://localhost:7777"
    credential_env: "SANDBOX_TOKEN"
    sandbox:
      timeout_ms: 5000
      memory_limit: "128MB"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Directory.TTL)
	require.Len(t, cfg.Providers, 2)

	groq := cfg.Providers[0]
	assert.Equal(t, KindOpenAICompatible, groq.Kind)
	assert.Equal(t, "GROQ_API_KEY", groq.CredentialEnv)
	assert.Equal(t, []string{"llama-3.1-8b-instant"}, groq.DefaultModels)
	assert.Nil(t, groq.Sandbox)

	sb := cfg.Providers[1]
	require.NotNil(t, sb.Sandbox)
	assert.Equal(t, 5*time.Second, sb.Sandbox.Timeout())
	assert.Equal(t, "128MB", sb.Sandbox.MemoryLimit)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
