package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Kind names the wire protocol family a provider speaks.
type Kind string

const (
	KindOpenAICompatible Kind = "openai-compatible"
	KindGemini           Kind = "gemini"
	KindSandboxedExec    Kind = "sandboxed-exec"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Log       LogConfig        `mapstructure:"log"`
	Tracing   TracingConfig    `mapstructure:"tracing"`
	Upstream  UpstreamConfig   `mapstructure:"upstream"`
	Directory DirectoryConfig  `mapstructure:"directory"`
	Providers []ProviderConfig `mapstructure:"providers"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
	// CheckUpdates toggles the release check performed at startup.
	CheckUpdates bool `mapstructure:"check_updates"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

type UpstreamConfig struct {
	// ResponseHeaderTimeout bounds the wait for upstream headers, not the stream itself.
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"`
}

type DirectoryConfig struct {
	TTL   time.Duration `mapstructure:"ttl"`
	Redis RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
	Prefix   string `mapstructure:"prefix"`
}

// ProviderConfig is the static descriptor of one upstream provider.
// Secrets never live here: CredentialEnv names the environment variable holding the key.
type ProviderConfig struct {
	ID            string         `mapstructure:"id" validate:"required"`
	Name          string         `mapstructure:"name" validate:"required"`
	Kind          Kind           `mapstructure:"kind" validate:"required,oneof=openai-compatible gemini sandboxed-exec"`
	BaseEndpoint  string         `mapstructure:"base_endpoint" validate:"required,url"`
	CredentialEnv string         `mapstructure:"credential_env"`
	DiscoveryPath string         `mapstructure:"discovery_path" validate:"omitempty,startswith=/"`
	DefaultModels []string       `mapstructure:"default_models"`
	Sandbox       *SandboxLimits `mapstructure:"sandbox"`
}

type SandboxLimits struct {
	TimeoutMS   int    `mapstructure:"timeout_ms" validate:"gt=0"`
	MemoryLimit string `mapstructure:"memory_limit"`
}

// Timeout returns the execution bound as a duration.
func (s SandboxLimits) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present, credentials usually come from here in development
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	return load(v)
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.check_updates", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "prism-gateway")
	v.SetDefault("upstream.response_header_timeout", 30*time.Second)
	v.SetDefault("directory.ttl", 5*time.Minute)
	v.SetDefault("directory.redis.enabled", false)
	v.SetDefault("directory.redis.prefix", "prism:models:")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}
