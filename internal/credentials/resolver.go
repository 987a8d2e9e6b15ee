package credentials

import (
	"os"
	"strings"

	"github.com/nulzo/prism-gateway/internal/config"
)

// LookupFunc reads a named value from process-wide state.
type LookupFunc func(name string) (string, bool)

// Resolver maps a provider descriptor to its secret.
type Resolver struct {
	lookup LookupFunc
}

// NewEnvResolver reads secrets from the process environment.
func NewEnvResolver() *Resolver {
	return &Resolver{lookup: os.LookupEnv}
}

func NewResolver(lookup LookupFunc) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns the provider's secret. ok is false when the descriptor names
// no variable or the variable is unset or blank; callers treat that as an
// unusable provider, not a fault.
func (r *Resolver) Resolve(desc config.ProviderConfig) (string, bool) {
	if desc.CredentialEnv == "" {
		return "", false
	}
	val, ok := r.lookup(desc.CredentialEnv)
	if !ok {
		return "", false
	}
	val = strings.TrimSpace(val)
	return val, val != ""
}

// Static is a LookupFunc over a fixed map, handy for tests.
func Static(values map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}
