package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nulzo/prism-gateway/internal/config"
	"github.com/nulzo/prism-gateway/internal/llm"
)

var ErrProviderNotFound = errors.New("provider not found")

// Provider binds a static descriptor to the protocol chosen for its kind.
type Provider struct {
	config.ProviderConfig
	Protocol llm.Protocol
}

// IsSandbox reports whether the provider executes code instead of chatting.
func (p *Provider) IsSandbox() bool {
	return p.Kind == config.KindSandboxedExec
}

// Registry is the read-only provider catalog. It is never mutated after New
// returns, so reads take no locks.
type Registry struct {
	ordered []*Provider
	byID    map[string]*Provider
}

// New validates every descriptor and selects its protocol. Any malformed
// descriptor fails the whole load.
func New(cfgs []config.ProviderConfig) (*Registry, error) {
	validate := validator.New()

	r := &Registry{
		ordered: make([]*Provider, 0, len(cfgs)),
		byID:    make(map[string]*Provider, len(cfgs)),
	}

	for i, cfg := range cfgs {
		if err := validate.Struct(&cfg); err != nil {
			return nil, fmt.Errorf("provider #%d (%q): %w", i, cfg.ID, describe(err))
		}

		if cfg.Kind == config.KindSandboxedExec && cfg.Sandbox == nil {
			return nil, fmt.Errorf("provider %q: sandbox limits are required for kind %s", cfg.ID, cfg.Kind)
		}

		if _, dup := r.byID[cfg.ID]; dup {
			return nil, fmt.Errorf("provider %q: duplicate id", cfg.ID)
		}

		protocol, err := llm.Get(cfg.Kind)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", cfg.ID, err)
		}

		p := &Provider{ProviderConfig: cfg, Protocol: protocol}
		r.ordered = append(r.ordered, p)
		r.byID[cfg.ID] = p
	}

	return r, nil
}

// Lookup returns the provider registered under id.
func (r *Registry) Lookup(id string) (*Provider, error) {
	if p, ok := r.byID[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
}

// Providers returns all providers in declaration order.
func (r *Registry) Providers() []*Provider {
	out := make([]*Provider, len(r.ordered))
	copy(out, r.ordered)
	return out
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Namespace(), e.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
