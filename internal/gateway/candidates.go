package gateway

import (
	"context"
	"iter"
	"slices"

	"github.com/nulzo/prism-gateway/internal/platform/logger"
	"github.com/nulzo/prism-gateway/internal/registry"
	"go.uber.org/zap"
)

// Attempt records the outcome of one provider call.
type Attempt struct {
	ProviderID string
	Err        error
}

// LastError folds attempts into the error reported on exhaustion: later
// failures replace earlier ones.
func LastError(attempts []Attempt) error {
	var last error
	for _, a := range attempts {
		if a.Err != nil {
			last = a.Err
		}
	}
	return last
}

func attemptedIDs(attempts []Attempt) []string {
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.ProviderID)
	}
	return ids
}

type candidate struct {
	provider *registry.Provider
	secret   string
}

// candidates lazily yields fallback providers for model in registry order.
// Sandbox providers and exclude are never yielded; providers without a
// credential or without the model are skipped. The sequence is finite and
// consulting the directory happens only as far as the consumer pulls.
func (s *service) candidates(ctx context.Context, model, exclude string) iter.Seq[candidate] {
	return func(yield func(candidate) bool) {
		for _, p := range s.registry.Providers() {
			if ctx.Err() != nil {
				return
			}
			if p.ID == exclude || p.IsSandbox() {
				continue
			}

			secret, ok := s.creds.Resolve(p.ProviderConfig)
			if !ok {
				logger.Debug("Skipping fallback without credential", zap.String("provider", p.ID))
				continue
			}

			models, err := s.models.ListModels(ctx, p.ID)
			if err != nil || !slices.Contains(models, model) {
				logger.Debug("Skipping fallback without model",
					zap.String("provider", p.ID),
					zap.String("model", model),
				)
				continue
			}

			if !yield(candidate{provider: p, secret: secret}) {
				return
			}
		}
	}
}
