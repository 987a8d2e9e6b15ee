package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/nulzo/prism-gateway/internal/config"
	"github.com/nulzo/prism-gateway/internal/credentials"
	"github.com/nulzo/prism-gateway/internal/httpclient"
	"github.com/nulzo/prism-gateway/internal/llm/sandbox"
	"github.com/nulzo/prism-gateway/internal/platform/logger"
	"github.com/nulzo/prism-gateway/internal/registry"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultTTL is how long a fetched model list stays fresh.
const DefaultTTL = 5 * time.Minute

var errNoCredential = errors.New("no credential configured")

// Directory answers which models a provider serves, caching discovery results.
type Directory struct {
	registry *registry.Registry
	creds    *credentials.Resolver
	client   httpclient.HTTPClient
	store    Store
	ttl      time.Duration
	now      func() time.Time
}

type Option func(*Directory)

func WithStore(s Store) Option {
	return func(d *Directory) { d.store = s }
}

func WithTTL(ttl time.Duration) Option {
	return func(d *Directory) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

func New(reg *registry.Registry, creds *credentials.Resolver, client httpclient.HTTPClient, opts ...Option) *Directory {
	d := &Directory{
		registry: reg,
		creds:    creds,
		client:   client,
		store:    NewMemoryStore(),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ListModels returns the models providerID serves. The only error is an
// unknown provider; discovery failures degrade to the configured defaults
// and leave the cache untouched so the next call retries upstream.
func (d *Directory) ListModels(ctx context.Context, providerID string) ([]string, error) {
	p, err := d.registry.Lookup(providerID)
	if err != nil {
		return nil, err
	}

	entry, ok, err := d.store.Get(ctx, providerID)
	if err != nil {
		logger.Warn("Model directory read failed", zap.String("provider", providerID), zap.Error(err))
	} else if ok && d.now().Sub(entry.FetchedAt) <= d.ttl {
		return slices.Clone(entry.Models), nil
	}

	if p.IsSandbox() {
		return []string{sandbox.ModelID}, nil
	}

	if p.DiscoveryPath == "" {
		return slices.Clone(p.DefaultModels), nil
	}

	models, err := d.discover(ctx, p.ProviderConfig)
	if err != nil {
		logger.Warn("Model discovery failed, using defaults",
			zap.String("provider", providerID),
			zap.Error(err),
		)
		return slices.Clone(p.DefaultModels), nil
	}

	if err := d.store.Put(ctx, Entry{ProviderID: providerID, Models: models, FetchedAt: d.now()}); err != nil {
		logger.Warn("Model directory write failed", zap.String("provider", providerID), zap.Error(err))
	}

	return slices.Clone(models), nil
}

func (d *Directory) discover(ctx context.Context, desc config.ProviderConfig) ([]string, error) {
	secret, ok := d.creds.Resolve(desc)
	if !ok {
		return nil, errNoCredential
	}

	url := strings.TrimRight(desc.BaseEndpoint, "/") + desc.DiscoveryPath
	headers := map[string]string{
		"Authorization": "Bearer " + secret,
	}

	var raw json.RawMessage
	if err := httpclient.SendRequest(ctx, d.client, http.MethodGet, url, headers, nil, &raw); err != nil {
		return nil, err
	}

	data := gjson.GetBytes(raw, "data")
	if !data.IsArray() {
		return nil, fmt.Errorf("malformed discovery body: missing data array")
	}

	models := make([]string, 0, len(data.Array()))
	for _, m := range data.Array() {
		if id := m.Get("id").String(); id != "" {
			models = append(models, id)
		}
	}
	return models, nil
}
