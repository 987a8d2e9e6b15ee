package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nulzo/prism-gateway/internal/credentials"
	"github.com/nulzo/prism-gateway/internal/httpclient"
	"github.com/nulzo/prism-gateway/internal/llm"
	"github.com/nulzo/prism-gateway/internal/platform/logger"
	"github.com/nulzo/prism-gateway/internal/registry"
	"github.com/nulzo/prism-gateway/pkg/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/nulzo/prism-gateway/internal/gateway"

// ModelLister reports the models a provider serves.
type ModelLister interface {
	ListModels(ctx context.Context, providerID string) ([]string, error)
}

// Stream is a live delta stream and the provider that produced it.
type Stream struct {
	ProviderID string
	Deltas     <-chan api.StreamResult
}

// Service defines the business logic for serving chat requests.
type Service interface {
	// Stream opens a delta stream on the requested provider, falling back to
	// peers that serve the same model when it fails.
	Stream(ctx context.Context, req *api.ChatRequest) (*Stream, error)
	// Execute runs the request on a sandbox provider and returns its result.
	Execute(ctx context.Context, req *api.ChatRequest) (string, error)
	// IsSandbox reports whether providerID executes code rather than chatting.
	IsSandbox(providerID string) (bool, error)
	ListModels(ctx context.Context, providerID string) ([]string, error)
	Providers() []api.ProviderInfo
}

type service struct {
	registry *registry.Registry
	models   ModelLister
	creds    *credentials.Resolver
	client   httpclient.HTTPClient
	tracer   trace.Tracer
}

func NewService(reg *registry.Registry, models ModelLister, creds *credentials.Resolver, client httpclient.HTTPClient) Service {
	return &service{
		registry: reg,
		models:   models,
		creds:    creds,
		client:   client,
		tracer:   otel.Tracer(tracerName),
	}
}

func (s *service) Stream(ctx context.Context, req *api.ChatRequest) (*Stream, error) {
	primary, secret, err := s.resolvePrimary(req)
	if err != nil {
		return nil, err
	}
	if primary.IsSandbox() {
		return nil, api.ValidationError(fmt.Sprintf("Provider %s executes code and cannot stream chat", primary.ID))
	}

	ch, err := s.attempt(ctx, primary, secret, req, false)
	if err == nil {
		return &Stream{ProviderID: primary.ID, Deltas: ch}, nil
	}

	attempts := []Attempt{{ProviderID: primary.ID, Err: err}}

	for c := range s.candidates(ctx, req.Model, primary.ID) {
		ch, err := s.attempt(ctx, c.provider, c.secret, req, true)
		if err == nil {
			logger.Info("Fallback provider took over",
				zap.String("requested", primary.ID),
				zap.String("provider", c.provider.ID),
				zap.String("model", req.Model),
			)
			return &Stream{ProviderID: c.provider.ID, Deltas: ch}, nil
		}
		attempts = append(attempts, Attempt{ProviderID: c.provider.ID, Err: err})
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	last := LastError(attempts)
	logger.Error("All providers failed",
		zap.String("model", req.Model),
		zap.Strings("attempted", attemptedIDs(attempts)),
		zap.Error(last),
	)
	return nil, api.ExhaustionError(req.Model, last)
}

func (s *service) Execute(ctx context.Context, req *api.ChatRequest) (string, error) {
	p, secret, err := s.resolvePrimary(req)
	if err != nil {
		return "", err
	}
	if !p.IsSandbox() {
		return "", api.ValidationError(fmt.Sprintf("Provider %s does not execute code", p.ID))
	}

	ctx, cancel := context.WithTimeout(ctx, p.Sandbox.Timeout())
	defer cancel()

	ch, err := s.attempt(ctx, p, secret, req, false)
	if errors.Is(err, llm.ErrNoExecutableCode) {
		return "", api.SandboxInputError("No executable code found")
	}
	if err != nil {
		return "", api.InternalError("Sandbox execution failed", err)
	}

	var out strings.Builder
	for res := range ch {
		if res.Err != nil {
			return "", api.InternalError("Sandbox execution failed", res.Err)
		}
		out.WriteString(res.Delta.Text)
	}
	if err := ctx.Err(); err != nil {
		return "", api.InternalError("Sandbox execution failed", err)
	}

	return out.String(), nil
}

func (s *service) IsSandbox(providerID string) (bool, error) {
	p, err := s.registry.Lookup(providerID)
	if err != nil {
		return false, api.NotFoundError("Provider not found")
	}
	return p.IsSandbox(), nil
}

func (s *service) ListModels(ctx context.Context, providerID string) ([]string, error) {
	models, err := s.models.ListModels(ctx, providerID)
	if errors.Is(err, registry.ErrProviderNotFound) {
		return nil, api.NotFoundError("Provider not found")
	}
	if err != nil {
		return nil, api.InternalError("Failed to list models", err)
	}
	return models, nil
}

func (s *service) Providers() []api.ProviderInfo {
	providers := s.registry.Providers()
	out := make([]api.ProviderInfo, 0, len(providers))
	for _, p := range providers {
		_, ok := s.creds.Resolve(p.ProviderConfig)
		out = append(out, api.ProviderInfo{
			ID:         p.ID,
			Name:       p.Name,
			Kind:       string(p.Kind),
			Configured: ok,
		})
	}
	return out
}

// resolvePrimary validates the request and resolves the requested provider.
// A missing credential here is terminal: the caller picked this provider.
func (s *service) resolvePrimary(req *api.ChatRequest) (*registry.Provider, string, error) {
	if len(req.Messages) == 0 || req.Provider == "" || req.Model == "" {
		return nil, "", api.ValidationError("Missing required fields")
	}

	p, err := s.registry.Lookup(req.Provider)
	if err != nil {
		return nil, "", api.NotFoundError("Provider not found")
	}

	secret, ok := s.creds.Resolve(p.ProviderConfig)
	if !ok {
		return nil, "", api.UnauthorizedError("API key not configured")
	}

	return p, secret, nil
}

func (s *service) attempt(ctx context.Context, p *registry.Provider, secret string, req *api.ChatRequest, fallback bool) (<-chan api.StreamResult, error) {
	ctx, span := s.tracer.Start(ctx, "gateway.attempt", trace.WithAttributes(
		attribute.String("provider.id", p.ID),
		attribute.String("provider.kind", string(p.Kind)),
		attribute.String("model", req.Model),
		attribute.Bool("fallback", fallback),
	))
	defer span.End()

	ch, err := llm.Open(ctx, s.client, p.Protocol, p.ProviderConfig, secret, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("Provider attempt failed",
			zap.String("provider", p.ID),
			zap.String("model", req.Model),
			zap.Bool("fallback", fallback),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return ch, nil
}
