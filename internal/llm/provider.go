package llm

import (
	"context"
	"errors"
	"io"

	"github.com/nulzo/prism-gateway/internal/config"
	"github.com/nulzo/prism-gateway/internal/httpclient"
	"github.com/nulzo/prism-gateway/pkg/api"
)

// ErrNoExecutableCode is returned by the sandbox protocol when the final
// message carries no fenced code block.
var ErrNoExecutableCode = errors.New("no executable code found")

// WireRequest is a translated upstream call.
type WireRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    interface{}
}

// Emit receives deltas in production order. Returning false stops the stream.
type Emit func(api.TextDelta) bool

// Protocol is the capability every wire-protocol kind implements.
type Protocol interface {
	Kind() config.Kind
	// TranslateRequest shapes a canonical request for the provider described by desc.
	TranslateRequest(desc config.ProviderConfig, secret string, req *api.ChatRequest) (*WireRequest, error)
	// NormalizeStream reads an upstream body and emits its text deltas.
	NormalizeStream(ctx context.Context, r io.Reader, emit Emit) error
}

// Open translates req, calls upstream and returns a channel of deltas. Errors
// that happen before the upstream answered 2xx are returned directly, so a
// returned channel always belongs to a live stream. The channel is closed
// when upstream ends, fails or ctx is cancelled; on cancellation the upstream
// body is closed rather than drained.
func Open(ctx context.Context, client httpclient.HTTPClient, p Protocol, desc config.ProviderConfig, secret string, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	wire, err := p.TranslateRequest(desc, secret, req)
	if err != nil {
		return nil, err
	}

	body, err := httpclient.OpenStream(ctx, client, wire.Method, wire.URL, wire.Headers, wire.Body)
	if err != nil {
		return nil, err
	}

	ch := make(chan api.StreamResult)

	go func() {
		defer close(ch)
		defer func() {
			_ = body.Close()
		}()

		// closing the body unblocks a pending read when the consumer goes away
		stop := context.AfterFunc(ctx, func() {
			_ = body.Close()
		})
		defer stop()

		err := p.NormalizeStream(ctx, body, func(d api.TextDelta) bool {
			select {
			case ch <- api.StreamResult{Delta: &d}:
				return true
			case <-ctx.Done():
				return false
			}
		})

		if err != nil && ctx.Err() == nil {
			select {
			case ch <- api.StreamResult{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}
