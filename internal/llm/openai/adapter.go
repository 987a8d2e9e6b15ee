package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nulzo/prism-gateway/internal/config"
	"github.com/nulzo/prism-gateway/internal/httpclient"
	"github.com/nulzo/prism-gateway/internal/llm"
	"github.com/nulzo/prism-gateway/internal/platform/logger"
	"github.com/nulzo/prism-gateway/pkg/api"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	dataPrefix = "data:"
	doneFrame  = "[DONE]"
	deltaPath  = "choices.0.delta.content"
)

func init() {
	llm.Register(config.KindOpenAICompatible, func() llm.Protocol { return &Adapter{} })
}

// Adapter speaks the OpenAI chat completions streaming protocol.
type Adapter struct{}

func (a *Adapter) Kind() config.Kind {
	return config.KindOpenAICompatible
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

func (a *Adapter) TranslateRequest(desc config.ProviderConfig, secret string, req *api.ChatRequest) (*llm.WireRequest, error) {
	body := chatRequest{
		Model:    req.Model,
		Messages: make([]message, 0, len(req.Messages)),
		Stream:   true,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, message{Role: string(m.Role), Content: m.Content})
	}

	return &llm.WireRequest{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/chat/completions", strings.TrimRight(desc.BaseEndpoint, "/")),
		Headers: map[string]string{
			"Authorization": "Bearer " + secret,
		},
		Body: body,
	}, nil
}

func (a *Adapter) NormalizeStream(ctx context.Context, r io.Reader, emit llm.Emit) error {
	return httpclient.ScanLines(ctx, r, func(line string) error {
		// SSE format: data: {...}
		if !strings.HasPrefix(line, dataPrefix) {
			return nil
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if data == doneFrame {
			return httpclient.ErrStop
		}

		if !gjson.Valid(data) {
			logger.Debug("Skipping malformed stream frame", zap.String("protocol", string(a.Kind())))
			return nil
		}

		text := gjson.Get(data, deltaPath).String()
		if text == "" {
			return nil
		}

		if !emit(api.TextDelta{Text: text}) {
			return httpclient.ErrStop
		}
		return nil
	})
}
