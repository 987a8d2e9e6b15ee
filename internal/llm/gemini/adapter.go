package gemini

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
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
	deltaPath  = "candidates.0.content.parts.0.text"
)

func init() {
	llm.Register(config.KindGemini, func() llm.Protocol { return &Adapter{} })
}

// Adapter speaks the Gemini streamGenerateContent protocol.
type Adapter struct{}

func (a *Adapter) Kind() config.Kind {
	return config.KindGemini
}

type Part struct {
	Text string `json:"text"`
}

type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type Request struct {
	Contents []Content `json:"contents"`
}

// Shape converts the conversation to Gemini contents. System messages have no
// place in contents and are dropped.
func Shape(msgs []api.ChatMessage) Request {
	gr := Request{Contents: make([]Content, 0, len(msgs))}
	for _, m := range msgs {
		if m.Role == api.System {
			continue
		}
		role := api.User
		if m.Role == api.Assistant {
			role = api.ModelAssistant
		}
		gr.Contents = append(gr.Contents, Content{
			Role:  string(role),
			Parts: []Part{{Text: m.Content}},
		})
	}
	return gr
}

func (a *Adapter) TranslateRequest(desc config.ProviderConfig, secret string, req *api.ChatRequest) (*llm.WireRequest, error) {
	// the key travels as a query parameter, gemini does not take it as a bearer header
	q := url.Values{}
	q.Set("key", secret)
	q.Set("alt", "sse")

	return &llm.WireRequest{
		Method: http.MethodPost,
		URL: fmt.Sprintf("%s/models/%s:streamGenerateContent?%s",
			strings.TrimRight(desc.BaseEndpoint, "/"),
			url.PathEscape(req.Model),
			q.Encode(),
		),
		Body: Shape(req.Messages),
	}, nil
}

func (a *Adapter) NormalizeStream(ctx context.Context, r io.Reader, emit llm.Emit) error {
	return httpclient.ScanLines(ctx, r, func(line string) error {
		if !strings.HasPrefix(line, dataPrefix) {
			return nil
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))

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
