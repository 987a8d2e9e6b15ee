package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/nulzo/prism-gateway/internal/config"
	"github.com/nulzo/prism-gateway/internal/llm"
	"github.com/nulzo/prism-gateway/pkg/api"
	"github.com/tidwall/gjson"
)

// ModelID is the single model a sandbox provider advertises.
const ModelID = "sandbox-js-executor"

// maxResultSize bounds the runtime reply.
const maxResultSize = 1 << 20

var fencedBlock = regexp.MustCompile("(?s)```(?:javascript|js)?\\r?\\n(.+?)\\r?\\n```")

func init() {
	llm.Register(config.KindSandboxedExec, func() llm.Protocol { return &Adapter{} })
}

// Adapter runs a fenced code block on an external sandboxed runtime. It is a
// single request/response exchange that yields exactly one delta.
type Adapter struct{}

func (a *Adapter) Kind() config.Kind {
	return config.KindSandboxedExec
}

type executeRequest struct {
	Language    string `json:"language"`
	Code        string `json:"code"`
	TimeoutMS   int    `json:"timeout_ms"`
	MemoryLimit string `json:"memory_limit,omitempty"`
}

// ExtractCode returns the first fenced block of the final user message.
func ExtractCode(msgs []api.ChatMessage) (string, error) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != api.User {
			continue
		}
		match := fencedBlock.FindStringSubmatch(msgs[i].Content)
		if match == nil {
			return "", llm.ErrNoExecutableCode
		}
		return match[1], nil
	}
	return "", llm.ErrNoExecutableCode
}

func (a *Adapter) TranslateRequest(desc config.ProviderConfig, secret string, req *api.ChatRequest) (*llm.WireRequest, error) {
	code, err := ExtractCode(req.Messages)
	if err != nil {
		return nil, err
	}

	body := executeRequest{Language: "javascript", Code: code}
	if desc.Sandbox != nil {
		body.TimeoutMS = desc.Sandbox.TimeoutMS
		body.MemoryLimit = desc.Sandbox.MemoryLimit
	}

	return &llm.WireRequest{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/execute", strings.TrimRight(desc.BaseEndpoint, "/")),
		// the runtime answers with a single JSON document, not an event stream
		Headers: map[string]string{
			"Authorization": "Bearer " + secret,
			"Accept":        "application/json",
		},
		Body: body,
	}, nil
}

func (a *Adapter) NormalizeStream(ctx context.Context, r io.Reader, emit llm.Emit) error {
	raw, err := io.ReadAll(io.LimitReader(r, maxResultSize))
	if err != nil {
		return fmt.Errorf("read sandbox result: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return errors.New("sandbox runtime returned a malformed result")
	}

	if msg := gjson.GetBytes(raw, "error"); msg.Exists() && msg.String() != "" {
		return fmt.Errorf("sandbox execution failed: %s", msg.String())
	}

	result := gjson.GetBytes(raw, "result")
	if !result.Exists() {
		return errors.New("sandbox runtime returned no result")
	}

	emit(api.TextDelta{Text: result.String()})
	return nil
}
