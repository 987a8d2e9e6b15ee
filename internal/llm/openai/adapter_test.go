package openai_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/nulzo/prism-gateway/internal/config"
	"github.com/nulzo/prism-gateway/internal/llm"
	"github.com/nulzo/prism-gateway/internal/llm/openai"
	"github.com/nulzo/prism-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, body string, oneByte bool) []string {
	t.Helper()
	var r = strings.NewReader(body)
	var out []string
	emit := func(d api.TextDelta) bool {
		out = append(out, d.Text)
		return true
	}

	a := &openai.Adapter{}
	var err error
	if oneByte {
		err = a.NormalizeStream(context.Background(), iotest.OneByteReader(r), emit)
	} else {
		err = a.NormalizeStream(context.Background(), r, emit)
	}
	require.NoError(t, err)
	return out
}

func TestTranslateRequest(t *testing.T) {
	a := &openai.Adapter{}
	wire, err := a.TranslateRequest(config.ProviderConfig{
		ID:           "groq",
		Kind:         config.KindOpenAICompatible,
		BaseEndpoint: "https://api.groq.com/openai/v1/",
	}, "test-key", &api.ChatRequest{
		Provider: "groq",
		Model:    "llama-3.1-8b-instant",
		Messages: []api.ChatMessage{
			{Role: api.System, Content: "be brief"},
			{Role: api.User, Content: "Hi"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "POST", wire.Method)
	assert.Equal(t, "https://api.groq.com/openai/v1/chat/completions", wire.URL)
	assert.Equal(t, "Bearer test-key", wire.Headers["Authorization"])

	raw, err := json.Marshal(wire.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"model": "llama-3.1-8b-instant",
		"stream": true,
		"messages": [
			{"role": "system", "content": "be brief"},
			{"role": "user", "content": "Hi"}
		]
	}`, string(raw))
}

func TestNormalizeStream(t *testing.T) {
	body := strings.Join([]string{
		`: keep-alive`,
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		``,
		`data: {not json`,
		``,
		`event: ping`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		``,
		`data:{"choices":[{"delta":{"content":"!"}}]}`,
		``,
		`data: [DONE]`,
		``,
		`data: {"choices":[{"delta":{"content":"after done"}}]}`,
		``,
	}, "\r\n")

	t.Run("whole body", func(t *testing.T) {
		assert.Equal(t, []string{"Hel", "lo", "!"}, collect(t, body, false))
	})

	t.Run("partial chunks", func(t *testing.T) {
		assert.Equal(t, []string{"Hel", "lo", "!"}, collect(t, body, true))
	})
}

func TestNormalizeStream_StopsWhenEmitDeclines(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n"

	var got []string
	err := (&openai.Adapter{}).NormalizeStream(context.Background(), strings.NewReader(body), func(d api.TextDelta) bool {
		got = append(got, d.Text)
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
}

func TestRegistered(t *testing.T) {
	p, err := llm.Get(config.KindOpenAICompatible)
	require.NoError(t, err)
	assert.Equal(t, config.KindOpenAICompatible, p.Kind())
}
