package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-gateway/internal/config"
	"github.com/nulzo/prism-gateway/internal/credentials"
	"github.com/nulzo/prism-gateway/internal/directory"
	"github.com/nulzo/prism-gateway/internal/gateway"
	_ "github.com/nulzo/prism-gateway/internal/llm/openai"
	"github.com/nulzo/prism-gateway/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChat_ClientDisconnectClosesUpstream(t *testing.T) {
	gin.SetMode(gin.TestMode)

	upstreamClosed := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		w.(http.Flusher).Flush()

		// hold the stream open until the gateway lets go of it
		<-r.Context().Done()
		close(upstreamClosed)
	}))
	t.Cleanup(upstream.Close)

	providers := []config.ProviderConfig{{
		ID: "groq", Name: "Groq", Kind: config.KindOpenAICompatible,
		BaseEndpoint: upstream.URL, CredentialEnv: "GROQ_API_KEY",
	}}
	reg, err := registry.New(providers)
	require.NoError(t, err)

	creds := credentials.NewResolver(credentials.Static(map[string]string{"GROQ_API_KEY": "k"}))
	svc := gateway.NewService(reg, directory.New(reg, creds, http.DefaultClient), creds, http.DefaultClient)

	s := New(&config.Config{Server: config.ServerConfig{Port: "0", Env: "test"}}, zap.NewNop(), svc)
	gw := httptest.NewServer(s.Handler())
	t.Cleanup(gw.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gw.URL+"/api/chat",
		strings.NewReader(`{"provider":"groq","model":"llama","messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "groq", resp.Header.Get("X-Provider"))

	buf := make([]byte, len("first"))
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)
	assert.Equal(t, "first", string(buf))

	// drop the client connection mid-stream
	cancel()

	select {
	case <-upstreamClosed:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream connection stayed open after the client disconnected")
	}
}
