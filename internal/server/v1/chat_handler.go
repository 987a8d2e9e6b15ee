package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-gateway/internal/gateway"
	"github.com/nulzo/prism-gateway/internal/platform/logger"
	"github.com/nulzo/prism-gateway/internal/server/validator"
	"github.com/nulzo/prism-gateway/pkg/api"
	"go.uber.org/zap"
)

// ProviderHeader names the provider that served a stream.
const ProviderHeader = "X-Provider"

type ChatHandler struct {
	service gateway.Service
}

func NewChatHandler(service gateway.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

// Chat streams the reply as plain text, or runs code when the requested
// provider is a sandbox.
// POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Debug("Rejected chat request", zap.Any("fields", validator.ParseValidationError(err)))
		_ = c.Error(api.ValidationError("Missing required fields"))
		return
	}

	sandbox, err := h.service.IsSandbox(req.Provider)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if sandbox {
		h.execute(c, &req)
		return
	}
	h.stream(c, &req)
}

func (h *ChatHandler) execute(c *gin.Context, req *api.ChatRequest) {
	result, err := h.service.Execute(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, api.SandboxResponse{Result: result})
}

func (h *ChatHandler) stream(c *gin.Context, req *api.ChatRequest) {
	stream, err := h.service.Stream(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Header(ProviderHeader, stream.ProviderID)
	c.Status(http.StatusOK)
	c.Writer.Flush()

	// consume the channel and flush every delta as it arrives
	c.Stream(func(w io.Writer) bool {
		result, ok := <-stream.Deltas
		if !ok {
			return false
		}

		if result.Err != nil {
			// headers are gone already, all we can do is end the body
			logger.Error("Stream failed mid-flight",
				zap.String("provider", stream.ProviderID),
				zap.String("model", req.Model),
				zap.Error(result.Err),
			)
			return false
		}

		_, err := io.WriteString(w, result.Delta.Text)
		return err == nil
	})
}
