package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-gateway/internal/gateway"
	"github.com/nulzo/prism-gateway/pkg/api"
)

type ModelHandler struct {
	service gateway.Service
}

func NewModelHandler(service gateway.Service) *ModelHandler {
	return &ModelHandler{service: service}
}

// ListModels returns the models one provider serves.
// GET /api/models?provider=<id>
func (h *ModelHandler) ListModels(c *gin.Context) {
	provider := c.Query("provider")
	if provider == "" {
		_ = c.Error(api.ValidationError("Provider parameter required"))
		return
	}

	models, err := h.service.ListModels(c.Request.Context(), provider)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, api.ModelsResponse{Models: models})
}
