package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-gateway/internal/gateway"
	"github.com/nulzo/prism-gateway/pkg/api"
)

type ProviderHandler struct {
	service gateway.Service
}

func NewProviderHandler(service gateway.Service) *ProviderHandler {
	return &ProviderHandler{service: service}
}

// ListProviders returns every registered provider in registry order.
// GET /api/providers
func (h *ProviderHandler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, api.ProvidersResponse{Providers: h.service.Providers()})
}
