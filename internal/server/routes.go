package server

import (
	"github.com/nulzo/prism-gateway/internal/server/middleware"
	v1 "github.com/nulzo/prism-gateway/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	healthHandler := v1.NewHealthHandler()
	s.router.GET("/health", healthHandler.Health)

	chatHandler := v1.NewChatHandler(s.service)
	modelsHandler := v1.NewModelHandler(s.service)
	providersHandler := v1.NewProviderHandler(s.service)

	// chat clients read the body as text, so failures are rendered as text too
	for _, prefix := range []string{"/api", "/v1"} {
		chat := s.router.Group(prefix, middleware.ErrorHandler(middleware.TextError))
		chat.POST("/chat", chatHandler.Chat)

		listing := s.router.Group(prefix, middleware.ErrorHandler(middleware.JSONError))
		listing.GET("/models", modelsHandler.ListModels)
		listing.GET("/providers", providersHandler.ListProviders)
	}
}
