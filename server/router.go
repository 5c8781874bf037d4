// Package server exposes the HTTP surface: the chat endpoint, cached
// result refresh, history and health inspection, and the push-status
// WebSocket.
package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/AdamZagri/aibi-server/config"
)

// NewRouter assembles the gin engine with CORS and all routes.
func NewRouter(cfg config.Config, h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOriginFunc:  originAllowed(cfg.AllowedOrigins),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Chat-Id", "X-User-Email", "X-User-Name"},
		ExposeHeaders:    []string{"X-Chat-Id"},
		AllowCredentials: true,
	}))

	router.POST("/chat", h.Chat)
	router.POST("/refresh-data", h.RefreshData)
	router.GET("/chat-history", h.ChatHistory)
	router.GET("/health", h.Health)
	router.GET("/debug/sessions", h.DebugSessions)
	router.GET("/ws", gin.WrapH(h.Hub))

	return router
}

// originAllowed matches exact origins plus suffix wildcards written as
// ".example.com".
func originAllowed(allowed []string) func(string) bool {
	return func(origin string) bool {
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
			if strings.HasPrefix(a, ".") && strings.HasSuffix(origin, a) {
				return true
			}
		}
		return false
	}
}
