// Package transport accepts WebSocket connections and runs one connection
// driver per socket.
package transport

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mychat/chathub/internal/v1/hub"
	"github.com/mychat/chathub/internal/v1/logging"
)

// Listener upgrades accepted connections and hands each one to a Client
// driver. Per-connection work never blocks the accept path.
type Listener struct {
	hub            *hub.Hub
	allowedOrigins []string
}

// NewListener creates a Listener routing into h. An empty allowedOrigins
// list admits every origin.
func NewListener(h *hub.Hub, allowedOrigins []string) *Listener {
	return &Listener{
		hub:            h,
		allowedOrigins: allowedOrigins,
	}
}

// ServeWs upgrades the request to a WebSocket connection and spawns the
// connection driver.
func (l *Listener) ServeWs(c *gin.Context) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, l.allowedOrigins) == nil
		},
		WriteBufferPool: &sync.Pool{},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to upgrade connection", zap.Error(err))
		return
	}

	client := newClient(conn, l.hub)
	go client.run()
}

// validateOrigin checks if the request origin is in the allowed list.
func validateOrigin(r *http.Request, allowedOrigins []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Allow non-browser clients (e.g., for testing)
		return nil
	}
	if len(allowedOrigins) == 0 {
		return nil
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		logging.Warn(r.Context(), "invalid origin URL", zap.String("origin", origin), zap.Error(err))
		return fmt.Errorf("invalid origin URL: %w", err)
	}

	for _, allowed := range allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		// Check if the scheme and host match
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return nil
		}
	}

	logging.Warn(r.Context(), "origin not in allowed list",
		zap.String("origin", origin), zap.Strings("allowedOrigins", allowedOrigins))
	return fmt.Errorf("origin not allowed: %s", origin)
}
