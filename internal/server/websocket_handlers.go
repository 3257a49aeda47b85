package server

import (
	"log/slog"

	"threadline/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// CommentStreamHandler upgrades listeners of the comment event stream. Every
// listener receives every event; the viewer identity is optional and only
// counts toward per-viewer connection limits.
func (s *Server) CommentStreamHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		viewerID, _ := conn.Locals(middleware.ViewerLocal).(string)

		client, err := s.hub.Register(viewerID, conn)
		if err != nil {
			middleware.Logger.Warn("listener rejected",
				slog.String("viewer_id", viewerID),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
			_ = conn.Close()
			return
		}

		middleware.Logger.Debug("listener connected",
			slog.String("viewer_id", viewerID),
			slog.Int("listeners", s.hub.Count()),
		)

		go client.WritePump()
		client.ReadPump()
	})
}
