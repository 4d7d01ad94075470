package handlers

import (
	"fmt"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/notify"
)

type NotificationHandler struct {
	hub    *notify.Hub
	logger *zap.Logger
}

func NewNotificationHandler(hub *notify.Hub, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		hub:    hub,
		logger: logger,
	}
}

// Serve pumps the user's notification channel into the websocket
// connection. Every open connection of the same user receives the same
// broadcasts.
func (h *NotificationHandler) Serve() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		userID, ok := c.Locals("userID").(int64)
		if !ok {
			_ = c.Close()
			return
		}

		sub := h.hub.Subscribe(userID)
		defer h.hub.Unsubscribe(sub)
		h.logger.Info("Notification client connected", zap.Int64("user_id", userID))

		done := make(chan struct{})
		go func() {
			defer close(done)
			// Clients never send payloads; the read loop only notices
			// disconnects.
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					h.logger.Debug("Notification write failed",
						zap.Int64("user_id", userID),
						zap.Error(err),
					)
					return
				}
			}
		}
	})
}

func getUserID(c *fiber.Ctx) (int64, error) {
	userID, ok := c.Locals("userID").(int64)
	if !ok {
		return 0, fmt.Errorf("no user in request context")
	}
	return userID, nil
}
