package api

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/api/handlers"
	"github.com/squirll/receiptd/pkg/auth"
	"github.com/squirll/receiptd/pkg/middleware"
)

func SetupRouter(
	receiptHandler *handlers.ReceiptHandler,
	emailHandler *handlers.EmailHandler,
	usageHandler *handlers.UsageHandler,
	notificationHandler *handlers.NotificationHandler,
	jwtManager *auth.JWTManager,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024, // receipt photos and raw MIME payloads
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Webhook routes (public: the email gateway authenticates out of band)
	webhooks := app.Group("/webhooks")
	webhooks.Post("/inbound-email", emailHandler.InboundEmail)

	// Protected API routes
	protected := app.Group("/api/v1", middleware.AuthMiddleware(jwtManager, appLogger))

	receipts := protected.Group("/receipts")
	receipts.Post("/upload", receiptHandler.UploadReceipt)
	receipts.Get("", receiptHandler.ListReceipts)
	receipts.Get("/:id", receiptHandler.GetReceipt)
	receipts.Get("/:id/images", receiptHandler.GetReceiptImages)
	receipts.Post("/:id/tags", receiptHandler.AddTag)
	receipts.Delete("/:id/tags/:tagID", receiptHandler.RemoveTag)

	emails := protected.Group("/emails")
	emails.Get("", emailHandler.ListEmails)

	protected.Get("/usage", usageHandler.GetUsage)

	// Notification websocket, one logical channel per user
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/notifications", middleware.AuthMiddleware(jwtManager, appLogger), notificationHandler.Serve())

	return app
}
