package restapi

import (
	"github.com/cloudcart/invoice-service/config"
	v1 "github.com/cloudcart/invoice-service/internal/controller/restapi/v1"
	"github.com/cloudcart/invoice-service/internal/usecase"
	"github.com/cloudcart/invoice-service/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// @title Invoice service
// @version 1.0.0
// @host localhost:8080
// @BasePath /v1
func NewRouter(app *fiber.App, cfg *config.Config, invoice usecase.InvoiceUseCase, checks map[string]HealthCheck, l logger.Interface) {
	// Swagger
	if cfg.Swagger.Enabled {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	// Readiness
	h := &healthHandler{checks: checks}
	app.Get("/healthz", h.handle)

	// Routers
	apiV1Group := app.Group("/v1")
	{
		v1.NewInvoiceRoutes(apiV1Group, invoice, l)
	}
}
