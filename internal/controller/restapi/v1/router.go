package v1

import (
	"github.com/cloudcart/invoice-service/internal/usecase"
	"github.com/cloudcart/invoice-service/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func NewInvoiceRoutes(apiV1Group fiber.Router, invoice usecase.InvoiceUseCase, l logger.Interface) {
	r := &V1{invoice: invoice, logger: l}

	{
		apiV1Group.Get("/invoice/:id", r.getInvoice)
		apiV1Group.Get("/invoice/:id/document", r.getInvoiceDocument)
		apiV1Group.Get("/order/:order_id/invoice", r.getInvoiceByOrder)
	}
}
