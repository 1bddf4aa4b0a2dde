package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/cloudcart/invoice-service/internal/controller/restapi/v1/response"
	"github.com/cloudcart/invoice-service/internal/entity"
	"github.com/cloudcart/invoice-service/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// @Summary  	Get invoice
// @Description Returns invoice by its id
// @Tags 		invoices
// @Produce 	json
// @Param 		id path string true "Invoice ID(uuid)"
// @Success 	200 {object} response.Invoice
// @Failure 	400 {object} response.Error "Invalid ID"
// @Failure 	404 {object} response.Error "Invoice not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/invoice/{id} [get]
func (r *V1) getInvoice(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	inv, err := r.invoice.GetInvoiceByID(ctx.UserContext(), id)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "invoice not found")
		}
		r.logger.Error(err, "restapi - v1 - getInvoice")

		return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
	}

	return ctx.Status(http.StatusOK).JSON(invoiceResponse(inv))
}

// @Summary  	Get invoice by order
// @Description Returns the invoice created for an order
// @Tags 		invoices
// @Produce 	json
// @Param 		order_id path string true "Order ID(uuid)"
// @Success 	200 {object} response.Invoice
// @Failure 	400 {object} response.Error "Invalid ID"
// @Failure 	404 {object} response.Error "Invoice not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/order/{order_id}/invoice [get]
func (r *V1) getInvoiceByOrder(ctx *fiber.Ctx) error {
	orderID, err := uuid.Parse(ctx.Params("order_id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid order id")
	}

	inv, err := r.invoice.GetInvoiceByOrderID(ctx.UserContext(), orderID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "invoice not found")
		}
		r.logger.Error(err, "restapi - v1 - getInvoiceByOrder")

		return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
	}

	return ctx.Status(http.StatusOK).JSON(invoiceResponse(inv))
}

// @Summary  	Get invoice document
// @Description Streams the archived rendered invoice document
// @Tags 		invoices
// @Produce 	plain
// @Param 		id path string true "Invoice ID(uuid)"
// @Success 	200 {file} 	binary
// @Failure 	400 {object} response.Error "Invalid ID"
// @Failure 	404 {object} response.Error "Invoice not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/invoice/{id}/document [get]
func (r *V1) getInvoiceDocument(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	body, contentType, err := r.invoice.DownloadDocument(ctx.UserContext(), id)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "invoice not found")
		}
		r.logger.Error(err, "restapi - v1 - getInvoiceDocument")

		return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
	}

	ctx.Set(fiber.HeaderContentType, contentType)

	return ctx.SendStream(body)
}

func invoiceResponse(inv *entity.Invoice) response.Invoice {
	return response.Invoice{
		InvoiceID:   inv.ID.String(),
		OrderID:     inv.OrderID.String(),
		UserID:      inv.UserID.String(),
		Status:      string(inv.Status),
		Content:     inv.Content,
		TotalAmount: inv.TotalAmount,
		IssuedAt:    inv.IssuedAt.Format(time.RFC3339),
	}
}
