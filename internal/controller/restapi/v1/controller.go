package v1

import (
	"github.com/cloudcart/invoice-service/internal/usecase"
	"github.com/cloudcart/invoice-service/pkg/logger"
)

type V1 struct {
	invoice usecase.InvoiceUseCase
	logger  logger.Interface
}
