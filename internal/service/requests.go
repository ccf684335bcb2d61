package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/GTDGit/catalog_api/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateProductRequest represents the request to create a new product. The
// SKU is derived from prefix, category and code at version 1.
type CreateProductRequest struct {
	Prefix            string `json:"prefix" validate:"required,len=3,alphanum"`
	Category          string `json:"category" validate:"required,len=4,alphanum"`
	Code              string `json:"code" validate:"required,len=3,alphanum"`
	Name              string `json:"name" validate:"required,max=255"`
	Description       string `json:"description"`
	BasePrice         int64  `json:"basePrice" validate:"gte=0"`
	ComponentPrice    *int64 `json:"componentPrice" validate:"omitempty,gte=0"`
	CanBeComponent    bool   `json:"canBeComponent"`
	CanHaveComponents bool   `json:"canHaveComponents"`
	StockQuantity     *int   `json:"stockQuantity" validate:"omitempty,gte=0"`
}

// UpdateProductRequest is a partial update. ExpectedVersion, when set, must
// match the stored version.
type UpdateProductRequest struct {
	models.ProductChanges
	ExpectedVersion *int `json:"expectedVersion" validate:"omitempty,gte=1"`
}

// AddComponentRequest attaches ComponentID to a parent product. A zero
// quantity defaults to 1.
type AddComponentRequest struct {
	ComponentID int64 `json:"componentId" validate:"required,gt=0"`
	models.EdgeConfig
}

// CreateOrderRequest is a checkout submission.
type CreateOrderRequest struct {
	Items         []models.OrderItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	CustomerEmail string                    `json:"customerEmail" validate:"required,email"`
	Notes         *string                   `json:"notes" validate:"omitempty,max=1000"`
}

// validateRequest runs struct validation and wraps failures in
// models.ErrInvalidRequest.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", models.ErrInvalidRequest, strings.Join(msgs, "; "))
}
