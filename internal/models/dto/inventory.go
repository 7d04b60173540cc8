package dto

import (
	"github.com/shelfspace/inventory-be/internal/models"
	"github.com/shopspring/decimal"
)

type CreateItemRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Quantity    *int             `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
}

// UpdateItemRequest carries partial updates; nil fields are left untouched.
type UpdateItemRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Quantity    *int             `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
}

type ItemListResponse struct {
	Data    []models.Item `json:"data"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
	Total   int64         `json:"total"`
}
