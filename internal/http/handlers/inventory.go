package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shelfspace/inventory-be/internal/audit"
	"github.com/shelfspace/inventory-be/internal/http/respond"
	"github.com/shelfspace/inventory-be/internal/middleware"
	"github.com/shelfspace/inventory-be/internal/models"
	"github.com/shelfspace/inventory-be/internal/models/dto"
	"github.com/shelfspace/inventory-be/internal/storage"
	"github.com/shopspring/decimal"
)

// InventoryHandler owns the inventory CRUD endpoints. Role gating lives on
// the router; handlers only need the actor for attribution.
type InventoryHandler struct {
	items storage.InventoryStore
	audit *audit.Recorder
}

// NewInventoryHandler constructs the handler.
func NewInventoryHandler(items storage.InventoryStore, recorder *audit.Recorder) *InventoryHandler {
	return &InventoryHandler{items: items, audit: recorder}
}

func (h *InventoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 10)
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	items, total, err := h.items.ListItems(r.Context(), page, perPage, search)
	if err != nil {
		log.Printf("list inventory error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to list inventory")
		return
	}
	if items == nil {
		items = []models.Item{}
	}
	respond.JSON(w, http.StatusOK, dto.ItemListResponse{
		Data:    items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
	})
}

func (h *InventoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}
	item, err := h.items.FindItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "item not found")
			return
		}
		log.Printf("get inventory error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch item")
		return
	}
	respond.JSON(w, http.StatusOK, item)
}

func (h *InventoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var req dto.CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := validateItemFields(req.Name, req.Quantity, req.Price, true); err != nil {
		respond.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	item, err := h.items.CreateItem(r.Context(), models.Item{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Quantity:    *req.Quantity,
		Price:       *req.Price,
		CreatedBy:   user.ID,
	})
	if err != nil {
		log.Printf("create inventory error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	h.audit.Record(r.Context(), user.ID, "Item created",
		fmt.Sprintf("Created item: %s (ID: %d)", item.Name, item.ID))
	respond.JSON(w, http.StatusCreated, item)
}

func (h *InventoryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req dto.UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	item, err := h.items.FindItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "item not found")
			return
		}
		log.Printf("update inventory error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch item")
		return
	}

	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}
	if req.Price != nil {
		item.Price = *req.Price
	}
	if err := validateItemFields(item.Name, &item.Quantity, &item.Price, false); err != nil {
		respond.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	updated, err := h.items.UpdateItem(r.Context(), item)
	if err != nil {
		log.Printf("update inventory error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	h.audit.Record(r.Context(), user.ID, "Item updated",
		fmt.Sprintf("Updated item: %s (ID: %d)", updated.Name, updated.ID))
	respond.JSON(w, http.StatusOK, updated)
}

func (h *InventoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}
	item, err := h.items.FindItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "item not found")
			return
		}
		log.Printf("delete inventory error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch item")
		return
	}

	if err := h.items.DeleteItem(r.Context(), id); err != nil {
		log.Printf("delete inventory error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	h.audit.Record(r.Context(), user.ID, "Item deleted",
		fmt.Sprintf("Deleted item: %s (ID: %d)", item.Name, item.ID))
	respond.Message(w, http.StatusOK, "Item deleted successfully")
}

func validateItemFields(name string, quantity *int, price *decimal.Decimal, required bool) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	if quantity == nil || price == nil {
		if required {
			return errors.New("quantity and price are required")
		}
		return nil
	}
	if *quantity < 0 {
		return errors.New("quantity must not be negative")
	}
	if price.IsNegative() {
		return errors.New("price must not be negative")
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
