package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	cartsvc "github.com/creatorhub/backend/internal/services/cart"
	"github.com/creatorhub/backend/internal/transport/http/dto"
	httperrors "github.com/creatorhub/backend/internal/transport/http/errors"
	"github.com/creatorhub/backend/internal/validate"
)

type CartHandler struct {
	service   *cartsvc.Service
	validator *validate.Validator
}

func NewCartHandler(service *cartsvc.Service, validator *validate.Validator) *CartHandler {
	return &CartHandler{service: service, validator: validator}
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "CART_SERVICE_UNAVAILABLE", "cart service is unavailable")
		return
	}

	items, err := h.service.Get(r.Context(), identity.BuyerID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, cartResponse(items))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "CART_SERVICE_UNAVAILABLE", "cart service is unavailable")
		return
	}

	var req dto.CartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	if !validateStruct(w, h.validator, req) {
		return
	}

	items, err := h.service.Add(r.Context(), identity.BuyerID, cartsvc.Item{
		ID:        req.TemplateID,
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
		ImageKey:  req.ImageKey,
	})
	if err != nil {
		handleCartError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, cartResponse(items))
}

func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "CART_SERVICE_UNAVAILABLE", "cart service is unavailable")
		return
	}

	itemID := chi.URLParam(r, "itemID")
	var req dto.CartQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	items, err := h.service.SetQuantity(r.Context(), identity.BuyerID, itemID, req.Quantity)
	if err != nil {
		handleCartError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, cartResponse(items))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "CART_SERVICE_UNAVAILABLE", "cart service is unavailable")
		return
	}

	items, err := h.service.Remove(r.Context(), identity.BuyerID, chi.URLParam(r, "itemID"))
	if err != nil {
		handleCartError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, cartResponse(items))
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "CART_SERVICE_UNAVAILABLE", "cart service is unavailable")
		return
	}

	if err := h.service.Clear(r.Context(), identity.BuyerID); err != nil {
		handleCartError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, cartResponse(nil))
}

func handleCartError(w http.ResponseWriter, err error) {
	if errors.Is(err, cartsvc.ErrValidation) {
		writeBadRequest(w, "VALIDATION_ERROR", err.Error())
		return
	}
	writeInternal(w, "INTERNAL_ERROR", "internal server error")
}

func cartResponse(items []cartsvc.Item) dto.CartResponse {
	out := dto.CartResponse{Items: make([]dto.CartItemResponse, 0, len(items))}
	for _, item := range items {
		lineTotal := item.UnitPrice * int64(item.Quantity)
		out.Items = append(out.Items, dto.CartItemResponse{
			TemplateID: item.ID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			ImageKey:   item.ImageKey,
			LineTotal:  lineTotal,
		})
		out.Subtotal += lineTotal
	}
	return out
}
