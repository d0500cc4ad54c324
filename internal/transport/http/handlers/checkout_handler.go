package handlers

import (
	"context"
	"errors"
	"net/http"

	cartsvc "github.com/creatorhub/backend/internal/services/cart"
	checkoutsvc "github.com/creatorhub/backend/internal/services/checkout"
	ratesvc "github.com/creatorhub/backend/internal/services/rate"
	"github.com/creatorhub/backend/internal/transport/http/dto"
	httperrors "github.com/creatorhub/backend/internal/transport/http/errors"
	"github.com/creatorhub/backend/internal/validate"
)

type CheckoutHandler struct {
	checkout  *checkoutsvc.Service
	cart      *cartsvc.Service
	limiter   *ratesvc.Limiter
	validator *validate.Validator
}

func NewCheckoutHandler(checkout *checkoutsvc.Service, cart *cartsvc.Service, limiter *ratesvc.Limiter, validator *validate.Validator) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:  checkout,
		cart:      cart,
		limiter:   limiter,
		validator: validator,
	}
}

func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.checkout == nil {
		writeInternal(w, "CHECKOUT_SERVICE_UNAVAILABLE", "checkout service is unavailable")
		return
	}
	if !allowAction(w, r.Context(), h.limiter, "checkout", identity.BuyerID) {
		return
	}

	var req dto.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	if !validateStruct(w, h.validator, req) {
		return
	}

	in := checkoutsvc.StartInput{
		TemplateID: req.TemplateID,
		Quantity:   req.Quantity,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}

	var (
		res checkoutsvc.StartResult
		err error
	)
	if req.TemplateID != "" {
		res, err = h.checkout.Start(r.Context(), identity, in)
	} else {
		if h.cart == nil {
			writeInternal(w, "CART_SERVICE_UNAVAILABLE", "cart service is unavailable")
			return
		}
		var items []cartsvc.Item
		items, err = h.cart.Get(r.Context(), identity.BuyerID)
		if err == nil {
			res, err = h.checkout.StartFromCart(r.Context(), identity, items, in)
		}
	}
	if err != nil {
		handleCheckoutError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CheckoutResponse{
		PurchaseID:    res.PurchaseID,
		Reference:     res.Reference,
		CheckoutURL:   res.CheckoutURL,
		Amount:        res.Amount,
		PlatformFee:   res.PlatformFee,
		SellerAmount:  res.SellerAmount,
		Currency:      res.Currency,
		Free:          res.Free,
		DownloadToken: res.DownloadToken,
	})
}

func handleCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkoutsvc.ErrAuthenticationRequired):
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
	case errors.Is(err, checkoutsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, checkoutsvc.ErrEmptyCart):
		writeBadRequest(w, "EMPTY_CART", "the cart has no items to check out")
	case errors.Is(err, checkoutsvc.ErrTemplateNotFound):
		writeNotFound(w, "TEMPLATE_NOT_FOUND", "template not found")
	case errors.Is(err, checkoutsvc.ErrGateway):
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
			Code:    "GATEWAY_ERROR",
			Message: "the payment gateway rejected the checkout",
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

// allowAction runs the limiter when one is configured. Limiter outages fail
// open so checkout keeps working while redis is down.
func allowAction(w http.ResponseWriter, ctx context.Context, limiter *ratesvc.Limiter, action, subject string) bool {
	if limiter == nil {
		return true
	}
	retryAfter, allowed, err := limiter.Allow(ctx, action, subject)
	if err != nil {
		return true
	}
	if !allowed {
		writeRateLimited(w, retryAfter)
		return false
	}
	return true
}
