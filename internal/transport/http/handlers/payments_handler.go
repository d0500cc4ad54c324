package handlers

import (
	"errors"
	"net/http"

	ratesvc "github.com/creatorhub/backend/internal/services/rate"
	reconcilesvc "github.com/creatorhub/backend/internal/services/reconcile"
	"github.com/creatorhub/backend/internal/transport/http/dto"
	httperrors "github.com/creatorhub/backend/internal/transport/http/errors"
	"github.com/creatorhub/backend/internal/validate"
)

type PaymentsHandler struct {
	reconcile *reconcilesvc.Service
	limiter   *ratesvc.Limiter
	validator *validate.Validator
}

func NewPaymentsHandler(reconcile *reconcilesvc.Service, limiter *ratesvc.Limiter, validator *validate.Validator) *PaymentsHandler {
	return &PaymentsHandler{reconcile: reconcile, limiter: limiter, validator: validator}
}

func (h *PaymentsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.reconcile == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}
	if !allowAction(w, r.Context(), h.limiter, "verify", identity.BuyerID) {
		return
	}

	var req dto.VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	if !validateStruct(w, h.validator, req) {
		return
	}

	res, err := h.reconcile.Verify(r.Context(), identity, req.Reference)
	if err != nil {
		handleVerifyError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.VerifyResponse{
		PurchaseID:         res.PurchaseID,
		Reference:          res.Reference,
		Status:             res.Status,
		TemplateID:         res.TemplateID,
		TemplateName:       res.TemplateName,
		Amount:             res.Amount,
		Currency:           res.Currency,
		DownloadToken:      res.DownloadToken,
		TokenExpiresAt:     res.TokenExpiresAt,
		RemainingDownloads: res.RemainingDownloads,
		AlreadyCompleted:   res.AlreadyCompleted,
	})
}

func handleVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reconcilesvc.ErrAuthenticationRequired):
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
	case errors.Is(err, reconcilesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, reconcilesvc.ErrNotFound):
		writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
	case errors.Is(err, reconcilesvc.ErrVerificationFailed):
		writeConflict(w, "VERIFICATION_FAILED", "the gateway did not confirm this payment")
	case errors.Is(err, reconcilesvc.ErrGateway):
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
			Code:    "GATEWAY_ERROR",
			Message: "the payment gateway is unavailable",
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
