package handlers

import (
	"errors"
	"net/http"

	downloadsvc "github.com/creatorhub/backend/internal/services/downloads"
	ratesvc "github.com/creatorhub/backend/internal/services/rate"
	"github.com/creatorhub/backend/internal/transport/http/dto"
	httperrors "github.com/creatorhub/backend/internal/transport/http/errors"
	"github.com/creatorhub/backend/internal/validate"
)

type DownloadHandler struct {
	downloads *downloadsvc.Service
	limiter   *ratesvc.Limiter
	validator *validate.Validator
}

func NewDownloadHandler(downloads *downloadsvc.Service, limiter *ratesvc.Limiter, validator *validate.Validator) *DownloadHandler {
	return &DownloadHandler{downloads: downloads, limiter: limiter, validator: validator}
}

func (h *DownloadHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.downloads == nil {
		writeInternal(w, "DOWNLOAD_SERVICE_UNAVAILABLE", "download service is unavailable")
		return
	}
	if !allowAction(w, r.Context(), h.limiter, "download", identity.BuyerID) {
		return
	}

	var req dto.DownloadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	if !validateStruct(w, h.validator, req) {
		return
	}

	res, err := h.downloads.Redeem(r.Context(), identity, downloadsvc.RedeemInput{
		PurchaseID: req.PurchaseID,
		Token:      req.Token,
	})
	if err != nil {
		handleDownloadError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.DownloadResponse{
		DownloadURL:        res.DownloadURL,
		TemplateName:       res.TemplateName,
		DownloadCount:      res.DownloadCount,
		RemainingDownloads: res.RemainingDownloads,
		URLExpiresAt:       res.URLExpiresAt,
	})
}

func handleDownloadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, downloadsvc.ErrAuthenticationRequired):
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
	case errors.Is(err, downloadsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, downloadsvc.ErrNotFound):
		writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
	case errors.Is(err, downloadsvc.ErrNotCompleted):
		writeConflict(w, "PURCHASE_NOT_COMPLETED", "the purchase has not been completed")
	case errors.Is(err, downloadsvc.ErrDownloadLimitExceeded):
		httperrors.Write(w, http.StatusForbidden, httperrors.APIError{
			Code:    "DOWNLOAD_LIMIT_EXCEEDED",
			Message: "the download limit for this purchase has been reached",
		})
	case errors.Is(err, downloadsvc.ErrTokenExpired):
		httperrors.Write(w, http.StatusGone, httperrors.APIError{
			Code:    "TOKEN_EXPIRED",
			Message: "the download token has expired",
		})
	case errors.Is(err, downloadsvc.ErrTokenAlreadyUsed):
		writeConflict(w, "TOKEN_ALREADY_USED", "the download token was already used")
	case errors.Is(err, downloadsvc.ErrStorageUnavailable):
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
			Code:    "STORAGE_UNAVAILABLE",
			Message: "template storage is unavailable",
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
