package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	authsvc "github.com/creatorhub/backend/internal/services/auth"
	"github.com/creatorhub/backend/internal/transport/http/dto"
	httperrors "github.com/creatorhub/backend/internal/transport/http/errors"
	"github.com/creatorhub/backend/internal/validate"
)

type AuthHandler struct {
	service   *authsvc.Service
	validator *validate.Validator
}

func NewAuthHandler(service *authsvc.Service, validator *validate.Validator) *AuthHandler {
	return &AuthHandler{service: service, validator: validator}
}

func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.TokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	if !validateStruct(w, h.validator, req) {
		return
	}

	res, err := h.service.IssueToken(r.Context(), req.BuyerID, req.Email)
	if err != nil {
		if errors.Is(err, authsvc.ErrInvalidInput) {
			writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TokenResponse{
		AccessToken:  res.AccessToken,
		ExpiresInSec: maxInt64(0, int64(time.Until(res.AccessExpires).Seconds())),
		BuyerID:      res.Identity.BuyerID,
		Email:        res.Identity.Email,
	})
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

// validateStruct writes the field-level response itself and reports whether
// the request may proceed.
func validateStruct(w http.ResponseWriter, v *validate.Validator, target any) bool {
	if v == nil {
		return true
	}
	err := v.Struct(target)
	if err == nil {
		return true
	}

	var fieldErrs validate.FieldErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]httperrors.FieldError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, httperrors.FieldError{Field: fe.Field, Message: fe.Message})
		}
		httperrors.Write(w, http.StatusBadRequest, httperrors.ValidationError{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  fields,
		})
		return false
	}

	writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
	return false
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (authsvc.Identity, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok || !identity.Valid() {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return authsvc.Identity{}, false
	}
	return identity, true
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: code, Message: message})
}

func writeConflict(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusConflict, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

func writeRateLimited(w http.ResponseWriter, retryAfterSec int64) {
	httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
		Code:          "RATE_LIMITED",
		Message:       "too many requests",
		RetryAfterSec: retryAfterSec,
	})
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
