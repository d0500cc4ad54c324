package handlers

import (
	"context"
	"net/http"
	"strconv"

	pgrepo "github.com/creatorhub/backend/internal/repo/postgres"
	"github.com/creatorhub/backend/internal/transport/http/dto"
	httperrors "github.com/creatorhub/backend/internal/transport/http/errors"
)

type PurchaseLister interface {
	ListByBuyer(ctx context.Context, buyerID string, limit int) ([]pgrepo.PurchaseRecord, error)
}

type PurchasesHandler struct {
	purchases PurchaseLister
}

func NewPurchasesHandler(purchases PurchaseLister) *PurchasesHandler {
	return &PurchasesHandler{purchases: purchases}
}

func (h *PurchasesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASES_UNAVAILABLE", "purchase history is unavailable")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.purchases.ListByBuyer(r.Context(), identity.BuyerID, limit)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	out := dto.PurchaseListResponse{Purchases: make([]dto.PurchaseResponse, 0, len(records))}
	for _, rec := range records {
		out.Purchases = append(out.Purchases, dto.PurchaseResponse{
			ID:                 rec.ID,
			Reference:          rec.Reference,
			Status:             rec.Status,
			TemplateID:         rec.TemplateID,
			TemplateName:       rec.TemplateName,
			Amount:             rec.Amount,
			Currency:           rec.Currency,
			DownloadCount:      rec.DownloadCount,
			RemainingDownloads: rec.RemainingDownloads(),
			PaidAt:             rec.PaidAt,
			CreatedAt:          rec.CreatedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, out)
}
