package dto

import "time"

type VerifyRequest struct {
	Reference string `json:"reference" validate:"required"`
}

type VerifyResponse struct {
	PurchaseID         string    `json:"purchase_id"`
	Reference          string    `json:"reference"`
	Status             string    `json:"status"`
	TemplateID         string    `json:"template_id"`
	TemplateName       string    `json:"template_name"`
	Amount             int64     `json:"amount"`
	Currency           string    `json:"currency"`
	DownloadToken      string    `json:"download_token"`
	TokenExpiresAt     time.Time `json:"token_expires_at"`
	RemainingDownloads int       `json:"remaining_downloads"`
	AlreadyCompleted   bool      `json:"already_completed"`
}
