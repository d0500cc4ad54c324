package dto

import "time"

type PurchaseResponse struct {
	ID                 string     `json:"id"`
	Reference          string     `json:"reference"`
	Status             string     `json:"status"`
	TemplateID         string     `json:"template_id"`
	TemplateName       string     `json:"template_name"`
	Amount             int64      `json:"amount"`
	Currency           string     `json:"currency"`
	DownloadCount      int        `json:"download_count"`
	RemainingDownloads int        `json:"remaining_downloads"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

type PurchaseListResponse struct {
	Purchases []PurchaseResponse `json:"purchases"`
}
