package dto

import "time"

type DownloadRequest struct {
	PurchaseID string `json:"purchase_id" validate:"required,uuid4"`
	Token      string `json:"token,omitempty"`
}

type DownloadResponse struct {
	DownloadURL        string    `json:"download_url"`
	TemplateName       string    `json:"template_name"`
	DownloadCount      int       `json:"download_count"`
	RemainingDownloads int       `json:"remaining_downloads"`
	URLExpiresAt       time.Time `json:"url_expires_at"`
}
