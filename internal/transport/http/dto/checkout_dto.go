package dto

type CheckoutRequest struct {
	TemplateID string `json:"template_id,omitempty" validate:"omitempty,uuid4"`
	Quantity   int    `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	SuccessURL string `json:"success_url,omitempty" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url,omitempty" validate:"omitempty,url"`
}

type CheckoutResponse struct {
	PurchaseID    string `json:"purchase_id"`
	Reference     string `json:"reference"`
	CheckoutURL   string `json:"checkout_url,omitempty"`
	Amount        int64  `json:"amount"`
	PlatformFee   int64  `json:"platform_fee"`
	SellerAmount  int64  `json:"seller_amount"`
	Currency      string `json:"currency"`
	Free          bool   `json:"free"`
	DownloadToken string `json:"download_token,omitempty"`
}
