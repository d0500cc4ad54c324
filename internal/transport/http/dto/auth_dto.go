package dto

type TokenRequest struct {
	Email   string `json:"email" validate:"required,email"`
	BuyerID string `json:"buyer_id" validate:"omitempty,uuid4"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresInSec int64  `json:"expires_in_sec"`
	BuyerID      string `json:"buyer_id"`
	Email        string `json:"email"`
}
