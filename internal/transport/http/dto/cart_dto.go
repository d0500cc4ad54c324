package dto

type CartItemRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	UnitPrice  int64  `json:"unit_price" validate:"gte=0"`
	Quantity   int    `json:"quantity" validate:"gte=1"`
	ImageKey   string `json:"image_key,omitempty"`
}

type CartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CartItemResponse struct {
	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	ImageKey   string `json:"image_key,omitempty"`
	LineTotal  int64  `json:"line_total"`
}

type CartResponse struct {
	Items    []CartItemResponse `json:"items"`
	Subtotal int64              `json:"subtotal"`
}
