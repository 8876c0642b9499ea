package dto

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateListingRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

type UpdateListingRequest struct {
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	Quantity     *string `json:"quantity,omitempty"`
	UnitPrice    *string `json:"unit_price,omitempty"`
	Availability *string `json:"availability,omitempty"`
}

type CreateOrderRequest struct {
	ListingID string `json:"listing_id"`
	Quantity  string `json:"quantity"`
}

type DepositRequest struct {
	Amount string `json:"amount"`
}

type ResolveDisputeRequest struct {
	Resolution string `json:"resolution"` // refund_buyer / pay_seller
}
