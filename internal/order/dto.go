package order

// CheckoutRequest payload for creating an order from the cart.
// swagger:model CheckoutRequest
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" example:"Av. Juarez 100, CDMX"`
	BillingAddress  string `json:"billing_address"  example:"Av. Juarez 100, CDMX"`
	Notes           string `json:"notes"            example:"leave with concierge"`
}

// UpdateStatusRequest payload for a lifecycle transition.
// swagger:model UpdateStatusRequest
type UpdateStatusRequest struct {
	Status string `json:"status" example:"Processing"`
}
