package cart

// AddLineRequest payload for adding an item to the cart.
// swagger:model AddLineRequest
type AddLineRequest struct {
	ItemID   string `json:"item_id"  example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity int    `json:"quantity" example:"2"`
}

// UpdateLineRequest payload for setting a line's quantity.
// swagger:model UpdateLineRequest
type UpdateLineRequest struct {
	Quantity int `json:"quantity" example:"3"`
}
