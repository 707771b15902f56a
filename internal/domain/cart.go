package domain

type CartLine struct {
	ListingID string `json:"listing_id"`
	Quantity  int    `json:"quantity"`
}

type CartViewLine struct {
	Listing  Listing `json:"listing"`
	Quantity int     `json:"quantity"`
}

// CartView is a cart joined with the live listings it references.
type CartView struct {
	UserID string         `json:"user_id"`
	Items  []CartViewLine `json:"items"`
}
