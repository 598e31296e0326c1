package checkout

import "errors"

var (
	ErrNotConfigured      = errors.New("checkout not configured")
	ErrNoItems            = errors.New("no items")
	ErrNoPurchasableItems = errors.New("no purchasable items")
)
