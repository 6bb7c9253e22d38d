package entitlement

import (
	"context"
	"time"
)

// Package is a purchasable offering as listed by the purchase provider.
type Package struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Price       string `json:"price"`
	Entitlement string `json:"entitlement"`
}

// Info is the entitlement state of the current customer.
type Info struct {
	IsPro     bool       `json:"isPro"`
	Active    []string   `json:"active,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Collaborator is the purchase provider. Updates returns a channel of state
// changes and a cancel func that must be called to release the listener;
// the channel is closed after cancel.
type Collaborator interface {
	IsPro(ctx context.Context) (bool, error)
	Packages(ctx context.Context) ([]Package, error)
	Purchase(ctx context.Context, pkg Package) (Info, error)
	Updates() (<-chan Info, func())
}
