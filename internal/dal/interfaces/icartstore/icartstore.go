package icartstore

import (
	"context"

	"github.com/dijistore/storefront/internal/service/models/cart"
)

// ICartStore keeps the per-session cart state. Implementations are
// ephemeral: a lost cart is acceptable, no order exists yet.
type ICartStore interface {
	Get(ctx context.Context, sessionID string) (*cart.State, error)
	Set(ctx context.Context, state *cart.State) error
	Delete(ctx context.Context, sessionID string) error
}
