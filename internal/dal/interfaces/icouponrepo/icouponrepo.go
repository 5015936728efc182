package icouponrepo

import (
	"context"

	"github.com/dijistore/storefront/internal/service/models/coupon"
)

// ICouponRepository is an interface for coupon postgres repository.
type ICouponRepository interface {
	// GetByCode looks a coupon up by its case-insensitive code.
	GetByCode(ctx context.Context, code string) (*coupon.Coupon, error)

	// CountUsage returns the number of usage records for a coupon.
	CountUsage(ctx context.Context, couponID int64) (int, error)

	// CountUsageByUser returns the number of usage records one user
	// created for a coupon.
	CountUsageByUser(ctx context.Context, couponID, userID int64) (int, error)

	// RecordUsage locks the coupon row, re-checks the usage limits and
	// inserts exactly one usage record. Returns ErrUsageLimitReached
	// when a concurrent checkout consumed the last allowed use.
	RecordUsage(ctx context.Context, usage coupon.Usage, maxUses, usagePerUser *int) (coupon.Usage, error)
}
