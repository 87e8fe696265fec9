package domain

import (
	"context"

	"openshelf/internal/core/license"
)

// StorePort persists verification records
type StorePort interface {
	Put(ctx context.Context, v Verification) error
	Get(ctx context.Context, source, itemID string) (Verification, bool, error)
}

// VerifierPort classifies and records license verifications
type VerifierPort interface {
	Classify(ctx context.Context, in ClassifyInput) license.Result
	Record(ctx context.Context, source, itemID string, res license.Result, verifiedBy string) (Verification, error)
	Get(ctx context.Context, source, itemID string) (Verification, bool, error)

	// IsVerifiedRemixable is the publication gate. Unknown works read as
	// not remixable
	IsVerifiedRemixable(ctx context.Context, source, itemID string) (bool, error)
}
