package entitlements

import "context"

// Store persists entitlement records. Every read rolls the allowance period forward.
type Store interface {
	Get(ctx context.Context, userID string) (Record, error)
	ConsumeFree(ctx context.Context, userID string) (Record, error)
	ConsumeAllowance(ctx context.Context, userID string) (Record, error)
	Reset(ctx context.Context, userID string) (Record, error)
	// ReleaseFree and ReleaseAllowance give back a unit whose request never started.
	ReleaseFree(ctx context.Context, userID string) (Record, error)
	ReleaseAllowance(ctx context.Context, userID string) (Record, error)
}
