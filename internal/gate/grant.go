package gate

import (
	"context"
	"fmt"
	"time"
)

// GrantRepository persists the single process-wide grant expiry.
type GrantRepository interface {
	GetGrantExpiry(ctx context.Context) (time.Time, bool, error)
	SetGrantExpiry(ctx context.Context, expiresAt time.Time) error
	ClearGrantExpiry(ctx context.Context) error
}

// GrantStore exposes the access grant. While a grant is present and
// unexpired, every navigation is allowed.
type GrantStore struct {
	repo GrantRepository
}

// NewGrantStore creates a grant store backed by repo.
func NewGrantStore(repo GrantRepository) *GrantStore {
	return &GrantStore{repo: repo}
}

// HasActiveGrant reports whether a grant exists and now is before its expiry.
// An expired grant is left in place; callers decide when to clear it.
func (g *GrantStore) HasActiveGrant(ctx context.Context, now time.Time) (bool, error) {
	expiresAt, ok, err := g.repo.GetGrantExpiry(ctx)
	if err != nil {
		return false, fmt.Errorf("read grant: %w", err)
	}
	return ok && now.Before(expiresAt), nil
}

// SetGrant stores a grant lasting d from now and returns its expiry.
func (g *GrantStore) SetGrant(ctx context.Context, d time.Duration, now time.Time) (time.Time, error) {
	expiresAt := now.Add(d)
	if err := g.repo.SetGrantExpiry(ctx, expiresAt); err != nil {
		return time.Time{}, fmt.Errorf("store grant: %w", err)
	}
	return expiresAt, nil
}

// ClearGrant removes any grant.
func (g *GrantStore) ClearGrant(ctx context.Context) error {
	if err := g.repo.ClearGrantExpiry(ctx); err != nil {
		return fmt.Errorf("clear grant: %w", err)
	}
	return nil
}

// ClearIfExpired removes a stored grant whose expiry has passed.
// cleared is true only when a grant was actually removed.
func (g *GrantStore) ClearIfExpired(ctx context.Context, now time.Time) (cleared bool, err error) {
	expiresAt, ok, err := g.repo.GetGrantExpiry(ctx)
	if err != nil {
		return false, fmt.Errorf("read grant: %w", err)
	}
	if !ok || now.Before(expiresAt) {
		return false, nil
	}
	if err := g.ClearGrant(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Remaining returns the time left on the grant, or 0 when there is none.
func (g *GrantStore) Remaining(ctx context.Context, now time.Time) (time.Duration, error) {
	expiresAt, ok, err := g.repo.GetGrantExpiry(ctx)
	if err != nil {
		return 0, fmt.Errorf("read grant: %w", err)
	}
	if !ok || !now.Before(expiresAt) {
		return 0, nil
	}
	return expiresAt.Sub(now), nil
}
