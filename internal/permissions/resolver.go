package permissions

import (
	"context"
	"fmt"
	"log/slog"
)

const roleAdmin = "admin"

// GrantSource exposes the stored grants the resolver evaluates. Levels are
// returned as their stored string form; unknown values are skipped with a
// warning rather than failing authorization outright.
type GrantSource interface {
	// DirectGrantLevel returns the direct grant for (user, device), if any.
	DirectGrantLevel(ctx context.Context, userID, deviceID int64) (string, bool, error)
	// GroupGrantLevels returns the grant levels of every group the user
	// belongs to that has a grant on the device.
	GroupGrantLevels(ctx context.Context, userID, deviceID int64) ([]string, error)
}

type Resolver struct {
	grants GrantSource
}

func NewResolver(grants GrantSource) *Resolver {
	return &Resolver{grants: grants}
}

// Authorize reports whether the user clears the required level on the device.
// Admins bypass grant lookups entirely. A direct grant and the user's group
// grants are each independently sufficient: a direct grant below the bar does
// not short-circuit group evaluation.
func (r *Resolver) Authorize(ctx context.Context, userID int64, role string, deviceID int64, required Level) (bool, error) {
	if role == roleAdmin {
		return true, nil
	}

	direct, ok, err := r.grants.DirectGrantLevel(ctx, userID, deviceID)
	if err != nil {
		return false, fmt.Errorf("lookup direct grant: %w", err)
	}
	if ok {
		level, err := ParseLevel(direct)
		if err != nil {
			slog.Warn("Skipping malformed direct grant", "user_id", userID, "device_id", deviceID, "level", direct)
		} else if level.Satisfies(required) {
			return true, nil
		}
	}

	groupLevels, err := r.grants.GroupGrantLevels(ctx, userID, deviceID)
	if err != nil {
		return false, fmt.Errorf("lookup group grants: %w", err)
	}
	for _, raw := range groupLevels {
		level, err := ParseLevel(raw)
		if err != nil {
			slog.Warn("Skipping malformed group grant", "user_id", userID, "device_id", deviceID, "level", raw)
			continue
		}
		if level.Satisfies(required) {
			return true, nil
		}
	}

	return false, nil
}
