// Package identity keeps the stored user record in step with the principal
// reported by the identity provider.
package identity

import (
	"context"
	"log/slog"

	"ideaboard/internal/models"
)

// UserStore persists user identity fields.
type UserStore interface {
	UpsertUser(ctx context.Context, p models.Principal) error
}

// Resolver creates or refreshes the user record on every sign-in.
type Resolver struct {
	users  UserStore
	logger *slog.Logger
}

// NewResolver returns a resolver writing through users.
func NewResolver(users UserStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{users: users, logger: logger}
}

// Resolve upserts the user record for p. A failure is logged and reported as
// false, but never stops the sign-in that triggered it.
func (r *Resolver) Resolve(ctx context.Context, p models.Principal) bool {
	if err := r.users.UpsertUser(ctx, p); err != nil {
		r.logger.Error("identity sync failed", "uid", p.UID, "error", err)
		return false
	}
	r.logger.Debug("identity synced", "uid", p.UID)
	return true
}
