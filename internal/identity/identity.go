// Package identity resolves an authenticated user id into profile fields.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkuser "github.com/clerk/clerk-sdk-go/v2/user"

	"ecoQuestAPI/internal/types/user"
)

type Resolver interface {
	Resolve(ctx context.Context, uid string) (user.Identity, error)
}

// ClerkResolver reads the user from the Clerk backend API. clerk.SetKey must
// have been called.
type ClerkResolver struct{}

func (ClerkResolver) Resolve(ctx context.Context, uid string) (user.Identity, error) {
	u, err := clerkuser.Get(ctx, uid)
	if err != nil {
		return user.Identity{}, fmt.Errorf("failed to fetch clerk user %s: %w", uid, err)
	}
	return FromClerkUser(u), nil
}

func FromClerkUser(u *clerk.User) user.Identity {
	id := user.Identity{
		UID:         u.ID,
		DisplayName: DisplayName(deref(u.FirstName), deref(u.LastName), deref(u.Username)),
		PhotoURL:    deref(u.ImageURL),
	}
	primary := deref(u.PrimaryEmailAddressID)
	for _, e := range u.EmailAddresses {
		if e == nil {
			continue
		}
		if e.ID == primary || id.Email == "" {
			id.Email = e.EmailAddress
		}
		if e.ID == primary {
			break
		}
	}
	return id
}

// UIDOnly knows nothing beyond the id. Used when auth is disabled.
type UIDOnly struct{}

func (UIDOnly) Resolve(ctx context.Context, uid string) (user.Identity, error) {
	return user.Identity{UID: uid}, nil
}

// DisplayName prefers the full name, then the username. Empty means the
// profile default applies.
func DisplayName(first, last, username string) string {
	full := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	if full != "" {
		return full
	}
	return strings.TrimSpace(username)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
