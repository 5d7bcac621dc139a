package identity

import (
	"context"
	"testing"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestDisplayName(t *testing.T) {
	tests := []struct {
		first, last, username, want string
	}{
		{"Ada", "Lovelace", "ada", "Ada Lovelace"},
		{"Ada", "", "ada", "Ada"},
		{"", "Lovelace", "", "Lovelace"},
		{"", "", "ada", "ada"},
		{" ", "", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DisplayName(tt.first, tt.last, tt.username))
	}
}

func TestFromClerkUser(t *testing.T) {
	u := &clerk.User{
		ID:                    "user_123",
		FirstName:             strPtr("Grace"),
		LastName:              strPtr("Hopper"),
		ImageURL:              strPtr("https://img.example/g.png"),
		PrimaryEmailAddressID: strPtr("em_2"),
		EmailAddresses: []*clerk.EmailAddress{
			{ID: "em_1", EmailAddress: "old@campus.edu"},
			{ID: "em_2", EmailAddress: "grace@campus.edu"},
		},
	}

	id := FromClerkUser(u)
	assert.Equal(t, "user_123", id.UID)
	assert.Equal(t, "Grace Hopper", id.DisplayName)
	assert.Equal(t, "grace@campus.edu", id.Email)
	assert.Equal(t, "https://img.example/g.png", id.PhotoURL)
}

func TestFromClerkUserFallsBackToFirstEmail(t *testing.T) {
	u := &clerk.User{
		ID:             "user_1",
		EmailAddresses: []*clerk.EmailAddress{{ID: "em_1", EmailAddress: "only@campus.edu"}},
	}
	id := FromClerkUser(u)
	assert.Equal(t, "only@campus.edu", id.Email)
	assert.Empty(t, id.DisplayName)
}

func TestUIDOnly(t *testing.T) {
	id, err := UIDOnly{}.Resolve(context.Background(), "dev-user")
	require.NoError(t, err)
	assert.Equal(t, "dev-user", id.UID)
}
