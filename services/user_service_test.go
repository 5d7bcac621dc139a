package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoQuestAPI/internal/footprint"
	"ecoQuestAPI/internal/store"
	"ecoQuestAPI/internal/store/memory"
	"ecoQuestAPI/internal/types/user"
)

func TestEnsureProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.users.EnsureProfile(ctx, user.Identity{UID: "u1", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, user.DefaultDisplayName, p.DisplayName)
	assert.Equal(t, "ana@example.com", p.Email)
	assert.Zero(t, p.TotalPoints)
	assert.Equal(t, 1, p.Level)

	_, err = env.logs.SubmitLog(ctx, "u1", walkDay("2024-03-10T08:00:00Z"))
	require.NoError(t, err)

	p, err = env.users.EnsureProfile(ctx, user.Identity{UID: "u1", DisplayName: "Ana", PhotoURL: "https://img/ana.png"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.DisplayName)
	assert.Equal(t, "ana@example.com", p.Email)
	assert.Equal(t, "https://img/ana.png", p.PhotoURL)
	assert.Equal(t, 1, p.TotalLogs)
	assert.Equal(t, 126, p.TotalPoints)
}

func TestEnsureProfileUnchangedSkipsWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := user.Identity{UID: "u1", DisplayName: "Ana"}

	_, err := env.users.EnsureProfile(ctx, id)
	require.NoError(t, err)

	commits, writes := 0, 0
	env.store.BeforeCommit = func(c memory.Commit) error {
		commits++
		if c.Writes() {
			writes++
		}
		return nil
	}
	p, err := env.users.EnsureProfile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.DisplayName)
	assert.Equal(t, 1, commits)
	assert.Zero(t, writes)
	stored, err := env.store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, testNow, stored.UpdatedAt)
}

func TestEnsureProfileRequiresUID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.users.EnsureProfile(context.Background(), user.Identity{})
	var verr *footprint.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGetProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.users.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	for _, d := range []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04", "2024-03-05", "2024-03-06", "2024-03-07"} {
		_, err := env.logs.SubmitLog(ctx, "u1", walkDay(d))
		require.NoError(t, err)
	}
	p, err := env.users.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Level)
	assert.InDelta(t, 40, p.LevelProgress, 1e-9)
	assert.Equal(t, 7, p.Streak)
}
