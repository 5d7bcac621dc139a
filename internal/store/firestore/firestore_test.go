package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ecoQuestAPI/internal/footprint"
	"ecoQuestAPI/internal/store"
	"ecoQuestAPI/internal/types/challenge"
	"ecoQuestAPI/internal/types/ecolog"
	"ecoQuestAPI/internal/types/user"
)

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(status.Error(codes.Aborted, "contention")), store.ErrTxConflict)
	assert.ErrorIs(t, mapErr(status.Error(codes.Unavailable, "down")), store.ErrUnavailable)
	assert.ErrorIs(t, mapErr(status.Error(codes.DeadlineExceeded, "slow")), store.ErrUnavailable)

	plain := errors.New("plain")
	assert.Equal(t, plain, mapErr(plain))
}

func TestChallengeDocKeepsFoodTypes(t *testing.T) {
	c := challenge.NewUserChallenge(challenge.Definition{
		ID: "plant-powered", Title: "Plant", Reward: 250, Target: 7,
		Metric:    challenge.MetricFood,
		FoodTypes: []footprint.FoodChoice{footprint.Vegan, footprint.Vegetarian},
	}, time.Now())

	got := toChallengeDoc(c).challenge(c.ID)
	assert.Equal(t, c.FoodTypes, got.FoodTypes)
	assert.Equal(t, challenge.StatusActive, got.Status)
	assert.Nil(t, got.CompletedAt)
}

// The tests below talk to the Firestore emulator.
func newEmulatorStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "demo-ecoquest")
	require.NoError(t, err)
	s := New(client, 5)
	t.Cleanup(s.Close)
	return s
}

func uniqueUID(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func TestEmulatorTransaction(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	uid := uniqueUID(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, err := s.GetProfile(ctx, uid)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.RunInTx(ctx, uid, func(ctx context.Context, tx store.Tx) error {
		_, ok, err := tx.Profile(ctx)
		if err != nil {
			return err
		}
		assert.False(t, ok)
		p := user.NewProfile(user.Identity{UID: uid}, now)
		p.TotalLogs = 1
		if err := tx.PutProfile(ctx, p); err != nil {
			return err
		}
		return tx.InsertLog(ctx, &ecolog.Log{
			ID:          "l1",
			Date:        now.Format(time.RFC3339),
			Transport:   ecolog.Transport{Type: footprint.Train, DistanceKm: 12},
			Food:        footprint.LowMeat,
			CarbonScore: 8.1,
			DayKey:      footprint.DayKeyOf(now),
			CreatedAt:   now,
		})
	})
	require.NoError(t, err)

	p, err := s.GetProfile(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalLogs)
	assert.Equal(t, user.DefaultDisplayName, p.DisplayName)

	logs, err := s.ListLogs(ctx, uid, 5)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, footprint.Train, logs[0].Transport.Type)

	err = s.RunInTx(ctx, uid, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertLog(ctx, &ecolog.Log{ID: "l1", CreatedAt: now})
	})
	assert.Error(t, err)
}

func TestEmulatorReadAfterWrite(t *testing.T) {
	s := newEmulatorStore(t)
	uid := uniqueUID(t)
	err := s.RunInTx(context.Background(), uid, func(ctx context.Context, tx store.Tx) error {
		if err := tx.PutProfile(ctx, user.NewProfile(user.Identity{UID: uid}, time.Now())); err != nil {
			return err
		}
		_, _, err := tx.Challenge(ctx, "log-5")
		return err
	})
	assert.ErrorIs(t, err, store.ErrReadAfterWrite)
}
