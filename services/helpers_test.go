package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ecoQuestAPI/internal/catalog"
	"ecoQuestAPI/internal/footprint"
	"ecoQuestAPI/internal/store/memory"
	"ecoQuestAPI/internal/types/challenge"
	"ecoQuestAPI/internal/types/ecolog"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *fakeNotifier) ChallengeCompleted(uid string, c *challenge.UserChallenge) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, uid+"/"+c.ID)
}

func (n *fakeNotifier) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

type testEnv struct {
	store      *memory.Store
	users      *UserService
	logs       *EcoLogService
	challenges *ChallengeService
	board      *LeaderboardService
	notifier   *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memory.New()
	clock := func() time.Time { return testNow }

	board := NewLeaderboardService(st, nil)
	notifier := &fakeNotifier{}
	challenges := NewChallengeService(st, catalog.Default(), notifier, board)
	challenges.now = clock
	logs := NewEcoLogService(st, challenges, board)
	logs.now = clock
	users := NewUserService(st)
	users.now = clock

	return &testEnv{
		store:      st,
		users:      users,
		logs:       logs,
		challenges: challenges,
		board:      board,
		notifier:   notifier,
	}
}

func floatPtr(v float64) *float64 { return &v }

// walkDay scores 1.5 kg and earns 126 points.
func walkDay(date string) *ecolog.CreateLogRequest {
	return &ecolog.CreateLogRequest{
		Date:      date,
		Transport: ecolog.Transport{Type: footprint.Walk, DistanceKm: 1},
		Food:      footprint.Vegan,
	}
}

func bikeDay(date string) *ecolog.CreateLogRequest {
	return &ecolog.CreateLogRequest{
		Date:      date,
		Transport: ecolog.Transport{Type: footprint.Bike, DistanceKm: 5},
		Food:      footprint.LowMeat,
	}
}

func requirePoints(t *testing.T, req *ecolog.CreateLogRequest) int {
	t.Helper()
	score, err := footprint.Score(req.Inputs())
	require.NoError(t, err)
	return footprint.Points(score)
}
