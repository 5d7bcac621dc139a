package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	lbcache "ecoQuestAPI/internal/leaderboard"
	"ecoQuestAPI/internal/store"
	"ecoQuestAPI/internal/types/leaderboard"
	"ecoQuestAPI/internal/types/user"
)

const DefaultLeaderboardSize = 20

type LeaderboardService struct {
	store store.Store
	cache *lbcache.Cache
	size  int
}

// NewLeaderboardService accepts a nil cache.
func NewLeaderboardService(st store.Store, cache *lbcache.Cache) *LeaderboardService {
	return &LeaderboardService{store: st, cache: cache, size: DefaultLeaderboardSize}
}

func (s *LeaderboardService) GetLeaderboard(ctx context.Context, uid string) (*leaderboard.Leaderboard, error) {
	profiles, err := s.top(ctx)
	if err != nil {
		return nil, err
	}

	total, err := s.store.CountProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	lb := &leaderboard.Leaderboard{
		Entries:    Rank(profiles, s.size),
		TotalUsers: total,
	}
	for _, e := range lb.Entries {
		if e.UID == uid {
			lb.UserPosition = e
			break
		}
	}
	return lb, nil
}

func (s *LeaderboardService) top(ctx context.Context) ([]*user.Profile, error) {
	var (
		window   lbcache.Window
		cacheErr error
	)
	if s.cache != nil {
		window, cacheErr = s.cache.Get(ctx, s.size)
		if cacheErr != nil {
			log.Warn().Err(cacheErr).Msg("GetLeaderboard: cache read failed")
		}
		if window.Hit {
			return window.Profiles, nil
		}
	}

	profiles, err := s.store.TopProfiles(ctx, s.size)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	// Set needs a generation read before TopProfiles ran
	if s.cache != nil && (cacheErr == nil || errors.Is(cacheErr, lbcache.ErrCorrupt)) {
		if err := s.cache.Set(ctx, window.Generation, s.size, profiles); err != nil {
			log.Warn().Err(err).Msg("GetLeaderboard: cache write failed")
		}
	}
	return profiles, nil
}

// Invalidate drops the cached window after totals change.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("Invalidate: leaderboard cache")
	}
}

// Rank orders profiles by points descending with uid as the tie breaker and
// numbers them from 1. At most limit entries are returned.
func Rank(profiles []*user.Profile, limit int) []*leaderboard.LeaderboardEntry {
	sorted := make([]*user.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p != nil {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TotalPoints != sorted[j].TotalPoints {
			return sorted[i].TotalPoints > sorted[j].TotalPoints
		}
		return sorted[i].UID < sorted[j].UID
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	entries := make([]*leaderboard.LeaderboardEntry, 0, len(sorted))
	for i, p := range sorted {
		entries = append(entries, &leaderboard.LeaderboardEntry{
			UID:         p.UID,
			DisplayName: p.DisplayName,
			PhotoURL:    p.PhotoURL,
			TotalPoints: p.TotalPoints,
			TotalCarbon: p.TotalCarbon,
			TotalLogs:   p.TotalLogs,
			Streak:      p.Streak,
			Rank:        i + 1,
		})
	}
	return entries
}
