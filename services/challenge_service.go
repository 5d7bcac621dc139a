package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"ecoQuestAPI/internal/catalog"
	"ecoQuestAPI/internal/footprint"
	"ecoQuestAPI/internal/metrics"
	"ecoQuestAPI/internal/store"
	"ecoQuestAPI/internal/types/challenge"
	"ecoQuestAPI/internal/types/ecolog"
	"ecoQuestAPI/internal/types/user"
)

const progressWorkers = 4

type CompletionNotifier interface {
	ChallengeCompleted(uid string, c *challenge.UserChallenge)
}

type ChallengeService struct {
	store       store.Store
	catalog     *catalog.Catalog
	notifier    CompletionNotifier
	leaderboard *LeaderboardService
	now         func() time.Time
}

// NewChallengeService accepts a nil notifier and a nil leaderboard.
func NewChallengeService(st store.Store, cat *catalog.Catalog, notifier CompletionNotifier, lb *LeaderboardService) *ChallengeService {
	return &ChallengeService{
		store:       st,
		catalog:     cat,
		notifier:    notifier,
		leaderboard: lb,
		now:         time.Now,
	}
}

// Catalog lists every joinable challenge with the caller's joined flag.
func (s *ChallengeService) Catalog(ctx context.Context, uid string) ([]*challenge.CatalogItem, error) {
	joined, err := s.store.ListChallenges(ctx, uid, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list user challenges: %w", err)
	}
	ids := make(map[string]bool, len(joined))
	for _, c := range joined {
		ids[c.ID] = true
	}

	defs := s.catalog.All()
	items := make([]*challenge.CatalogItem, 0, len(defs))
	for _, d := range defs {
		items = append(items, &challenge.CatalogItem{Definition: d, Joined: ids[d.ID]})
	}
	return items, nil
}

func (s *ChallengeService) ListChallenges(ctx context.Context, uid string, status challenge.Status) ([]*challenge.UserChallenge, error) {
	switch status {
	case "", challenge.StatusActive, challenge.StatusCompleted:
	default:
		return nil, &footprint.ValidationError{Field: "status", Reason: "must be active or completed"}
	}
	out, err := s.store.ListChallenges(ctx, uid, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	return out, nil
}

// JoinChallenge snapshots the catalog entry for uid. Joining again returns
// the existing challenge untouched.
func (s *ChallengeService) JoinChallenge(ctx context.Context, uid, challengeID string) (*challenge.UserChallenge, error) {
	def, ok := s.catalog.Get(challengeID)
	if !ok {
		return nil, ErrChallengeNotFound
	}
	now := s.now().UTC()

	var result *challenge.UserChallenge
	err := s.store.RunInTx(ctx, uid, func(ctx context.Context, tx store.Tx) error {
		existing, ok, err := tx.Challenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if ok {
			result = existing
			return nil
		}
		_, hasProfile, err := tx.Profile(ctx)
		if err != nil {
			return err
		}

		if !hasProfile {
			if err := tx.PutProfile(ctx, user.NewProfile(user.Identity{UID: uid}, now)); err != nil {
				return err
			}
		}
		result = challenge.NewUserChallenge(def, now)
		return tx.PutChallenge(ctx, result)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join challenge: %w", err)
	}

	log.Info().Str("uid", uid).Str("challenge_id", challengeID).Msg("JoinChallenge: joined")
	return result, nil
}

// CompleteChallenge is the manual claim path. It credits the reward at most
// once and reports whether this call did the crediting.
func (s *ChallengeService) CompleteChallenge(ctx context.Context, uid, challengeID string) (*challenge.UserChallenge, bool, error) {
	now := s.now().UTC()

	var (
		result   *challenge.UserChallenge
		credited bool
	)
	err := s.store.RunInTx(ctx, uid, func(ctx context.Context, tx store.Tx) error {
		credited = false
		c, ok, err := tx.Challenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrChallengeNotFound
		}
		result = c
		if c.Completed() {
			return nil
		}
		if !c.TargetReached() {
			return ErrChallengeNotReady
		}

		p, ok, err := tx.Profile(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("profile %s: %w", uid, store.ErrNotFound)
		}

		c.MarkCompleted(now)
		p.TotalPoints += c.Reward
		p.UpdatedAt = now
		credited = true
		if err := tx.PutChallenge(ctx, c); err != nil {
			return err
		}
		return tx.PutProfile(ctx, p)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to complete challenge: %w", err)
	}

	if credited {
		s.afterCompletion(ctx, uid, result, "manual")
	}
	return result, credited, nil
}

// OnLogSubmitted advances every active challenge the log counts toward. Each
// challenge is its own transaction; failures are collected and do not stop
// the others. It returns the challenges this log completed.
func (s *ChallengeService) OnLogSubmitted(ctx context.Context, uid string, l *ecolog.Log) ([]*challenge.UserChallenge, error) {
	active, err := s.store.ListChallenges(ctx, uid, challenge.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active challenges: %w", err)
	}

	var (
		mu        sync.Mutex
		completed []*challenge.UserChallenge
		errs      []error
		g         errgroup.Group
	)
	g.SetLimit(progressWorkers)

	for _, c := range active {
		if ProgressDelta(c, l) == 0 {
			continue
		}
		id := c.ID
		g.Go(func() error {
			done, err := s.applyProgress(ctx, uid, id, l)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("challenge %s: %w", id, err))
				return nil
			}
			if done != nil {
				completed = append(completed, done)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, c := range completed {
		s.afterCompletion(ctx, uid, c, "auto")
	}
	return completed, errors.Join(errs...)
}

// applyProgress re-reads the challenge inside the transaction so a
// concurrent completion is never credited twice.
func (s *ChallengeService) applyProgress(ctx context.Context, uid, challengeID string, l *ecolog.Log) (*challenge.UserChallenge, error) {
	now := s.now().UTC()

	var done *challenge.UserChallenge
	err := s.store.RunInTx(ctx, uid, func(ctx context.Context, tx store.Tx) error {
		done = nil
		c, ok, err := tx.Challenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if !ok || c.Completed() {
			return nil
		}
		delta := ProgressDelta(c, l)
		if delta == 0 {
			return nil
		}
		c.Progress += delta
		c.UpdatedAt = now

		if !c.TargetReached() {
			return tx.PutChallenge(ctx, c)
		}

		p, ok, err := tx.Profile(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("profile %s: %w", uid, store.ErrNotFound)
		}
		c.MarkCompleted(now)
		p.TotalPoints += c.Reward
		p.UpdatedAt = now
		if err := tx.PutChallenge(ctx, c); err != nil {
			return err
		}
		if err := tx.PutProfile(ctx, p); err != nil {
			return err
		}
		done = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

func (s *ChallengeService) afterCompletion(ctx context.Context, uid string, c *challenge.UserChallenge, source string) {
	metrics.ChallengesCompleted.WithLabelValues(source).Inc()
	log.Info().Str("uid", uid).Str("challenge_id", c.ID).Int("reward", c.Reward).Str("source", source).
		Msg("CompleteChallenge: completed")
	if s.leaderboard != nil {
		s.leaderboard.Invalidate(ctx)
	}
	if s.notifier != nil {
		s.notifier.ChallengeCompleted(uid, c)
	}
}

// ProgressDelta is how much a single log moves challenge c.
func ProgressDelta(c *challenge.UserChallenge, l *ecolog.Log) float64 {
	switch c.Metric {
	case challenge.MetricLogs:
		return 1
	case challenge.MetricTransport:
		if l.Transport.Type == c.TransportType {
			return 1
		}
	case challenge.MetricFood:
		if c.AcceptsFood(l.Food) {
			return 1
		}
	case challenge.MetricWater:
		if l.WaterLiters > 0 {
			return l.WaterLiters
		}
	}
	return 0
}
