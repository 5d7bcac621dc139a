package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"ecoQuestAPI/internal/footprint"
	"ecoQuestAPI/internal/store"
	"ecoQuestAPI/internal/types/user"
)

type UserService struct {
	store store.Store
	now   func() time.Time
}

func NewUserService(st store.Store) *UserService {
	return &UserService{store: st, now: time.Now}
}

// EnsureProfile creates the aggregate with zeroed totals on first sight of a
// user and afterwards only merges identity fields into it.
func (s *UserService) EnsureProfile(ctx context.Context, id user.Identity) (*user.Profile, error) {
	if id.UID == "" {
		return nil, &footprint.ValidationError{Field: "uid", Reason: "is required"}
	}
	now := s.now().UTC()

	var result *user.Profile
	err := s.store.RunInTx(ctx, id.UID, func(ctx context.Context, tx store.Tx) error {
		p, ok, err := tx.Profile(ctx)
		if err != nil {
			return err
		}
		if !ok {
			result = user.NewProfile(id, now)
			return tx.PutProfile(ctx, result)
		}
		before := *p
		p.Merge(id, now)
		result = p
		if p.Email == before.Email && p.DisplayName == before.DisplayName && p.PhotoURL == before.PhotoURL {
			result.UpdatedAt = before.UpdatedAt
			return nil
		}
		return tx.PutProfile(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}

	log.Debug().Str("uid", id.UID).Msg("EnsureProfile: ok")
	return withLevel(result), nil
}

func (s *UserService) GetProfile(ctx context.Context, uid string) (*user.Profile, error) {
	p, err := s.store.GetProfile(ctx, uid)
	if err != nil {
		return nil, err
	}
	return withLevel(p), nil
}

func withLevel(p *user.Profile) *user.Profile {
	if p == nil {
		return nil
	}
	p.Level, p.LevelProgress = footprint.LevelFor(p.TotalLogs)
	return p
}
