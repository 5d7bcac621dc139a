package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ecoQuestAPI/internal/footprint"
	"ecoQuestAPI/internal/metrics"
	"ecoQuestAPI/internal/store"
	"ecoQuestAPI/internal/types/ecolog"
	"ecoQuestAPI/internal/types/user"
)

const (
	DefaultLogListLimit = 50
	MaxLogListLimit     = 200

	// challenge progress runs after the log is committed and must not be cut
	// short by the client hanging up
	challengeTimeout = 10 * time.Second
)

type EcoLogService struct {
	store       store.Store
	challenges  *ChallengeService
	leaderboard *LeaderboardService
	now         func() time.Time
}

func NewEcoLogService(st store.Store, challenges *ChallengeService, lb *LeaderboardService) *EcoLogService {
	return &EcoLogService{
		store:       st,
		challenges:  challenges,
		leaderboard: lb,
		now:         time.Now,
	}
}

// SubmitLog scores the request and applies it to uid's aggregate in one
// transaction, creating the aggregate on the first log. A request whose id
// was already stored returns that log with Duplicate set and changes nothing.
func (s *EcoLogService) SubmitLog(ctx context.Context, uid string, req *ecolog.CreateLogRequest) (*ecolog.AppliedLog, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	in := req.Inputs()
	score, err := footprint.Score(in)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	date := req.Date
	if date == "" {
		date = now.Format(time.RFC3339)
	}
	dayKey, err := footprint.DayKey(date)
	if err != nil {
		return nil, err
	}

	logID := req.ID
	if logID == "" {
		logID = uuid.NewString()
	}

	newLog := &ecolog.Log{
		ID:            logID,
		UserID:        uid,
		Date:          date,
		Transport:     ecolog.Transport{Type: in.Transport, DistanceKm: in.DistanceKm},
		Food:          in.Food,
		HomeEnergyKWh: in.HomeEnergyKWh,
		WasteKg:       in.WasteKg,
		WaterLiters:   in.WaterLiters,
		CarbonScore:   score,
		PointsEarned:  footprint.Points(score),
		DayKey:        dayKey,
		CreatedAt:     now,
	}

	var (
		applied   *ecolog.Log
		profile   *user.Profile
		duplicate bool
	)
	err = s.store.RunInTx(ctx, uid, func(ctx context.Context, tx store.Tx) error {
		existing, found, err := tx.Log(ctx, logID)
		if err != nil {
			return err
		}
		p, ok, err := tx.Profile(ctx)
		if err != nil {
			return err
		}
		if found {
			applied, profile, duplicate = existing, p, true
			return nil
		}
		duplicate = false

		if !ok {
			p = user.NewProfile(user.Identity{UID: uid}, now)
		}
		p.TotalCarbon += newLog.CarbonScore
		p.TotalLogs++
		p.TotalPoints += newLog.PointsEarned
		p.Streak = footprint.NextStreak(p.LastDayKey(), p.Streak, dayKey)
		key := dayKey
		p.LastLogDate = &key
		p.UpdatedAt = now

		if err := tx.PutProfile(ctx, p); err != nil {
			return err
		}
		if err := tx.InsertLog(ctx, newLog); err != nil {
			return err
		}
		applied, profile = newLog.Clone(), p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit log: %w", err)
	}

	result := &ecolog.AppliedLog{Log: applied, Profile: withLevel(profile), Duplicate: duplicate}
	if duplicate {
		log.Info().Str("uid", uid).Str("log_id", logID).Msg("SubmitLog: duplicate submission")
		return result, nil
	}

	metrics.LogsSubmitted.Inc()
	log.Info().Str("uid", uid).Str("log_id", logID).Float64("carbon", score).
		Int("points", applied.PointsEarned).Int("streak", profile.Streak).Msg("SubmitLog: applied")

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), challengeTimeout)
	defer cancel()

	if s.leaderboard != nil {
		s.leaderboard.Invalidate(bg)
	}
	if s.challenges != nil {
		completed, err := s.challenges.OnLogSubmitted(bg, uid, applied)
		if err != nil {
			log.Error().Err(err).Str("uid", uid).Str("log_id", logID).Msg("SubmitLog: challenge progress failed")
		}
		if len(completed) > 0 {
			result.CompletedChallenges = completed
			if fresh, err := s.store.GetProfile(bg, uid); err == nil {
				result.Profile = withLevel(fresh)
			} else {
				log.Warn().Err(err).Str("uid", uid).Msg("SubmitLog: profile refresh failed")
			}
		}
	}
	return result, nil
}

// ListLogs returns the newest logs first. limit <= 0 means the default.
func (s *EcoLogService) ListLogs(ctx context.Context, uid string, limit int) ([]*ecolog.Log, error) {
	if limit <= 0 {
		limit = DefaultLogListLimit
	}
	if limit > MaxLogListLimit {
		limit = MaxLogListLimit
	}
	logs, err := s.store.ListLogs(ctx, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	return logs, nil
}

// PreviewLog scores a day without saving it.
func (s *EcoLogService) PreviewLog(req *ecolog.CreateLogRequest) (*ecolog.Preview, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return preview(req.Inputs())
}

func preview(in footprint.Inputs) (*ecolog.Preview, error) {
	b, err := footprint.Calculate(in)
	if err != nil {
		return nil, err
	}
	return &ecolog.Preview{
		Breakdown: b,
		Display:   b.Rounded(),
		Points:    footprint.Points(b.Total),
	}, nil
}

var presetInputs = []struct {
	label string
	in    footprint.Inputs
}{
	{"Dorm Day", footprint.Inputs{Transport: footprint.Walk, DistanceKm: 1, Food: footprint.Vegan, HomeEnergyKWh: 6, WasteKg: 0.3, WaterLiters: 60}},
	{"Commute + Gym", footprint.Inputs{Transport: footprint.Train, DistanceKm: 12, Food: footprint.LowMeat, HomeEnergyKWh: 8, WasteKg: 0.6, WaterLiters: 110}},
	{"Road Trip", footprint.Inputs{Transport: footprint.GasCar, DistanceKm: 80, Food: footprint.MeatHeavy, HomeEnergyKWh: 10, WasteKg: 0.8, WaterLiters: 120}},
}

// Presets are the quick-fill days offered by the log form.
func (s *EcoLogService) Presets() []*ecolog.Preset {
	out := make([]*ecolog.Preset, 0, len(presetInputs))
	for _, p := range presetInputs {
		pv, err := preview(p.in)
		if err != nil {
			// the table is static; a failure here is a programming error
			panic(err)
		}
		out = append(out, &ecolog.Preset{Label: p.label, Inputs: p.in, Preview: pv})
	}
	return out
}
