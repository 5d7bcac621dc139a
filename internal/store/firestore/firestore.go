// Package firestore implements store.Store on Cloud Firestore with the
// users/{uid}, users/{uid}/logs/{id} and users/{uid}/challenges/{id} layout.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ecoQuestAPI/internal/footprint"
	"ecoQuestAPI/internal/metrics"
	"ecoQuestAPI/internal/store"
	"ecoQuestAPI/internal/types/challenge"
	"ecoQuestAPI/internal/types/ecolog"
	"ecoQuestAPI/internal/types/user"
)

const (
	usersCollection      = "users"
	logsCollection       = "logs"
	challengesCollection = "challenges"
)

type Store struct {
	client      *firestore.Client
	maxAttempts int
}

var _ store.Store = (*Store)(nil)

func New(client *firestore.Client, maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = firestore.DefaultTransactionMaxAttempts
	}
	return &Store{client: client, maxAttempts: maxAttempts}
}

type profileDoc struct {
	Email       string    `firestore:"email"`
	DisplayName string    `firestore:"displayName"`
	PhotoURL    string    `firestore:"photoURL"`
	TotalCarbon float64   `firestore:"totalCarbon"`
	TotalLogs   int       `firestore:"totalLogs"`
	TotalPoints int       `firestore:"totalPoints"`
	Streak      int       `firestore:"streak"`
	LastLogDate *string   `firestore:"lastLogDate"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

type transportDoc struct {
	Type       string  `firestore:"type"`
	DistanceKm float64 `firestore:"distanceKm"`
}

type logDoc struct {
	Date          string       `firestore:"date"`
	Transport     transportDoc `firestore:"transport"`
	Food          string       `firestore:"food"`
	HomeEnergyKWh float64      `firestore:"homeEnergyKwh"`
	WasteKg       float64      `firestore:"wasteKg"`
	WaterLiters   float64      `firestore:"waterLiters"`
	CarbonScore   float64      `firestore:"carbonScore"`
	PointsEarned  int          `firestore:"pointsEarned"`
	DayKey        string       `firestore:"dayKey"`
	CreatedAt     time.Time    `firestore:"createdAt"`
}

type challengeDoc struct {
	Title         string     `firestore:"title"`
	Description   string     `firestore:"description"`
	Reward        int        `firestore:"reward"`
	Target        float64    `firestore:"target"`
	Metric        string     `firestore:"metric"`
	TransportType string     `firestore:"transportType"`
	FoodTypes     []string   `firestore:"foodTypes"`
	Icon          string     `firestore:"icon"`
	Progress      float64    `firestore:"progress"`
	Status        string     `firestore:"status"`
	CompletedAt   *time.Time `firestore:"completedAt"`
	JoinedAt      time.Time  `firestore:"joinedAt"`
	UpdatedAt     time.Time  `firestore:"updatedAt"`
}

func toProfileDoc(p *user.Profile) profileDoc {
	return profileDoc{
		Email:       p.Email,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		TotalCarbon: p.TotalCarbon,
		TotalLogs:   p.TotalLogs,
		TotalPoints: p.TotalPoints,
		Streak:      p.Streak,
		LastLogDate: p.LastLogDate,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d profileDoc) profile(uid string) *user.Profile {
	return &user.Profile{
		UID:         uid,
		Email:       d.Email,
		DisplayName: d.DisplayName,
		PhotoURL:    d.PhotoURL,
		TotalCarbon: d.TotalCarbon,
		TotalLogs:   d.TotalLogs,
		TotalPoints: d.TotalPoints,
		Streak:      d.Streak,
		LastLogDate: d.LastLogDate,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func toLogDoc(l *ecolog.Log) logDoc {
	return logDoc{
		Date:          l.Date,
		Transport:     transportDoc{Type: string(l.Transport.Type), DistanceKm: l.Transport.DistanceKm},
		Food:          string(l.Food),
		HomeEnergyKWh: l.HomeEnergyKWh,
		WasteKg:       l.WasteKg,
		WaterLiters:   l.WaterLiters,
		CarbonScore:   l.CarbonScore,
		PointsEarned:  l.PointsEarned,
		DayKey:        l.DayKey,
		CreatedAt:     l.CreatedAt,
	}
}

func (d logDoc) log(uid, id string) *ecolog.Log {
	return &ecolog.Log{
		ID:            id,
		UserID:        uid,
		Date:          d.Date,
		Transport:     ecolog.Transport{Type: footprint.TransportMode(d.Transport.Type), DistanceKm: d.Transport.DistanceKm},
		Food:          footprint.FoodChoice(d.Food),
		HomeEnergyKWh: d.HomeEnergyKWh,
		WasteKg:       d.WasteKg,
		WaterLiters:   d.WaterLiters,
		CarbonScore:   d.CarbonScore,
		PointsEarned:  d.PointsEarned,
		DayKey:        d.DayKey,
		CreatedAt:     d.CreatedAt,
	}
}

func toChallengeDoc(c *challenge.UserChallenge) challengeDoc {
	foods := make([]string, 0, len(c.FoodTypes))
	for _, f := range c.FoodTypes {
		foods = append(foods, string(f))
	}
	return challengeDoc{
		Title:         c.Title,
		Description:   c.Description,
		Reward:        c.Reward,
		Target:        c.Target,
		Metric:        string(c.Metric),
		TransportType: string(c.TransportType),
		FoodTypes:     foods,
		Icon:          c.Icon,
		Progress:      c.Progress,
		Status:        string(c.Status),
		CompletedAt:   c.CompletedAt,
		JoinedAt:      c.JoinedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func (d challengeDoc) challenge(id string) *challenge.UserChallenge {
	c := &challenge.UserChallenge{
		Definition: challenge.Definition{
			ID:            id,
			Title:         d.Title,
			Description:   d.Description,
			Reward:        d.Reward,
			Target:        d.Target,
			Metric:        challenge.Metric(d.Metric),
			TransportType: footprint.TransportMode(d.TransportType),
			Icon:          d.Icon,
		},
		Progress:    d.Progress,
		Status:      challenge.Status(d.Status),
		CompletedAt: d.CompletedAt,
		JoinedAt:    d.JoinedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, f := range d.FoodTypes {
		c.FoodTypes = append(c.FoodTypes, footprint.FoodChoice(f))
	}
	return c
}

func (s *Store) userRef(uid string) *firestore.DocumentRef {
	return s.client.Collection(usersCollection).Doc(uid)
}

func (s *Store) GetProfile(ctx context.Context, uid string) (*user.Profile, error) {
	snap, err := s.userRef(uid).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", mapErr(err))
	}
	var d profileDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return d.profile(uid), nil
}

func (s *Store) ListLogs(ctx context.Context, uid string, limit int) ([]*ecolog.Log, error) {
	q := s.userRef(uid).Collection(logsCollection).
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", mapErr(err))
	}
	logs := make([]*ecolog.Log, 0, len(snaps))
	for _, snap := range snaps {
		var d logDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode log %s: %w", snap.Ref.ID, err)
		}
		logs = append(logs, d.log(uid, snap.Ref.ID))
	}
	return logs, nil
}

func (s *Store) ListChallenges(ctx context.Context, uid string, st challenge.Status) ([]*challenge.UserChallenge, error) {
	q := s.userRef(uid).Collection(challengesCollection).Query
	if st != "" {
		q = q.Where("status", "==", string(st)).OrderBy(firestore.DocumentID, firestore.Asc)
	} else {
		q = q.OrderBy("status", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
	}

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", mapErr(err))
	}
	out := make([]*challenge.UserChallenge, 0, len(snaps))
	for _, snap := range snaps {
		var d challengeDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode challenge %s: %w", snap.Ref.ID, err)
		}
		out = append(out, d.challenge(snap.Ref.ID))
	}
	return out, nil
}

func (s *Store) TopProfiles(ctx context.Context, limit int) ([]*user.Profile, error) {
	snaps, err := s.client.Collection(usersCollection).
		OrderBy("totalPoints", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", mapErr(err))
	}
	out := make([]*user.Profile, 0, len(snaps))
	for _, snap := range snaps {
		var d profileDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode profile %s: %w", snap.Ref.ID, err)
		}
		out = append(out, d.profile(snap.Ref.ID))
	}
	return out, nil
}

func (s *Store) CountProfiles(ctx context.Context) (int, error) {
	res, err := s.client.Collection(usersCollection).NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", mapErr(err))
	}
	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result %T", res["all"])
	}
	return int(v.GetIntegerValue()), nil
}

func (s *Store) RunInTx(ctx context.Context, uid string, fn func(ctx context.Context, tx store.Tx) error) error {
	var attempts int32
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if n := atomic.AddInt32(&attempts, 1); n > 1 {
			metrics.TxRetries.WithLabelValues("firestore").Inc()
			log.Warn().Str("uid", uid).Int32("attempt", n).Msg("RunInTx: firestore retrying transaction")
		}
		return fn(ctx, &fsTx{s: s, tx: tx, uid: uid})
	}, firestore.MaxAttempts(s.maxAttempts))
	return mapErr(err)
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.userRef("_ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return mapErr(err)
	}
	return nil
}

func (s *Store) Close() {
	if err := s.client.Close(); err != nil {
		log.Error().Err(err).Msg("Close: firestore client")
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Aborted:
		return fmt.Errorf("%w: %v", store.ErrTxConflict, err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}

type fsTx struct {
	s       *Store
	tx      *firestore.Transaction
	uid     string
	written bool
}

func (t *fsTx) get(ref *firestore.DocumentRef, dst any) (bool, error) {
	if t.written {
		return false, store.ErrReadAfterWrite
	}
	snap, err := t.tx.Get(ref)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !snap.Exists() {
		return false, nil
	}
	if err := snap.DataTo(dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", ref.Path, err)
	}
	return true, nil
}

func (t *fsTx) Profile(ctx context.Context) (*user.Profile, bool, error) {
	var d profileDoc
	ok, err := t.get(t.s.userRef(t.uid), &d)
	if err != nil || !ok {
		return nil, false, err
	}
	return d.profile(t.uid), true, nil
}

func (t *fsTx) Log(ctx context.Context, id string) (*ecolog.Log, bool, error) {
	var d logDoc
	ok, err := t.get(t.s.userRef(t.uid).Collection(logsCollection).Doc(id), &d)
	if err != nil || !ok {
		return nil, false, err
	}
	return d.log(t.uid, id), true, nil
}

func (t *fsTx) Challenge(ctx context.Context, id string) (*challenge.UserChallenge, bool, error) {
	var d challengeDoc
	ok, err := t.get(t.s.userRef(t.uid).Collection(challengesCollection).Doc(id), &d)
	if err != nil || !ok {
		return nil, false, err
	}
	return d.challenge(id), true, nil
}

func (t *fsTx) PutProfile(ctx context.Context, p *user.Profile) error {
	t.written = true
	return t.tx.Set(t.s.userRef(t.uid), toProfileDoc(p))
}

func (t *fsTx) InsertLog(ctx context.Context, l *ecolog.Log) error {
	t.written = true
	if l.ID == "" {
		return errors.New("firestore: log id is required")
	}
	return t.tx.Create(t.s.userRef(t.uid).Collection(logsCollection).Doc(l.ID), toLogDoc(l))
}

func (t *fsTx) PutChallenge(ctx context.Context, c *challenge.UserChallenge) error {
	t.written = true
	return t.tx.Set(t.s.userRef(t.uid).Collection(challengesCollection).Doc(c.ID), toChallengeDoc(c))
}
