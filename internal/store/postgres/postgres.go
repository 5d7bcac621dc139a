// Package postgres implements store.Store on PostgreSQL through pgxpool.
//
// Every transaction first takes a transaction-scoped advisory lock keyed on
// the user id, so all writers for one user are serialized while different
// users never wait on each other. Rows read inside the transaction are also
// locked with FOR UPDATE.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"ecoQuestAPI/internal/footprint"
	"ecoQuestAPI/internal/metrics"
	"ecoQuestAPI/internal/store"
	"ecoQuestAPI/internal/types/challenge"
	"ecoQuestAPI/internal/types/ecolog"
	"ecoQuestAPI/internal/types/user"
)

//go:embed migrations/*.sql
var migrations embed.FS

const DefaultMaxAttempts = 3

type Store struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

var _ store.Store = (*Store)(nil)

// NewPool opens a pool and pings it.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	if minConns > 0 {
		poolConfig.MinConns = minConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func New(pool *pgxpool.Pool, maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Store{pool: pool, maxAttempts: maxAttempts}
}

// Migrate applies the embedded SQL files in lexical order, skipping the ones
// already recorded in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		version := f[len("migrations/"):]

		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		sqlText, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", version, err)
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", version, err)
		}
		if _, err := tx.Exec(ctx, string(sqlText)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to apply migration %s: %w", version, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", version, err)
		}
		log.Info().Str("version", version).Msg("Migrate: applied")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) Close() { s.pool.Close() }

const profileColumns = `uid, email, display_name, photo_url, total_carbon, total_logs, total_points,
	streak, last_log_date, created_at, updated_at`

const logColumns = `user_id, id, date, transport_type, distance_km, food, home_energy_kwh,
	waste_kg, water_liters, carbon_score, points_earned, day_key, created_at`

const challengeColumns = `challenge_id, title, description, reward, target, metric, transport_type,
	food_types, icon, progress, status, completed_at, joined_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*user.Profile, error) {
	var p user.Profile
	err := row.Scan(&p.UID, &p.Email, &p.DisplayName, &p.PhotoURL, &p.TotalCarbon, &p.TotalLogs,
		&p.TotalPoints, &p.Streak, &p.LastLogDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanLog(row scanner) (*ecolog.Log, error) {
	var (
		l         ecolog.Log
		transport string
		food      string
	)
	err := row.Scan(&l.UserID, &l.ID, &l.Date, &transport, &l.Transport.DistanceKm, &food,
		&l.HomeEnergyKWh, &l.WasteKg, &l.WaterLiters, &l.CarbonScore, &l.PointsEarned, &l.DayKey, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.Transport.Type = footprint.TransportMode(transport)
	l.Food = footprint.FoodChoice(food)
	return &l, nil
}

func scanChallenge(row scanner) (*challenge.UserChallenge, error) {
	var (
		c         challenge.UserChallenge
		metric    string
		transport string
		foods     []string
		status    string
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Reward, &c.Target, &metric, &transport,
		&foods, &c.Icon, &c.Progress, &status, &c.CompletedAt, &c.JoinedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Metric = challenge.Metric(metric)
	c.TransportType = footprint.TransportMode(transport)
	c.Status = challenge.Status(status)
	for _, f := range foods {
		c.FoodTypes = append(c.FoodTypes, footprint.FoodChoice(f))
	}
	return &c, nil
}

func (s *Store) GetProfile(ctx context.Context, uid string) (*user.Profile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM eco_users WHERE uid = $1`, uid)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", mapErr(err))
	}
	return p, nil
}

func (s *Store) ListLogs(ctx context.Context, uid string, limit int) ([]*ecolog.Log, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+logColumns+`
		FROM eco_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, uid, lim)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", mapErr(err))
	}
	defer rows.Close()

	logs := make([]*ecolog.Log, 0)
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", mapErr(err))
	}
	return logs, nil
}

func (s *Store) ListChallenges(ctx context.Context, uid string, status challenge.Status) ([]*challenge.UserChallenge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+challengeColumns+`
		FROM eco_user_challenges
		WHERE user_id = $1 AND ($2::text = '' OR status = $2)
		ORDER BY status ASC, challenge_id ASC`, uid, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", mapErr(err))
	}
	defer rows.Close()

	out := make([]*challenge.UserChallenge, 0)
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", mapErr(err))
	}
	return out, nil
}

func (s *Store) TopProfiles(ctx context.Context, limit int) ([]*user.Profile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM eco_users
		ORDER BY total_points DESC, uid ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", mapErr(err))
	}
	defer rows.Close()

	out := make([]*user.Profile, 0, limit)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", mapErr(err))
	}
	return out, nil
}

func (s *Store) CountProfiles(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM eco_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", mapErr(err))
	}
	return n, nil
}

func (s *Store) RunInTx(ctx context.Context, uid string, fn func(ctx context.Context, tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.runOnce(ctx, uid, fn)
		if err == nil || !retryable(err) {
			return mapErr(err)
		}
		if attempt < s.maxAttempts {
			metrics.TxRetries.WithLabelValues("postgres").Inc()
			log.Warn().Err(err).Str("uid", uid).Int("attempt", attempt).Msg("RunInTx: retrying after conflict")
		}
	}
	return fmt.Errorf("%w: %v", store.ErrTxConflict, err)
}

func (s *Store) runOnce(ctx context.Context, uid string, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, uid); err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}

	if err := fn(ctx, &pgTx{tx: tx, uid: uid}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "23505":
		return true
	}
	return false
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}

type pgTx struct {
	tx      pgx.Tx
	uid     string
	written bool
}

func (t *pgTx) Profile(ctx context.Context) (*user.Profile, bool, error) {
	if t.written {
		return nil, false, store.ErrReadAfterWrite
	}
	row := t.tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM eco_users WHERE uid = $1 FOR UPDATE`, t.uid)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read profile: %w", err)
	}
	return p, true, nil
}

func (t *pgTx) Log(ctx context.Context, id string) (*ecolog.Log, bool, error) {
	if t.written {
		return nil, false, store.ErrReadAfterWrite
	}
	row := t.tx.QueryRow(ctx, `SELECT `+logColumns+` FROM eco_logs WHERE user_id = $1 AND id = $2`, t.uid, id)
	l, err := scanLog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read log: %w", err)
	}
	return l, true, nil
}

func (t *pgTx) Challenge(ctx context.Context, id string) (*challenge.UserChallenge, bool, error) {
	if t.written {
		return nil, false, store.ErrReadAfterWrite
	}
	row := t.tx.QueryRow(ctx, `
		SELECT `+challengeColumns+`
		FROM eco_user_challenges
		WHERE user_id = $1 AND challenge_id = $2
		FOR UPDATE`, t.uid, id)
	c, err := scanChallenge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read challenge: %w", err)
	}
	return c, true, nil
}

func (t *pgTx) PutProfile(ctx context.Context, p *user.Profile) error {
	t.written = true
	_, err := t.tx.Exec(ctx, `
		INSERT INTO eco_users (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (uid) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			photo_url = EXCLUDED.photo_url,
			total_carbon = EXCLUDED.total_carbon,
			total_logs = EXCLUDED.total_logs,
			total_points = EXCLUDED.total_points,
			streak = EXCLUDED.streak,
			last_log_date = EXCLUDED.last_log_date,
			updated_at = EXCLUDED.updated_at`,
		t.uid, p.Email, p.DisplayName, p.PhotoURL, p.TotalCarbon, p.TotalLogs, p.TotalPoints,
		p.Streak, p.LastLogDate, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

func (t *pgTx) InsertLog(ctx context.Context, l *ecolog.Log) error {
	t.written = true
	_, err := t.tx.Exec(ctx, `
		INSERT INTO eco_logs (`+logColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.uid, l.ID, l.Date, string(l.Transport.Type), l.Transport.DistanceKm, string(l.Food),
		l.HomeEnergyKWh, l.WasteKg, l.WaterLiters, l.CarbonScore, l.PointsEarned, l.DayKey, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}
	return nil
}

func (t *pgTx) PutChallenge(ctx context.Context, c *challenge.UserChallenge) error {
	t.written = true
	foods := make([]string, 0, len(c.FoodTypes))
	for _, f := range c.FoodTypes {
		foods = append(foods, string(f))
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO eco_user_challenges (user_id, `+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id, challenge_id) DO UPDATE SET
			progress = EXCLUDED.progress,
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`,
		t.uid, c.ID, c.Title, c.Description, c.Reward, c.Target, string(c.Metric), string(c.TransportType),
		foods, c.Icon, c.Progress, string(c.Status), c.CompletedAt, c.JoinedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to write challenge: %w", err)
	}
	return nil
}
