package store

import (
	"context"
	"errors"

	"ecoQuestAPI/internal/types/challenge"
	"ecoQuestAPI/internal/types/ecolog"
	"ecoQuestAPI/internal/types/user"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrTxConflict means the transaction lost to a concurrent writer and ran
	// out of attempts. The caller may retry the whole operation.
	ErrTxConflict  = errors.New("transaction conflict")
	ErrUnavailable = errors.New("storage unavailable")
	// ErrReadAfterWrite is returned when a Tx is read after it was written to.
	// Firestore transactions reject that ordering, so every backend does.
	ErrReadAfterWrite = errors.New("transaction read after write")
)

// Store is the persistence contract for profiles, logs and user challenges.
type Store interface {
	GetProfile(ctx context.Context, uid string) (*user.Profile, error)
	// ListLogs returns the newest logs first.
	ListLogs(ctx context.Context, uid string, limit int) ([]*ecolog.Log, error)
	// ListChallenges returns active challenges before completed ones. An
	// empty status returns both.
	ListChallenges(ctx context.Context, uid string, status challenge.Status) ([]*challenge.UserChallenge, error)
	// TopProfiles orders by total points descending, then uid.
	TopProfiles(ctx context.Context, limit int) ([]*user.Profile, error)
	CountProfiles(ctx context.Context) (int, error)

	// RunInTx runs fn as one atomic unit over uid's documents. fn may be
	// called more than once when the backend retries a conflict, so it must
	// not have side effects outside tx.
	RunInTx(ctx context.Context, uid string, fn func(ctx context.Context, tx Tx) error) error

	Ping(ctx context.Context) error
	Close()
}

// Tx is scoped to one user. All reads must happen before the first write.
type Tx interface {
	Profile(ctx context.Context) (*user.Profile, bool, error)
	Log(ctx context.Context, id string) (*ecolog.Log, bool, error)
	Challenge(ctx context.Context, id string) (*challenge.UserChallenge, bool, error)

	PutProfile(ctx context.Context, p *user.Profile) error
	InsertLog(ctx context.Context, l *ecolog.Log) error
	PutChallenge(ctx context.Context, c *challenge.UserChallenge) error
}
