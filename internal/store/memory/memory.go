// Package memory is an in-process store.Store used for local development and
// service tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"ecoQuestAPI/internal/store"
	"ecoQuestAPI/internal/types/challenge"
	"ecoQuestAPI/internal/types/ecolog"
	"ecoQuestAPI/internal/types/user"
)

type userData struct {
	profile    *user.Profile
	logs       map[string]*ecolog.Log
	challenges map[string]*challenge.UserChallenge
}

type Store struct {
	mu    sync.RWMutex
	users map[string]*userData
	locks map[string]*sync.Mutex

	// BeforeCommit runs after fn succeeds and before staged writes are
	// applied. A non-nil error aborts the transaction.
	BeforeCommit func(c Commit) error
}

// Commit describes the writes a transaction is about to apply.
type Commit struct {
	UID          string
	Profile      bool
	LogIDs       []string
	ChallengeIDs []string
}

// Writes reports whether anything was staged.
func (c Commit) Writes() bool {
	return c.Profile || len(c.LogIDs) > 0 || len(c.ChallengeIDs) > 0
}

// Touches reports whether the transaction writes challenge id.
func (c Commit) Touches(challengeID string) bool {
	for _, id := range c.ChallengeIDs {
		if id == challengeID {
			return true
		}
	}
	return false
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users: make(map[string]*userData),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) userLock(uid string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[uid]
	if !ok {
		l = &sync.Mutex{}
		s.locks[uid] = l
	}
	return l
}

func (s *Store) GetProfile(ctx context.Context, uid string) (*user.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[uid]
	if !ok || u.profile == nil {
		return nil, store.ErrNotFound
	}
	return u.profile.Clone(), nil
}

func (s *Store) ListLogs(ctx context.Context, uid string, limit int) ([]*ecolog.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[uid]
	if !ok {
		return []*ecolog.Log{}, nil
	}
	logs := make([]*ecolog.Log, 0, len(u.logs))
	for _, l := range u.logs {
		logs = append(logs, l.Clone())
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].ID > logs[j].ID
		}
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) ListChallenges(ctx context.Context, uid string, status challenge.Status) ([]*challenge.UserChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[uid]
	if !ok {
		return []*challenge.UserChallenge{}, nil
	}
	out := make([]*challenge.UserChallenge, 0, len(u.challenges))
	for _, c := range u.challenges {
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) TopProfiles(ctx context.Context, limit int) ([]*user.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*user.Profile, 0, len(s.users))
	for _, u := range s.users {
		if u.profile != nil {
			out = append(out, u.profile.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].UID < out[j].UID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountProfiles(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.profile != nil {
			n++
		}
	}
	return n, nil
}

func (s *Store) RunInTx(ctx context.Context, uid string, fn func(ctx context.Context, tx store.Tx) error) error {
	if uid == "" {
		return errors.New("memory: empty uid")
	}
	l := s.userLock(uid)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{s: s, uid: uid}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if s.BeforeCommit != nil {
		if err := s.BeforeCommit(tx.commit()); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		u = &userData{
			logs:       make(map[string]*ecolog.Log),
			challenges: make(map[string]*challenge.UserChallenge),
		}
		s.users[uid] = u
	}
	if tx.profile != nil {
		u.profile = tx.profile
	}
	for _, lg := range tx.logs {
		u.logs[lg.ID] = lg
	}
	for _, c := range tx.challenges {
		u.challenges[c.ID] = c
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() {}

// memTx stages writes until RunInTx commits them. The per-user lock is held
// for its whole lifetime, so reads see the latest committed state.
type memTx struct {
	s       *Store
	uid     string
	written bool

	profile    *user.Profile
	logs       []*ecolog.Log
	challenges []*challenge.UserChallenge
}

func (t *memTx) commit() Commit {
	c := Commit{UID: t.uid, Profile: t.profile != nil}
	for _, l := range t.logs {
		c.LogIDs = append(c.LogIDs, l.ID)
	}
	for _, ch := range t.challenges {
		c.ChallengeIDs = append(c.ChallengeIDs, ch.ID)
	}
	return c
}

func (t *memTx) read() (*userData, error) {
	if t.written {
		return nil, store.ErrReadAfterWrite
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.users[t.uid], nil
}

func (t *memTx) Profile(ctx context.Context) (*user.Profile, bool, error) {
	u, err := t.read()
	if err != nil {
		return nil, false, err
	}
	if u == nil || u.profile == nil {
		return nil, false, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return u.profile.Clone(), true, nil
}

func (t *memTx) Log(ctx context.Context, id string) (*ecolog.Log, bool, error) {
	u, err := t.read()
	if err != nil {
		return nil, false, err
	}
	if u == nil {
		return nil, false, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	l, ok := u.logs[id]
	if !ok {
		return nil, false, nil
	}
	return l.Clone(), true, nil
}

func (t *memTx) Challenge(ctx context.Context, id string) (*challenge.UserChallenge, bool, error) {
	u, err := t.read()
	if err != nil {
		return nil, false, err
	}
	if u == nil {
		return nil, false, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	c, ok := u.challenges[id]
	if !ok {
		return nil, false, nil
	}
	return c.Clone(), true, nil
}

func (t *memTx) PutProfile(ctx context.Context, p *user.Profile) error {
	t.written = true
	t.profile = p.Clone()
	return nil
}

func (t *memTx) InsertLog(ctx context.Context, l *ecolog.Log) error {
	t.written = true
	for _, staged := range t.logs {
		if staged.ID == l.ID {
			return errors.New("memory: duplicate log id in transaction")
		}
	}
	t.s.mu.RLock()
	u := t.s.users[t.uid]
	var exists bool
	if u != nil {
		_, exists = u.logs[l.ID]
	}
	t.s.mu.RUnlock()
	if exists {
		return errors.New("memory: log already exists")
	}
	c := l.Clone()
	c.UserID = t.uid
	t.logs = append(t.logs, c)
	return nil
}

func (t *memTx) PutChallenge(ctx context.Context, c *challenge.UserChallenge) error {
	t.written = true
	t.challenges = append(t.challenges, c.Clone())
	return nil
}
