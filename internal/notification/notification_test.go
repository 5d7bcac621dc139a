package notification

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoQuestAPI/internal/types/challenge"
)

type recordingSender struct {
	mu     sync.Mutex
	pushes []Push
	err    error
}

func (r *recordingSender) Send(ctx context.Context, p Push) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, p)
	return r.err
}

func (r *recordingSender) sent() []Push {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Push(nil), r.pushes...)
}

func completedChallenge() *challenge.UserChallenge {
	return &challenge.UserChallenge{
		Definition: challenge.Definition{ID: "log-5", Title: "Consistency Starter", Reward: 150, Icon: "📅"},
		Status:     challenge.StatusCompleted,
	}
}

func TestChallengeCompletedPush(t *testing.T) {
	p := ChallengeCompleted("u1", completedChallenge())
	assert.Equal(t, "u1", p.UID)
	assert.Contains(t, p.Body, "Consistency Starter")
	assert.Contains(t, p.Body, "+150")
	assert.Equal(t, "log-5", p.Data["challenge_id"])
	assert.Equal(t, "150", p.Data["reward"])
}

func TestDispatcherDeliversBeforeStop(t *testing.T) {
	rec := &recordingSender{}
	d := NewDispatcher(rec, 2, 10)

	d.ChallengeCompleted("u1", completedChallenge())
	d.ChallengeCompleted("u2", completedChallenge())
	d.Stop()

	sent := rec.sent()
	require.Len(t, sent, 2)
	uids := []string{sent[0].UID, sent[1].UID}
	assert.ElementsMatch(t, []string{"u1", "u2"}, uids)
}

func TestDispatcherSurvivesSendErrors(t *testing.T) {
	rec := &recordingSender{err: errors.New("fcm down")}
	d := NewDispatcher(rec, 1, 10)
	d.Dispatch(Push{UID: "u1"})
	d.Stop()
	assert.Len(t, rec.sent(), 1)

	// stopping twice is fine
	d.Stop()
}

func TestDispatchAfterStopIsRejected(t *testing.T) {
	rec := &recordingSender{}
	d := NewDispatcher(rec, 1, 10)
	d.Stop()

	for i := 0; i < 20; i++ {
		assert.False(t, d.Dispatch(Push{UID: "late"}))
	}
	assert.Empty(t, d.jobQueue)
	assert.Empty(t, rec.sent())
}

func TestDispatchRacingStopNeverLosesAcceptedPush(t *testing.T) {
	for round := 0; round < 50; round++ {
		rec := &recordingSender{}
		d := NewDispatcher(rec, 2, 64)

		var (
			wg       sync.WaitGroup
			accepted atomic.Int64
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 4; j++ {
					if d.Dispatch(Push{UID: "u1"}) {
						accepted.Add(1)
					}
				}
			}()
		}
		d.Stop()
		wg.Wait()

		require.Len(t, rec.sent(), int(accepted.Load()), "round %d", round)
	}
}

type fakeMessaging struct {
	got *messaging.Message
	err error
}

func (f *fakeMessaging) Send(ctx context.Context, m *messaging.Message) (string, error) {
	f.got = m
	return "projects/demo/messages/1", f.err
}

func TestFCMSenderUsesUserTopic(t *testing.T) {
	fake := &fakeMessaging{}
	s := &FCMSender{client: fake}

	require.NoError(t, s.Send(context.Background(), ChallengeCompleted("u1", completedChallenge())))
	require.NotNil(t, fake.got)
	assert.Equal(t, "user_u1", fake.got.Topic)
	assert.Equal(t, "Challenge complete!", fake.got.Notification.Title)
	assert.Equal(t, "high", fake.got.Android.Priority)

	fake.err = errors.New("quota")
	assert.Error(t, s.Send(context.Background(), Push{UID: "u1"}))
}
