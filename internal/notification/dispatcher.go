package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ecoQuestAPI/internal/types/challenge"
)

// Dispatcher sends pushes from a small worker pool so request handlers never
// wait on FCM. Delivery is best effort.
type Dispatcher struct {
	sender   Sender
	jobQueue chan Push
	mu       sync.RWMutex
	stopped  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	timeout  time.Duration
}

func NewDispatcher(sender Sender, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	d := &Dispatcher{
		sender:   sender,
		jobQueue: make(chan Push, queueSize),
		stopChan: make(chan struct{}),
		timeout:  10 * time.Second,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case p := <-d.jobQueue:
			d.process(p)
		case <-d.stopChan:
			// drain what is already queued
			for {
				select {
				case p := <-d.jobQueue:
					d.process(p)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) process(p Push) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.sender.Send(ctx, p); err != nil {
		log.Warn().Err(err).Str("uid", p.UID).Msg("Dispatcher: push failed")
	}
}

// Dispatch queues p and reports whether it was accepted. Pushes are dropped
// when the queue is full or the dispatcher is stopped.
func (d *Dispatcher) Dispatch(p Push) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		log.Warn().Str("uid", p.UID).Msg("Dispatcher: stopped, dropping push")
		return false
	}
	select {
	case d.jobQueue <- p:
		return true
	default:
		log.Warn().Str("uid", p.UID).Msg("Dispatcher: queue full, dropping push")
		return false
	}
}

func (d *Dispatcher) ChallengeCompleted(uid string, c *challenge.UserChallenge) {
	d.Dispatch(ChallengeCompleted(uid, c))
}

// Stop sends whatever is queued and waits for the workers to exit. Once the
// write lock is held no Dispatch is mid-enqueue, so the drain sees every
// accepted push.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.stopChan)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
