package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically discards sessions that have sat idle past a TTL,
// so abandoned conversations don't pin drafts and tokens forever.
type Janitor struct {
	bot  *Bot
	ttl  time.Duration
	cron *cron.Cron
}

// NewJanitor creates a janitor sweeping on the given cron schedule
// (e.g. "@every 10m").
func NewJanitor(b *Bot, schedule string, ttl time.Duration) (*Janitor, error) {
	j := &Janitor{
		bot:  b,
		ttl:  ttl,
		cron: cron.New(),
	}
	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return nil, fmt.Errorf("janitor: invalid schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins sweeping. Blocks until context is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	j.cron.Start()
	j.bot.Logger.Info("session janitor started", "ttl", j.ttl.String())

	<-ctx.Done()
	j.cron.Stop()
	j.bot.Logger.Info("session janitor stopped")
	return ctx.Err()
}

func (j *Janitor) sweep() {
	n := j.bot.expireSessions(j.ttl)
	if n > 0 {
		j.bot.Logger.Info("expired idle sessions", "count", n)
	}
}

// expireSessions drops sessions idle for longer than ttl and returns
// how many were dropped.
func (b *Bot) expireSessions(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for key, sess := range b.sessions {
		if sess.LastActive.Before(cutoff) {
			delete(b.sessions, key)
			delete(b.turns, key)
			n++
		}
	}
	return n
}
