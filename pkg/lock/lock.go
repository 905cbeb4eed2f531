// Package lock provides the distributed per-key mutual exclusion the
// lifecycle subsystem needs: at-most-one body executing for a given
// (challenge, team) pair across all workers, with a bounded acquisition
// wait and a lease that bounds a crashed holder from wedging the key.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arenaforge/instancer/pkg/instancerr"
	"github.com/arenaforge/instancer/pkg/log"
	"github.com/arenaforge/instancer/pkg/metrics"
)

// releaseScript deletes the lock key only if its value still matches the
// token this call set, so a lease that already expired and was re-acquired
// by someone else is never stolen out from under them.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrNotAcquired is returned when the blocking acquisition window elapses
// without obtaining the lock.
var ErrNotAcquired = errors.New("lock not acquired within blocking timeout")

// Service is a Redis-backed per-key lock.
type Service struct {
	client          *redis.Client
	prefix          string
	lease           time.Duration
	blockingTimeout time.Duration
	pollInterval    time.Duration
}

// New builds a Service. lease bounds how long a held lock remains valid;
// blockingTimeout bounds how long WithLock waits to acquire before giving up.
func New(client *redis.Client, prefix string, lease, blockingTimeout time.Duration) *Service {
	return &Service{
		client:          client,
		prefix:          prefix,
		lease:           lease,
		blockingTimeout: blockingTimeout,
		pollInterval:    100 * time.Millisecond,
	}
}

func (s *Service) key(challenge, teamID string) string {
	return fmt.Sprintf("%s:locks:instance:%s:%s", s.prefix, challenge, teamID)
}

// WithLock runs body while holding the lock for (challenge, teamID). If the
// lock cannot be acquired within the blocking timeout, body is not run and a
// CONFLICT error is returned. The lock is always released on return,
// regardless of how body exits.
func (s *Service) WithLock(ctx context.Context, challenge, teamID string, body func(ctx context.Context) error) error {
	logger := log.WithComponent("lock")
	timer := metrics.NewTimer()
	token, err := s.acquire(ctx, challenge, teamID)
	timer.ObserveDuration(metrics.LockAcquireDuration)
	if err != nil {
		metrics.LockAcquireFailuresTotal.WithLabelValues("timeout").Inc()
		logger.Warn().Str("challenge", challenge).Str("team_id", teamID).Msg("lock not acquired within blocking window")
		return instancerr.Conflictf("another instance operation is in progress for %s/%s", challenge, teamID)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.release(releaseCtx, challenge, teamID, token); err != nil {
			logger.Error().Err(err).Str("challenge", challenge).Str("team_id", teamID).Msg("failed to release lock")
		}
	}()

	return body(ctx)
}

// acquire blocks, polling at pollInterval, until the lock is obtained or the
// blocking timeout elapses.
func (s *Service) acquire(ctx context.Context, challenge, teamID string) (string, error) {
	deadline := time.Now().Add(s.blockingTimeout)
	token := uuid.NewString()
	key := s.key(challenge, teamID)

	for {
		ok, err := s.client.SetNX(ctx, key, token, s.lease).Result()
		if err != nil {
			return "", fmt.Errorf("acquiring lock %s: %w", key, err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

func (s *Service) release(ctx context.Context, challenge, teamID, token string) error {
	key := s.key(challenge, teamID)
	return releaseScript.Run(ctx, s.client, []string{key}, token).Err()
}
