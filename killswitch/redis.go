package killswitch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisWriteTimeout = 2 * time.Second

// RedisStore backs the in-memory store with two Redis sets, shared across
// replicas. State loads once at construction; mutations update memory first
// and write through to Redis fire-and-forget, so a Redis outage degrades to
// in-process-only switches instead of blocking dispatch or failing toggles.
type RedisStore struct {
	*Memory
	client redis.UniversalClient
	prefix string
	logger *slog.Logger

	// writeMu serializes snapshot pushes. Each push reads the full state at
	// execution time, so whichever push lands last leaves Redis matching the
	// authoritative in-memory state.
	writeMu sync.Mutex

	// pushState writes the current snapshot to Redis. Defaults to push;
	// tests stub it.
	pushState func(ctx context.Context) error
}

// NewRedis loads kill-switch state from Redis and returns the store. prefix
// namespaces the keys (e.g. "trialrun" yields "trialrun:killswitch:*").
func NewRedis(ctx context.Context, client redis.UniversalClient, prefix string, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "trialrun"
	}
	r := &RedisStore{
		Memory: NewMemory(),
		client: client,
		prefix: prefix,
		logger: logger.With("component", "killswitch", "store", "redis"),
	}
	r.pushState = r.push

	var st State
	experiments, err := client.SMembers(ctx, r.experimentsKey()).Result()
	if err != nil {
		return nil, err
	}
	st.Experiments = experiments
	pairs, err := client.SMembers(ctx, r.trialsKey()).Result()
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if ref, ok := parseTrialMember(p); ok {
			st.Trials = append(st.Trials, ref)
		}
	}
	r.Memory.Restore(st)
	return r, nil
}

func (r *RedisStore) experimentsKey() string { return r.prefix + ":killswitch:experiments" }
func (r *RedisStore) trialsKey() string      { return r.prefix + ":killswitch:trials" }

func trialMember(service, trial string) string { return service + "\x1f" + trial }

func parseTrialMember(member string) (TrialRef, bool) {
	service, trial, ok := strings.Cut(member, "\x1f")
	if !ok || service == "" || trial == "" {
		return TrialRef{}, false
	}
	return TrialRef{Service: service, Trial: trial}, true
}

func (r *RedisStore) DisableExperiment(service string) {
	r.Memory.DisableExperiment(service)
	r.writeThrough()
}

func (r *RedisStore) EnableExperiment(service string) {
	r.Memory.EnableExperiment(service)
	r.writeThrough()
}

func (r *RedisStore) DisableTrial(service, trial string) {
	r.Memory.DisableTrial(service, trial)
	r.writeThrough()
}

func (r *RedisStore) EnableTrial(service, trial string) {
	r.Memory.EnableTrial(service, trial)
	r.writeThrough()
}

func (r *RedisStore) Restore(st State) {
	r.Memory.Restore(st)
	r.writeThrough()
}

// Sync pushes the full in-memory state to Redis synchronously. Long-running
// processes rely on write-through instead; Sync exists for short-lived
// callers (CLI tooling, shutdown hooks) that would otherwise exit before an
// asynchronous write lands.
func (r *RedisStore) Sync(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.pushState(ctx)
}

func (r *RedisStore) push(ctx context.Context) error {
	st := r.Memory.State()
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.experimentsKey(), r.trialsKey())
	for _, svc := range st.Experiments {
		pipe.SAdd(ctx, r.experimentsKey(), svc)
	}
	for _, ref := range st.Trials {
		pipe.SAdd(ctx, r.trialsKey(), trialMember(ref.Service, ref.Trial))
	}
	_, err := pipe.Exec(ctx)
	return err
}

// writeThrough pushes the full snapshot in the background. Pushing the
// snapshot instead of the individual SAdd/SRem keeps rapid toggles on the
// same switch from leaving Redis contradicting in-memory state: no matter
// how the goroutines interleave under writeMu, the final push reads the
// final state.
func (r *RedisStore) writeThrough() {
	go func() {
		r.writeMu.Lock()
		defer r.writeMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), redisWriteTimeout)
		defer cancel()
		if err := r.pushState(ctx); err != nil {
			r.logger.Warn("kill-switch write-through failed", "error", err)
		}
	}()
}
