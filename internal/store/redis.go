package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docuforge/api/internal/model"
)

// RedisStore is the distributed backend. Records are JSON documents with a
// retention TTL; compare-and-swap runs as a WATCH-guarded transaction, so a
// concurrent writer surfaces as ErrVersionConflict instead of a lost update.
// Redis gives read-your-writes per key, which is all the polling contract
// needs.
type RedisStore struct {
	redis     *redis.Client
	retention time.Duration
}

// NewRedisStore creates a Redis-backed job store. Retention bounds how long
// completed records stay readable for polling clients.
func NewRedisStore(redisClient *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisStore{
		redis:     redisClient,
		retention: retention,
	}
}

func jobKey(id string) string {
	return fmt.Sprintf("docjob:%s", id)
}

func cancelKey(id string) string {
	return fmt.Sprintf("docjob:%s:cancel", id)
}

func ownerKey(owner string) string {
	return fmt.Sprintf("docjobs:owner:%s", owner)
}

func (s *RedisStore) Create(ctx context.Context, job *model.Job) error {
	if job.Version == 0 {
		job.Version = 1
	}
	job.UpdatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, jobKey(job.ID), data, s.retention)
	pipe.SAdd(ctx, ownerKey(job.Owner), job.ID)
	pipe.Expire(ctx, ownerKey(job.Owner), s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	cancelled, err := s.redis.Exists(ctx, cancelKey(id)).Result()
	if err != nil {
		return nil, err
	}
	job.CancelRequested = cancelled > 0

	return &job, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, expectedVersion int64, mutate Mutation) (*model.Job, error) {
	key := jobKey(id)
	var updated *model.Job

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}

		var job model.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}
		if job.Version != expectedVersion {
			return ErrVersionConflict
		}

		if err := mutate(&job); err != nil {
			return err
		}
		job.Version = expectedVersion + 1
		job.UpdatedAt = time.Now()

		buf, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, buf, s.retention)
			return nil
		})
		if err != nil {
			return err
		}

		updated = &job
		return nil
	}

	if err := s.redis.Watch(ctx, txn, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// Another writer slipped in between the WATCH read and EXEC.
			return nil, ErrVersionConflict
		}
		return nil, err
	}

	cancelled, err := s.redis.Exists(ctx, cancelKey(id)).Result()
	if err == nil {
		updated.CancelRequested = cancelled > 0
	}
	return updated, nil
}

func (s *RedisStore) ListByOwner(ctx context.Context, owner string) ([]*model.Job, error) {
	ids, err := s.redis.SMembers(ctx, ownerKey(owner)).Result()
	if err != nil {
		return nil, err
	}

	var jobs []*model.Job
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Record expired; drop the stale index entry.
				s.redis.SRem(ctx, ownerKey(owner), id)
				continue
			}
			return nil, err
		}
		jobs = append(jobs, job)
	}

	// Newest first, matching the memory backend.
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (s *RedisStore) RequestCancel(ctx context.Context, id string) error {
	exists, err := s.redis.Exists(ctx, jobKey(id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return s.redis.Set(ctx, cancelKey(id), "1", s.retention).Err()
}
