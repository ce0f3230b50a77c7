package exports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/quotedoc/jobs"
)

const keyPrefix = "quotedoc:export:"

// Store keeps export records in Redis. Records expire after the configured
// TTL together with their download link.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
	lease  time.Duration
	now    func() time.Time
}

// NewStore constructs a Store. A non-positive ttl defaults to 24 hours.
func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		client: client,
		ttl:    ttl,
		lease:  jobs.DocumentExportTimeout,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithLease overrides how long a processing record belongs to the worker
// that claimed it. After the lease a redelivered task may take it over.
func (s *Store) WithLease(d time.Duration) *Store {
	if d > 0 {
		s.lease = d
	}
	return s
}

func key(id string) string {
	return keyPrefix + id
}

// Create stores a new pending record.
func (s *Store) Create(ctx context.Context, req Request) (Record, error) {
	now := s.now()
	rec := Record{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, err
	}
	if err := s.client.Set(ctx, key(rec.ID), data, s.ttl).Err(); err != nil {
		return Record{}, fmt.Errorf("exports: create: %w", err)
	}
	return rec, nil
}

// Get loads a record.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("exports: get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("exports: decode %s: %w", id, err)
	}
	return rec, nil
}

// MarkProcessing moves a record into processing. A record already in
// processing is claimed again once its lease has run out.
func (s *Store) MarkProcessing(ctx context.Context, id string) (Record, error) {
	return s.transition(ctx, id, StatusProcessing, func(rec *Record) {
		rec.Error = ""
	})
}

// MarkReady records the stored file.
func (s *Store) MarkReady(ctx context.Context, id, filename, path string) (Record, error) {
	return s.transition(ctx, id, StatusReady, func(rec *Record) {
		rec.Filename = filename
		rec.Path = path
	})
}

// MarkFailed records the failure reason.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) (Record, error) {
	return s.transition(ctx, id, StatusFailed, func(rec *Record) {
		rec.Error = reason
	})
}

// transition applies a status change atomically with an optimistic
// WATCH/MULTI round trip. The remaining TTL is kept.
func (s *Store) transition(ctx context.Context, id string, to Status, mutate func(*Record)) (Record, error) {
	var out Record
	k := key(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("exports: decode %s: %w", id, err)
		}
		if !canTransition(rec.Status, to) && !s.leaseExpired(rec, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, rec.Status, to)
		}
		rec.Status = to
		rec.UpdatedAt = s.now()
		mutate(&rec)
		encoded, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, k, encoded, redis.SetArgs{KeepTTL: true})
			return nil
		})
		if err != nil {
			return err
		}
		out = rec
		return nil
	}
	for attempt := 0; attempt < 3; attempt++ {
		err := s.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Record{}, err
		}
		return out, nil
	}
	return Record{}, fmt.Errorf("exports: %s: concurrent update", id)
}

func (s *Store) leaseExpired(rec Record, to Status) bool {
	return rec.Status == StatusProcessing && to == StatusProcessing &&
		s.now().Sub(rec.UpdatedAt) >= s.lease
}
