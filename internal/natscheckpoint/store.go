// Package natscheckpoint stores checkpoint records in a NATS JetStream
// key-value bucket, one JSON document per run.
package natscheckpoint

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/specialistvlad/pipegrid/internal/checkpoint"
	"github.com/specialistvlad/pipegrid/internal/env"
)

// DefaultBucket is the KV bucket used when none is configured.
const DefaultBucket = "PIPEGRID_CHECKPOINTS"

// maxUpdateAttempts bounds the compare-and-set retry loop. Writers in this
// process are serialized per key, so conflicts only come from other processes.
const maxUpdateAttempts = 16

const (
	minRetryDelay = 5 * time.Millisecond
	maxRetryDelay = 500 * time.Millisecond
)

// Config holds the connection settings.
type Config struct {
	URL    string
	Bucket string
}

// ConfigFromEnv reads PIPEGRID_NATS_URL and PIPEGRID_CHECKPOINT_BUCKET.
func ConfigFromEnv() Config {
	return Config{
		URL:    env.String(env.Prefix+"NATS_URL", nats.DefaultURL),
		Bucket: env.String(env.Prefix+"CHECKPOINT_BUCKET", DefaultBucket),
	}
}

// Connect opens a connection and a JetStream context. The caller owns the
// returned connection.
func Connect(cfg Config) (*nats.Conn, jetstream.JetStream, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return conn, js, nil
}

// Store is a checkpoint.Store backed by a JetStream KV bucket. Updates use
// the entry revision for compare-and-set, so concurrent appends are retried
// instead of lost.
type Store struct {
	kv jetstream.KeyValue

	locks sync.Map // run id -> *sync.Mutex
	// backoff returns the pause before retry number attempt (from 1).
	backoff func(attempt int) time.Duration
}

// New opens the bucket, creating it if needed.
func New(ctx context.Context, js jetstream.JetStream, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("natscheckpoint: open bucket %s: %w", bucket, err)
	}
	return &Store{kv: kv, backoff: jitteredBackoff}, nil
}

// jitteredBackoff doubles from minRetryDelay up to maxRetryDelay and picks a
// random pause in the upper half of that window.
func jitteredBackoff(attempt int) time.Duration {
	d := maxRetryDelay
	if attempt < 8 {
		d = min(minRetryDelay<<(attempt-1), maxRetryDelay)
	}
	return d/2 + rand.N(d/2+1)
}

func (s *Store) lock(id string) func() {
	m, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "pipegrid run checkpoints",
		History:     1,
	})
}

// KV keys are limited to a small alphabet; run ids are not.
func key(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}

func isRevisionConflict(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

func (s *Store) get(ctx context.Context, id string) (*checkpoint.Record, uint64, error) {
	entry, err := s.kv.Get(ctx, key(id))
	if err != nil {
		if isNotFound(err) {
			return nil, 0, checkpoint.ErrNotFound
		}
		return nil, 0, err
	}
	var rec checkpoint.Record
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, 0, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, entry.Revision(), nil
}

// FindLatest scans the bucket and returns the newest record for the name.
func (s *Store) FindLatest(ctx context.Context, pipelineName string) (*checkpoint.Record, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, checkpoint.ErrNotFound
		}
		return nil, fmt.Errorf("natscheckpoint: list keys: %w", err)
	}

	var matching []*checkpoint.Record
	for _, k := range keys {
		entry, err := s.kv.Get(ctx, k)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("natscheckpoint: get %s: %w", k, err)
		}
		var rec checkpoint.Record
		if err := json.Unmarshal(entry.Value(), &rec); err != nil {
			return nil, fmt.Errorf("natscheckpoint: unmarshal %s: %w", k, err)
		}
		if rec.PipelineName == pipelineName {
			matching = append(matching, &rec)
		}
	}
	latest := checkpoint.Latest(matching)
	if latest == nil {
		return nil, checkpoint.ErrNotFound
	}
	return latest, nil
}

// CreateIfAbsent stores rec unless its key exists.
func (s *Store) CreateIfAbsent(ctx context.Context, rec *checkpoint.Record) (bool, error) {
	c := rec.Clone()
	if c.CompletedTasks == nil {
		c.CompletedTasks = []string{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return false, fmt.Errorf("natscheckpoint: marshal %s: %w", rec.ID, err)
	}
	if _, err := s.kv.Create(ctx, key(rec.ID), data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return false, nil
		}
		return false, fmt.Errorf("natscheckpoint: create %s: %w", rec.ID, err)
	}
	return true, nil
}

func (s *Store) update(ctx context.Context, id string, fn func(*checkpoint.Record)) error {
	unlock := s.lock(id)
	defer unlock()

	for attempt := range maxUpdateAttempts {
		if attempt > 0 && s.backoff != nil {
			if err := sleep(ctx, s.backoff(attempt)); err != nil {
				return fmt.Errorf("natscheckpoint: update %s: %w", id, err)
			}
		}
		rec, rev, err := s.get(ctx, id)
		if err != nil {
			return fmt.Errorf("natscheckpoint: load %s: %w", id, err)
		}
		fn(rec)
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("natscheckpoint: marshal %s: %w", id, err)
		}
		_, err = s.kv.Update(ctx, key(id), data, rev)
		if err == nil {
			return nil
		}
		if !isRevisionConflict(err) {
			return fmt.Errorf("natscheckpoint: update %s: %w", id, err)
		}
	}
	return fmt.Errorf("natscheckpoint: update %s: too many concurrent writers", id)
}

// MarkCompleted sets the completed flag of the record.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	return s.update(ctx, id, func(r *checkpoint.Record) { r.IsCompleted = true })
}

// AppendCompletedTask appends hash to the record's completed tasks.
func (s *Store) AppendCompletedTask(ctx context.Context, id, hash string) error {
	return s.update(ctx, id, func(r *checkpoint.Record) {
		r.CompletedTasks = append(r.CompletedTasks, hash)
	})
}

// IsTaskCompleted reports whether hash was recorded for the run.
func (s *Store) IsTaskCompleted(ctx context.Context, id, hash string) (bool, error) {
	rec, _, err := s.get(ctx, id)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("natscheckpoint: load %s: %w", id, err)
	}
	return rec.HasTask(hash), nil
}
