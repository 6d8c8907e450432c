// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

// Package redis keeps content hashes of ingested documents in Redis so
// duplicates are recognised across restarts and replicas.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docsort-dev/docsort/internal/store"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

const keyPrefix = "docsort:dedup:"

// DefaultTTL is how long a hash is remembered.
const DefaultTTL = 30 * 24 * time.Hour

var _ store.Deduper = (*Deduper)(nil)

// Config holds Redis connection configuration.
type Config struct {
	URL      string
	Password string
	TTL      time.Duration
}

// Deduper implements store.Deduper on Redis string keys with a TTL.
type Deduper struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, cfg Config) (*Deduper, *redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, dserr.Wrap(err, dserr.CodeConfigValidateInvalidValue, "parsing redis URL")
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, dserr.Wrap(err, dserr.CodeStoreCacheFailure, "connecting to redis")
	}

	return New(rdb, cfg.TTL), rdb, nil
}

// New wraps an existing client. A non-positive ttl uses DefaultTTL.
func New(rdb redis.Cmdable, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Deduper{rdb: rdb, ttl: ttl}
}

func key(hash string) string { return keyPrefix + hash }

// Seen returns the document ID remembered for hash, or "".
func (d *Deduper) Seen(ctx context.Context, hash string) (string, error) {
	id, err := d.rdb.Get(ctx, key(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", dserr.Wrap(err, dserr.CodeStoreCacheFailure, "looking up content hash")
	}
	return id, nil
}

// Remember stores hash → documentID for the configured TTL.
func (d *Deduper) Remember(ctx context.Context, hash, documentID string) error {
	if err := d.rdb.Set(ctx, key(hash), documentID, d.ttl).Err(); err != nil {
		return dserr.Wrap(err, dserr.CodeStoreCacheFailure, "remembering content hash",
			dserr.FieldDocumentID(documentID))
	}
	return nil
}
