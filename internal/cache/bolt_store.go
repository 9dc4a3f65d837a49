package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const cacheBucket = "responses"

// BoltStore persists cache entries in a bbolt file so results survive
// restarts. Expiry is stamped into the value envelope; expired entries
// are dropped lazily on read.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the cache database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cacheBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Get returns the stored value if present and not expired. An expired
// entry is deleted in a follow-up write transaction.
func (s *BoltStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expired bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(cacheBucket)).Get([]byte(key))
		if raw == nil {
			return nil
		}
		deadline, payload, ok := decodeEnvelope(raw)
		if !ok || time.Now().After(deadline) {
			expired = true
			return nil
		}
		value = make([]byte, len(payload))
		copy(value, payload)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if expired {
		_ = s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket([]byte(cacheBucket)).Delete([]byte(key))
		})
	}
	return value, value != nil, nil
}

// Put stores value under key with the given ttl.
func (s *BoltStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	envelope := encodeEnvelope(time.Now().Add(ttl), value)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(cacheBucket)).Put([]byte(key), envelope)
	})
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// encodeEnvelope prefixes the payload with an 8-byte unix-nano deadline.
func encodeEnvelope(deadline time.Time, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(buf[:8], uint64(deadline.UnixNano()))
	copy(buf[8:], payload)
	return buf
}

func decodeEnvelope(raw []byte) (time.Time, []byte, bool) {
	if len(raw) < 8 {
		return time.Time{}, nil, false
	}
	nanos := int64(binary.BigEndian.Uint64(raw[:8]))
	return time.Unix(0, nanos), raw[8:], true
}
