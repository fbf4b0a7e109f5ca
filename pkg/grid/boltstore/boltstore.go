// Package boltstore is a grid.Backend persisted in a bbolt database file.
// Each named map is a top-level bucket; keys are the compact JSON encoding of
// the map key.
package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Ratio1/people_grid_go/internal/devseed"
	"github.com/Ratio1/people_grid_go/pkg/grid"
)

// Store is a bbolt-backed grid.Backend.
type Store struct {
	db *bolt.DB
}

var _ grid.Backend = (*Store)(nil)

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) String() string {
	return "bbolt:" + s.db.Path()
}

// Seed writes entries in a single transaction.
func (s *Store) Seed(entries []devseed.Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for i, e := range entries {
			key, err := canonicalKey(e.Key)
			if err != nil {
				return fmt.Errorf("boltstore: seed entry %d: %w", i, err)
			}
			b, err := tx.CreateBucketIfNotExists([]byte(e.Map))
			if err != nil {
				return fmt.Errorf("boltstore: seed entry %d: %w", i, err)
			}
			value := e.Value
			if len(bytes.TrimSpace(value)) == 0 {
				value = []byte("null")
			}
			if err := b.Put(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error { return nil })
}

func (s *Store) Get(ctx context.Context, mapName string, key []byte) ([]byte, error) {
	k, err := check(ctx, mapName, key)
	if err != nil {
		return nil, err
	}
	var out []byte
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(mapName))
		if b == nil {
			return nil
		}
		out = copyBytes(b.Get(k))
		return nil
	})
	return out, err
}

func (s *Store) Put(ctx context.Context, mapName string, key, value []byte) ([]byte, error) {
	k, err := check(ctx, mapName, key)
	if err != nil {
		return nil, err
	}
	if !json.Valid(value) {
		return nil, fmt.Errorf("boltstore: value is not valid JSON")
	}
	var prev []byte
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(mapName))
		if err != nil {
			return err
		}
		prev = copyBytes(b.Get(k))
		return b.Put(k, value)
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

func (s *Store) Remove(ctx context.Context, mapName string, key []byte) ([]byte, error) {
	k, err := check(ctx, mapName, key)
	if err != nil {
		return nil, err
	}
	var prev []byte
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(mapName))
		if b == nil {
			return nil
		}
		prev = copyBytes(b.Get(k))
		if prev == nil {
			return nil
		}
		return b.Delete(k)
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

func (s *Store) Values(ctx context.Context, mapName string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values := [][]byte{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(mapName))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			values = append(values, copyBytes(v))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

func (s *Store) Size(ctx context.Context, mapName string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(mapName))
		if b == nil {
			return nil
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) Clear(ctx context.Context, mapName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(mapName))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func check(ctx context.Context, mapName string, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(mapName) == "" {
		return nil, grid.ErrInvalidMapName
	}
	return canonicalKey(key)
}

func canonicalKey(key []byte) ([]byte, error) {
	if len(bytes.TrimSpace(key)) == 0 {
		return nil, fmt.Errorf("boltstore: key is required")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, key); err != nil {
		return nil, fmt.Errorf("boltstore: key is not valid JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// copyBytes detaches v from the transaction; bbolt slices are only valid
// until the transaction ends.
func copyBytes(v []byte) []byte {
	if v == nil {
		return nil
	}
	return append([]byte(nil), v...)
}
