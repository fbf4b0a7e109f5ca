// Package mock provides an in-memory grid.Backend. It backs the "mock"
// runtime mode and the grid sandbox when no data directory is configured.
package mock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Ratio1/people_grid_go/internal/devseed"
	"github.com/Ratio1/people_grid_go/pkg/grid"
)

// Mock holds named maps in memory. Keys are compared by their compact JSON
// encoding, so `1` and ` 1 ` address the same entry.
type Mock struct {
	mu       sync.RWMutex
	maps     map[string]map[string][]byte
	notReady bool
}

var _ grid.Backend = (*Mock)(nil)

// Option configures the mock instance.
type Option func(*Mock)

// WithNotReady makes Ping fail, which keeps grid.Connect waiting.
func WithNotReady() Option {
	return func(m *Mock) {
		m.notReady = true
	}
}

// New creates an empty mock store.
func New(opts ...Option) *Mock {
	m := &Mock{
		maps: make(map[string]map[string][]byte),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mock) String() string {
	return "mock"
}

// Seed loads entries, overwriting existing keys.
func (m *Mock) Seed(entries []devseed.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range entries {
		if strings.TrimSpace(e.Map) == "" {
			return fmt.Errorf("mock grid: seed entry %d missing map", i)
		}
		key, err := canonicalKey(e.Key)
		if err != nil {
			return fmt.Errorf("mock grid: seed entry %d: %w", i, err)
		}
		value := append([]byte(nil), e.Value...)
		if len(bytes.TrimSpace(value)) == 0 {
			value = []byte("null")
		}
		m.bucket(e.Map, true)[key] = value
	}
	return nil
}

func (m *Mock) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.notReady {
		return fmt.Errorf("mock grid: not ready")
	}
	return nil
}

func (m *Mock) Get(ctx context.Context, mapName string, key []byte) ([]byte, error) {
	k, err := m.check(ctx, mapName, key)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.bucket(mapName, false)[k]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (m *Mock) Put(ctx context.Context, mapName string, key, value []byte) ([]byte, error) {
	k, err := m.check(ctx, mapName, key)
	if err != nil {
		return nil, err
	}
	if !json.Valid(value) {
		return nil, fmt.Errorf("mock grid: value is not valid JSON")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.bucket(mapName, true)
	prev := bucket[k]
	bucket[k] = append([]byte(nil), value...)
	return prev, nil
}

func (m *Mock) Remove(ctx context.Context, mapName string, key []byte) ([]byte, error) {
	k, err := m.check(ctx, mapName, key)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.bucket(mapName, false)
	prev, ok := bucket[k]
	if !ok {
		return nil, nil
	}
	delete(bucket, k)
	if len(bucket) == 0 {
		delete(m.maps, mapName)
	}
	return prev, nil
}

func (m *Mock) Values(ctx context.Context, mapName string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	bucket := m.bucket(mapName, false)
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([][]byte, 0, len(keys))
	for _, k := range keys {
		values = append(values, append([]byte(nil), bucket[k]...))
	}
	return values, nil
}

func (m *Mock) Size(ctx context.Context, mapName string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bucket(mapName, false)), nil
}

func (m *Mock) Clear(ctx context.Context, mapName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.maps, mapName)
	return nil
}

// Close is a no-op; the data stays available to other sessions.
func (m *Mock) Close() error {
	return nil
}

// bucket must be called with m.mu held.
func (m *Mock) bucket(mapName string, create bool) map[string][]byte {
	b := m.maps[mapName]
	if b == nil && create {
		b = make(map[string][]byte)
		m.maps[mapName] = b
	}
	return b
}

func (m *Mock) check(ctx context.Context, mapName string, key []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(mapName) == "" {
		return "", grid.ErrInvalidMapName
	}
	return canonicalKey(key)
}

func canonicalKey(key []byte) (string, error) {
	if len(bytes.TrimSpace(key)) == 0 {
		return "", fmt.Errorf("mock grid: key is required")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, key); err != nil {
		return "", fmt.Errorf("mock grid: key is not valid JSON: %w", err)
	}
	return buf.String(), nil
}
