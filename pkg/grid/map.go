package grid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// NamedMap is a typed handle to one named map in the grid. K and V must be
// JSON encodable. Every method is a single remote call.
type NamedMap[K comparable, V any] struct {
	session *Session
	name    string
}

// GetMap returns a handle to the map called name. The map is created lazily
// by the grid on first write.
func GetMap[K comparable, V any](s *Session, name string) (*NamedMap[K, V], error) {
	if s == nil {
		return nil, fmt.Errorf("grid: session is nil")
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidMapName
	}
	if _, err := s.active(); err != nil {
		return nil, err
	}
	return &NamedMap[K, V]{session: s, name: name}, nil
}

// Name returns the map name.
func (m *NamedMap[K, V]) Name() string {
	return m.name
}

// Get returns the value stored under key, or nil when the key is absent.
func (m *NamedMap[K, V]) Get(ctx context.Context, key K) (*V, error) {
	backend, rawKey, err := m.prepare(key)
	if err != nil {
		return nil, err
	}
	raw, err := backend.Get(ctx, m.name, rawKey)
	if err != nil {
		return nil, fmt.Errorf("grid: get %s[%s]: %w", m.name, rawKey, err)
	}
	return decodeValue[V](raw)
}

// Put stores value under key and returns the value it replaced, if any.
func (m *NamedMap[K, V]) Put(ctx context.Context, key K, value V) (*V, error) {
	backend, rawKey, err := m.prepare(key)
	if err != nil {
		return nil, err
	}
	rawValue, err := encodeJSON(value)
	if err != nil {
		return nil, fmt.Errorf("grid: encode value: %w", err)
	}
	prev, err := backend.Put(ctx, m.name, rawKey, rawValue)
	if err != nil {
		return nil, fmt.Errorf("grid: put %s[%s]: %w", m.name, rawKey, err)
	}
	return decodeValue[V](prev)
}

// Remove deletes key and returns the removed value, or nil when nothing was
// stored under key.
func (m *NamedMap[K, V]) Remove(ctx context.Context, key K) (*V, error) {
	backend, rawKey, err := m.prepare(key)
	if err != nil {
		return nil, err
	}
	prev, err := backend.Remove(ctx, m.name, rawKey)
	if err != nil {
		return nil, fmt.Errorf("grid: remove %s[%s]: %w", m.name, rawKey, err)
	}
	return decodeValue[V](prev)
}

// ContainsKey reports whether key is present.
func (m *NamedMap[K, V]) ContainsKey(ctx context.Context, key K) (bool, error) {
	backend, rawKey, err := m.prepare(key)
	if err != nil {
		return false, err
	}
	raw, err := backend.Get(ctx, m.name, rawKey)
	if err != nil {
		return false, fmt.Errorf("grid: get %s[%s]: %w", m.name, rawKey, err)
	}
	return !isNull(raw), nil
}

// Values returns every value in the map in no particular order.
func (m *NamedMap[K, V]) Values(ctx context.Context) ([]V, error) {
	backend, err := m.session.active()
	if err != nil {
		return nil, err
	}
	raws, err := backend.Values(ctx, m.name)
	if err != nil {
		return nil, fmt.Errorf("grid: values %s: %w", m.name, err)
	}
	values := make([]V, 0, len(raws))
	for _, raw := range raws {
		v, err := decodeValue[V](raw)
		if err != nil {
			return nil, err
		}
		if v != nil {
			values = append(values, *v)
		}
	}
	return values, nil
}

// Size returns the number of entries in the map.
func (m *NamedMap[K, V]) Size(ctx context.Context) (int, error) {
	backend, err := m.session.active()
	if err != nil {
		return 0, err
	}
	n, err := backend.Size(ctx, m.name)
	if err != nil {
		return 0, fmt.Errorf("grid: size %s: %w", m.name, err)
	}
	return n, nil
}

// Clear removes every entry from the map.
func (m *NamedMap[K, V]) Clear(ctx context.Context) error {
	backend, err := m.session.active()
	if err != nil {
		return err
	}
	if err := backend.Clear(ctx, m.name); err != nil {
		return fmt.Errorf("grid: clear %s: %w", m.name, err)
	}
	return nil
}

func (m *NamedMap[K, V]) prepare(key K) (Backend, []byte, error) {
	backend, err := m.session.active()
	if err != nil {
		return nil, nil, err
	}
	rawKey, err := encodeJSON(key)
	if err != nil {
		return nil, nil, fmt.Errorf("grid: encode key: %w", err)
	}
	return backend, rawKey, nil
}

func decodeValue[V any](raw []byte) (*V, error) {
	if isNull(raw) {
		return nil, nil
	}
	var value V
	if err := json.Unmarshal(bytes.TrimSpace(raw), &value); err != nil {
		return nil, fmt.Errorf("grid: decode value: %w", err)
	}
	return &value, nil
}

func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func encodeJSON(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
