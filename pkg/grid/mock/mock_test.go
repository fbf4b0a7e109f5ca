package mock_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Ratio1/people_grid_go/internal/devseed"
	"github.com/Ratio1/people_grid_go/pkg/grid"
	"github.com/Ratio1/people_grid_go/pkg/grid/mock"
)

type sample struct {
	Value string `json:"value"`
}

func TestMockPutReturnsPrevious(t *testing.T) {
	m := mock.New()
	ctx := context.Background()

	prev, err := m.Put(ctx, "samples", []byte(`"a"`), []byte(`{"value":"v1"}`))
	if err != nil || prev != nil {
		t.Fatalf("first Put: %q, %v", prev, err)
	}
	prev, err = m.Put(ctx, "samples", []byte(` "a" `), []byte(`{"value":"v2"}`))
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if string(prev) != `{"value":"v1"}` {
		t.Fatalf("expected previous value, got %q", prev)
	}
	got, err := m.Get(ctx, "samples", []byte(`"a"`))
	if err != nil || string(got) != `{"value":"v2"}` {
		t.Fatalf("Get returned %q, %v", got, err)
	}
}

func TestMockRemoveAndClear(t *testing.T) {
	m := mock.New()
	ctx := context.Background()

	if removed, err := m.Remove(ctx, "samples", []byte("1")); err != nil || removed != nil {
		t.Fatalf("Remove missing: %q, %v", removed, err)
	}
	for _, k := range []string{"1", "2", "3"} {
		if _, err := m.Put(ctx, "samples", []byte(k), []byte(`{}`)); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
	}
	if removed, err := m.Remove(ctx, "samples", []byte("2")); err != nil || string(removed) != `{}` {
		t.Fatalf("Remove: %q, %v", removed, err)
	}
	if n, _ := m.Size(ctx, "samples"); n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
	if err := m.Clear(ctx, "samples"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	values, err := m.Values(ctx, "samples")
	if err != nil || len(values) != 0 {
		t.Fatalf("Values after Clear: %d, %v", len(values), err)
	}
}

func TestMockValidation(t *testing.T) {
	m := mock.New()
	ctx := context.Background()

	if _, err := m.Put(ctx, "", []byte("1"), []byte(`{}`)); !errors.Is(err, grid.ErrInvalidMapName) {
		t.Fatalf("expected ErrInvalidMapName, got %v", err)
	}
	if _, err := m.Put(ctx, "samples", []byte("{bad"), []byte(`{}`)); err == nil {
		t.Fatalf("expected error for invalid key")
	}
	if _, err := m.Put(ctx, "samples", []byte("1"), []byte(`{bad`)); err == nil {
		t.Fatalf("expected error for invalid value")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.Get(cancelled, "samples", []byte("1")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMockSeed(t *testing.T) {
	m := mock.New()
	err := m.Seed([]devseed.Entry{
		{Map: "samples", Key: json.RawMessage(`1`), Value: json.RawMessage(`{"value":"seeded"}`)},
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	session, err := grid.Connect(context.Background(), m)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	samples, err := grid.GetMap[int, sample](session, "samples")
	if err != nil {
		t.Fatalf("GetMap: %v", err)
	}
	got, err := samples.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Value != "seeded" {
		t.Fatalf("unexpected seeded value %#v", got)
	}

	if err := m.Seed([]devseed.Entry{{Key: json.RawMessage(`1`)}}); err == nil {
		t.Fatalf("expected error for entry without map")
	}
}

func TestMockNotReady(t *testing.T) {
	m := mock.New(mock.WithNotReady())
	_, err := grid.Connect(context.Background(), m, grid.WithReadyTimeout(150*time.Millisecond))
	if !errors.Is(err, grid.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestMockConcurrentWriters(t *testing.T) {
	m := mock.New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key, _ := json.Marshal(i)
			if _, err := m.Put(ctx, "samples", key, []byte(`{}`)); err != nil {
				t.Errorf("Put %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if n, _ := m.Size(ctx, "samples"); n != 50 {
		t.Fatalf("expected 50 entries, got %d", n)
	}
}
