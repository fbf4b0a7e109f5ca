package gridenv_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/Ratio1/people_grid_go/internal/config"
	"github.com/Ratio1/people_grid_go/internal/sandbox"
	"github.com/Ratio1/people_grid_go/pkg/grid"
	"github.com/Ratio1/people_grid_go/pkg/grid/mock"
	"github.com/Ratio1/people_grid_go/pkg/gridenv"
)

type person struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestConnectHTTPMode(t *testing.T) {
	srv := httptest.NewServer(sandbox.New(mock.New(), sandbox.Options{}))
	defer srv.Close()

	cfg := config.Default().Grid
	cfg.Mode = config.ModeHTTP
	cfg.Address = srv.URL

	session, mode, err := gridenv.Connect(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer session.Close()
	if mode != config.ModeHTTP {
		t.Fatalf("expected http mode, got %q", mode)
	}

	people, err := grid.GetMap[int, person](session, "people")
	if err != nil {
		t.Fatalf("GetMap: %v", err)
	}
	if _, err := people.Put(context.Background(), 1, person{ID: 1, Name: "Ann", Age: 30}); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestConnectAutoFallsBackToMock(t *testing.T) {
	cfg := config.Default().Grid
	cfg.Address = ""

	session, mode, err := gridenv.Connect(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer session.Close()
	if mode != config.ModeMock {
		t.Fatalf("expected mock mode, got %q", mode)
	}
}

func TestConnectMockSeed(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	body := "- map: people\n  key: 7\n  value: {id: 7, name: Sam, age: 19}\n"
	if err := os.WriteFile(seed, []byte(body), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	cfg := config.Default().Grid
	cfg.Mode = config.ModeMock
	cfg.MockSeed = seed

	session, _, err := gridenv.Connect(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer session.Close()

	people, err := grid.GetMap[int, person](session, "people")
	if err != nil {
		t.Fatalf("GetMap: %v", err)
	}
	got, err := people.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Name != "Sam" || got.Age != 19 {
		t.Fatalf("unexpected seeded person %#v", got)
	}
}

func TestConnectErrors(t *testing.T) {
	cfg := config.Default().Grid
	cfg.Mode = config.ModeHTTP
	cfg.Address = ""
	if _, _, err := gridenv.Connect(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for http mode without address")
	}

	cfg = config.Default().Grid
	cfg.Mode = "carrier-pigeon"
	if _, _, err := gridenv.Connect(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for unknown mode")
	}

	cfg = config.Default().Grid
	cfg.Mode = config.ModeMock
	cfg.MockSeed = filepath.Join(t.TempDir(), "missing.json")
	if _, _, err := gridenv.Connect(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for missing seed")
	}
}

func TestConnectUnreachableGrid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "starting", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := config.Default().Grid
	cfg.Address = srv.URL
	cfg.ReadyTimeoutMillis = 200

	_, _, err := gridenv.Connect(context.Background(), cfg, nil)
	if !errors.Is(err, grid.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}
