package grid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/Ratio1/people_grid_go/internal/gridapi"
	"github.com/Ratio1/people_grid_go/internal/httpx"
)

// EntryRequest is the body of a PUT to /maps/{map}/entry.
type EntryRequest struct {
	Key   json.RawMessage `json:"key"`
	Value json.RawMessage `json:"value"`
}

type httpBackend struct {
	client *httpx.Client
}

var _ Backend = (*httpBackend)(nil)

func newHTTPBackend(address string, o options) (*httpBackend, error) {
	httpOpts := []httpx.Option{
		httpx.WithHeader(SessionHeader, o.sessionID.String()),
		httpx.WithLogger(o.logger.With(zap.String("component", "grid-http"))),
	}
	if o.retryPolicy != nil {
		httpOpts = append(httpOpts, httpx.WithRetryPolicy(*o.retryPolicy))
	}
	client, err := httpx.NewClient(address, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("grid: init HTTP backend: %w", err)
	}
	return &httpBackend{client: client}, nil
}

func (b *httpBackend) String() string {
	return b.client.BaseURL()
}

func (b *httpBackend) Ping(ctx context.Context) error {
	data, err := b.client.Do(ctx, &httpx.Request{
		Method:       http.MethodGet,
		Path:         "/ready",
		DisableRetry: true,
	})
	if err != nil {
		return err
	}
	var ready bool
	if err := gridapi.DecodeResult(data, &ready); err != nil {
		return fmt.Errorf("decode ready reply: %w", err)
	}
	if !ready {
		return fmt.Errorf("grid proxy reported not ready")
	}
	return nil
}

func (b *httpBackend) Get(ctx context.Context, mapName string, key []byte) ([]byte, error) {
	data, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   entryPath(mapName),
		Query:  url.Values{"key": {string(key)}},
	})
	if err != nil {
		return nil, err
	}
	return gridapi.ExtractResult(data)
}

func (b *httpBackend) Put(ctx context.Context, mapName string, key, value []byte) ([]byte, error) {
	body, err := encodeJSON(EntryRequest{Key: key, Value: value})
	if err != nil {
		return nil, err
	}
	data, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodPut,
		Path:   entryPath(mapName),
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	return gridapi.ExtractResult(data)
}

func (b *httpBackend) Remove(ctx context.Context, mapName string, key []byte) ([]byte, error) {
	data, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodDelete,
		Path:   entryPath(mapName),
		Query:  url.Values{"key": {string(key)}},
	})
	if err != nil {
		return nil, err
	}
	return gridapi.ExtractResult(data)
}

func (b *httpBackend) Values(ctx context.Context, mapName string) ([][]byte, error) {
	data, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   mapPath(mapName) + "/values",
	})
	if err != nil {
		return nil, err
	}
	var raws []json.RawMessage
	if err := gridapi.DecodeResult(data, &raws); err != nil {
		return nil, fmt.Errorf("decode values reply: %w", err)
	}
	values := make([][]byte, 0, len(raws))
	for _, raw := range raws {
		values = append(values, []byte(raw))
	}
	return values, nil
}

func (b *httpBackend) Size(ctx context.Context, mapName string) (int, error) {
	data, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   mapPath(mapName) + "/size",
	})
	if err != nil {
		return 0, err
	}
	var n int
	if err := gridapi.DecodeResult(data, &n); err != nil {
		return 0, fmt.Errorf("decode size reply: %w", err)
	}
	return n, nil
}

func (b *httpBackend) Clear(ctx context.Context, mapName string) error {
	_, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodDelete,
		Path:   mapPath(mapName),
	})
	return err
}

func (b *httpBackend) Close() error {
	return nil
}

func mapPath(mapName string) string {
	return "/maps/" + url.PathEscape(mapName)
}

func entryPath(mapName string) string {
	return mapPath(mapName) + "/entry"
}
