package people

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/Ratio1/people_grid_go/pkg/grid"
	"github.com/Ratio1/people_grid_go/pkg/grid/mock"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	session, err := grid.Connect(context.Background(), mock.New())
	assert.NilError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	people, err := grid.GetMap[int, Person](session, MapName)
	assert.NilError(t, err)
	return NewServer(people, WithLogger(zaptest.NewLogger(t)))
}

type response struct {
	code   int
	body   string
	header http.Header
}

func call(t *testing.T, h http.Handler, method, target, body string) response {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return response{code: rec.Code, body: rec.Body.String(), header: rec.Header()}
}

func TestScenarioAnn(t *testing.T) {
	srv := newTestServer(t)

	res := call(t, srv, http.MethodPost, "/api/people", `{"id":1,"name":"Ann","age":30}`)
	assert.Equal(t, res.code, http.StatusCreated)
	assert.Equal(t, res.body, `{"id":1,"name":"Ann","age":30}`)
	assert.Equal(t, res.header.Get("Content-Type"), "application/json")

	res = call(t, srv, http.MethodGet, "/api/people/1", "")
	assert.Equal(t, res.code, http.StatusOK)
	assert.Equal(t, res.body, `{"id":1,"name":"Ann","age":30}`)

	res = call(t, srv, http.MethodDelete, "/api/people/1", "")
	assert.Equal(t, res.code, http.StatusOK)
	assert.Equal(t, res.body, "")

	res = call(t, srv, http.MethodGet, "/api/people/1", "")
	assert.Equal(t, res.code, http.StatusNotFound)
	assert.Equal(t, res.body, "")
}

func TestCreateThenGetRoundTrips(t *testing.T) {
	payloads := []Person{
		{ID: 1, Name: "Ann", Age: 30},
		{ID: 0, Name: "", Age: 0},
		{ID: -42, Name: "Zoë <o'Brien> & co", Age: 120},
		{ID: 2147483647, Name: "北京", Age: 1},
	}
	srv := newTestServer(t)

	for _, p := range payloads {
		res := call(t, srv, http.MethodPost, "/api/people", mustJSON(t, p))
		assert.Equal(t, res.code, http.StatusCreated, p.Name)

		res = call(t, srv, http.MethodGet, "/api/people/"+itoa(p.ID), "")
		assert.Equal(t, res.code, http.StatusOK, p.Name)
		assert.Check(t, is.Equal(gjson.Get(res.body, "id").Int(), int64(p.ID)))
		assert.Check(t, is.Equal(gjson.Get(res.body, "name").String(), p.Name))
		assert.Check(t, is.Equal(gjson.Get(res.body, "age").Int(), int64(p.Age)))
	}
}

func TestGetUnknownIDIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	res := call(t, srv, http.MethodGet, "/api/people/404", "")
	assert.Equal(t, res.code, http.StatusNotFound)
	assert.Equal(t, res.body, "")
}

func TestDeleteUnknownIDIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	res := call(t, srv, http.MethodDelete, "/api/people/9", "")
	assert.Equal(t, res.code, http.StatusNotFound)
	assert.Equal(t, res.body, "")
}

func TestCreateOverwritesExistingID(t *testing.T) {
	srv := newTestServer(t)

	res := call(t, srv, http.MethodPost, "/api/people", `{"id":5,"name":"Old","age":50}`)
	assert.Equal(t, res.code, http.StatusCreated)
	res = call(t, srv, http.MethodPost, "/api/people", `{"id":5,"name":"New","age":51}`)
	assert.Equal(t, res.code, http.StatusCreated)

	res = call(t, srv, http.MethodGet, "/api/people/5", "")
	assert.Equal(t, res.body, `{"id":5,"name":"New","age":51}`)

	res = call(t, srv, http.MethodGet, "/api/people", "")
	assert.Check(t, is.Equal(gjson.Get(res.body, "#").Int(), int64(1)))
}

func TestListReturnsEveryRecord(t *testing.T) {
	srv := newTestServer(t)

	res := call(t, srv, http.MethodGet, "/api/people", "")
	assert.Equal(t, res.code, http.StatusOK)
	assert.Equal(t, res.body, "[]")

	const n = 12
	for i := 1; i <= n; i++ {
		p := Person{ID: i, Name: "person-" + itoa(i), Age: 20 + i}
		assert.Equal(t, call(t, srv, http.MethodPost, "/api/people", mustJSON(t, p)).code, http.StatusCreated)
	}

	res = call(t, srv, http.MethodGet, "/api/people", "")
	assert.Equal(t, res.code, http.StatusOK)
	records := gjson.Parse(res.body).Array()
	assert.Assert(t, is.Len(records, n))

	seen := map[int64]bool{}
	for _, r := range records {
		id := r.Get("id").Int()
		seen[id] = true
		assert.Check(t, is.Equal(r.Get("name").String(), "person-"+itoa(int(id))))
		assert.Check(t, is.Equal(r.Get("age").Int(), 20+id))
	}
	assert.Check(t, is.Len(seen, n))
}

func TestCreateRejectsIncompleteBodies(t *testing.T) {
	bodies := map[string]string{
		"missing id":   `{"name":"Ann","age":30}`,
		"missing name": `{"id":1,"age":30}`,
		"missing age":  `{"id":1,"name":"Ann"}`,
		"not json":     `id=1`,
		"empty":        ``,
		"array":        `[{"id":1,"name":"Ann","age":30}]`,
		"wrong type":   `{"id":"one","name":"Ann","age":30}`,
		"all null":     `{"id":null,"name":null,"age":null}`,
		"null name":    `{"id":1,"name":null,"age":30}`,
	}
	srv := newTestServer(t)

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			res := call(t, srv, http.MethodPost, "/api/people", body)
			assert.Equal(t, res.code, http.StatusInternalServerError)
			assert.Equal(t, strings.TrimSpace(res.body), "Internal Server Error")
		})
	}

	res := call(t, srv, http.MethodGet, "/api/people", "")
	assert.Equal(t, res.body, "[]")
}

func TestUnparsableIDIsServerError(t *testing.T) {
	srv := newTestServer(t)
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		res := call(t, srv, method, "/api/people/abc", "")
		assert.Equal(t, res.code, http.StatusInternalServerError, method)
	}
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, int) (*Person, error) { return nil, f.err }
func (f failingStore) Put(context.Context, int, Person) (*Person, error) { return nil, f.err }
func (f failingStore) Remove(context.Context, int) (*Person, error) { return nil, f.err }
func (f failingStore) Values(context.Context) ([]Person, error) { return nil, f.err }

func TestStoreFailuresAreServerErrors(t *testing.T) {
	srv := NewServer(failingStore{err: errors.New("grid unreachable")}, WithLogger(zaptest.NewLogger(t)))

	requests := []struct{ method, target, body string }{
		{http.MethodGet, "/api/people", ""},
		{http.MethodPost, "/api/people", `{"id":1,"name":"Ann","age":30}`},
		{http.MethodGet, "/api/people/1", ""},
		{http.MethodDelete, "/api/people/1", ""},
	}
	for _, r := range requests {
		res := call(t, srv, r.method, r.target, r.body)
		assert.Check(t, is.Equal(res.code, http.StatusInternalServerError), r.method+" "+r.target)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	res := call(t, srv, http.MethodGet, "/api/people", "")
	assert.Check(t, res.header.Get(RequestIDHeader) != "")

	req := httptest.NewRequest(http.MethodGet, "/api/people", nil)
	req.Header.Set(RequestIDHeader, "trace-123")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, rec.Header().Get(RequestIDHeader), "trace-123")
}

func TestRequestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	session, err := grid.Connect(context.Background(), mock.New())
	assert.NilError(t, err)
	defer session.Close()
	people, err := grid.GetMap[int, Person](session, MapName)
	assert.NilError(t, err)
	srv := NewServer(people, WithRegistry(reg))

	call(t, srv, http.MethodPost, "/api/people", `{"id":1,"name":"Ann","age":30}`)
	call(t, srv, http.MethodGet, "/api/people/1", "")
	call(t, srv, http.MethodGet, "/api/people/2", "")
	call(t, srv, http.MethodGet, "/api/people/2", "")

	assert.Check(t, is.Equal(testutil.ToFloat64(srv.metrics.requests.WithLabelValues("create", "201")), 1.0))
	assert.Check(t, is.Equal(testutil.ToFloat64(srv.metrics.requests.WithLabelValues("get", "200")), 1.0))
	assert.Check(t, is.Equal(testutil.ToFloat64(srv.metrics.requests.WithLabelValues("get", "404")), 2.0))
	assert.Check(t, is.Equal(testutil.CollectAndCount(srv.metrics.duration), 2))

	res := call(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, res.code, http.StatusOK)
	assert.Check(t, is.Contains(res.body, `people_http_requests_total{code="404",route="get"} 2`))
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestGridCollector(t *testing.T) {
	expected := func(v string) *strings.Reader {
		return strings.NewReader(`
# HELP people_grid_up Whether the grid answered a ping during the last scrape.
# TYPE people_grid_up gauge
people_grid_up ` + v + `
`)
	}

	err := testutil.CollectAndCompare(NewGridCollector(stubPinger{}, nil), expected("1"))
	assert.NilError(t, err)

	err = testutil.CollectAndCompare(NewGridCollector(stubPinger{err: errors.New("down")}, zaptest.NewLogger(t)), expected("0"))
	assert.NilError(t, err)

	session, err := grid.Connect(context.Background(), mock.New())
	assert.NilError(t, err)
	assert.NilError(t, session.Close())
	err = testutil.CollectAndCompare(NewGridCollector(session, nil), expected("0"))
	assert.NilError(t, err)
}
