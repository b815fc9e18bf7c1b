//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/projecthub/internal/conversation"
	"github.com/ashureev/projecthub/internal/domain"
	"github.com/ashureev/projecthub/internal/identity"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

type engineFunc func(ctx context.Context, msg conversation.Message) (*conversation.Reply, error)

func (f engineFunc) Handle(ctx context.Context, msg conversation.Message) (*conversation.Reply, error) {
	return f(ctx, msg)
}

// recordingEngine echoes the message and remembers what it saw.
type recordingEngine struct {
	mu   sync.Mutex
	msgs []conversation.Message
}

func (e *recordingEngine) Handle(_ context.Context, msg conversation.Message) (*conversation.Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = append(e.msgs, msg)
	return &conversation.Reply{Reply: "echo: " + msg.Text}, nil
}

func (e *recordingEngine) last() conversation.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.msgs[len(e.msgs)-1]
}

type fakeRepo struct {
	requirements []domain.Requirement
	bugs         []domain.Bug
	queries      []domain.Query
	listErr      error
	pingErr      error
}

func (f *fakeRepo) InsertRequirement(context.Context, *domain.Requirement) error { return nil }
func (f *fakeRepo) InsertBug(context.Context, *domain.Bug) error                 { return nil }
func (f *fakeRepo) InsertQuery(context.Context, *domain.Query) error             { return nil }

func (f *fakeRepo) ListRequirements(context.Context) ([]domain.Requirement, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Requirement{}, f.requirements...), nil
}

func (f *fakeRepo) ListBugs(context.Context) ([]domain.Bug, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Bug{}, f.bugs...), nil
}

func (f *fakeRepo) ListQueries(context.Context) ([]domain.Query, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Query{}, f.queries...), nil
}

func (f *fakeRepo) Ping(context.Context) error { return f.pingErr }
func (f *fakeRepo) Close() error               { return nil }

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(identity.Middleware)
	h.RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return got
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestChatDefaultsAndReply(t *testing.T) {
	t.Parallel()

	eng := &recordingEngine{}
	router := newRouter(NewHandler(eng, &fakeRepo{}, nil, 0))

	rec := doRequest(t, router, http.MethodPost, "/chat", `{"text":"hello"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	if got["reply"] != "echo: hello" {
		t.Fatalf("reply = %v", got["reply"])
	}
	if _, ok := got["items"]; ok {
		t.Fatalf("items must be omitted for plain replies: %v", got)
	}

	msg := eng.last()
	if msg.SessionID != identity.DefaultSessionIDValue {
		t.Errorf("SessionID = %q", msg.SessionID)
	}
	if msg.Channel != "chat_http" {
		t.Errorf("Channel = %q", msg.Channel)
	}
}

func TestChatSessionResolution(t *testing.T) {
	t.Parallel()

	eng := &recordingEngine{}
	router := newRouter(NewHandler(eng, &fakeRepo{}, nil, 0))

	doRequest(t, router, http.MethodPost, "/chat", `{"text":"hi","session_id":"body-1","language":"ta"}`,
		map[string]string{identity.SessionHeaderName: "header-1"})
	if got := eng.last(); got.SessionID != "body-1" || got.Language != "ta" {
		t.Fatalf("unexpected message: %+v", got)
	}

	doRequest(t, router, http.MethodPost, "/chat", `{"text":"hi"}`,
		map[string]string{identity.SessionHeaderName: "header-1"})
	if got := eng.last(); got.SessionID != "header-1" {
		t.Fatalf("SessionID = %q, want header-1", got.SessionID)
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "empty text", body: `{"text":""}`, want: http.StatusBadRequest},
		{name: "whitespace text", body: `{"text":"   "}`, want: http.StatusBadRequest},
		{name: "missing text", body: `{}`, want: http.StatusBadRequest},
		{name: "malformed json", body: `{"text":`, want: http.StatusBadRequest},
		{name: "bad session id", body: `{"text":"hi","session_id":"a b"}`, want: http.StatusBadRequest},
		{name: "too large", body: `{"text":"` + strings.Repeat("x", 2048) + `"}`, want: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			eng := &recordingEngine{}
			router := newRouter(NewHandler(eng, &fakeRepo{}, nil, 1024))
			rec := doRequest(t, router, http.MethodPost, "/chat", tt.body, nil)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if len(eng.msgs) != 0 {
				t.Fatal("engine must not be called")
			}
		})
	}
}

func TestChatEngineError(t *testing.T) {
	t.Parallel()

	eng := engineFunc(func(context.Context, conversation.Message) (*conversation.Reply, error) {
		return nil, errors.New("insert bug: database is locked")
	})
	router := newRouter(NewHandler(eng, &fakeRepo{}, nil, 0))

	rec := doRequest(t, router, http.MethodPost, "/chat", `{"text":"Open app"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec); got["error"] == "" {
		t.Fatalf("expected error body, got %v", got)
	}
}

func TestChatReturnsItems(t *testing.T) {
	t.Parallel()

	eng := engineFunc(func(context.Context, conversation.Message) (*conversation.Reply, error) {
		return &conversation.Reply{Reply: "Here are the bugs", Items: []domain.Bug{}}, nil
	})
	router := newRouter(NewHandler(eng, &fakeRepo{}, nil, 0))

	rec := doRequest(t, router, http.MethodPost, "/chat", `{"text":"list bugs"}`, nil)
	got := decodeBody(t, rec)
	items, ok := got["items"].([]any)
	if !ok {
		t.Fatalf("expected items array, got %v", got["items"])
	}
	if len(items) != 0 {
		t.Fatalf("expected empty items, got %v", items)
	}
}

func TestChatRateLimitPerSession(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)
	router := newRouter(NewHandler(&recordingEngine{}, &fakeRepo{}, limiter, 0))

	for i := 0; i < 2; i++ {
		if rec := doRequest(t, router, http.MethodPost, "/chat", `{"text":"hi","session_id":"a"}`, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	if rec := doRequest(t, router, http.MethodPost, "/chat", `{"text":"hi","session_id":"a"}`, nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodPost, "/chat", `{"text":"hi","session_id":"b"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("other session: status = %d", rec.Code)
	}
}

func TestListEndpoints(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		requirements: []domain.Requirement{{ID: 2, Title: "b"}, {ID: 1, Title: "a"}},
		queries:      []domain.Query{{ID: 1, Title: "q", AssignedTo: "Ana"}},
	}
	router := newRouter(NewHandler(&recordingEngine{}, repo, nil, 0))

	tests := []struct {
		path      string
		wantCount int
	}{
		{"/requirement/list", 2},
		{"/bug/list", 0},
		{"/query/list", 1},
	}
	for _, tt := range tests {
		rec := doRequest(t, router, http.MethodGet, tt.path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.path, rec.Code)
		}
		got := decodeBody(t, rec)
		items, ok := got["items"].([]any)
		if !ok {
			t.Fatalf("%s: items is %T, want array", tt.path, got["items"])
		}
		if len(items) != tt.wantCount {
			t.Fatalf("%s: %d items, want %d", tt.path, len(items), tt.wantCount)
		}
	}

	rec := doRequest(t, router, http.MethodGet, "/requirement/list", "", nil)
	items := decodeBody(t, rec)["items"].([]any)
	first := items[0].(map[string]any)
	if first["id"] != float64(2) || first["title"] != "b" {
		t.Fatalf("unexpected first item: %v", first)
	}
}

func TestListEndpointError(t *testing.T) {
	t.Parallel()

	router := newRouter(NewHandler(&recordingEngine{}, &fakeRepo{listErr: errors.New("boom")}, nil, 0))
	rec := doRequest(t, router, http.MethodGet, "/bug/list", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		repo       *fakeRepo
		sessions   Pinger
		wantStatus int
		wantState  string
	}{
		{name: "healthy", repo: &fakeRepo{}, wantStatus: http.StatusOK, wantState: "healthy"},
		{name: "database down", repo: &fakeRepo{pingErr: errors.New("down")}, wantStatus: http.StatusServiceUnavailable, wantState: "degraded"},
		{
			name:       "sessions down",
			repo:       &fakeRepo{},
			sessions:   pingFunc(func(context.Context) error { return errors.New("redis down") }),
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "degraded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := chi.NewRouter()
			NewHealthHandler(tt.repo, tt.sessions, time.Second).RegisterHealth(r)
			rec := doRequest(t, r, http.MethodGet, "/health", "", nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decodeBody(t, rec)["status"]; got != tt.wantState {
				t.Fatalf("status field = %v, want %s", got, tt.wantState)
			}
		})
	}
}

func TestChatSocket(t *testing.T) {
	t.Parallel()

	eng := &recordingEngine{}
	srv := httptest.NewServer(newRouter(NewHandler(eng, &fakeRepo{}, nil, 0)))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?session_id=tab-9"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	exchange := func(frame string) map[string]any {
		t.Helper()
		if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return got
	}

	if got := exchange(`{"text":"hello"}`); got["reply"] != "echo: hello" {
		t.Fatalf("unexpected reply: %v", got)
	}
	if msg := eng.last(); msg.SessionID != "tab-9" || msg.Channel != "chat_ws" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if got := exchange(`{"text":"  "}`); got["error"] != "text is required" {
		t.Fatalf("unexpected reply: %v", got)
	}
	if got := exchange(`not json`); got["error"] != "invalid message" {
		t.Fatalf("unexpected reply: %v", got)
	}

	if got := exchange(`{"text":"again","session_id":"override"}`); got["reply"] != "echo: again" {
		t.Fatalf("unexpected reply: %v", got)
	}
	if msg := eng.last(); msg.SessionID != "override" {
		t.Fatalf("SessionID = %q, want override", msg.SessionID)
	}
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Stop)

	now := time.Now()
	limiter.now = func() time.Time { return now }
	if !limiter.Allow("a") {
		t.Fatal("first request must pass")
	}
	if limiter.Allow("a") {
		t.Fatal("second request must be limited")
	}

	now = now.Add(2 * time.Minute)
	limiter.evict()
	if n := limiter.keys(); n != 0 {
		t.Fatalf("expected idle key to be evicted, %d left", n)
	}
	if !limiter.Allow("a") {
		t.Fatal("request after window must pass")
	}
}
