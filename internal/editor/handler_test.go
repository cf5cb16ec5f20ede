package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/debemdeboas/composer/internal/assist"
	"github.com/debemdeboas/composer/internal/config"
	"github.com/debemdeboas/composer/internal/model"
	"github.com/debemdeboas/composer/internal/publish"
	"github.com/debemdeboas/composer/internal/repository/draft"
	"github.com/debemdeboas/composer/internal/sse"
)

type draftBody struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	BodyHTML string `json:"body_html"`
	Stats    struct {
		Words int `json:"words"`
	} `json:"stats"`
	Assist struct {
		Phase  string `json:"phase"`
		Action string `json:"action"`
	} `json:"assist"`
}

type testServer struct {
	*httptest.Server
	registry *Registry
	store    draft.Store
}

func newTestServer(t *testing.T, deps Deps) *testServer {
	t.Helper()
	if deps.Store == nil {
		deps.Store = draft.NewMemoryStore()
	}
	if deps.BodyInterval == 0 {
		deps.BodyInterval = time.Hour
		deps.TitleInterval = time.Hour
	}
	if deps.Events == nil {
		deps.Events = sse.NewSSEClients()
	}

	registry := NewRegistry(deps)
	mux := http.NewServeMux()
	NewHandler(registry, deps.Events).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		registry.Close()
	})
	return &testServer{Server: srv, registry: registry, store: deps.Store}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if body != nil {
		req.Header.Set(config.HCType, config.CTypeJSON)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status = %d, want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want)
	}
}

func draftPath(id model.DraftID, suffix string) string {
	return "/api/drafts/" + string(id) + suffix
}

func TestNewDraft(t *testing.T) {
	srv := newTestServer(t, Deps{})

	resp := srv.do(t, http.MethodPost, "/new/draft", nil)
	expectStatus(t, resp, http.StatusCreated)

	body := decode[struct{ ID string }](t, resp)
	if !model.DraftID(body.ID).Valid() {
		t.Errorf("id %q is not valid", body.ID)
	}

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == config.CookieDraftId {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != body.ID {
		t.Errorf("draft cookie = %+v, want value %q", cookie, body.ID)
	}

	t.Run("wrong method", func(t *testing.T) {
		resp := srv.do(t, http.MethodGet, "/new/draft", nil)
		expectStatus(t, resp, http.StatusMethodNotAllowed)
	})
}

func TestGetDraft(t *testing.T) {
	srv := newTestServer(t, Deps{})
	id := model.NewDraftID()

	t.Run("invalid id", func(t *testing.T) {
		resp := srv.do(t, http.MethodGet, "/api/drafts/not-a-uuid", nil)
		expectStatus(t, resp, http.StatusBadRequest)
	})

	resp := srv.do(t, http.MethodGet, draftPath(id, ""), nil)
	expectStatus(t, resp, http.StatusOK)
	etag := resp.Header.Get(config.HETag)
	if etag == "" {
		t.Fatal("missing ETag")
	}

	body := decode[draftBody](t, resp)
	if body.ID != string(id) || body.Title != DefaultTitle || body.Assist.Phase != "idle" {
		t.Errorf("draft = %+v", body)
	}

	t.Run("not modified", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+draftPath(id, ""), nil)
		req.Header.Set(config.HIfNoneMatch, etag)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		expectStatus(t, resp, http.StatusNotModified)
	})

	t.Run("etag changes with title", func(t *testing.T) {
		expectStatus(t, srv.do(t, http.MethodPut, draftPath(id, "/title"), map[string]string{"title": "Changed"}), http.StatusOK)

		resp := srv.do(t, http.MethodGet, draftPath(id, ""), nil)
		expectStatus(t, resp, http.StatusOK)
		if resp.Header.Get(config.HETag) == etag {
			t.Error("ETag did not change after title edit")
		}
	})

	t.Run("etag changes with selection", func(t *testing.T) {
		expectStatus(t, srv.do(t, http.MethodPost, draftPath(id, "/commands"), Command{Op: OpInsert, Nodes: paragraphs("one", "two")}), http.StatusOK)
		before := srv.do(t, http.MethodGet, draftPath(id, ""), nil).Header.Get(config.HETag)

		expectStatus(t, srv.do(t, http.MethodPost, draftPath(id, "/commands"), Command{Op: OpSelect, From: 0, To: 2}), http.StatusOK)

		req, _ := http.NewRequest(http.MethodGet, srv.URL+draftPath(id, ""), nil)
		req.Header.Set(config.HIfNoneMatch, before)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		expectStatus(t, resp, http.StatusOK)

		body := decode[struct {
			Selection *struct{ From, To int } `json:"selection"`
		}](t, resp)
		if body.Selection == nil || body.Selection.To != 2 {
			t.Errorf("selection = %+v", body.Selection)
		}
	})

	t.Run("etag changes with assist failure", func(t *testing.T) {
		remoteSrv := assistServer(t, http.StatusInternalServerError, "", nil)
		srv := newTestServer(t, Deps{Assist: assist.NewHTTPClient(remoteSrv.URL, time.Second)})
		id := model.NewDraftID()
		before := srv.do(t, http.MethodGet, draftPath(id, ""), nil).Header.Get(config.HETag)

		expectStatus(t, srv.do(t, http.MethodPost, draftPath(id, "/assist/improve"), nil), http.StatusBadGateway)

		resp := srv.do(t, http.MethodGet, draftPath(id, ""), nil)
		expectStatus(t, resp, http.StatusOK)
		if resp.Header.Get(config.HETag) == before {
			t.Error("ETag did not change after a failed assist request")
		}
	})
}

func TestPutTitle(t *testing.T) {
	srv := newTestServer(t, Deps{})
	id := model.NewDraftID()

	resp := srv.do(t, http.MethodPut, draftPath(id, "/title"), map[string]string{"title": "Hello"})
	expectStatus(t, resp, http.StatusOK)
	if body := decode[draftBody](t, resp); body.Title != "Hello" {
		t.Errorf("title = %q, want Hello", body.Title)
	}

	t.Run("missing field", func(t *testing.T) {
		resp := srv.do(t, http.MethodPut, draftPath(id, "/title"), map[string]string{})
		expectStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("malformed", func(t *testing.T) {
		resp := srv.do(t, http.MethodPut, draftPath(id, "/title"), "{")
		expectStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("saved on registry close", func(t *testing.T) {
		srv.registry.Close()
		d, found, err := srv.store.Load(context.Background(), id)
		if err != nil || !found || d.Title != "Hello" {
			t.Errorf("stored draft = %+v, found=%v, err=%v", d, found, err)
		}
	})
}

func TestPostCommand(t *testing.T) {
	srv := newTestServer(t, Deps{})
	id := model.NewDraftID()

	resp := srv.do(t, http.MethodPost, draftPath(id, "/commands"), Command{Op: OpInsert, Markup: "## Key Points\n\nsome words here"})
	expectStatus(t, resp, http.StatusOK)
	body := decode[draftBody](t, resp)
	if body.BodyHTML != "<h2>Key Points</h2><p>some words here</p>" {
		t.Errorf("body_html = %q", body.BodyHTML)
	}
	if body.Stats.Words != 5 {
		t.Errorf("words = %d, want 5", body.Stats.Words)
	}

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"malformed json", "{", http.StatusBadRequest},
		{"unknown op", Command{Op: "explode"}, http.StatusUnprocessableEntity},
		{"mark without selection", Command{Op: OpToggleMark, Mark: "bold"}, http.StatusUnprocessableEntity},
		{"bad replace doc", Command{Op: OpReplace, Doc: json.RawMessage(`{"type":"paragraph"}`)}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, srv.do(t, http.MethodPost, draftPath(id, "/commands"), tt.body), tt.status)
		})
	}
}

func assistServer(t *testing.T, status int, result string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set(config.HCType, config.CTypeJSON)
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"result": result})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPostAssist(t *testing.T) {
	t.Run("title", func(t *testing.T) {
		remoteSrv := assistServer(t, http.StatusOK, "New Title", nil)
		srv := newTestServer(t, Deps{Assist: assist.NewHTTPClient(remoteSrv.URL, time.Second)})
		id := model.NewDraftID()
		srv.do(t, http.MethodPost, draftPath(id, "/commands"), Command{Op: OpInsert, Markup: "<p>body</p>"})

		resp := srv.do(t, http.MethodPost, draftPath(id, "/assist/title"), nil)
		expectStatus(t, resp, http.StatusOK)
		body := decode[draftBody](t, resp)
		if body.Title != "New Title" || body.BodyHTML != "<p>body</p>" {
			t.Errorf("draft = %+v", body)
		}
	})

	t.Run("expand", func(t *testing.T) {
		remoteSrv := assistServer(t, http.StatusOK, "<p>more</p>", nil)
		srv := newTestServer(t, Deps{Assist: assist.NewHTTPClient(remoteSrv.URL, time.Second)})
		id := model.NewDraftID()
		srv.do(t, http.MethodPost, draftPath(id, "/commands"), Command{Op: OpInsert, Markup: "<p>body</p>"})

		resp := srv.do(t, http.MethodPost, draftPath(id, "/assist/expand"), nil)
		expectStatus(t, resp, http.StatusOK)
		if body := decode[draftBody](t, resp); body.BodyHTML != "<p>body</p><p>more</p>" {
			t.Errorf("body_html = %q", body.BodyHTML)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		var hits atomic.Int32
		remoteSrv := assistServer(t, http.StatusOK, "x", &hits)
		srv := newTestServer(t, Deps{Assist: assist.NewHTTPClient(remoteSrv.URL, time.Second)})

		expectStatus(t, srv.do(t, http.MethodPost, draftPath(model.NewDraftID(), "/assist/poem"), nil), http.StatusNotFound)
		if hits.Load() != 0 {
			t.Error("unknown action reached the assist endpoint")
		}
	})

	t.Run("remote failure", func(t *testing.T) {
		remoteSrv := assistServer(t, http.StatusInternalServerError, "", nil)
		srv := newTestServer(t, Deps{Assist: assist.NewHTTPClient(remoteSrv.URL, time.Second)})
		id := model.NewDraftID()

		resp := srv.do(t, http.MethodPost, draftPath(id, "/assist/improve"), nil)
		expectStatus(t, resp, http.StatusBadGateway)
		if body := decode[errorResponse](t, resp); body.Error == "" {
			t.Error("missing error message")
		}

		resp = srv.do(t, http.MethodGet, draftPath(id, ""), nil)
		if body := decode[draftBody](t, resp); body.Assist.Phase != "idle" {
			t.Errorf("phase after failure = %q, want idle", body.Assist.Phase)
		}
	})

	t.Run("busy", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		var calls atomic.Int32
		client := assistFunc(func(ctx context.Context, req assist.Request) (string, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			<-release
			return "<p>done</p>", nil
		})
		srv := newTestServer(t, Deps{Assist: client})
		id := model.NewDraftID()

		first := make(chan int, 1)
		go func() {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+draftPath(id, "/assist/outline"), nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				first <- 0
				return
			}
			resp.Body.Close()
			first <- resp.StatusCode
		}()
		<-started

		resp := srv.do(t, http.MethodPost, draftPath(id, "/assist/title"), nil)
		expectStatus(t, resp, http.StatusAccepted)
		state := decode[struct {
			Phase  string `json:"phase"`
			Action string `json:"action"`
		}](t, resp)
		if state.Phase != "busy" || state.Action != string(assist.ActionOutline) {
			t.Errorf("busy state = %+v", state)
		}

		close(release)
		if status := <-first; status != http.StatusOK {
			t.Errorf("first dispatch status = %d", status)
		}
		if calls.Load() != 1 {
			t.Errorf("assist called %d times, want 1", calls.Load())
		}
	})

	t.Run("not configured", func(t *testing.T) {
		srv := newTestServer(t, Deps{})
		expectStatus(t, srv.do(t, http.MethodPost, draftPath(model.NewDraftID(), "/assist/title"), nil), http.StatusServiceUnavailable)
	})
}

func TestGetActions(t *testing.T) {
	srv := newTestServer(t, Deps{})
	resp := srv.do(t, http.MethodGet, "/api/assist/actions", nil)
	expectStatus(t, resp, http.StatusOK)

	actions := decode[[]string](t, resp)
	if len(actions) != len(assist.Actions()) {
		t.Errorf("got %d actions, want %d", len(actions), len(assist.Actions()))
	}
}

func publishServer(t *testing.T, status int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPostPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		var hits atomic.Int32
		remoteSrv := publishServer(t, http.StatusCreated, &hits)
		srv := newTestServer(t, Deps{Submitter: publish.NewHTTPSubmitter(remoteSrv.URL, time.Second, nil)})
		id := model.NewDraftID()

		srv.do(t, http.MethodPut, draftPath(id, "/title"), map[string]string{"title": "Ship it"})
		srv.do(t, http.MethodPost, draftPath(id, "/commands"), Command{Op: OpInsert, Markup: "<p>body</p>"})
		title := "Ship it"
		srv.store.Save(ctx, id, draft.Patch{Title: &title, Body: &draft.Body{HTML: "<p>body</p>"}})

		resp := srv.do(t, http.MethodPost, draftPath(id, "/publish"), nil)
		expectStatus(t, resp, http.StatusOK)

		if hits.Load() != 1 {
			t.Errorf("publish endpoint hit %d times", hits.Load())
		}
		if srv.registry.Len() != 0 {
			t.Errorf("registry still holds %d sessions", srv.registry.Len())
		}
		if _, found, _ := srv.store.Load(ctx, id); found {
			t.Error("draft still stored after publish")
		}
	})

	t.Run("blank title", func(t *testing.T) {
		var hits atomic.Int32
		remoteSrv := publishServer(t, http.StatusCreated, &hits)
		srv := newTestServer(t, Deps{Submitter: publish.NewHTTPSubmitter(remoteSrv.URL, time.Second, nil)})
		id := model.NewDraftID()
		srv.do(t, http.MethodPut, draftPath(id, "/title"), map[string]string{"title": "   "})

		resp := srv.do(t, http.MethodPost, draftPath(id, "/publish"), nil)
		expectStatus(t, resp, http.StatusUnprocessableEntity)
		if body := decode[errorResponse](t, resp); body.Field != "title" {
			t.Errorf("error = %+v, want title field", body)
		}
		if hits.Load() != 0 {
			t.Error("blank title reached the publish endpoint")
		}
	})

	t.Run("rejected", func(t *testing.T) {
		var hits atomic.Int32
		remoteSrv := publishServer(t, http.StatusInternalServerError, &hits)
		srv := newTestServer(t, Deps{Submitter: publish.NewHTTPSubmitter(remoteSrv.URL, time.Second, nil)})
		id := model.NewDraftID()
		title := "Kept"
		srv.store.Save(ctx, id, draft.Patch{Title: &title})

		expectStatus(t, srv.do(t, http.MethodPost, draftPath(id, "/publish"), nil), http.StatusBadGateway)
		if d, found, _ := srv.store.Load(ctx, id); !found || d.Title != "Kept" {
			t.Errorf("stored draft = %+v, found=%v", d, found)
		}
		if srv.registry.Len() != 1 {
			t.Error("failed publish evicted the session")
		}
	})
}

func TestPostImageDisabled(t *testing.T) {
	srv := newTestServer(t, Deps{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("image", "pixel.png")
	part.Write([]byte("\x89PNG\r\n\x1a\n"))
	mw.WriteField("alt", "pixel")
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+draftPath(model.NewDraftID(), "/images"), &buf)
	req.Header.Set(config.HCType, mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotImplemented)

	t.Run("missing file", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+draftPath(model.NewDraftID(), "/images"), strings.NewReader(""))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		expectStatus(t, resp, http.StatusBadRequest)
	})
}

func TestRegistry(t *testing.T) {
	store := draft.NewMemoryStore()
	r := NewRegistry(testDeps(store))
	ctx := context.Background()
	id := model.NewDraftID()

	a, err := r.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	b, _ := r.Get(ctx, id)
	if a != b {
		t.Error("Get returned a different session for the same id")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	a.SetTitle("Evicted")
	r.Evict(id)
	if r.Len() != 0 {
		t.Errorf("Len() after Evict = %d", r.Len())
	}
	if d, found, _ := store.Load(ctx, id); !found || d.Title != "Evicted" {
		t.Errorf("Evict did not flush: %+v", d)
	}

	c, _ := r.Get(ctx, id)
	if c == a {
		t.Error("Get after Evict returned the closed session")
	}
	if c.Title() != "Evicted" {
		t.Errorf("reopened title = %q", c.Title())
	}

	c.SetTitle("Closed")
	r.Close()
	if d, _, _ := store.Load(ctx, id); d.Title != "Closed" {
		t.Errorf("Close did not flush: %+v", d)
	}
}

type submitFunc func(ctx context.Context, p publish.Payload) error

func (f submitFunc) Submit(ctx context.Context, p publish.Payload) error {
	return f(ctx, p)
}

// serveCancelled runs serve with a request whose context is cancelled once started
// is closed, then lets the remote call finish.
func serveCancelled(t *testing.T, serve http.HandlerFunc, req *http.Request, started, release chan struct{}) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		serve(rec, req)
	}()

	<-started
	cancel()
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return")
	}
	return rec
}

func TestRemoteCallsOutliveRequest(t *testing.T) {
	t.Run("assist", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		client := assistFunc(func(ctx context.Context, req assist.Request) (string, error) {
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				return "", err
			}
			return "<p>late</p>", nil
		})
		registry := NewRegistry(Deps{Assist: client, BodyInterval: time.Hour, TitleInterval: time.Hour})
		defer registry.Close()
		h := NewHandler(registry, nil)

		id := model.NewDraftID()
		req := httptest.NewRequest(http.MethodPost, draftPath(id, "/assist/expand"), nil)
		req.SetPathValue("id", string(id))
		req.SetPathValue("action", string(assist.ActionExpand))

		rec := serveCancelled(t, h.ServeAssist, req, started, release)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		s, err := registry.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got := s.Draft().BodyHTML; got != "<p>late</p>" {
			t.Errorf("body_html = %q, want the assist result", got)
		}
	})

	t.Run("publish", func(t *testing.T) {
		ctx := context.Background()
		started := make(chan struct{})
		release := make(chan struct{})
		sub := submitFunc(func(ctx context.Context, p publish.Payload) error {
			close(started)
			<-release
			return ctx.Err()
		})
		store := draft.NewMemoryStore()
		registry := NewRegistry(Deps{Store: store, Submitter: sub, BodyInterval: time.Hour, TitleInterval: time.Hour})
		defer registry.Close()
		h := NewHandler(registry, nil)

		id := model.NewDraftID()
		s, err := registry.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		s.SetTitle("Ship it")
		s.Apply(Command{Op: OpInsert, Nodes: paragraphs("body")})
		title := "Ship it"
		store.Save(ctx, id, draft.Patch{Title: &title})

		req := httptest.NewRequest(http.MethodPost, draftPath(id, "/publish"), nil)
		req.SetPathValue("id", string(id))

		rec := serveCancelled(t, h.ServePublish, req, started, release)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if _, found, _ := store.Load(ctx, id); found {
			t.Error("draft still stored after a publish the remote accepted")
		}
	})
}
