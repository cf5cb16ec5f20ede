package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestClientPost(t *testing.T) {
	var gotBody map[string]string
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		gotHeader = r.Header.Get("X-Test")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	c.SetHeader("X-Test", "yes")

	data, err := c.Post(context.Background(), map[string]string{"a": "b"}, nil)
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("response = %s", data)
	}
	if gotBody["a"] != "b" {
		t.Errorf("server saw body %v", gotBody)
	}
	if gotHeader != "yes" {
		t.Errorf("server saw X-Test %q", gotHeader)
	}
}

func TestClientPostBeforeHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get("X-Len") != strconv.Itoa(len(body)) {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Post(context.Background(), map[string]int{"n": 12345}, func(req *http.Request, payload []byte) error {
		req.Header.Set("X-Len", strconv.Itoa(len(payload)))
		return nil
	})
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}

	hookErr := errors.New("no key")
	if _, err := c.Post(context.Background(), 1, func(*http.Request, []byte) error { return hookErr }); !errors.Is(err, hookErr) {
		t.Errorf("hook error = %v, want %v", err, hookErr)
	}
}

func TestClientPostErrors(t *testing.T) {
	t.Run("non-2xx is a rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "title taken", http.StatusConflict)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, time.Second).Post(context.Background(), struct{}{}, nil)
		var rej *RejectionError
		if !errors.As(err, &rej) {
			t.Fatalf("error = %v, want RejectionError", err)
		}
		if rej.Status != http.StatusConflict || rej.Message != "title taken" {
			t.Errorf("rejection = %+v", rej)
		}
	})

	t.Run("network failure is a transport error", func(t *testing.T) {
		c := NewClient("http://example.invalid", time.Second)
		c.SetDoer(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})

		_, err := c.Post(context.Background(), struct{}{}, nil)
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("error = %v, want TransportError", err)
		}
	})
}
