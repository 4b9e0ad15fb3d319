package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRestyClientPostSendsBodyVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-Test"); got != "1" {
			t.Errorf("missing header, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Echo", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c := NewRestyClient(2 * time.Second)
	resp, err := c.Post(context.Background(), srv.URL, map[string]string{"X-Test": "1"}, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.StatusCode() != http.StatusTeapot {
		t.Fatalf("status = %d", resp.StatusCode())
	}
	if string(resp.Body()) != `{"a":1}` {
		t.Fatalf("body = %q", resp.Body())
	}
	if resp.Header().Get("X-Echo") != "yes" {
		t.Fatalf("response header missing")
	}
}

func TestRestyClientSharesHTTPClient(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}))
	defer srv.Close()

	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		hits++
		return http.DefaultTransport.RoundTrip(r)
	})}
	c := NewRestyClientWith(hc, 0)
	resp, err := c.Post(context.Background(), srv.URL, nil, []byte("ping"))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if string(resp.Body()) != "pong" || hits != 1 {
		t.Fatalf("body = %q hits = %d", resp.Body(), hits)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRestyClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewRestyClient(time.Second)
	if _, err := c.Post(context.Background(), url, nil, nil); err == nil {
		t.Fatalf("expected error for closed server")
	}
}
