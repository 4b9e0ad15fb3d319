package atlas

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/atlas-sanctum/vrc-issuer/pkg/httpclient"
)

type stubResponse struct {
	body   []byte
	status int
}

func (s stubResponse) Body() []byte        { return s.body }
func (s stubResponse) StatusCode() int     { return s.status }
func (s stubResponse) Header() http.Header { return http.Header{} }

// recordingTransport captures the last Post call.
type recordingTransport struct {
	url     string
	headers map[string]string
	body    []byte
	resp    httpclient.Response
	err     error
}

func (r *recordingTransport) Post(_ context.Context, url string, headers map[string]string, body []byte) (httpclient.Response, error) {
	r.url = url
	r.headers = headers
	r.body = body
	return r.resp, r.err
}

func TestIssueCredentialScenarioAgainstFixedHost(t *testing.T) {
	tr := &recordingTransport{resp: stubResponse{body: []byte(`{"id":"cred-1"}`), status: 201}}
	c := MustNew("https://api.example.com", "abc123", WithTransport(tr), WithUserAgent("atlasctl/test"))

	got, err := c.IssueCredential(context.Background(), `{"subject":"x"}`)
	if err != nil {
		t.Fatalf("IssueCredential: %v", err)
	}
	if got != `{"id":"cred-1"}` {
		t.Fatalf("body = %q", got)
	}
	if tr.url != "https://api.example.com/v1/vrc/issue" {
		t.Fatalf("url = %q", tr.url)
	}
	if tr.headers["Authorization"] != "Bearer abc123" {
		t.Fatalf("authorization = %q", tr.headers["Authorization"])
	}
	if tr.headers["User-Agent"] != "atlasctl/test" {
		t.Fatalf("user agent = %q", tr.headers["User-Agent"])
	}
	if string(tr.body) != `{"subject":"x"}` {
		t.Fatalf("body sent = %q", tr.body)
	}
}

func TestIssueCredentialWrapsTransportFailure(t *testing.T) {
	boom := errors.New("connection reset")
	tr := &recordingTransport{err: boom}
	c := MustNew("https://api.example.com", "", WithTransport(tr))

	_, err := c.IssueCredential(context.Background(), "{}")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	if !IsTransportError(err) {
		t.Fatalf("expected TransportError, got %T", err)
	}
	if _, ok := tr.headers["Authorization"]; ok {
		t.Fatalf("authorization header sent without api key")
	}
}
