package forge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tagcheck/internal/check"
)

var gitlabReq = check.Request{Project: "42", Tag: "v1.5.8", Branch: "homologation"}

func newGitLabServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var got http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = *r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &got
}

func TestGitLab_IsAncestor(t *testing.T) {
	tests := []struct {
		name          string
		field         string
		status        int
		body          string
		wantContained bool
		wantKind      check.Kind
		wantMsg       string
	}{
		{name: "is_ancestor true", status: 200, body: `{"is_ancestor": true}`, wantContained: true},
		{name: "is_ancestor false", status: 200, body: `{"is_ancestor": false}`, wantContained: false},
		{name: "custom field", field: "merged", status: 200, body: `{"merged": true, "is_ancestor": false}`, wantContained: true},
		{name: "empty commits", status: 200, body: `{"commit": null, "commits": [], "diffs": [], "compare_same_ref": false}`, wantContained: true},
		{name: "commits ahead", status: 200, body: `{"commits": [{"id": "a1"}, {"id": "b2"}], "compare_same_ref": false}`, wantContained: false},
		{name: "same ref", status: 200, body: `{"commits": [{"id": "a1"}], "compare_same_ref": true}`, wantContained: true},
		{name: "field not boolean", status: 200, body: `{"is_ancestor": "yes"}`, wantKind: check.KindAPI, wantMsg: `field "is_ancestor" is not a boolean`},
		{name: "field null", status: 200, body: `{"is_ancestor": null}`, wantKind: check.KindAPI, wantMsg: "not a boolean"},
		{name: "unexpected shape", status: 200, body: `{"hello": "world"}`, wantKind: check.KindAPI, wantMsg: "unexpected response"},
		{name: "array body", status: 200, body: `[]`, wantKind: check.KindAPI, wantMsg: "decode response"},
		{name: "malformed json", status: 200, body: `{"is_ancestor": tru`, wantKind: check.KindAPI, wantMsg: "decode response"},
		{name: "null body", status: 200, body: `null`, wantKind: check.KindAPI, wantMsg: "not a JSON object"},
		{name: "trailing data after object", status: 200, body: `{"is_ancestor": true} trailing <html>`, wantKind: check.KindAPI, wantMsg: "decode response"},
		{name: "second object", status: 200, body: `{"is_ancestor": true}{"is_ancestor": false}`, wantKind: check.KindAPI, wantMsg: "decode response"},
		{name: "server error", status: 500, body: `{"message": "500 Internal Server Error"}`, wantKind: check.KindAPI, wantMsg: "500 Internal Server Error"},
		{name: "not found", status: 404, body: `{"message": "404 Project Not Found"}`, wantKind: check.KindAPI, wantMsg: "404 Project Not Found"},
		{name: "unauthorized", status: 401, body: `{"message": "401 Unauthorized"}`, wantKind: check.KindAPI, wantMsg: "401"},
		{name: "plain text error", status: 502, body: `bad gateway`, wantKind: check.KindAPI, wantMsg: "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newGitLabServer(t, tt.status, tt.body)
			gl, err := NewGitLab(server.URL, "token", NewHTTPClient(""), tt.field)
			if err != nil {
				t.Fatalf("NewGitLab: %v", err)
			}

			res, err := gl.IsAncestor(context.Background(), gitlabReq)
			if tt.wantKind != "" {
				var ce *check.Error
				if !errors.As(err, &ce) {
					t.Fatalf("expected *check.Error, got %T: %v", err, err)
				}
				if ce.Kind != tt.wantKind {
					t.Fatalf("kind: got %q want %q (%v)", ce.Kind, tt.wantKind, err)
				}
				if !strings.Contains(err.Error(), tt.wantMsg) {
					t.Fatalf("expected %q in %q", tt.wantMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("IsAncestor: %v", err)
			}
			if res.Contained != tt.wantContained {
				t.Fatalf("contained: got %v want %v", res.Contained, tt.wantContained)
			}
			if res.Detail == "" {
				t.Fatalf("expected a detail")
			}
		})
	}
}

func TestGitLab_RequestShape(t *testing.T) {
	server, got := newGitLabServer(t, 200, `{"is_ancestor": true}`)
	gl, err := NewGitLab(server.URL+"/", "glpat-abc", NewHTTPClient(""), "")
	if err != nil {
		t.Fatalf("NewGitLab: %v", err)
	}

	req := check.Request{Project: "group/sub/app", Tag: "v1.5.8", Branch: "release/homologation"}
	if _, err := gl.IsAncestor(context.Background(), req); err != nil {
		t.Fatalf("IsAncestor: %v", err)
	}

	if got.Method != http.MethodGet {
		t.Fatalf("method: got %s", got.Method)
	}
	if p := got.URL.EscapedPath(); p != "/api/v4/projects/group%2Fsub%2Fapp/repository/compare" {
		t.Fatalf("path: got %s", p)
	}
	q := got.URL.Query()
	if q.Get("from") != "release/homologation" || q.Get("to") != "v1.5.8" {
		t.Fatalf("query: got %v", q)
	}
	if a := got.Header.Get("Authorization"); a != "Bearer glpat-abc" {
		t.Fatalf("Authorization: got %q", a)
	}
}

func TestNewGitLab_APIBase(t *testing.T) {
	tests := map[string]string{
		"https://gitlab.example.com":         "https://gitlab.example.com/api/v4/",
		"https://gitlab.example.com/api/v4/": "https://gitlab.example.com/api/v4/",
		"https://example.com/gitlab":         "https://example.com/gitlab/api/v4/",
	}
	for in, want := range tests {
		gl, err := NewGitLab(in, "", NewHTTPClient(""), "")
		if err != nil {
			t.Fatalf("NewGitLab(%q): %v", in, err)
		}
		if got := gl.client.BaseURL().String(); got != want {
			t.Errorf("NewGitLab(%q) base = %s, want %s", in, got, want)
		}
	}
}

func TestNewGitLab_Invalid(t *testing.T) {
	if _, err := NewGitLab("not a url", "", NewHTTPClient(""), ""); err == nil {
		t.Fatalf("expected error for url without host")
	}
	if _, err := NewGitLab("https://gitlab.example.com", "", nil, ""); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestGitLab_SingleAttemptOnServerError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	gl, err := NewGitLab(server.URL, "token", NewHTTPClient(""), "")
	if err != nil {
		t.Fatalf("NewGitLab: %v", err)
	}
	_, err = gl.IsAncestor(context.Background(), gitlabReq)
	if k := check.KindOf(err); k != check.KindAPI {
		t.Fatalf("kind: got %q (%v)", k, err)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected one request, got %d", n)
	}
}

func TestGitLab_TransportFailures(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		base := server.URL
		server.Close()

		gl, err := NewGitLab(base, "token", NewHTTPClient(""), "")
		if err != nil {
			t.Fatalf("NewGitLab: %v", err)
		}
		_, err = gl.IsAncestor(context.Background(), gitlabReq)
		if k := check.KindOf(err); k != check.KindTransport {
			t.Fatalf("kind: got %q (%v)", k, err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(server.Close)
		t.Cleanup(func() { close(release) })

		gl, err := NewGitLab(server.URL, "token", NewHTTPClient("", WithTimeout(50*time.Millisecond)), "")
		if err != nil {
			t.Fatalf("NewGitLab: %v", err)
		}
		start := time.Now()
		_, err = gl.IsAncestor(context.Background(), gitlabReq)
		if k := check.KindOf(err); k != check.KindTransport {
			t.Fatalf("kind: got %q (%v)", k, err)
		}
		if time.Since(start) > 5*time.Second {
			t.Fatalf("request was not bounded by the timeout")
		}
	})

	t.Run("context deadline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		t.Cleanup(server.Close)

		gl, err := NewGitLab(server.URL, "token", NewHTTPClient(""), "")
		if err != nil {
			t.Fatalf("NewGitLab: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = gl.IsAncestor(ctx, gitlabReq)
		if k := check.KindOf(err); k != check.KindTransport {
			t.Fatalf("kind: got %q (%v)", k, err)
		}
	})
}
