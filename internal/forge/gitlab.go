package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"

	"tagcheck/internal/check"
)

// GitLab answers the ancestry question with one call to the repository
// compare endpoint: GET /projects/:id/repository/compare?from=<branch>&to=<tag>.
type GitLab struct {
	client *gitlab.Client
	http   *http.Client
	field  string
}

// NewGitLab builds the adapter on client-go. The token is sent as a bearer
// Authorization header. Retries are disabled and the rate limiter never
// blocks, so every check is exactly one request.
func NewGitLab(baseURL, token string, hc *http.Client, field string) (*GitLab, error) {
	if hc == nil {
		return nil, errors.New("gitlab: http client is nil")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Host == "" {
		return nil, check.ConfigError(fmt.Errorf("invalid gitlab url %q", baseURL))
	}

	client, err := gitlab.NewOAuthClient(token,
		gitlab.WithBaseURL(u.String()),
		gitlab.WithHTTPClient(hc),
		gitlab.WithoutRetries(),
		gitlab.WithCustomLimiter(rate.NewLimiter(rate.Inf, 0)),
	)
	if err != nil {
		return nil, check.ConfigError(fmt.Errorf("invalid gitlab url %q: %w", baseURL, err))
	}
	if field == "" {
		field = "is_ancestor"
	}
	return &GitLab{client: client, http: hc, field: field}, nil
}

func (g *GitLab) Kind() string { return ProviderGitLab }

func (g *GitLab) IsAncestor(ctx context.Context, req check.Request) (check.Result, error) {
	const op = "gitlab compare"
	defer g.http.CloseIdleConnections()

	opt := &gitlab.CompareOptions{
		From: gitlab.Ptr(req.Branch),
		To:   gitlab.Ptr(req.Tag),
	}
	path := "projects/" + gitlab.PathEscape(req.Project) + "/repository/compare"
	httpReq, err := g.client.NewRequest(http.MethodGet, path, opt, []gitlab.RequestOptionFunc{gitlab.WithContext(ctx)})
	if err != nil {
		return check.Result{}, check.ConfigError(fmt.Errorf("build request: %w", err))
	}

	// The raw body is kept so the configured ancestry field can be read; the
	// typed Compare struct has no room for it.
	var body bytes.Buffer
	if _, err := g.client.Do(httpReq, &body); err != nil {
		return check.Result{}, classifyGitLabError(op, err)
	}

	res, err := decodeCompare(body.Bytes(), g.field)
	if err != nil {
		return check.Result{}, check.NewError(check.KindAPI, op, err)
	}
	return res, nil
}

func classifyGitLabError(op string, err error) *check.Error {
	var er *gitlab.ErrorResponse
	if errors.As(err, &er) {
		return check.NewError(check.KindAPI, op, err)
	}
	return check.Classify(op, err)
}

// decodeCompare reads the ancestry answer from a compare response. The
// configured field wins when present; otherwise compare_same_ref and the
// commits array decide. Commits listed are those on the tag that the branch
// lacks, so an empty list means the tag is contained.
func decodeCompare(data []byte, field string) (check.Result, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return check.Result{}, fmt.Errorf("decode response: %w", err)
	}
	if body == nil {
		return check.Result{}, errors.New("unexpected response: not a JSON object")
	}

	if raw, ok := body[field]; ok {
		var v *bool
		if err := json.Unmarshal(raw, &v); err != nil || v == nil {
			return check.Result{}, fmt.Errorf("unexpected response: field %q is not a boolean (got %s)", field, truncate(string(raw), 64))
		}
		return check.Result{Contained: *v, Detail: fmt.Sprintf("%s=%t", field, *v)}, nil
	}

	if raw, ok := body["compare_same_ref"]; ok {
		var same bool
		if err := json.Unmarshal(raw, &same); err == nil && same {
			return check.Result{Contained: true, Detail: "tag and branch point at the same commit"}, nil
		}
	}

	raw, ok := body["commits"]
	if !ok {
		return check.Result{}, fmt.Errorf("unexpected response: neither %q nor \"commits\" present", field)
	}
	var commits []json.RawMessage
	if err := json.Unmarshal(raw, &commits); err != nil {
		return check.Result{}, fmt.Errorf("unexpected response: \"commits\" is not an array: %w", err)
	}
	if len(commits) == 0 {
		return check.Result{Contained: true, Detail: "no commits on tag missing from branch"}, nil
	}
	return check.Result{Contained: false, Detail: fmt.Sprintf("%d commit(s) on tag not in branch", len(commits))}, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
