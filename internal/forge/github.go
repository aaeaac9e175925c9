package forge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v81/github"

	"tagcheck/internal/check"
)

// GitHub answers the ancestry question with one compare call,
// GET /repos/:owner/:repo/compare/<branch>...<tag>.
type GitHub struct {
	client *github.Client
	http   *http.Client
}

// NewGitHub targets api.github.com when baseURL is github.com and treats any
// other host as GitHub Enterprise Server.
func NewGitHub(baseURL string, hc *http.Client) (*GitHub, error) {
	if hc == nil {
		return nil, errors.New("github: http client is nil")
	}
	client := github.NewClient(hc)
	if !isGitHubDotCom(baseURL) {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, check.ConfigError(fmt.Errorf("invalid github url %q: %w", baseURL, err))
		}
	}
	return &GitHub{client: client, http: hc}, nil
}

func (g *GitHub) Kind() string { return ProviderGitHub }

// IsAncestor compares base=branch with head=tag. "behind" means the tag is
// behind the branch tip and "identical" means both point at the same commit;
// either way the tag is contained.
func (g *GitHub) IsAncestor(ctx context.Context, req check.Request) (check.Result, error) {
	const op = "github compare"
	defer g.http.CloseIdleConnections()

	owner, repo, err := ParseGitHubRepo(req.Project)
	if err != nil {
		return check.Result{}, check.ConfigError(err)
	}

	cmp, _, err := g.client.Repositories.CompareCommits(ctx, owner, repo, req.Branch, req.Tag, nil)
	if err != nil {
		return check.Result{}, classifyGitHubError(op, err)
	}

	status := cmp.GetStatus()
	switch status {
	case "behind", "identical":
		return check.Result{Contained: true, Detail: fmt.Sprintf("status=%s, behind_by=%d", status, cmp.GetBehindBy())}, nil
	case "ahead", "diverged":
		return check.Result{Contained: false, Detail: fmt.Sprintf("status=%s, ahead_by=%d", status, cmp.GetAheadBy())}, nil
	default:
		return check.Result{}, check.NewError(check.KindAPI, op, fmt.Errorf("unexpected comparison status %q", status))
	}
}

func classifyGitHubError(op string, err error) *check.Error {
	var (
		errResp  *github.ErrorResponse
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
	)
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr), errors.As(err, &errResp):
		return check.NewError(check.KindAPI, op, err)
	}
	return check.Classify(op, err)
}

// ParseGitHubRepo splits an owner/repo identifier, also accepting a full
// repository URL.
func ParseGitHubRepo(project string) (owner, repo string, err error) {
	p := strings.TrimPrefix(project, "https://")
	p = strings.TrimPrefix(p, "http://")
	p = strings.TrimPrefix(p, "github.com/")
	p = strings.TrimSuffix(p, ".git")
	p = strings.Trim(p, "/")

	parts := strings.Split(p, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("github project must be OWNER/REPO, got %q", project)
	}
	return parts[0], parts[1], nil
}

func isGitHubDotCom(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "github.com" || host == "www.github.com" || host == "api.github.com"
}
