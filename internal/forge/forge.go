// Package forge adapts hosting providers to check.Checker.
package forge

import (
	"fmt"
	"strings"

	"tagcheck/internal/check"
)

const (
	ProviderGitLab = "gitlab"
	ProviderGitHub = "github"
)

// Settings is what a provider needs beyond the per-call Request.
type Settings struct {
	// Provider is gitlab or github. Empty means Detect from BaseURL.
	Provider string
	BaseURL  string
	Token    string
	// AncestorField is the response field read as the answer (gitlab only).
	AncestorField string
}

// Detect picks the provider from the base URL host. Only github.com is
// GitHub; every other host is GitLab. GitHub Enterprise needs an explicit
// --provider github.
func Detect(baseURL string) string {
	if isGitHubDotCom(baseURL) {
		return ProviderGitHub
	}
	return ProviderGitLab
}

// New builds the Checker for s. Client options (TLS, timeout, verbose
// logging, transport) apply to the single HTTP client it creates.
func New(s Settings, opts ...Option) (check.Checker, error) {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	if provider == "" {
		provider = Detect(s.BaseURL)
	}

	opts = append([]Option{withLabel(provider)}, opts...)

	switch provider {
	case ProviderGitLab:
		// client-go attaches the token itself.
		gl, err := NewGitLab(s.BaseURL, s.Token, NewHTTPClient("", opts...), s.AncestorField)
		if err != nil {
			return nil, err
		}
		return gl, nil
	case ProviderGitHub:
		gh, err := NewGitHub(s.BaseURL, NewHTTPClient(s.Token, opts...))
		if err != nil {
			return nil, err
		}
		return gh, nil
	default:
		return nil, check.ConfigError(fmt.Errorf("unsupported provider %q (must be one of: gitlab, github)", s.Provider))
	}
}
