package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"tagcheck/internal/check"
	"tagcheck/internal/flags"
)

const (
	DefaultAncestorField = "is_ancestor"
	DefaultTimeout       = 30 * time.Second
	DefaultOutput        = "text"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove fields here, keep these in sync:
	// - flag and env names in internal/flags
	// - CLI flags in internal/cli/root.go
	// - ApplyEnv and MergeFlags in sources.go
	Target    Target    `yaml:",inline"`
	Transport Transport `yaml:",inline"`
	Output    Output    `yaml:",inline"`
}

type Target struct {
	// BaseURL is the hosting instance, e.g. https://gitlab.example.com (see --gitlab-url).
	BaseURL string `yaml:"gitlab_url"`

	// Token is the personal access token (see --private-token).
	Token string `yaml:"private_token"`

	// Project is a numeric id or namespaced path (see --project-id).
	Project string `yaml:"project_id"`

	// Tag is the tag under evaluation (see --tag-name).
	Tag string `yaml:"tag_name"`

	// Branch is the branch containment is checked against (see --branch-name).
	Branch string `yaml:"branch_name"`

	// Provider selects the API flavour: gitlab or github (see --provider).
	// Empty means detect from the BaseURL host.
	Provider string `yaml:"provider"`

	// AncestorField is the JSON field read as the ancestry answer (see --ancestor-field).
	AncestorField string `yaml:"ancestor_field"`
}

type Transport struct {
	// IgnoreSSL disables TLS certificate verification (see --ignore-ssl).
	IgnoreSSL bool `yaml:"ignore_ssl"`

	// Timeout bounds the single API request (see --timeout). Must be > 0.
	Timeout time.Duration `yaml:"timeout"`
}

type Output struct {
	// Format is text or json (see --output).
	Format string `yaml:"output"`

	// Verbose logs each API request and response line to stderr (see --verbose).
	Verbose bool `yaml:"verbose"`
}

func New() *Config {
	return &Config{
		Target: Target{
			AncestorField: DefaultAncestorField,
		},
		Transport: Transport{
			Timeout: DefaultTimeout,
		},
		Output: Output{
			Format: DefaultOutput,
		},
	}
}

// Request is the provider-facing part of the configuration.
func (c *Config) Request() check.Request {
	return check.Request{
		Project: c.Target.Project,
		Tag:     c.Target.Tag,
		Branch:  c.Target.Branch,
	}
}

// Validate normalizes the configuration and reports every missing required
// input in one error so the operator can fix them together.
func (c *Config) Validate() error {
	c.Target.BaseURL = strings.TrimRight(strings.TrimSpace(c.Target.BaseURL), "/")
	c.Target.Token = strings.TrimSpace(c.Target.Token)
	c.Target.Project = strings.Trim(strings.TrimSpace(c.Target.Project), "/")
	c.Target.Tag = strings.TrimSpace(c.Target.Tag)
	c.Target.Branch = strings.TrimSpace(c.Target.Branch)
	c.Target.AncestorField = strings.TrimSpace(c.Target.AncestorField)

	var missing []string
	required := []struct {
		flag  string
		value string
	}{
		{flags.FlagGitLabURL, c.Target.BaseURL},
		{flags.FlagPrivateToken, c.Target.Token},
		{flags.FlagProjectID, c.Target.Project},
		{flags.FlagTagName, c.Target.Tag},
		{flags.FlagBranchName, c.Target.Branch},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, flags.Describe(r.flag))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if err := validateBaseURL(c.Target.BaseURL); err != nil {
		return fmt.Errorf("invalid %s value: %w", flags.Describe(flags.FlagGitLabURL), err)
	}
	if strings.ContainsAny(c.Target.Token, " \t\n\r") {
		return fmt.Errorf("invalid %s value: contains whitespace", flags.Describe(flags.FlagPrivateToken))
	}

	c.Target.Provider = normalizeEnumValue(c.Target.Provider)
	if c.Target.Provider != "" && c.Target.Provider != "gitlab" && c.Target.Provider != "github" {
		return fmt.Errorf("unsupported --%s: %s (must be one of: gitlab, github)", flags.FlagProvider, c.Target.Provider)
	}

	if c.Target.AncestorField == "" {
		return fmt.Errorf("--%s must not be empty", flags.FlagAncestorField)
	}

	if c.Transport.Timeout <= 0 {
		return fmt.Errorf("--%s must be > 0", flags.FlagTimeout)
	}

	c.Output.Format = normalizeEnumValue(c.Output.Format)
	if c.Output.Format == "" {
		c.Output.Format = DefaultOutput
	}
	if c.Output.Format != "text" && c.Output.Format != "json" {
		return fmt.Errorf("unsupported --%s: %s (must be one of: text, json)", flags.FlagOutput, c.Output.Format)
	}

	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q: missing host", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return errors.New("must not contain a query or fragment")
	}
	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ParseBool accepts strconv.ParseBool forms plus yes/no and on/off.
func ParseBool(raw string) (bool, error) {
	switch normalizeEnumValue(raw) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}
