// Package flags defines canonical CLI flag names and the environment variables
// that feed them. Keeping both here avoids drift between Cobra flag wiring,
// config overlays and help text.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().String(flags.FlagTagName, "", "...")
//	arg := "--" + flags.FlagTagName
package flags

const (
	// Target
	FlagGitLabURL     = "gitlab-url"
	FlagPrivateToken  = "private-token"
	FlagProjectID     = "project-id"
	FlagTagName       = "tag-name"
	FlagBranchName    = "branch-name"
	FlagProvider      = "provider"
	FlagAncestorField = "ancestor-field"

	// Transport
	FlagIgnoreSSL = "ignore-ssl"
	FlagTimeout   = "timeout"

	// Output
	FlagOutput  = "output"
	FlagVerbose = "verbose"

	// Sources
	FlagConfig  = "config"
	FlagEnvFile = "env-file"
)

const (
	EnvGitLabURL     = "GITLAB_URL"
	EnvGitLabToken   = "GITLAB_TOKEN"
	EnvProjectID     = "GITLAB_PROJECT_ID"
	EnvTagName       = "TAG_NAME"
	EnvBranchName    = "BRANCH_NAME"
	EnvIgnoreSSL     = "IGNORE_SSL"
	EnvProvider      = "FORGE_PROVIDER"
	EnvAncestorField = "ANCESTOR_FIELD"
	EnvTimeout       = "REQUEST_TIMEOUT"
	EnvOutput        = "OUTPUT_FORMAT"
	EnvConfig        = "TAGCHECK_CONFIG"
)

// EnvFor maps a flag name to the environment variable that supplies it when
// the flag is not given. Flags without an entry are CLI-only.
var EnvFor = map[string]string{
	FlagGitLabURL:     EnvGitLabURL,
	FlagPrivateToken:  EnvGitLabToken,
	FlagProjectID:     EnvProjectID,
	FlagTagName:       EnvTagName,
	FlagBranchName:    EnvBranchName,
	FlagIgnoreSSL:     EnvIgnoreSSL,
	FlagProvider:      EnvProvider,
	FlagAncestorField: EnvAncestorField,
	FlagTimeout:       EnvTimeout,
	FlagOutput:        EnvOutput,
	FlagConfig:        EnvConfig,
}

// Describe renders a required input as "ENV (--flag)" for operator messages.
func Describe(flag string) string {
	if env, ok := EnvFor[flag]; ok {
		return env + " (--" + flag + ")"
	}
	return "--" + flag
}
