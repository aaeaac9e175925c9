package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tagcheck/internal/check"
	"tagcheck/internal/config"
	"tagcheck/internal/flags"
	"tagcheck/internal/forge"
	"tagcheck/internal/output"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

const rootLong = `tagcheck asks the source-control host whether a release tag's commit has
already been merged into a branch, and exits with a status CI can gate on.

It makes exactly one authenticated API call (GitLab repository compare, or the
GitHub compare API) and never retries: the CI step owns retry policy.

Configuration:
	Every input can come from a flag or an environment variable. Flags win over
	the environment, the environment wins over a .env file, and a .env file wins
	over a YAML file given with --config.

	GITLAB_URL          --gitlab-url       base URL of the hosting instance (required)
	GITLAB_TOKEN        --private-token    personal access token (required)
	GITLAB_PROJECT_ID   --project-id       project id or path; OWNER/REPO on GitHub (required)
	TAG_NAME            --tag-name         tag under evaluation (required)
	BRANCH_NAME         --branch-name      branch to check containment against (required)
	IGNORE_SSL          --ignore-ssl       disable TLS certificate verification
	FORGE_PROVIDER      --provider         gitlab or github (default: detect from URL)
	ANCESTOR_FIELD      --ancestor-field   response field carrying the answer (gitlab)
	REQUEST_TIMEOUT     --timeout          bound on the API call
	OUTPUT_FORMAT       --output           text or json
	TAGCHECK_CONFIG     --config           YAML file with the same keys in snake_case

Exit codes:
	0 = tag found in branch
	1 = tag not found in branch
	2 = the check could not run (configuration, network, TLS, auth or API error)

Examples:
  # Gate a production deploy on the tag having reached homologation
  export GITLAB_URL=https://gitlab.example.com
  export GITLAB_TOKEN="<your_token>"
  export GITLAB_PROJECT_ID=42
  tagcheck --tag-name v1.5.8 --branch-name homologation

  # Machine-readable verdict
  tagcheck --output json

  # Print build info
  tagcheck version`

// runner carries what a single invocation needs beyond its flags.
type runner struct {
	lookup   config.LookupFunc
	httpOpts []forge.Option
	code     int
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func newRootCmd(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tagcheck",
		Short:         "Check whether a release tag is already merged into a branch",
		Long:          rootLong,
		Version:       fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			r.code = r.run(cmd)
			return nil
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	// Target
	cmd.Flags().String(flags.FlagGitLabURL, "", "Base URL of the hosting instance, e.g. https://gitlab.example.com")
	cmd.Flags().String(flags.FlagPrivateToken, "", "Personal access token for the API")
	cmd.Flags().String(flags.FlagProjectID, "", "Project id or namespaced path (OWNER/REPO on GitHub)")
	cmd.Flags().String(flags.FlagTagName, "", "Tag under evaluation")
	cmd.Flags().String(flags.FlagBranchName, "", "Branch to check containment against")
	cmd.Flags().String(flags.FlagProvider, "", "API flavour: gitlab|github (default: detect from --gitlab-url)")
	cmd.Flags().String(flags.FlagAncestorField, config.DefaultAncestorField, "Response field read as the ancestry answer (gitlab)")

	// Transport
	cmd.Flags().Bool(flags.FlagIgnoreSSL, false, "Disable TLS certificate verification")
	cmd.Flags().Duration(flags.FlagTimeout, config.DefaultTimeout, "Bound on the API call")

	// Output
	cmd.Flags().String(flags.FlagOutput, config.DefaultOutput, "Output format: text|json")
	cmd.Flags().Bool(flags.FlagVerbose, false, "Log the API request and response status to stderr")

	// Sources
	cmd.Flags().String(flags.FlagConfig, "", "YAML config file")
	cmd.Flags().String(flags.FlagEnvFile, ".env", "dotenv file to read if present")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Run executes tagcheck with args and returns the process exit code. Options
// are applied to the HTTP client after the ones derived from configuration.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, lookup config.LookupFunc, opts ...forge.Option) int {
	r := &runner{lookup: lookup, httpOpts: opts}
	cmd := newRootCmd(r)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, "Run 'tagcheck --help' for usage.")
		return check.ExitError
	}
	return r.code
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv)
	stop()
	os.Exit(code)
}

func (r *runner) run(cmd *cobra.Command) int {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := r.resolveConfig(cmd)
	if err != nil {
		return report(stdout, stderr, cfg.Output.Format, check.Failed(cfg.Request(), "", check.ConfigError(err)))
	}

	opts := []forge.Option{
		forge.WithInsecureSkipVerify(cfg.Transport.IgnoreSSL),
		forge.WithTimeout(cfg.Transport.Timeout),
		forge.WithVerbose(cfg.Output.Verbose, stderr),
	}
	checker, err := forge.New(forge.Settings{
		Provider:      cfg.Target.Provider,
		BaseURL:       cfg.Target.BaseURL,
		Token:         cfg.Target.Token,
		AncestorField: cfg.Target.AncestorField,
	}, append(opts, r.httpOpts...)...)
	if err != nil {
		return report(stdout, stderr, cfg.Output.Format, check.Failed(cfg.Request(), cfg.Target.Provider, err))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Transport.Timeout)
	defer cancel()

	return report(stdout, stderr, cfg.Output.Format, check.Run(ctx, checker, cfg.Request()))
}

// resolveConfig layers defaults, YAML file, .env, environment and flags. The
// returned Config is never nil so callers can still honour --output on error.
func (r *runner) resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.New()
	fs := cmd.Flags()

	if format, err := fs.GetString(flags.FlagOutput); err == nil && fs.Changed(flags.FlagOutput) {
		cfg.Output.Format = format
	}

	envFile, _ := fs.GetString(flags.FlagEnvFile)
	dotenv, err := config.LoadDotEnv(envFile, fs.Changed(flags.FlagEnvFile))
	if err != nil {
		return cfg, err
	}
	lookup := config.Chain(r.lookup, dotenv)

	path, _ := fs.GetString(flags.FlagConfig)
	if path == "" {
		path, _ = lookup(flags.EnvConfig)
	}
	if path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return cfg, err
		}
	}
	if err := config.ApplyEnv(cfg, lookup); err != nil {
		return cfg, err
	}
	if err := config.MergeFlags(cfg, fs); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func report(stdout, stderr io.Writer, format string, o check.Outcome) int {
	if format = strings.ToLower(strings.TrimSpace(format)); format != "json" {
		format = "text"
	}
	console, err := output.NewConsole(stdout, stderr, format)
	if err == nil {
		err = console.Write(o)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to write result: %v\n", err)
	}
	return o.ExitCode()
}
