package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"tagcheck/internal/flags"
)

// LookupFunc has the shape of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadFile overlays the YAML document at path onto cfg. Keys absent from the
// file keep their current values; unknown keys are rejected.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv reads a dotenv file without touching the process environment.
// A missing file is only an error when required is set.
func LoadDotEnv(path string, required bool) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return vals, nil
}

// Chain returns a LookupFunc that consults primary first and falls back to
// the dotenv values, matching load_dotenv's no-override behaviour.
func Chain(primary LookupFunc, fallback map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		if primary != nil {
			if v, ok := primary(key); ok && v != "" {
				return v, true
			}
		}
		v, ok := fallback[key]
		return v, ok && v != ""
	}
}

// ApplyEnv overlays non-empty environment values onto cfg.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		return nil
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str(flags.EnvGitLabURL, &cfg.Target.BaseURL)
	str(flags.EnvGitLabToken, &cfg.Target.Token)
	str(flags.EnvProjectID, &cfg.Target.Project)
	str(flags.EnvTagName, &cfg.Target.Tag)
	str(flags.EnvBranchName, &cfg.Target.Branch)
	str(flags.EnvProvider, &cfg.Target.Provider)
	str(flags.EnvAncestorField, &cfg.Target.AncestorField)
	str(flags.EnvOutput, &cfg.Output.Format)

	if v, ok := lookup(flags.EnvIgnoreSSL); ok && v != "" {
		b, err := ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", flags.EnvIgnoreSSL, err)
		}
		cfg.Transport.IgnoreSSL = b
	}
	if v, ok := lookup(flags.EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", flags.EnvTimeout, err)
		}
		cfg.Transport.Timeout = d
	}
	return nil
}

// MergeFlags overlays flags the operator set explicitly. Flags left at their
// defaults never override file or environment values.
func MergeFlags(cfg *Config, set *pflag.FlagSet) error {
	if set == nil {
		return nil
	}
	var firstErr error
	set.Visit(func(f *pflag.Flag) {
		if firstErr != nil {
			return
		}
		firstErr = mergeFlag(cfg, set, f.Name)
	})
	return firstErr
}

func mergeFlag(cfg *Config, set *pflag.FlagSet, name string) error {
	var err error
	switch name {
	case flags.FlagGitLabURL:
		cfg.Target.BaseURL, err = set.GetString(name)
	case flags.FlagPrivateToken:
		cfg.Target.Token, err = set.GetString(name)
	case flags.FlagProjectID:
		cfg.Target.Project, err = set.GetString(name)
	case flags.FlagTagName:
		cfg.Target.Tag, err = set.GetString(name)
	case flags.FlagBranchName:
		cfg.Target.Branch, err = set.GetString(name)
	case flags.FlagProvider:
		cfg.Target.Provider, err = set.GetString(name)
	case flags.FlagAncestorField:
		cfg.Target.AncestorField, err = set.GetString(name)
	case flags.FlagIgnoreSSL:
		cfg.Transport.IgnoreSSL, err = set.GetBool(name)
	case flags.FlagTimeout:
		cfg.Transport.Timeout, err = set.GetDuration(name)
	case flags.FlagOutput:
		cfg.Output.Format, err = set.GetString(name)
	case flags.FlagVerbose:
		cfg.Output.Verbose, err = set.GetBool(name)
	}
	if err != nil {
		return fmt.Errorf("read --%s: %w", name, err)
	}
	return nil
}
