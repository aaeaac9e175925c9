// Package check holds the tag-ancestry domain: what is asked, what a
// provider answers, and the three-way outcome the CLI turns into an exit code.
package check

import (
	"context"
	"errors"
	"fmt"
)

// Request identifies the tag and branch to compare within one project.
type Request struct {
	// Project is a numeric id or a namespaced path (group/project, owner/repo).
	Project string
	Tag     string
	Branch  string
}

// Result is a provider's answer to a Request.
type Result struct {
	// Contained is true when the tag's commit is reachable from the branch tip.
	Contained bool
	// Detail is a short, provider-specific explanation of how the answer was derived.
	Detail string
}

// Checker asks a hosting provider whether a tag is contained in a branch.
// Implementations issue exactly one request per call and never retry.
type Checker interface {
	Kind() string
	IsAncestor(ctx context.Context, req Request) (Result, error)
}

type Status string

const (
	StatusContained    Status = "contained"
	StatusNotContained Status = "not_contained"
	StatusError        Status = "error"
)

// Exit code contract:
// 0 = tag contained in branch
// 1 = tag not contained in branch
// 2 = the check could not run (configuration, transport or API failure)
const (
	ExitContained    = 0
	ExitNotContained = 1
	ExitError        = 2
)

// Outcome is the terminal state of one invocation.
type Outcome struct {
	Status   Status
	Provider string
	Request  Request
	Detail   string
	// Err is set only when Status is StatusError.
	Err *Error
}

func (o Outcome) ExitCode() int {
	switch o.Status {
	case StatusContained:
		return ExitContained
	case StatusNotContained:
		return ExitNotContained
	default:
		return ExitError
	}
}

// Failed builds an error outcome, classifying err when it is not already an *Error.
func Failed(req Request, provider string, err error) Outcome {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Outcome{
		Status:   StatusError,
		Provider: provider,
		Request:  req,
		Err:      Classify(provider, err),
	}
}

// Run performs the check once. A nil Checker is reported as a configuration error.
func Run(ctx context.Context, c Checker, req Request) Outcome {
	if c == nil {
		return Failed(req, "", ConfigError(errors.New("no provider configured")))
	}
	if err := req.validate(); err != nil {
		return Failed(req, c.Kind(), ConfigError(err))
	}

	res, err := c.IsAncestor(ctx, req)
	if err != nil {
		return Failed(req, c.Kind(), Classify(c.Kind()+" compare", err))
	}

	o := Outcome{
		Status:   StatusNotContained,
		Provider: c.Kind(),
		Request:  req,
		Detail:   res.Detail,
	}
	if res.Contained {
		o.Status = StatusContained
	}
	return o
}

func (r Request) validate() error {
	switch {
	case r.Project == "":
		return fmt.Errorf("project is required")
	case r.Tag == "":
		return fmt.Errorf("tag is required")
	case r.Branch == "":
		return fmt.Errorf("branch is required")
	}
	return nil
}
