package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"tagcheck/internal/check"
)

// Console renders one check.Outcome for the operator.
//
// Formats:
//   - text: a verdict line on stdout, or "Error: ..." on stderr
//   - json: a single Report document on stdout for every outcome
type Console struct {
	stdout io.Writer
	stderr io.Writer
	format string // "text" | "json"
}

// Report is the JSON shape of an outcome.
type Report struct {
	Status    check.Status `json:"status"`
	ExitCode  int          `json:"exit_code"`
	Provider  string       `json:"provider,omitempty"`
	Project   string       `json:"project,omitempty"`
	Tag       string       `json:"tag,omitempty"`
	Branch    string       `json:"branch,omitempty"`
	Message   string       `json:"message"`
	Detail    string       `json:"detail,omitempty"`
	ErrorKind check.Kind   `json:"error_kind,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func NewConsole(stdout, stderr io.Writer, format string) (*Console, error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	return &Console{stdout: stdout, stderr: stderr, format: format}, nil
}

func (c *Console) Write(o check.Outcome) error {
	switch c.format {
	case "json":
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(NewReport(o)); err != nil {
			return err
		}
		return flushIfPossible(c.stdout)
	default:
		return c.writeText(o)
	}
}

func (c *Console) writeText(o check.Outcome) error {
	var err error
	switch o.Status {
	case check.StatusContained:
		_, err = color.New(color.FgGreen, color.Bold).Fprintln(c.stdout, Message(o))
	case check.StatusNotContained:
		_, err = color.New(color.FgYellow, color.Bold).Fprintln(c.stdout, Message(o))
	default:
		_, err = color.New(color.FgRed).Fprintf(c.stderr, "Error: %s\n", Message(o))
		if err == nil {
			err = flushIfPossible(c.stderr)
		}
		return err
	}
	if err != nil {
		return err
	}
	return flushIfPossible(c.stdout)
}

// Message is the human-readable line for an outcome.
func Message(o check.Outcome) string {
	r := o.Request
	switch o.Status {
	case check.StatusContained:
		return fmt.Sprintf("Tag %s found in branch %s: already merged, may proceed.", r.Tag, r.Branch)
	case check.StatusNotContained:
		return fmt.Sprintf("Tag %s not found in branch %s: not merged yet.", r.Tag, r.Branch)
	default:
		if o.Err == nil {
			return "check failed"
		}
		return o.Err.Error()
	}
}

func NewReport(o check.Outcome) Report {
	rep := Report{
		Status:   o.Status,
		ExitCode: o.ExitCode(),
		Provider: o.Provider,
		Project:  o.Request.Project,
		Tag:      o.Request.Tag,
		Branch:   o.Request.Branch,
		Message:  Message(o),
		Detail:   o.Detail,
	}
	if o.Err != nil {
		rep.ErrorKind = o.Err.Kind
		rep.Error = o.Err.Error()
	}
	return rep
}

type flusher interface {
	Flush() error
}

func flushIfPossible(w io.Writer) error {
	f, ok := w.(flusher)
	if !ok {
		return nil
	}
	return f.Flush()
}
