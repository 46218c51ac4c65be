package customcommands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/ingest"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/process"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/safeconv"
)

// Command scopes.
const (
	ScopeFile    = "file"
	ScopeProject = "project"
)

// Placeholders substituted into file-scope command lines.
const (
	TokenPathname      = "%pathname%"
	TokenFixedPathname = "%fixed_pathname%"
)

const (
	defaultTimeout = 300
	maxTimeout     = 1800
	maxIterations  = 10
)

var errNoPathToken = errors.New("file commands must contain " + TokenPathname + " or " + TokenFixedPathname)

// command is one resolved entry of the commands list.
type command struct {
	Name             string `json:"name"`
	Scope            string `json:"scope"`
	Line             string `json:"command"`
	OutputFormat     string `json:"output_format"`
	OutputFile       string `json:"output_file"`
	Iterations       int    `json:"iterations"`
	Timeout          int    `json:"timeout"`
	IdleTimeout      int    `json:"idle_timeout"`
	SuccessExitCodes []int  `json:"success_exit_codes"`
	PTY              bool   `json:"pty"`
}

func commandFields(n *config.Node) {
	n.String("name", "Label used in logs and in skip_commands; defaults to command-<index>.").Default("")
	n.Enum("scope", "Run once per file or once for the project.", ScopeFile, ScopeProject).Default(ScopeFile)
	n.String("command", "Shell command line. File commands reference the file with "+
		TokenPathname+", fixers with "+TokenFixedPathname+".").Required()
	n.Enum("output_format", "Format of the tool output.", ingest.Formats()...).Default(ingest.FormatNone)
	n.String("output_file", "File the tool writes its output to, relative to the working directory; "+
		"stdout is read when empty.").Default("")
	n.Int("iterations", "How often the command runs; useful for fixers needing several passes.").
		Default(1).Min(1).Max(maxIterations)
	n.Int("timeout", "Seconds a single run may take.").Default(defaultTimeout).Min(1).Max(maxTimeout)
	n.Int("idle_timeout", "Seconds without output after which the run is aborted; 0 disables.").Default(0).Min(0)
	n.StringList("success_exit_codes", "Exit codes treated as success.").
		Default([]string{"0"}).
		Validate(exitCodes)
	n.Bool("pty", "Run the command on a pseudo-terminal.")
}

func exitCodes(v any) error {
	codes, _ := v.([]string)
	for _, c := range codes {
		if _, err := strconv.Atoi(c); err != nil {
			return fmt.Errorf("exit code %q is not an integer", c)
		}
	}

	return nil
}

// validateCommands enforces the rules spanning several fields of an entry.
func validateCommands(v any) error {
	items, _ := v.([]any)

	for i, item := range items {
		entry, _ := item.(map[string]any)
		line, _ := entry["command"].(string)
		scope, _ := entry["scope"].(string)
		format, _ := entry["output_format"].(string)
		iterations, _ := entry["iterations"].(int)

		if scope == ScopeFile && !strings.Contains(line, TokenPathname) && !strings.Contains(line, TokenFixedPathname) {
			return fmt.Errorf("entry %d: %w", i, errNoPathToken)
		}

		if iterations > 1 && ingest.YieldsFindings(format) {
			return fmt.Errorf("entry %d: %w with output format %q", i, ingest.ErrMultiIteration, format)
		}
	}

	return nil
}

func parseCommands(v any, err error) ([]command, error) {
	items, err := config.Value[[]any](v, err)
	if err != nil {
		return nil, err
	}

	out := make([]command, 0, len(items))

	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("commands entry %d: unexpected %T", i, item)
		}

		c, err := parseCommand(i, entry)
		if err != nil {
			return nil, fmt.Errorf("commands entry %d: %w", i, err)
		}

		out = append(out, c)
	}

	return out, nil
}

func parseCommand(index int, entry map[string]any) (command, error) {
	var (
		c   command
		err error
	)

	c.Name, _ = entry["name"].(string)
	if c.Name == "" {
		c.Name = "command-" + strconv.Itoa(index)
	}

	c.Scope, _ = entry["scope"].(string)
	c.Line, _ = entry["command"].(string)
	c.OutputFormat, _ = entry["output_format"].(string)
	c.OutputFile, _ = entry["output_file"].(string)
	c.PTY, _ = entry["pty"].(bool)

	if c.Iterations, err = safeconv.ToInt(entry["iterations"]); err != nil {
		return command{}, fmt.Errorf("iterations: %w", err)
	}

	if c.Timeout, err = safeconv.ToInt(entry["timeout"]); err != nil {
		return command{}, fmt.Errorf("timeout: %w", err)
	}

	if c.IdleTimeout, err = safeconv.ToInt(entry["idle_timeout"]); err != nil {
		return command{}, fmt.Errorf("idle_timeout: %w", err)
	}

	codes, _ := entry["success_exit_codes"].([]string)
	for _, code := range codes {
		n, convErr := safeconv.ToInt(code)
		if convErr != nil {
			return command{}, fmt.Errorf("success_exit_codes: %w", convErr)
		}

		c.SuccessExitCodes = append(c.SuccessExitCodes, n)
	}

	return c, nil
}

func (c command) options(dir string) process.Options {
	return process.Options{
		Timeout:     time.Duration(c.Timeout) * time.Second,
		IdleTimeout: time.Duration(c.IdleTimeout) * time.Second,
		Dir:         dir,
		PTY:         c.PTY,
	}
}

// fixer reports whether the command rewrites a copy of the file.
func (c command) fixer() bool {
	return strings.Contains(c.Line, TokenFixedPathname)
}
