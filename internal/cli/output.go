package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // An invocation did not produce its expected status
	ExitCommandError = 2 // Command error (bad flags, unreadable scenario, transport failure)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes scenario reports as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Report is the outcome of one scenario run.
type Report struct {
	Scenario string         `json:"scenario"`
	Engine   EngineInfo     `json:"engine"`
	Results  []ResultRecord `json:"results"`
	Events   int            `json:"events"`
	Failed   int            `json:"failed"`
}

// EngineInfo is the handshake payload as reported.
type EngineInfo struct {
	Version uint16 `json:"version"`
	PID     uint32 `json:"pid"`
	Type    string `json:"type"`
}

// ResultRecord is the outcome of one invocation.
type ResultRecord struct {
	Code     string `json:"code"`
	Method   string `json:"method"`
	Status   string `json:"status"`
	Used     string `json:"used"`
	Result   string `json:"result"`
	Expected string `json:"expected,omitempty"`
	Pass     bool   `json:"pass"`
}

// Write renders r in the configured format.
func (f *OutputFormatter) Write(r Report) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(f.Writer, "scenario %s (engine %s v%d pid %d)\n", r.Scenario, r.Engine.Type, r.Engine.Version, r.Engine.PID)
	for _, res := range r.Results {
		mark := "ok"
		if !res.Pass {
			mark = "FAIL"
		}
		fmt.Fprintf(f.Writer, "  %-4s %-12s %-16s used=%s result=%s", mark, res.Method, res.Status, res.Used, res.Result)
		if res.Expected != "" && !res.Pass {
			fmt.Fprintf(f.Writer, " expected=%s", res.Expected)
		}
		fmt.Fprintln(f.Writer)
	}
	fmt.Fprintf(f.Writer, "%d invocations, %d failed, %d events\n", len(r.Results), r.Failed, r.Events)
	return nil
}
