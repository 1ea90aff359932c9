package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/gudam/internal/compiler"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Specs valid, scenarios passed
	ExitFailure      = 1 // A store spec failed validation or a scenario failed
	ExitCommandError = 2 // Unreadable specs or storage, bad flags, compile errors
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ExitError carries the exit code a command should end with.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
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
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope every command writes.
type CLIResponse struct {
	Status    string     `json:"status"`               // StatusOK or StatusError
	Data      any        `json:"data,omitempty"`       // command payload
	Error     *CLIError  `json:"error,omitempty"`      // first problem
	Errors    []CLIError `json:"errors,omitempty"`     // every problem, when more than one
	SessionID string     `json:"session_id,omitempty"` // instantiation session a scenario ran in
}

// CLIError is one reported problem. Store, Field and Line locate it inside a
// store spec when it came from one.
type CLIError struct {
	Code    string `json:"code"` // E0xx for loading, E1xx for store specs
	Message string `json:"message"`
	Store   string `json:"store,omitempty"`
	Field   string `json:"field,omitempty"` // e.g. "actions.add"
	Line    int    `json:"line,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Where renders the problem's location as "store.field", or "" when the
// problem is not tied to a store.
func (e CLIError) Where() string {
	switch {
	case e.Store != "" && e.Field != "":
		return e.Store + "." + e.Field
	case e.Store != "":
		return e.Store
	default:
		return e.Field
	}
}

// storeErrors locates validation errors of one store spec.
func storeErrors(key string, errs []compiler.ValidationError) []CLIError {
	out := make([]CLIError, len(errs))
	for i, ve := range errs {
		out[i] = CLIError{
			Code:    ve.Code,
			Message: ve.Message,
			Store:   key,
			Field:   ve.Field,
			Line:    ve.Line,
		}
	}
	return out
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: StatusOK, Data: data})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Report writes a JSON envelope for a command whose outcome is pass or
// fail, such as a scenario run. errs are attached when pass is false.
func (f *OutputFormatter) Report(pass bool, sessionID string, data any, errs ...CLIError) error {
	resp := CLIResponse{Status: StatusOK, Data: data, SessionID: sessionID}
	if !pass {
		resp.Status = StatusError
		if len(errs) > 0 {
			resp.Error = &errs[0]
		}
		if len(errs) > 1 {
			resp.Errors = errs
		}
	}
	return f.encode(resp)
}

// Error outputs a problem that is not tied to a store.
func (f *OutputFormatter) Error(code, message string, details any) error {
	return f.Fail(CLIError{Code: code, Message: message, Details: details})
}

// Fail outputs a single problem in the configured format.
func (f *OutputFormatter) Fail(e CLIError) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: StatusError, Error: &e})
	}

	if where := e.Where(); where != "" {
		fmt.Fprintf(f.Writer, "Error [%s] %s: %s\n", e.Code, where, e.Message)
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	}
	if f.Verbose && e.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", e.Details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose mode is on. It goes to
// ErrWriter so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}
