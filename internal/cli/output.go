package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/softkave/fimidx-sub001/internal/objstore"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Store failure, or upsert items rejected by onConflict=fail
	ExitCommandError = 2 // Invalid flags, unreadable input files, rejected queries
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeInvalidInput = "E002" // Unreadable or malformed input file
	ErrCodeQuery        = "E003" // Query rejected by the compiler
	ErrCodeParams       = "E004" // Operation parameters rejected
	ErrCodeBackend      = "E005" // Backend open or I/O failure
	ErrCodeConfig       = "E006" // Configuration could not be loaded
	ErrCodeFailedItems  = "E007" // Upsert items rejected by onConflict=fail
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
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
	ErrWriter io.Writer // Diagnostic output; defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled. It
// writes to ErrWriter so JSON output on Writer stays parseable.
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

// Fail reports err and returns the matching ExitError. Query and
// parameter errors are caller mistakes and exit with ExitCommandError;
// everything else is a store failure.
func (f *OutputFormatter) Fail(err error) error {
	var qe *queryir.QueryError
	if errors.As(err, &qe) {
		_ = f.Error(ErrCodeQuery, qe.Error(), map[string]any{"code": qe.Code, "field": qe.Field})
		return WrapExitError(ExitCommandError, "query rejected", err)
	}
	var pe *objstore.ParamError
	if errors.As(err, &pe) {
		_ = f.Error(ErrCodeParams, pe.Error(), map[string]any{"code": pe.Code})
		return WrapExitError(ExitCommandError, "invalid parameters", err)
	}
	_ = f.Error(ErrCodeBackend, err.Error(), nil)
	return WrapExitError(ExitFailure, "operation failed", err)
}

// InvalidInput reports a malformed flag or input file.
func (f *OutputFormatter) InvalidInput(err error) error {
	_ = f.Error(ErrCodeInvalidInput, err.Error(), nil)
	return WrapExitError(ExitCommandError, "invalid input", err)
}
