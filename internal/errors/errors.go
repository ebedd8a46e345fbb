// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for readmegen.
//
// This package defines UserError, a type that carries structured error information
// including what went wrong, why it happened, and how to fix it. Every UserError
// also carries a Kind from the pipeline's error taxonomy, which the HTTP layer
// maps to a status code and the CLI maps to an exit code.
//
// # Usage Example
//
//	err := errors.NewFetchError(
//	    "Failed to clone repository",
//	    "git exited with status 128: repository not found",
//	    "Check that the repository URL is correct and public",
//	    underlyingErr,
//	)
//	errors.KindOf(err)     // KindFetchFailed
//	errors.HTTPStatus(err) // 502
//
// # Formatted Output
//
// The Format() method provides colored terminal output:
//
//	fmt.Fprint(os.Stderr, err.Format(false))
//	// Output (with colors):
//	// Error: Failed to clone repository
//	// Cause: git exited with status 128: repository not found
//	// Fix:   Check that the repository URL is correct and public
//
// # Exit Codes
//
//   - ExitSuccess (0): Successful execution
//   - ExitConfig (1): Configuration errors (missing credential, bad config file)
//   - ExitNetwork (3): Upstream errors (clone failed, generation failed)
//   - ExitInput (4): Invalid user input (no input, invalid archive)
//   - ExitInternal (10): Unclassified errors
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitConfig indicates configuration errors (missing credential, invalid config file).
	ExitConfig = 1

	// ExitNetwork indicates upstream errors (clone or generation failed).
	ExitNetwork = 3

	// ExitInput indicates invalid user input (no input, invalid archive).
	ExitInput = 4

	// ExitInternal indicates unclassified errors.
	ExitInternal = 10
)

// Kind classifies a failure of the README pipeline.
type Kind string

// Error kinds.
const (
	KindNoInput          Kind = "no_input_provided"
	KindInvalidArchive   Kind = "invalid_archive_format"
	KindFetchFailed      Kind = "fetch_failed"
	KindGenerationFailed Kind = "generation_failed"
	KindRequestIDInUse   Kind = "request_id_in_use"
	KindConfig           Kind = "config"
	KindUnclassified     Kind = "unclassified"
)

// Messages returned to HTTP clients for the input errors. They are part of the
// public API and must not change.
const (
	MsgNoInput        = "No file or repo URL provided"
	MsgInvalidArchive = "Uploaded file is not a valid ZIP"
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: What went wrong (user-facing error description)
//   - Cause: Why it happened (diagnostic information)
//   - Fix: How to fix it (actionable suggestion)
type UserError struct {
	// Kind is the pipeline error category.
	Kind Kind

	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred (diagnostic information).
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// ExitCode is the exit code that should be used when exiting due to this error.
	ExitCode int

	// Err is the underlying error that caused this error (optional).
	Err error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error unwrapping for compatibility with errors.Is and errors.As.
func (e *UserError) Unwrap() error {
	return e.Err
}

// PublicMessage returns the text sent to HTTP clients.
//
// Input errors use their fixed messages. Everything else reports the full
// error chain, the same text a caller would get from Error().
func (e *UserError) PublicMessage() string {
	switch e.Kind {
	case KindNoInput, KindInvalidArchive, KindRequestIDInUse:
		return e.Message
	default:
		return e.Error()
	}
}

// NewNoInputError creates the error returned when a request carries neither
// an archive nor a repository URL.
func NewNoInputError() *UserError {
	return &UserError{
		Kind:     KindNoInput,
		Message:  MsgNoInput,
		Cause:    "The request contained neither a 'file' upload nor a 'repo_url' field",
		Fix:      "Upload a ZIP archive or pass a repository URL",
		ExitCode: ExitInput,
	}
}

// NewInvalidArchiveError creates an error for uploads that are not valid ZIP
// archives, or that are unsafe to extract.
func NewInvalidArchiveError(cause string, err error) *UserError {
	return &UserError{
		Kind:     KindInvalidArchive,
		Message:  MsgInvalidArchive,
		Cause:    cause,
		Fix:      "Upload a well-formed .zip archive of the project",
		ExitCode: ExitInput,
		Err:      err,
	}
}

// NewRequestIDInUseError creates the error returned when a request reuses the
// ID of a run that has not finished yet.
func NewRequestIDInUseError(id string, err error) *UserError {
	return &UserError{
		Kind:     KindRequestIDInUse,
		Message:  fmt.Sprintf("Request ID %q is already in use", id),
		Cause:    "Another request with the same ID is still being processed",
		Fix:      "Wait for it to finish or send a different request_id",
		ExitCode: ExitInput,
		Err:      err,
	}
}

// NewFetchError creates an error for repository clone failures.
//
// Example:
//
//	return NewFetchError(
//	    "Failed to clone repository",
//	    "git exited with status 128",
//	    "Check that the repository exists and is public",
//	    err,
//	)
func NewFetchError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Kind:     KindFetchFailed,
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitNetwork,
		Err:      err,
	}
}

// NewGenerationError creates an error for failures of the text-generation service.
func NewGenerationError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Kind:     KindGenerationFailed,
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitNetwork,
		Err:      err,
	}
}

// NewConfigError creates a configuration error with exit code ExitConfig.
//
// Use this for errors related to missing credentials or malformed configuration files.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Kind:     KindConfig,
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitConfig,
		Err:      err,
	}
}

// NewUnclassifiedError wraps an unexpected failure. The message is the
// underlying error's text.
func NewUnclassifiedError(err error) *UserError {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &UserError{
		Kind:     KindUnclassified,
		Message:  msg,
		ExitCode: ExitInternal,
	}
}

// AsUserError returns err as a *UserError, wrapping it as unclassified when it
// is not one already. It returns nil for a nil error.
func AsUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue
	}
	return NewUnclassifiedError(err)
}

// KindOf reports the Kind of err. Errors that are not UserErrors are unclassified.
func KindOf(err error) Kind {
	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue.Kind
	}
	return KindUnclassified
}

// HTTPStatus maps an error to the HTTP status code the server responds with.
//
// Client-input errors map to 4xx, upstream failures to 502 (or 504 when the
// upstream call ran out of time), everything else to 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNoInput:
		return http.StatusBadRequest
	case KindInvalidArchive:
		return http.StatusUnprocessableEntity
	case KindRequestIDInUse:
		return http.StatusConflict
	case KindFetchFailed, KindGenerationFailed:
		if stderrors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// Empty Cause or Fix fields are omitted from the output.
//
// Note: This method temporarily modifies the global color.NoColor state
// and restores it after formatting.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON is the error shape written by the CLI in --json mode and by the
// HTTP API. Fields left empty are omitted.
type ErrorJSON struct {
	Error    string `json:"error"`
	Kind     Kind   `json:"kind,omitempty"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
}

// ToJSON converts the UserError to the shape printed by the CLI.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Kind:     e.Kind,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// PublicJSON converts the UserError to the body sent to HTTP clients. It
// carries the public message and kind only.
func (e *UserError) PublicJSON() ErrorJSON {
	return ErrorJSON{Error: e.PublicMessage(), Kind: e.Kind}
}

// FatalError prints the error and exits with the appropriate code.
//
// This function never returns - it always calls os.Exit().
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	ue := AsUserError(err)
	if jsonOutput {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		// Encode error is ignored since we're about to exit.
		_ = enc.Encode(ue.ToJSON())
	} else {
		fmt.Fprint(os.Stderr, ue.Format(false))
	}
	os.Exit(ue.ExitCode)
}
