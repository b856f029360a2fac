package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies pipeline failures so callers can decide whether a
// failure aborts the whole run or only the batch that produced it.
type ErrorCode string

const (
	// CodeFormat marks an unparseable identifier or timestamp found during
	// cleaning. Rows carrying format errors are dropped, never fatal.
	CodeFormat ErrorCode = "FORMAT_ERROR"

	// CodeConfig marks an invalid run configuration, e.g. an empty rate
	// table. Fatal to the run.
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// CodeInsufficientData marks a batch too small for quartile binning.
	// Fatal to that batch's RFM stage only.
	CodeInsufficientData ErrorCode = "INSUFFICIENT_DATA"

	// CodeQualityGate marks a hard data-quality violation after enrichment.
	// Fatal; the pipeline halts before any load.
	CodeQualityGate ErrorCode = "QUALITY_GATE_FAILURE"
)

// PipelineError is the error type surfaced by every pipeline stage. It carries
// enough context (check, column, violation count) to diagnose a failed run
// without re-running it.
type PipelineError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message}
}

func Newf(code ErrorCode, format string, args ...any) *PipelineError {
	return &PipelineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code ErrorCode, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message, Cause: err}
}

func Format(format string, args ...any) *PipelineError {
	return Newf(CodeFormat, format, args...)
}

func Config(format string, args ...any) *PipelineError {
	return Newf(CodeConfig, format, args...)
}

func InsufficientData(format string, args ...any) *PipelineError {
	return Newf(CodeInsufficientData, format, args...)
}

func QualityGate(format string, args ...any) *PipelineError {
	return Newf(CodeQualityGate, format, args...)
}

// HasCode reports whether err or anything it wraps is a PipelineError with the
// given code.
func HasCode(err error, code ErrorCode) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

func IsInsufficientData(err error) bool { return HasCode(err, CodeInsufficientData) }
func IsConfig(err error) bool           { return HasCode(err, CodeConfig) }
func IsFormat(err error) bool           { return HasCode(err, CodeFormat) }
func IsQualityGate(err error) bool      { return HasCode(err, CodeQualityGate) }
