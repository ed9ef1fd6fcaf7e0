package domain

import (
	"errors"
	"fmt"
	"io/fs"
)

// Category sentinels. Every failure surfaced by the ledger service wraps one of these.
var (
	ErrDirectoryUnavailable = fmt.Errorf("documents directory unavailable")
	ErrIO                   = fmt.Errorf("i/o error")
	ErrNotFound             = fmt.Errorf("not found")
	ErrResourceMissing      = fmt.Errorf("bundled resource missing")
	ErrPathOutsideSandbox   = fmt.Errorf("path is outside ledgers directory")
	ErrInvalidInput         = fmt.Errorf("invalid input")
)

// Sentinel errors for the outer layers.
var (
	ErrConfigLoad = fmt.Errorf("failed to load configuration")

	// Gateway / RPC errors.
	ErrAuthInvalid       = fmt.Errorf("authentication failed")
	ErrGatewayAuthFailed = fmt.Errorf("gateway: %w", ErrAuthInvalid)
	ErrRPCMethodNotFound = fmt.Errorf("rpc method not found")
	ErrRPCInvalidPayload = fmt.Errorf("rpc payload invalid")
	ErrRateLimit         = fmt.Errorf("rate limit exceeded")
	ErrForbidden         = fmt.Errorf("forbidden")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Store.Read")
	Err    error  // underlying sentinel
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// FromOSError classifies an OS-level error into NotFound or IoError.
// Errors that already carry a domain sentinel pass through unchanged.
func FromOSError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, fs.ErrNotExist) {
		return NewDomainError(op, ErrNotFound, err.Error())
	}
	return NewDomainError(op, ErrIO, err.Error())
}

// ErrorCode is a machine-parseable error category returned to the UI.
type ErrorCode string

const (
	CodeUnknown              ErrorCode = "UNKNOWN"
	CodeDirectoryUnavailable ErrorCode = "DIRECTORY_UNAVAILABLE"
	CodeIO                   ErrorCode = "IO_ERROR"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeResourceMissing      ErrorCode = "RESOURCE_MISSING"
	CodePathOutsideSandbox   ErrorCode = "PATH_OUTSIDE_SANDBOX"
	CodeInvalidInput         ErrorCode = "INVALID_INPUT"
	CodeConfigLoad           ErrorCode = "CONFIG_LOAD"
	CodeAuthInvalid          ErrorCode = "AUTH_INVALID"
	CodeGatewayAuth          ErrorCode = "GATEWAY_AUTH"
	CodeRPCMethodNotFound    ErrorCode = "RPC_METHOD_NOT_FOUND"
	CodeRPCInvalidPayload    ErrorCode = "RPC_INVALID_PAYLOAD"
	CodeRateLimit            ErrorCode = "RATE_LIMIT"
	CodeForbidden            ErrorCode = "FORBIDDEN"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrDirectoryUnavailable: CodeDirectoryUnavailable,
	ErrIO:                   CodeIO,
	ErrNotFound:             CodeNotFound,
	ErrResourceMissing:      CodeResourceMissing,
	ErrPathOutsideSandbox:   CodePathOutsideSandbox,
	ErrInvalidInput:         CodeInvalidInput,
	ErrConfigLoad:           CodeConfigLoad,
	ErrGatewayAuthFailed:    CodeGatewayAuth,
	ErrAuthInvalid:          CodeAuthInvalid,
	ErrRPCMethodNotFound:    CodeRPCMethodNotFound,
	ErrRPCInvalidPayload:    CodeRPCInvalidPayload,
	ErrRateLimit:            CodeRateLimit,
	ErrForbidden:            CodeForbidden,
}

// codeOrder fixes the errors.Is walk so that wrapped chains resolve to the
// most specific sentinel (gateway auth before generic auth).
var codeOrder = []error{
	ErrDirectoryUnavailable,
	ErrResourceMissing,
	ErrPathOutsideSandbox,
	ErrNotFound,
	ErrInvalidInput,
	ErrIO,
	ErrConfigLoad,
	ErrGatewayAuthFailed,
	ErrAuthInvalid,
	ErrRPCMethodNotFound,
	ErrRPCInvalidPayload,
	ErrRateLimit,
	ErrForbidden,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for _, sentinel := range codeOrder {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
