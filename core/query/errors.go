package query

import (
	"errors"
	"fmt"
)

// ErrCode classifies errors returned by this package. Prefer comparing against
// the Err variables with errors.Is.
type ErrCode string

const (
	ErrCodeUnknown         ErrCode = ""
	ErrCodeConfiguration   ErrCode = "Configuration"
	ErrCodeUsage           ErrCode = "Usage"
	ErrCodeUnsupported     ErrCode = "Unsupported"
	ErrCodeInvalidOperand  ErrCode = "InvalidOperand"
	ErrCodeMissingArgument ErrCode = "MissingArgument"
	ErrCodeUnusedArgument  ErrCode = "UnusedArgument"
)

// Sentinel errors for use with errors.Is:
//
//	if errors.Is(err, query.ErrConfiguration) {
//		// no executor was bound to the statement
//	}
//
// Errors carry additional details, so compare them with errors.Is rather than ==.
var (
	ErrConfiguration   = Err{Code: ErrCodeConfiguration, Cause: errors.New("configuration error")}
	ErrUsage           = Err{Code: ErrCodeUsage, Cause: errors.New("usage error")}
	ErrUnsupported     = Err{Code: ErrCodeUnsupported, Cause: errors.New("unsupported operation")}
	ErrInvalidOperand  = Err{Code: ErrCodeInvalidOperand, Cause: errors.New("invalid operand")}
	ErrMissingArgument = Err{Code: ErrCodeMissingArgument, Cause: errors.New("missing argument")}
	ErrUnusedArgument  = Err{Code: ErrCodeUnusedArgument, Cause: errors.New("unused argument")}
)

// Err is the error type returned by the builders and their terminal operations.
type Err struct {
	Code  ErrCode
	While string
	Cause error
}

func (e Err) Error() string {
	if e == (Err{}) {
		return ""
	}
	msg := "[query]"
	if e.Code != ErrCodeUnknown {
		msg += " " + string(e.Code)
	}
	if e.While != "" {
		msg += " while " + e.While
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is matches on the wrapped cause first and falls back on the error code.
func (e Err) Is(other error) bool {
	if e.Cause != nil && errors.Is(e.Cause, other) {
		return true
	}
	err, ok := other.(Err)
	return ok && err.Code == e.Code
}

func (e Err) Unwrap() error {
	return e.Cause
}

func errNoExecutor(while string) Err {
	return Err{
		Code:  ErrCodeConfiguration,
		While: while,
		Cause: errors.New("no query executor is bound to the statement"),
	}
}

func errInvalidOperand(format string, args ...any) Err {
	return Err{
		Code:  ErrCodeInvalidOperand,
		While: "building statement",
		Cause: fmt.Errorf(format, args...),
	}
}

func errUnsupported(while string, target any) Err {
	return Err{
		Code:  ErrCodeUnsupported,
		While: while,
		Cause: fmt.Errorf("%T does not support this operation", target),
	}
}
