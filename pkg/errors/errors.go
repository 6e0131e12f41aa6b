package errors

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	pkgerrors "github.com/pkg/errors"
)

// Error is error with context values and stack trace
type Error struct {
	msg    string
	cause  error
	stack  error
	Values map[string]interface{}
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

func newError(msg string, cause error) *Error {
	return &Error{
		msg:    msg,
		cause:  cause,
		stack:  pkgerrors.New(msg),
		Values: make(map[string]interface{}),
	}
}

// New creates a new Error with message
func New(msg string) *Error {
	return newError(msg, nil)
}

// Wrap creates a new Error with cause. Values of cause are inherited if cause is *Error.
func Wrap(cause error, msg string) *Error {
	e := newError(msg, cause)
	if prev, ok := cause.(*Error); ok {
		for k, v := range prev.Values {
			e.Values[k] = v
		}
		e.stack = prev.stack
	}
	return e
}

func (x *Error) Error() string {
	if x.cause == nil {
		return x.msg
	}
	return x.msg + ": " + x.cause.Error()
}

// Unwrap returns cause of the error
func (x *Error) Unwrap() error {
	return x.cause
}

// With adds a context value to the error
func (x *Error) With(key string, value interface{}) *Error {
	x.Values[key] = value
	return x
}

// StackTrace returns formatted stack trace where the error is created first
func (x *Error) StackTrace() string {
	if st, ok := x.stack.(stackTracer); ok {
		return fmt.Sprintf("%+v", st.StackTrace())
	}
	return ""
}

// Is, As are re-exported to avoid importing standard errors with this package
var (
	Is = pkgerrors.Is
	As = pkgerrors.As
)

// -----------------------
// Sentry

var sentryEnabled bool

// InitSentry enables EmitSentry if SENTRY_DSN is set
func InitSentry() error {
	dsn, ok := os.LookupEnv("SENTRY_DSN")
	if !ok || dsn == "" {
		return nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: os.Getenv("SENTRY_ENV"),
	}); err != nil {
		return Wrap(err, "Failed sentry.Init")
	}
	sentryEnabled = true
	return nil
}

// EmitSentry sends err to sentry if InitSentry succeeded
func EmitSentry(err error) {
	if !sentryEnabled {
		return
	}

	hub := sentry.CurrentHub().Clone()
	if e, ok := err.(*Error); ok {
		hub.ConfigureScope(func(scope *sentry.Scope) {
			for key, value := range e.Values {
				scope.SetExtra(key, value)
			}
		})
	}
	hub.CaptureException(err)
}

// FlushSentry waits for sending events to sentry
func FlushSentry() {
	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}
