package gen

import "fmt"

// ErrorCode represents a unified error code across the generation layer.
type ErrorCode string

const (
	// ErrSubmission covers failures while creating a job: bad payload,
	// auth rejection, vendor 4xx/5xx on the submit endpoint. Submissions
	// are never retried automatically.
	ErrSubmission ErrorCode = "SUBMISSION"

	// ErrPollTransport covers status-check calls that failed at the
	// transport level more times than the configured retry budget.
	ErrPollTransport ErrorCode = "POLL_TRANSPORT"

	// ErrJobFailed means the vendor reported the job itself as failed,
	// including content-policy and safety-filter rejections.
	ErrJobFailed ErrorCode = "JOB_FAILED"

	// ErrTimeout means the wait budget elapsed while the job was still
	// running. The job may still complete on the vendor side.
	ErrTimeout ErrorCode = "TIMEOUT"

	// ErrConfiguration covers unknown models, unavailable provider
	// overrides, missing credentials, and foreign handles.
	ErrConfiguration ErrorCode = "CONFIGURATION"
)

// Error is a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Provider  string    `json:"provider,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithTaskID sets the vendor job id.
func (e *Error) WithTaskID(taskID string) *Error {
	e.TaskID = taskID
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsTimeout reports whether the error is a wait-budget timeout.
func IsTimeout(err error) bool {
	return GetErrorCode(err) == ErrTimeout
}
