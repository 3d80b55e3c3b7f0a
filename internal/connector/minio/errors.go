package minio

import "fmt"

const (
	CodeEndpointUnreachable = "E_ENDPOINT_UNREACHABLE"
	CodeAuthInvalid         = "E_AUTH_INVALID"
	CodeBucketNotFound      = "E_BUCKET_NOT_FOUND"
	CodeObjectNotFound      = "E_OBJECT_NOT_FOUND"
	CodePermissionDenied    = "E_PERMISSION_DENIED"
	CodeTimeout             = "E_TIMEOUT"
	CodePublishFailed       = "E_ARTIFACT_PUBLISH_FAILED"
)

// Error is an object-store failure. Op names the store call and Key the
// object involved, when there is one.
type Error struct {
	Op        string
	Key       string
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Code
	if e.Op != "" {
		msg = e.Op + " " + msg
	}
	if e.Key != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error         { return e.Err }
func (e *Error) CodeValue() string     { return e.Code }
func (e *Error) RetryableStatus() bool { return e.Retryable }

func storeError(op, key, code string, retryable bool, err error) *Error {
	return &Error{Op: op, Key: key, Code: code, Retryable: retryable, Err: err}
}
