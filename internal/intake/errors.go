package intake

import (
	"errors"
	"fmt"

	"github.com/intake-gateway/intake-gateway/internal/storage"
)

// Kind classifies a failed submission. The api layer maps kinds to HTTP statuses.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindForbidden
	KindUpstreamBlob
	KindUpstreamLog
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindForbidden:
		return "forbidden"
	case KindUpstreamBlob:
		return "upstream_blob"
	case KindUpstreamLog:
		return "upstream_log"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Error codes returned to callers.
const (
	CodeBadRequest        = "bad_request"
	CodeInvalidReference  = "invalid_reference"
	CodeForbidden         = "forbidden"
	CodeDriveAccessDenied = "drive_access_denied"
	CodeDriveUploadFailed = "drive_upload_failed"
	CodeDriveLookupFailed = "drive_lookup_failed"
	CodeSheetsLogFailed   = "sheets_log_failed"
	CodeInternal          = "internal_error"
)

// Error is returned by every Service operation that fails.
type Error struct {
	Kind   Kind
	Code   string
	Reason string
	Err    error
	// Reference is set when a file was stored before a later step failed
	Reference *storage.Reference
	// Filename accompanies Reference in the failure response
	Filename string
}

func (e *Error) Error() string {
	// upstream failures already carry code and cause in Reason
	if e.Kind == KindUpstreamBlob || e.Kind == KindUpstreamLog {
		return e.Reason
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError converts any error into an *Error, treating unknown errors as unexpected.
func AsError(err error) *Error {
	var ie *Error
	if errors.As(err, &ie) {
		return ie
	}
	return &Error{Kind: KindUnexpected, Code: CodeInternal, Reason: "internal error", Err: err}
}

func badRequest(code, reason string, err error) *Error {
	return &Error{Kind: KindBadRequest, Code: code, Reason: reason, Err: err}
}

// blobError classifies a blob store failure. Denied and missing objects are both
// reported as access denied.
func blobError(code string, err error) *Error {
	if errors.Is(err, storage.ErrAccessDenied) || errors.Is(err, storage.ErrNotFound) {
		code = CodeDriveAccessDenied
	}
	return &Error{Kind: KindUpstreamBlob, Code: code, Reason: fmt.Sprintf("%s: %v", code, err), Err: err}
}

func logError(err error, ref *storage.Reference, filename string) *Error {
	return &Error{
		Kind:      KindUpstreamLog,
		Code:      CodeSheetsLogFailed,
		Reason:    fmt.Sprintf("%s: %v", CodeSheetsLogFailed, err),
		Err:       err,
		Reference: ref,
		Filename:  filename,
	}
}
