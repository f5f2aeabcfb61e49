package core

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound    = "room_not_found"
	ErrCodeMessageNotFound = "message_not_found"
	ErrCodeNoActiveRoom    = "no_active_room"
	ErrCodeEmptyInput      = "empty_input"
	ErrCodeInvalidTopic    = "invalid_topic"
	ErrCodeInvalidTheme    = "invalid_theme"
	ErrCodeNotRetryable    = "not_retryable"
	ErrCodeBadRequest      = "bad_request"
	ErrCodePublishFailed   = "publish_failed"
	ErrCodeNotStarted      = "not_started"
	ErrCodeInvalidURL      = "invalid_attachment"
)

var (
	ErrRoomNotFound    = coreError(ErrCodeRoomNotFound, "room not found")
	ErrMessageNotFound = coreError(ErrCodeMessageNotFound, "message not found")
	ErrNoActiveRoom    = coreError(ErrCodeNoActiveRoom, "no active room")
	ErrEmptyText       = coreError(ErrCodeEmptyInput, "message text is empty")
	ErrInvalidTopic    = coreError(ErrCodeInvalidTopic, "topic must be 1-64 letters, digits, '-' or '_'")
	ErrInvalidTheme    = coreError(ErrCodeInvalidTheme, "theme must be dark or light")
	ErrNotRetryable    = coreError(ErrCodeNotRetryable, "only failed messages can be retried")
	ErrNotStarted      = coreError(ErrCodeNotStarted, "session not started")
	ErrInvalidURL      = coreError(ErrCodeInvalidURL, "attachment url must be an absolute http(s) url")
)

// CoreError wraps a code and human-readable message. Two CoreErrors match
// with errors.Is when their codes are equal.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	return ok && t.Code == e.Code
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// Errorf returns a CoreError with the given code and a custom message.
func Errorf(code, msg string) *CoreError {
	return coreError(code, msg)
}
