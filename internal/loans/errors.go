package loans

import "fmt"

// Kind classifies a loan operation failure so the HTTP layer can pick a
// status code without inspecting messages.
type Kind int

const (
	KindInvalidInput Kind = iota
	KindNotFound
	KindConflict
	KindUnauthorized
	KindInternal
)

// Error is a loan operation failure with a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func internal(err error, context string) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf("%s: %v", context, err)}
}
