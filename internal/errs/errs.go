package errs

import "fmt"

type Code string

const (
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeInvalidPairing   Code = "INVALID_PAIRING"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeInternal         Code = "INTERNAL"
)

// AppError — доменная ошибка с кодом, который транспорт переводит в HTTP-статус.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches an AppError with the same code and message. A target with an
// empty message matches any AppError of that code, so
// errors.Is(err, &AppError{Code: CodeNotFound}) checks the code alone.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first AppError in err's chain, CodeInternal otherwise.
func CodeOf(err error) Code {
	for err != nil {
		if ae, ok := err.(*AppError); ok {
			return ae.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return CodeInternal
}

var (
	ErrUnauthenticated      = New(CodeUnauthenticated, "caller identity required")
	ErrUnauthorized         = New(CodePermissionDenied, "insufficient role")
	ErrNotParticipant       = New(CodePermissionDenied, "caller is not a conversation participant")
	ErrUserNotFound         = New(CodeNotFound, "user not found")
	ErrConversationNotFound = New(CodeNotFound, "conversation not found")
	ErrTicketNotFound       = New(CodeNotFound, "ticket not found")
	ErrInvalidPairing       = New(CodeInvalidPairing, "conversation requires one tourist and one admin")
	ErrInvalidRole          = New(CodeInvalidArgument, "invalid role")
	ErrEmptyContent         = New(CodeInvalidArgument, "content must not be empty")
	ErrInvalidEmail         = New(CodeInvalidArgument, "invalid email")
)
