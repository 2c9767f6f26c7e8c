// Package apperror defines the error taxonomy shared by every layer.
//
// Services return *AppError values; the HTTP layer turns them into the
// {success:false, message, error} envelope. Each error carries two things:
//   - a sentinel kind (ErrNotFound, ErrConflict, ...) for errors.Is checks
//   - a wire Code (e.g. "ALREADY_COLLECTED") that clients switch on
package apperror

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
)

// Code is the machine-readable error code sent to clients.
type Code string

const (
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeInvalidToken        Code = "INVALID_TOKEN"
	CodeInvalidCredentials  Code = "INVALID_CREDENTIALS"
	CodeUsernameExists      Code = "USERNAME_ALREADY_EXISTS"
	CodeEmailExists         Code = "EMAIL_ALREADY_EXISTS"
	CodeUserNotFound        Code = "USER_NOT_FOUND"
	CodeVillageNotFound     Code = "VILLAGE_NOT_FOUND"
	CodeNoVillagesAvailable Code = "NO_VILLAGES_AVAILABLE"
	CodeDailyLimitExceeded  Code = "DAILY_LIMIT_EXCEEDED"
	CodeAlreadyCollected    Code = "ALREADY_COLLECTED"
	CodeCollectionNotFound  Code = "COLLECTION_NOT_FOUND"
	CodeMemoryNotFound      Code = "MEMORY_NOT_FOUND"
	CodeForbidden           Code = "FORBIDDEN"
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeTooManyRequests     Code = "TOO_MANY_REQUESTS"
	CodeInternal            Code = "INTERNAL_SERVER_ERROR"
)

// definition pairs a code with its kind and the default user-facing message.
type definition struct {
	kind    error
	message string
}

var definitions = map[Code]definition{
	CodeUnauthorized:        {ErrUnauthorized, "인증이 필요합니다."},
	CodeInvalidToken:        {ErrUnauthorized, "유효하지 않은 토큰입니다."},
	CodeInvalidCredentials:  {ErrUnauthorized, "아이디 또는 비밀번호가 올바르지 않습니다."},
	CodeUsernameExists:      {ErrConflict, "이미 존재하는 아이디입니다."},
	CodeEmailExists:         {ErrConflict, "이미 존재하는 이메일입니다."},
	CodeUserNotFound:        {ErrNotFound, "사용자를 찾을 수 없습니다."},
	CodeVillageNotFound:     {ErrNotFound, "여행지를 찾을 수 없습니다."},
	CodeNoVillagesAvailable: {ErrValidation, "조건에 맞는 여행지가 없습니다."},
	CodeDailyLimitExceeded:  {ErrRateLimited, "오늘 가챠 횟수를 모두 사용했습니다. 내일 다시 시도해주세요."},
	CodeAlreadyCollected:    {ErrConflict, "이미 컬렉션에 추가된 여행지입니다."},
	CodeCollectionNotFound:  {ErrNotFound, "컬렉션을 찾을 수 없습니다."},
	CodeMemoryNotFound:      {ErrNotFound, "추억을 찾을 수 없습니다."},
	CodeForbidden:           {ErrForbidden, "권한이 없습니다."},
	CodeBadRequest:          {ErrValidation, "잘못된 요청입니다."},
	CodeValidation:          {ErrValidation, "입력값이 올바르지 않습니다."},
	CodeTooManyRequests:     {ErrRateLimited, "요청이 너무 많습니다. 잠시 후 다시 시도해주세요."},
	CodeInternal:            {nil, "서버 오류가 발생했습니다."},
}

type AppError struct {
	Err     error  // sentinel kind
	Code    Code   // wire error code
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New returns the AppError registered for code, with its default message.
func New(code Code) *AppError {
	def, ok := definitions[code]
	if !ok {
		def = definitions[CodeInternal]
		code = CodeInternal
	}
	return &AppError{
		Err:     def.kind,
		Code:    code,
		Message: def.message,
	}
}

// WithMessage returns a copy of code's AppError carrying a custom message.
func WithMessage(code Code, message string) *AppError {
	e := New(code)
	e.Message = message
	return e
}

// CodeOf extracts the wire code from err, or CodeInternal if err is not an AppError.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given wire code.
func Is(err error, code Code) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    CodeValidation,
		Message: message,
		Field:   field,
	}
}
