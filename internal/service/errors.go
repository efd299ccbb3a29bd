package service

import (
	"errors"
	"fmt"
)

// Kind 决定 HTTP 状态码，handler 统一在 writeError 里映射
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindNotFound
	KindForbidden
	KindBadRequest
	KindConflict
)

var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Msg: "Unauthenticated"}
	ErrNotFound        = &Error{Kind: KindNotFound, Msg: "Not found"}
	ErrForbidden       = &Error{Kind: KindForbidden, Msg: "Forbidden"}
	ErrBadRequest      = &Error{Kind: KindBadRequest, Msg: "Bad request"}
	ErrConflict        = &Error{Kind: KindConflict, Msg: "Conflict"}
)

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Is 同 Kind 视为相等，errors.Is(err, ErrNotFound) 能匹配任何带自定义文案的 NotFound
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error     { return newError(KindNotFound, format, args...) }
func Forbidden(format string, args ...any) error    { return newError(KindForbidden, format, args...) }
func BadRequest(format string, args ...any) error   { return newError(KindBadRequest, format, args...) }
func Conflict(format string, args ...any) error     { return newError(KindConflict, format, args...) }
func Unauthorized(format string, args ...any) error { return newError(KindUnauthenticated, format, args...) }

// KindOf 非 *Error 的错误一律按 Internal 处理
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
