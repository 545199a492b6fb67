// Package apperr defines the service-wide error taxonomy. Every error that
// crosses a package boundary wraps one of the sentinels below; the API layer
// maps them onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: 请求的实体不存在
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument: 请求本身不合法（缺字段、重名、未知枚举值）
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIllegalState: 实体当前状态不允许该操作
	ErrIllegalState = errors.New("illegal state")
	// ErrProviderFailure: provider 调用失败或超时
	ErrProviderFailure = errors.New("provider failure")
	// ErrInconsistency: 本地记录与 provider 事实不一致且无法自动修复
	ErrInconsistency = errors.New("inconsistency")
)

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

func IllegalStatef(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrIllegalState)
}

func ProviderFailuref(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrProviderFailure)
}

func Inconsistencyf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInconsistency)
}

func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }
func IsIllegalState(err error) bool    { return errors.Is(err, ErrIllegalState) }
func IsProviderFailure(err error) bool { return errors.Is(err, ErrProviderFailure) }
func IsInconsistency(err error) bool   { return errors.Is(err, ErrInconsistency) }
