package model

import (
	"errors"
	"strings"
)

// エラー種別
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrConnectionFailure  = errors.New("connection failure")
	ErrTimeout            = errors.New("timeout")
	ErrHydrationMiss      = errors.New("hydration miss")
	ErrNotFound           = errors.New("not found")
	ErrUnexpected         = errors.New("unexpected error")
)

// ValidationError 入力検証エラー。違反したすべての項目を保持する
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "\n")
}

// Is errors.Is(err, ErrInvalidInput) を満たす
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Add 違反項目を追加
func (e *ValidationError) Add(problem string) {
	e.Problems = append(e.Problems, problem)
}

// OrNil 違反がなければnilを返す
func (e *ValidationError) OrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// StorageError ストレージ操作の失敗。Kind は ErrConnectionFailure か ErrTimeout
type StorageError struct {
	Op   string
	Kind error
	Err  error
}

func (e *StorageError) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Is errors.Is(err, ErrStorageUnavailable) を満たす
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// NewStorageError ストレージエラーを作成
func NewStorageError(op string, kind, err error) *StorageError {
	return &StorageError{Op: op, Kind: kind, Err: err}
}
