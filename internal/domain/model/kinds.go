package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind エージェント種別
type Kind string

const (
	KindDriver    Kind = "driver"
	KindPassenger Kind = "passenger"
	KindUnknown   Kind = ""
)

// 種別タグ（IDの先頭1文字）
const (
	driverTag    = 'D'
	passengerTag = 'P'
)

// KindOf IDの先頭文字から種別を判定する。種別タグを読むのはこの関数だけ
func KindOf(id string) Kind {
	if id == "" {
		return KindUnknown
	}
	switch id[0] {
	case driverTag:
		return KindDriver
	case passengerTag:
		return KindPassenger
	default:
		return KindUnknown
	}
}

// ParseKind 文字列から種別を解析
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDriver:
		return KindDriver, nil
	case KindPassenger:
		return KindPassenger, nil
	}
	return KindUnknown, fmt.Errorf("unknown kind %q (driver or passenger)", s)
}

// Opposite 相手側の種別
func (k Kind) Opposite() Kind {
	switch k {
	case KindDriver:
		return KindPassenger
	case KindPassenger:
		return KindDriver
	}
	return KindUnknown
}

// NewAgentID 種別タグ付きの新しいエージェントIDを生成
func NewAgentID(kind Kind) (string, error) {
	switch kind {
	case KindDriver:
		return string(driverTag) + uuid.New().String(), nil
	case KindPassenger:
		return string(passengerTag) + uuid.New().String(), nil
	}
	return "", fmt.Errorf("cannot assign id for kind %q", kind)
}
