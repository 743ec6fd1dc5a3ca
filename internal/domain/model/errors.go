package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCoordinate 緯度経度が範囲外
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrInvalidCellID geohashとして解釈できないセルID
	ErrInvalidCellID = errors.New("invalid cell id")
	// ErrDuplicateKey 一意キーが既に存在する（冪等書き込みでは正常系）
	ErrDuplicateKey = errors.New("duplicate key")
)

// ValidationError はバリデーションエラーを表す
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ProviderError 外部施設検索の失敗
type ProviderError struct {
	Type string
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("施設検索プロバイダの呼び出し失敗 (type=%s): %v", e.Type, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsValidationError 呼び出し側の入力に起因するエラーかどうか
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrInvalidCoordinate) || errors.Is(err, ErrInvalidCellID)
}
