// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, upload, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeMultipleMatches  = "MULTIPLE_MATCHES"
	ErrCodeAuthRequired     = "AUTH_REQUIRED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeValidation       = "VALIDATION"
	ErrCodeInvalidUpload    = "INVALID_UPLOAD"
	ErrCodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	ErrCodeIdentityLookup   = "IDENTITY_LOOKUP"
	ErrCodeIdentityProvider = "IDENTITY_PROVIDER"
)

// NewNotFoundError はリソース未検出エラーを生成する。
// ID検索が0件だった場合に使用する。
func NewNotFoundError(kind, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません: %s", kind, id),
		Category: "catalog",
		Action:   "IDを確認してください。",
	}
}

// NewMultipleMatchesError はID検索が複数件ヒットした場合のエラーを生成する。
// データ整合性の異常であり、500として扱う。
func NewMultipleMatchesError(kind, id string) *APIError {
	return &APIError{
		Code:     ErrCodeMultipleMatches,
		Message:  fmt.Sprintf("%sのID検索が複数件ヒットしました: %s", kind, id),
		Category: "system",
		Action:   "運用者に連絡してください。",
	}
}

// NewAuthRequiredError は未認証での変更操作エラーを生成する。
// ハンドラー層でログインURLへの誘導とともに401として返す。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "この操作にはログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewForbiddenError は所有者以外による変更操作エラーを生成する。
func NewForbiddenError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("この%sを変更する権限がありません。", kind),
		Category: "auth",
		Action:   "自分で作成したものだけが変更できます。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidUploadError はカバー画像アップロードの検証エラーを生成する。
// 拡張子が許可リスト外、またはファイル未添付の場合に使用する。
func NewInvalidUploadError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUpload,
		Message:  fmt.Sprintf("画像をアップロードできません: %s", reason),
		Category: "upload",
		Action:   "png, jpg, jpeg, gif のいずれかの画像ファイルを選択してください。",
	}
}

// NewPayloadTooLargeError はアップロードサイズ超過エラーを生成する。
func NewPayloadTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  fmt.Sprintf("アップロードサイズが上限（%dバイト）を超えています。", maxBytes),
		Category: "upload",
		Action:   "2MiB以下のファイルを選択してください。",
	}
}

// NewIdentityLookupError はemailに複数ユーザーが紐付いている場合のエラーを生成する。
// データ破損であり、静かに1件を選ばず必ず上位へ伝播させる。
func NewIdentityLookupError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeIdentityLookup,
		Message:  fmt.Sprintf("emailに複数のユーザーが紐付いています: %s", email),
		Category: "system",
		Action:   "運用者に連絡してください。",
	}
}

// NewIdentityProviderError は外部IdPでの検証失敗エラーを生成する。
// stateトークン不一致、認可コード不正、ID不一致などが該当する。
func NewIdentityProviderError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeIdentityProvider,
		Message:  fmt.Sprintf("外部プロバイダーでの認証に失敗しました: %s", reason),
		Category: "auth",
		Action:   "再度ログインをお試しください。",
	}
}
