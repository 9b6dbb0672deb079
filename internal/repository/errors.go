package repository

import "errors"

// ErrDuplicateEmail はusers.emailのUNIQUE制約違反を表す。
// ほぼ同時の初回ログイン競合で発生し、呼び出し側は
// 「既に存在する」とみなして検索をリトライする。
var ErrDuplicateEmail = errors.New("duplicate email")
