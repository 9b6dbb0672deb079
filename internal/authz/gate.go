// Package authz はコレクション・映画に対する認可判定を提供する。
//
// ルール:
//   - 読み取りは匿名を含む全員に許可される。非公開コレクションは存在せず、
//     所有者ビューと公開ビューはデータではなく操作可否のみが異なる。
//   - コレクションの変更は所有者のみに許可される。
//   - 映画の変更権限は親コレクションの所有者から継承される。
//     映画自身のowner_idは認可判定に使用しない。
package authz

import (
	"github.com/hitoshi/cinelog/internal/model"
)

// Identity はリクエストに紐付く認証済みユーザーを表す。
// 匿名リクエストはnilで表現する。
type Identity struct {
	UserID string
}

// Anonymous は識別子が空かnilの場合にtrueを返す。
func (i *Identity) Anonymous() bool {
	return i == nil || i.UserID == ""
}

// Gate は認可判定を行う。状態を持たない。
type Gate struct{}

// NewGate はGateを生成する。
func NewGate() *Gate {
	return &Gate{}
}

// CanRead はコレクション・映画の読み取り可否を返す。常に許可。
// 所有者かどうかは表示の出し分け（Editableフラグ）のみに影響する。
func (g *Gate) CanRead(identity *Identity) bool {
	return true
}

// IsOwner はidentityがコレクションの所有者かどうかを返す。
// レスポンスのEditableフラグの算出に使用する。
func (g *Gate) IsOwner(identity *Identity, c *model.Collection) bool {
	return !identity.Anonymous() && identity.UserID == c.OwnerID
}

// CanMutateCollection はコレクションの変更可否を判定する。
// 未認証はAUTH_REQUIRED、所有者以外はFORBIDDENを返す。
func (g *Gate) CanMutateCollection(identity *Identity, c *model.Collection) error {
	if identity.Anonymous() {
		return model.NewAuthRequiredError()
	}
	if identity.UserID != c.OwnerID {
		return model.NewForbiddenError("コレクション")
	}
	return nil
}

// CanMutateMovie は映画の変更可否を判定する。
// 権限は親コレクションの所有者から継承される。映画自身のowner_idは参照しない。
func (g *Gate) CanMutateMovie(identity *Identity, parent *model.Collection) error {
	if identity.Anonymous() {
		return model.NewAuthRequiredError()
	}
	if identity.UserID != parent.OwnerID {
		return model.NewForbiddenError("映画")
	}
	return nil
}
