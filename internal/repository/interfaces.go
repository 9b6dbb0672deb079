// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/cinelog/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はemailでユーザーを検索する。見つからない場合はnilを返す。
	// 同一emailに複数行存在する場合はデータ破損としてエラーを返す
	// （静かに1件を選ばない）。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// emailのUNIQUE制約違反時はErrDuplicateEmailを返す。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// Create はidentityを作成する。既存ユーザーが別IdPで初めてログインした際の
	// 紐付け追加に使用する。
	Create(ctx context.Context, identity *model.Identity) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// CollectionRepository はコレクションデータの永続化インターフェース。
type CollectionRepository interface {
	// FindByID は指定IDのコレクションを厳格な1件一致で取得する。
	// 0件の場合はNOT_FOUND、複数件の場合はMULTIPLE_MATCHESエラーを返す。
	FindByID(ctx context.Context, id string) (*model.Collection, error)

	// List は全コレクションを名前のバイト順昇順（ORDER BY name COLLATE "C"）、
	// 同名はid昇順で返す。
	List(ctx context.Context) ([]*model.Collection, error)

	// Create はコレクションを作成する。
	Create(ctx context.Context, c *model.Collection) error

	// UpdateName はコレクション名を更新する。
	UpdateName(ctx context.Context, id, name string) error

	// Delete はコレクションを削除する。所属する映画はDBのFKで
	// カスケード削除される。
	Delete(ctx context.Context, id string) error
}

// MovieRepository は映画データの永続化インターフェース。
type MovieRepository interface {
	// FindByID は指定IDの映画を厳格な1件一致で取得する。
	// 0件の場合はNOT_FOUND、複数件の場合はMULTIPLE_MATCHESエラーを返す。
	FindByID(ctx context.Context, id string) (*model.Movie, error)

	// ListByCollection はコレクションに属する映画を登録順
	// （created_at昇順、同時刻はid昇順）で返す。
	ListByCollection(ctx context.Context, collectionID string) ([]*model.Movie, error)

	// Create は映画を作成する。
	Create(ctx context.Context, m *model.Movie) error

	// Update は映画の全フィールドを上書き更新する。
	// 部分更新のマージはサービス層で行う。
	Update(ctx context.Context, m *model.Movie) error

	// Delete は指定IDの映画を削除する。
	Delete(ctx context.Context, id string) error

	// ListLocalCoversByCollection はコレクション内でcover_source='local'の
	// 映画のcover_imageファイル名一覧を返す。コレクション削除時の
	// ファイル回収に使用する。
	ListLocalCoversByCollection(ctx context.Context, collectionID string) ([]string, error)

	// ListAllLocalCovers は全映画が参照中のローカルカバーファイル名一覧を返す。
	// 孤児ファイル回収ジョブに使用する。
	ListAllLocalCovers(ctx context.Context) ([]string, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
