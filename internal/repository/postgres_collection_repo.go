package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/cinelog/internal/model"
)

// PostgresCollectionRepo はPostgreSQLを使用したコレクションリポジトリ。
type PostgresCollectionRepo struct {
	db *sql.DB
}

// NewPostgresCollectionRepo はPostgresCollectionRepoを生成する。
func NewPostgresCollectionRepo(db *sql.DB) *PostgresCollectionRepo {
	return &PostgresCollectionRepo{db: db}
}

// listCollectionsQuery はコレクション一覧の取得クエリ。
// COLLATE "C" によるバイト順ソートが一覧順序の契約であり、
// ロケール依存の照合順序に差し替えてはならない。
const listCollectionsQuery = `SELECT id, name, owner_id, created_at, updated_at
	 FROM collections
	 ORDER BY name COLLATE "C" ASC, id ASC`

// FindByID は指定IDのコレクションを厳格な1件一致で取得する。
// 0件はNOT_FOUND、複数件はMULTIPLE_MATCHESとしてエラーを返す。
func (r *PostgresCollectionRepo) FindByID(ctx context.Context, id string) (*model.Collection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, owner_id, created_at, updated_at FROM collections WHERE id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find collection by ID: %w", err)
	}
	defer rows.Close()

	var c *model.Collection
	for rows.Next() {
		if c != nil {
			return nil, model.NewMultipleMatchesError("コレクション", id)
		}
		found := &model.Collection{}
		if err := rows.Scan(&found.ID, &found.Name, &found.OwnerID, &found.CreatedAt, &found.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		c = found
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collections: %w", err)
	}
	if c == nil {
		return nil, model.NewNotFoundError("コレクション", id)
	}

	return c, nil
}

// List は全コレクションを名前のバイト順昇順で返す。
// COLLATE "C" により大文字が小文字より先に並ぶ（ASCII序列）。
// 同名はid昇順で安定させる。
func (r *PostgresCollectionRepo) List(ctx context.Context) ([]*model.Collection, error) {
	rows, err := r.db.QueryContext(ctx, listCollectionsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var collections []*model.Collection
	for rows.Next() {
		c := &model.Collection{}
		if err := rows.Scan(&c.ID, &c.Name, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collections: %w", err)
	}

	return collections, nil
}

// Create はコレクションを作成する。
func (r *PostgresCollectionRepo) Create(ctx context.Context, c *model.Collection) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO collections (id, name, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.OwnerID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	return nil
}

// UpdateName はコレクション名を更新する。
func (r *PostgresCollectionRepo) UpdateName(ctx context.Context, id, name string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE collections SET name = $1, updated_at = now() WHERE id = $2`,
		name, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewNotFoundError("コレクション", id)
	}
	return nil
}

// Delete はコレクションを削除する。所属する映画はFKのON DELETE CASCADEで
// DBレベルで一括削除される。
func (r *PostgresCollectionRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM collections WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewNotFoundError("コレクション", id)
	}
	return nil
}

// compile-time interface check
var _ CollectionRepository = (*PostgresCollectionRepo)(nil)
