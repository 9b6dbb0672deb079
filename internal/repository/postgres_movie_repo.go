package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/cinelog/internal/model"
)

// PostgresMovieRepo はPostgreSQLを使用した映画リポジトリ。
type PostgresMovieRepo struct {
	db *sql.DB
}

// NewPostgresMovieRepo はPostgresMovieRepoを生成する。
func NewPostgresMovieRepo(db *sql.DB) *PostgresMovieRepo {
	return &PostgresMovieRepo{db: db}
}

const movieColumns = `id, name, director, genre, year, description,
	cover_source, cover_image, owner_id, collection_id, created_at, updated_at`

// scanMovie は1行分の映画データをスキャンする。
func scanMovie(rows *sql.Rows) (*model.Movie, error) {
	m := &model.Movie{}
	var coverSource string
	if err := rows.Scan(
		&m.ID, &m.Name, &m.Director, &m.Genre, &m.Year, &m.Description,
		&coverSource, &m.CoverImage, &m.OwnerID, &m.CollectionID, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan movie: %w", err)
	}
	m.CoverSource = model.CoverSource(coverSource)
	return m, nil
}

// FindByID は指定IDの映画を厳格な1件一致で取得する。
// 0件はNOT_FOUND、複数件はMULTIPLE_MATCHESとしてエラーを返す。
func (r *PostgresMovieRepo) FindByID(ctx context.Context, id string) (*model.Movie, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find movie by ID: %w", err)
	}
	defer rows.Close()

	var m *model.Movie
	for rows.Next() {
		if m != nil {
			return nil, model.NewMultipleMatchesError("映画", id)
		}
		found, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		m = found
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movies: %w", err)
	}
	if m == nil {
		return nil, model.NewNotFoundError("映画", id)
	}

	return m, nil
}

// ListByCollection はコレクションに属する映画を登録順で返す。
func (r *PostgresMovieRepo) ListByCollection(ctx context.Context, collectionID string) ([]*model.Movie, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+movieColumns+` FROM movies
		 WHERE collection_id = $1
		 ORDER BY created_at ASC, id ASC`,
		collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	defer rows.Close()

	var movies []*model.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movies: %w", err)
	}

	return movies, nil
}

// Create は映画を作成する。
func (r *PostgresMovieRepo) Create(ctx context.Context, m *model.Movie) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO movies (id, name, director, genre, year, description,
		 cover_source, cover_image, owner_id, collection_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, m.Name, m.Director, m.Genre, m.Year, m.Description,
		string(m.CoverSource), m.CoverImage, m.OwnerID, m.CollectionID, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert movie: %w", err)
	}
	return nil
}

// Update は映画の全フィールドを上書き更新する。
func (r *PostgresMovieRepo) Update(ctx context.Context, m *model.Movie) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE movies SET name = $1, director = $2, genre = $3, year = $4,
		 description = $5, cover_source = $6, cover_image = $7, updated_at = now()
		 WHERE id = $8`,
		m.Name, m.Director, m.Genre, m.Year, m.Description,
		string(m.CoverSource), m.CoverImage, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update movie: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewNotFoundError("映画", m.ID)
	}
	return nil
}

// Delete は指定IDの映画を削除する。
func (r *PostgresMovieRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM movies WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete movie: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewNotFoundError("映画", id)
	}
	return nil
}

// ListLocalCoversByCollection はコレクション内のローカルカバー画像の
// ファイル名一覧を返す。コレクション削除前のファイル回収に使用する。
func (r *PostgresMovieRepo) ListLocalCoversByCollection(ctx context.Context, collectionID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT cover_image FROM movies
		 WHERE collection_id = $1 AND cover_source = 'local' AND cover_image <> ''`,
		collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list local covers: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan cover name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate covers: %w", err)
	}

	return names, nil
}

// ListAllLocalCovers は全映画が参照中のローカルカバーファイル名一覧を返す。
func (r *PostgresMovieRepo) ListAllLocalCovers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT cover_image FROM movies
		 WHERE cover_source = 'local' AND cover_image <> ''`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list local covers: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan cover name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate covers: %w", err)
	}

	return names, nil
}

// compile-time interface check
var _ MovieRepository = (*PostgresMovieRepo)(nil)
