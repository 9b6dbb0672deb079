// Package cleanup はバックグラウンドの掃除ジョブを提供する。
// 期限切れセッションの削除と、どの映画からも参照されなくなった
// カバー画像ファイルの回収を定期バッチで行う。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hitoshi/cinelog/internal/model"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SessionCleanupJob は期限切れセッションの削除ジョブ。
// 冪等な削除処理として設計されている。
type SessionCleanupJob struct {
	db     Executor
	logger *slog.Logger
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(db Executor, logger *slog.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{
		db:     db,
		logger: logger,
	}
}

// Run は期限切れセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	query := `DELETE FROM sessions WHERE expires_at < now()`
	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// CoverLister は参照中のローカルカバーファイル名一覧を返すインターフェース。
// repository.MovieRepositoryの部分集合として定義する。
type CoverLister interface {
	ListAllLocalCovers(ctx context.Context) ([]string, error)
}

// ReclaimRecorder は回収ファイル数のメトリクス記録インターフェース。
type ReclaimRecorder interface {
	RecordCoverFilesReclaimed(count int)
}

// CoverCleanupJob は孤児カバー画像ファイルの回収ジョブ。
// DBトランザクションとファイル操作はアトミックではないため、
// 差し替え・削除の失敗時に参照されないファイルが残ることがある。
// このジョブがそれらを定期的に回収する。
type CoverCleanupJob struct {
	movies   CoverLister
	dir      string
	logger   *slog.Logger
	recorder ReclaimRecorder

	// GracePeriod より新しいファイルは削除しない。
	// 実行中のアップロードとDBコミットの間のファイルを誤回収しないため。
	GracePeriod time.Duration
}

// NewCoverCleanupJob は新しいCoverCleanupJobを生成する。recorderはnil可。
func NewCoverCleanupJob(movies CoverLister, dir string, logger *slog.Logger, recorder ReclaimRecorder) *CoverCleanupJob {
	return &CoverCleanupJob{
		movies:      movies,
		dir:         dir,
		logger:      logger,
		recorder:    recorder,
		GracePeriod: 1 * time.Hour,
	}
}

// Run はどの映画からも参照されていないローカルカバーファイルを削除する。
// デフォルトのプレースホルダー画像は常に残す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CoverCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	covers, err := j.movies.ListAllLocalCovers(ctx)
	if err != nil {
		j.logger.Error("参照中カバー一覧の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("参照中カバー一覧の取得に失敗: %w", err)
	}

	referenced := make(map[string]struct{}, len(covers))
	for _, name := range covers {
		referenced[name] = struct{}{}
	}

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("カバーディレクトリの読み取りに失敗: %w", err)
	}

	cutoff := time.Now().Add(-j.GracePeriod)
	deleted := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == model.DefaultCoverImage {
			continue
		}
		if _, ok := referenced[name]; ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(j.dir, name)); err != nil {
			j.logger.Warn("孤児カバーファイルの削除に失敗しました",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
	}

	if j.recorder != nil && deleted > 0 {
		j.recorder.RecordCoverFilesReclaimed(deleted)
	}

	duration := time.Since(start)
	j.logger.Info("カバークリーンアップジョブが完了しました",
		slog.Int("deleted_count", deleted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
