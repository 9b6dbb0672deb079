// Package collection はコレクション管理のドメインロジックを提供する。
package collection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/cinelog/internal/authz"
	"github.com/hitoshi/cinelog/internal/cover"
	"github.com/hitoshi/cinelog/internal/model"
	"github.com/hitoshi/cinelog/internal/repository"
)

// CoverReclaimer はコレクション削除時のカバーファイル回収インターフェース。
// cover.Managerの部分集合として定義する。
type CoverReclaimer interface {
	Cleanup(source model.CoverSource, reference string)
}

// Service はコレクション管理のサービス層。
// 一覧・作成・編集・削除のビジネスロジックと認可判定の呼び出しを担う。
type Service struct {
	collRepo  repository.CollectionRepository
	movieRepo repository.MovieRepository
	gate      *authz.Gate
	covers    CoverReclaimer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	collRepo repository.CollectionRepository,
	movieRepo repository.MovieRepository,
	gate *authz.Gate,
	covers CoverReclaimer,
) *Service {
	return &Service{
		collRepo:  collRepo,
		movieRepo: movieRepo,
		gate:      gate,
		covers:    covers,
	}
}

// List は全コレクションを名前のバイト順昇順で返す。
// 匿名と認証済みで返すデータは同一であり、違いは表示可能な操作だけ
// （Editableフラグの算出はハンドラー層で行う）。
func (s *Service) List(ctx context.Context) ([]*model.Collection, error) {
	return s.collRepo.List(ctx)
}

// Get は指定IDのコレクションを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Collection, error) {
	return s.collRepo.FindByID(ctx, id)
}

// Create はコレクションを作成する。作成者が所有者として確定する。
// 名前は必須。未認証ではAUTH_REQUIREDを返す。
func (s *Service) Create(ctx context.Context, identity *authz.Identity, name string) (*model.Collection, error) {
	if identity.Anonymous() {
		return nil, model.NewAuthRequiredError()
	}
	if name == "" {
		return nil, model.NewValidationError("コレクション名は必須です")
	}

	now := time.Now()
	c := &model.Collection{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   identity.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.collRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	slog.Info("collection created",
		slog.String("collection_id", c.ID),
		slog.String("owner_id", c.OwnerID),
	)
	return c, nil
}

// Update はコレクション名を更新する。所有者のみが実行できる。
// 名前が空の場合は何も変更しない（部分更新: 省略はクリアではない）。
func (s *Service) Update(ctx context.Context, identity *authz.Identity, id, name string) (*model.Collection, error) {
	c, err := s.collRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.gate.CanMutateCollection(identity, c); err != nil {
		return nil, err
	}

	if name == "" {
		return c, nil
	}

	if err := s.collRepo.UpdateName(ctx, id, name); err != nil {
		return nil, err
	}

	c.Name = name
	return c, nil
}

// Delete はコレクションを削除する。所有者のみが実行できる。
// 所属する映画はDBのFKでカスケード削除される。ローカルカバーファイルは
// 行削除の後にベストエフォートで回収する（失敗しても孤児ファイルが残るだけで、
// 削除自体は成功として扱う）。
func (s *Service) Delete(ctx context.Context, identity *authz.Identity, id string) error {
	c, err := s.collRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.gate.CanMutateCollection(identity, c); err != nil {
		return err
	}

	// 行削除の前にローカルカバーの一覧を確保しておく
	covers, err := s.movieRepo.ListLocalCoversByCollection(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list covers for cleanup: %w", err)
	}

	if err := s.collRepo.Delete(ctx, id); err != nil {
		return err
	}

	for _, name := range covers {
		s.covers.Cleanup(model.CoverSourceLocal, name)
	}

	slog.Info("collection deleted",
		slog.String("collection_id", id),
		slog.Int("reclaimed_covers", len(covers)),
	)
	return nil
}

// interfaceの適合確認。cover.ManagerがCoverReclaimerを満たすことを
// このパッケージ側で保証する。
var _ CoverReclaimer = (*cover.Manager)(nil)
