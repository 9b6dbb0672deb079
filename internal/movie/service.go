// Package movie は映画エントリ管理のドメインロジックを提供する。
package movie

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
	"github.com/hitoshi/cinelog/internal/security"
)

// Input は映画の作成・更新の入力を表す。
// 更新時は空のフィールドを「変更しない」として扱う（省略はクリアではない）。
// ImageSourceが空または"no_change"の場合、カバーは変更しない。
type Input struct {
	Name        string
	Director    string
	Genre       string
	Year        string
	Description string
	ImageSource string
	ImageURL    string
	Upload      *cover.Upload
}

// Service は映画管理のサービス層。
// 認可判定は常に親コレクションの所有者に対して行う。
type Service struct {
	movieRepo repository.MovieRepository
	collRepo  repository.CollectionRepository
	gate      *authz.Gate
	covers    *cover.Manager
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	movieRepo repository.MovieRepository,
	collRepo repository.CollectionRepository,
	gate *authz.Gate,
	covers *cover.Manager,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		movieRepo: movieRepo,
		collRepo:  collRepo,
		gate:      gate,
		covers:    covers,
		sanitizer: sanitizer,
	}
}

// Get は指定IDの映画を取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Movie, error) {
	return s.movieRepo.FindByID(ctx, id)
}

// ListByCollection はコレクションに属する映画を登録順で返す。
// コレクションが存在しない場合はNOT_FOUNDを返す。
func (s *Service) ListByCollection(ctx context.Context, collectionID string) ([]*model.Movie, error) {
	if _, err := s.collRepo.FindByID(ctx, collectionID); err != nil {
		return nil, err
	}
	return s.movieRepo.ListByCollection(ctx, collectionID)
}

// Create は映画をコレクションに追加する。
// 追加権限は親コレクションの所有者にのみ与えられる。
// カバーはdirectiveに応じてCover Image Managerが解決する。
func (s *Service) Create(ctx context.Context, identity *authz.Identity, collectionID string, input Input) (*model.Movie, error) {
	parent, err := s.collRepo.FindByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	if err := s.gate.CanMutateMovie(identity, parent); err != nil {
		return nil, err
	}

	if input.Name == "" {
		return nil, model.NewValidationError("映画のタイトルは必須です")
	}
	if err := validateYear(input.Year); err != nil {
		return nil, err
	}

	source, reference, err := s.covers.Resolve(input.ImageSource, input.ImageURL, input.Upload)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	m := &model.Movie{
		ID:           uuid.New().String(),
		Name:         input.Name,
		Director:     input.Director,
		Genre:        input.Genre,
		Year:         input.Year,
		Description:  s.sanitizer.Sanitize(input.Description),
		CoverSource:  source,
		CoverImage:   reference,
		OwnerID:      identity.UserID,
		CollectionID: collectionID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.movieRepo.Create(ctx, m); err != nil {
		// DB書き込みに失敗した場合、保存済みのローカルカバーを回収する
		s.covers.Cleanup(source, reference)
		return nil, fmt.Errorf("failed to create movie: %w", err)
	}

	slog.Info("movie created",
		slog.String("movie_id", m.ID),
		slog.String("collection_id", collectionID),
	)
	return m, nil
}

// Update は映画を部分更新する。空のフィールドは変更しない。
// ImageSourceが"no_change"または空の場合、カバーは変更しない。
// それ以外のdirectiveは古いローカルカバーの回収を伴う差し替えになる。
func (s *Service) Update(ctx context.Context, identity *authz.Identity, id string, input Input) (*model.Movie, error) {
	m, err := s.movieRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	parent, err := s.collRepo.FindByID(ctx, m.CollectionID)
	if err != nil {
		return nil, err
	}

	if err := s.gate.CanMutateMovie(identity, parent); err != nil {
		return nil, err
	}

	if input.Name != "" {
		m.Name = input.Name
	}
	if input.Director != "" {
		m.Director = input.Director
	}
	if input.Genre != "" {
		m.Genre = input.Genre
	}
	if input.Year != "" {
		if err := validateYear(input.Year); err != nil {
			return nil, err
		}
		m.Year = input.Year
	}
	if input.Description != "" {
		m.Description = s.sanitizer.Sanitize(input.Description)
	}

	if input.ImageSource != "" && input.ImageSource != cover.DirectiveNoChange {
		source, reference, err := s.covers.Replace(
			m.CoverSource, m.CoverImage, input.ImageSource, input.ImageURL, input.Upload)
		if err != nil {
			return nil, err
		}
		m.CoverSource = source
		m.CoverImage = reference
	}

	if err := s.movieRepo.Update(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

// Delete は映画を削除する。権限は親コレクションの所有者から継承される。
// ローカルカバーは行削除の後にベストエフォートで回収する。
func (s *Service) Delete(ctx context.Context, identity *authz.Identity, id string) error {
	m, err := s.movieRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	parent, err := s.collRepo.FindByID(ctx, m.CollectionID)
	if err != nil {
		return err
	}

	if err := s.gate.CanMutateMovie(identity, parent); err != nil {
		return err
	}

	if err := s.movieRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.covers.Cleanup(m.CoverSource, m.CoverImage)

	slog.Info("movie deleted",
		slog.String("movie_id", id),
		slog.String("collection_id", m.CollectionID),
	)
	return nil
}

// validateYear は年表記が空または4文字であることを検証する。
func validateYear(year string) error {
	if year != "" && len(year) != 4 {
		return model.NewValidationError(fmt.Sprintf("年は4文字で指定してください: %s", year))
	}
	return nil
}
