package movie

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/hitoshi/cinelog/internal/authz"
	"github.com/hitoshi/cinelog/internal/cover"
	"github.com/hitoshi/cinelog/internal/model"
	"github.com/hitoshi/cinelog/internal/repository"
)

// mockMovieRepo はMovieRepositoryのテスト用実装。
type mockMovieRepo struct {
	findByIDFn         func(ctx context.Context, id string) (*model.Movie, error)
	listByCollectionFn func(ctx context.Context, collectionID string) ([]*model.Movie, error)
	createFn           func(ctx context.Context, m *model.Movie) error
	updateFn           func(ctx context.Context, m *model.Movie) error
	deleteFn           func(ctx context.Context, id string) error
}

var _ repository.MovieRepository = (*mockMovieRepo)(nil)

func (m *mockMovieRepo) FindByID(ctx context.Context, id string) (*model.Movie, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockMovieRepo) ListByCollection(ctx context.Context, collectionID string) ([]*model.Movie, error) {
	return m.listByCollectionFn(ctx, collectionID)
}

func (m *mockMovieRepo) Create(ctx context.Context, mv *model.Movie) error {
	if m.createFn != nil {
		return m.createFn(ctx, mv)
	}
	return nil
}

func (m *mockMovieRepo) Update(ctx context.Context, mv *model.Movie) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, mv)
	}
	return nil
}

func (m *mockMovieRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockMovieRepo) ListLocalCoversByCollection(ctx context.Context, collectionID string) ([]string, error) {
	return nil, nil
}

func (m *mockMovieRepo) ListAllLocalCovers(ctx context.Context) ([]string, error) {
	return nil, nil
}

// mockCollectionRepo は親コレクション参照用のテスト実装。
type mockCollectionRepo struct {
	repository.CollectionRepository

	findByIDFn func(ctx context.Context, id string) (*model.Collection, error)
}

func (m *mockCollectionRepo) FindByID(ctx context.Context, id string) (*model.Collection, error) {
	return m.findByIDFn(ctx, id)
}

// mockStore はカバーファイル保存先のテスト実装。
type mockStore struct {
	saved   []string
	deleted []string
}

var _ cover.FileStore = (*mockStore)(nil)

func (m *mockStore) Save(name string, r io.Reader) error {
	m.saved = append(m.saved, name)
	return nil
}

func (m *mockStore) Delete(name string) error {
	m.deleted = append(m.deleted, name)
	return nil
}

// passthroughSanitizer はサニタイズ処理が呼ばれたことだけを記録する。
type passthroughSanitizer struct {
	calls []string
}

func (s *passthroughSanitizer) Sanitize(rawHTML string) string {
	s.calls = append(s.calls, rawHTML)
	return strings.ReplaceAll(rawHTML, "<script>", "")
}

type testDeps struct {
	movieRepo *mockMovieRepo
	collRepo  *mockCollectionRepo
	store     *mockStore
	sanitizer *passthroughSanitizer
}

func newTestService(deps testDeps) (*Service, testDeps) {
	if deps.movieRepo == nil {
		deps.movieRepo = &mockMovieRepo{}
	}
	if deps.collRepo == nil {
		deps.collRepo = &mockCollectionRepo{
			findByIDFn: func(_ context.Context, id string) (*model.Collection, error) {
				return &model.Collection{ID: id, OwnerID: "alice"}, nil
			},
		}
	}
	if deps.store == nil {
		deps.store = &mockStore{}
	}
	if deps.sanitizer == nil {
		deps.sanitizer = &passthroughSanitizer{}
	}
	svc := NewService(
		deps.movieRepo,
		deps.collRepo,
		authz.NewGate(),
		cover.NewManager(deps.store),
		deps.sanitizer,
	)
	return svc, deps
}

func alice() *authz.Identity { return &authz.Identity{UserID: "alice"} }

func TestCreate_DefaultCover(t *testing.T) {
	var created *model.Movie
	svc, deps := newTestService(testDeps{
		movieRepo: &mockMovieRepo{
			createFn: func(_ context.Context, m *model.Movie) error {
				created = m
				return nil
			},
		},
	})

	m, err := svc.Create(context.Background(), alice(), "c1", Input{
		Name:     "七人の侍",
		Director: "黒澤明",
		Genre:    "時代劇",
		Year:     "1954",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if m.CoverSource != model.CoverSourceNone || m.CoverImage != model.DefaultCoverImage {
		t.Errorf("cover = (%q, %q), want default placeholder", m.CoverSource, m.CoverImage)
	}
	if m.OwnerID != "alice" || m.CollectionID != "c1" {
		t.Errorf("ownership = (%q, %q)", m.OwnerID, m.CollectionID)
	}
	if created == nil {
		t.Fatal("repository should receive the movie")
	}
	if len(deps.store.saved) != 0 {
		t.Errorf("no file should be saved, got %v", deps.store.saved)
	}
}

func TestCreate_LocalCover_SavesFile(t *testing.T) {
	svc, deps := newTestService(testDeps{})

	m, err := svc.Create(context.Background(), alice(), "c1", Input{
		Name:        "羅生門",
		ImageSource: "local",
		Upload: &cover.Upload{
			Filename: "rashomon poster.jpg",
			Content:  strings.NewReader("bytes"),
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if m.CoverSource != model.CoverSourceLocal || m.CoverImage != "rashomon_poster.jpg" {
		t.Errorf("cover = (%q, %q)", m.CoverSource, m.CoverImage)
	}
	if len(deps.store.saved) != 1 {
		t.Errorf("saved = %v", deps.store.saved)
	}
}

func TestCreate_URLCover_KeptVerbatim(t *testing.T) {
	svc, _ := newTestService(testDeps{})

	m, err := svc.Create(context.Background(), alice(), "c1", Input{
		Name:        "生きる",
		ImageSource: "url",
		ImageURL:    "https://example.com/ikiru.jpg",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if m.CoverSource != model.CoverSourceURL || m.CoverImage != "https://example.com/ikiru.jpg" {
		t.Errorf("cover = (%q, %q)", m.CoverSource, m.CoverImage)
	}
}

func TestCreate_LocalWithoutFile_InvalidUpload(t *testing.T) {
	svc, _ := newTestService(testDeps{})

	_, err := svc.Create(context.Background(), alice(), "c1", Input{
		Name:        "無題",
		ImageSource: "local",
	})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidUpload {
		t.Errorf("expected INVALID_UPLOAD, got %v", err)
	}
}

func TestCreate_EmptyName_Validation(t *testing.T) {
	svc, _ := newTestService(testDeps{})

	_, err := svc.Create(context.Background(), alice(), "c1", Input{})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Errorf("expected VALIDATION, got %v", err)
	}
}

func TestCreate_InvalidYear_Validation(t *testing.T) {
	svc, _ := newTestService(testDeps{})

	for _, year := range []string{"54", "19541", "二千年"} {
		_, err := svc.Create(context.Background(), alice(), "c1", Input{Name: "x", Year: year})
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
			t.Errorf("year %q: expected VALIDATION, got %v", year, err)
		}
	}
}

// 変更権限は親コレクションの所有者に対して判定される。
func TestCreate_NonParentOwner_Forbidden(t *testing.T) {
	svc, _ := newTestService(testDeps{})

	_, err := svc.Create(context.Background(), &authz.Identity{UserID: "bob"}, "c1", Input{Name: "x"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}
}

func TestCreate_MissingParent_NotFound(t *testing.T) {
	svc, _ := newTestService(testDeps{
		collRepo: &mockCollectionRepo{
			findByIDFn: func(_ context.Context, id string) (*model.Collection, error) {
				return nil, model.NewNotFoundError("コレクション", id)
			},
		},
	})

	_, err := svc.Create(context.Background(), alice(), "missing", Input{Name: "x"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

// DB書き込みに失敗した場合、保存済みのローカルカバーを回収する。
func TestCreate_RepoFailure_ReclaimsSavedCover(t *testing.T) {
	svc, deps := newTestService(testDeps{
		movieRepo: &mockMovieRepo{
			createFn: func(_ context.Context, m *model.Movie) error {
				return fmt.Errorf("insert failed")
			},
		},
	})

	_, err := svc.Create(context.Background(), alice(), "c1", Input{
		Name:        "x",
		ImageSource: "local",
		Upload:      &cover.Upload{Filename: "a.png", Content: strings.NewReader("x")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(deps.store.deleted) != 1 || deps.store.deleted[0] != "a.png" {
		t.Errorf("saved cover should be reclaimed, deleted = %v", deps.store.deleted)
	}
}

func TestCreate_SanitizesDescription(t *testing.T) {
	svc, deps := newTestService(testDeps{})

	m, err := svc.Create(context.Background(), alice(), "c1", Input{
		Name:        "x",
		Description: "<script>感想",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(deps.sanitizer.calls) != 1 {
		t.Fatalf("sanitizer calls = %d, want 1", len(deps.sanitizer.calls))
	}
	if m.Description != "感想" {
		t.Errorf("Description = %q", m.Description)
	}
}

func existingMovie() *model.Movie {
	return &model.Movie{
		ID:           "m1",
		Name:         "七人の侍",
		Director:     "黒澤明",
		Genre:        "時代劇",
		Year:         "1954",
		Description:  "名作",
		CoverSource:  model.CoverSourceLocal,
		CoverImage:   "old.png",
		OwnerID:      "alice",
		CollectionID: "c1",
	}
}

func TestUpdate_PartialMerge(t *testing.T) {
	var updated *model.Movie
	svc, _ := newTestService(testDeps{
		movieRepo: &mockMovieRepo{
			findByIDFn: func(_ context.Context, id string) (*model.Movie, error) {
				return existingMovie(), nil
			},
			updateFn: func(_ context.Context, m *model.Movie) error {
				updated = m
				return nil
			},
		},
	})

	m, err := svc.Update(context.Background(), alice(), "m1", Input{
		Genre: "アクション",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if m.Genre != "アクション" {
		t.Errorf("Genre = %q", m.Genre)
	}
	// 空のフィールドは変更しない
	if m.Name != "七人の侍" || m.Director != "黒澤明" || m.Year != "1954" {
		t.Errorf("untouched fields changed: %+v", m)
	}
	// カバーも未指定なら変更しない
	if m.CoverSource != model.CoverSourceLocal || m.CoverImage != "old.png" {
		t.Errorf("cover changed: (%q, %q)", m.CoverSource, m.CoverImage)
	}
	if updated == nil {
		t.Error("repository update should be called")
	}
}

func TestUpdate_NoChangeDirective_KeepsCover(t *testing.T) {
	svc, deps := newTestService(testDeps{
		movieRepo: &mockMovieRepo{
			findByIDFn: func(_ context.Context, id string) (*model.Movie, error) {
				return existingMovie(), nil
			},
		},
	})

	m, err := svc.Update(context.Background(), alice(), "m1", Input{
		ImageSource: cover.DirectiveNoChange,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if m.CoverImage != "old.png" {
		t.Errorf("CoverImage = %q, want old.png", m.CoverImage)
	}
	if len(deps.store.deleted) != 0 {
		t.Errorf("old cover should be kept, deleted = %v", deps.store.deleted)
	}
}

// カバー差し替え時は古いローカルファイルを回収する。
func TestUpdate_ReplaceCover_ReclaimsOldFile(t *testing.T) {
	svc, deps := newTestService(testDeps{
		movieRepo: &mockMovieRepo{
			findByIDFn: func(_ context.Context, id string) (*model.Movie, error) {
				return existingMovie(), nil
			},
		},
	})

	m, err := svc.Update(context.Background(), alice(), "m1", Input{
		ImageSource: "url",
		ImageURL:    "https://example.com/new.jpg",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if m.CoverSource != model.CoverSourceURL || m.CoverImage != "https://example.com/new.jpg" {
		t.Errorf("cover = (%q, %q)", m.CoverSource, m.CoverImage)
	}
	if len(deps.store.deleted) != 1 || deps.store.deleted[0] != "old.png" {
		t.Errorf("old file should be reclaimed, deleted = %v", deps.store.deleted)
	}
}

func TestUpdate_NonParentOwner_Forbidden(t *testing.T) {
	svc, _ := newTestService(testDeps{
		movieRepo: &mockMovieRepo{
			findByIDFn: func(_ context.Context, id string) (*model.Movie, error) {
				return existingMovie(), nil
			},
		},
	})

	_, err := svc.Update(context.Background(), &authz.Identity{UserID: "bob"}, "m1", Input{Name: "奪取"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}
}

func TestDelete_ReclaimsLocalCover(t *testing.T) {
	var deletedID string
	svc, deps := newTestService(testDeps{
		movieRepo: &mockMovieRepo{
			findByIDFn: func(_ context.Context, id string) (*model.Movie, error) {
				return existingMovie(), nil
			},
			deleteFn: func(_ context.Context, id string) error {
				deletedID = id
				return nil
			},
		},
	})

	if err := svc.Delete(context.Background(), alice(), "m1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deletedID != "m1" {
		t.Errorf("deleted row = %q", deletedID)
	}
	if len(deps.store.deleted) != 1 || deps.store.deleted[0] != "old.png" {
		t.Errorf("cover should be reclaimed, deleted = %v", deps.store.deleted)
	}
}

func TestDelete_Anonymous_AuthRequired(t *testing.T) {
	svc, _ := newTestService(testDeps{
		movieRepo: &mockMovieRepo{
			findByIDFn: func(_ context.Context, id string) (*model.Movie, error) {
				return existingMovie(), nil
			},
		},
	})

	err := svc.Delete(context.Background(), nil, "m1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAuthRequired {
		t.Errorf("expected AUTH_REQUIRED, got %v", err)
	}
}

func TestListByCollection_MissingCollection_NotFound(t *testing.T) {
	svc, _ := newTestService(testDeps{
		collRepo: &mockCollectionRepo{
			findByIDFn: func(_ context.Context, id string) (*model.Collection, error) {
				return nil, model.NewNotFoundError("コレクション", id)
			},
		},
	})

	_, err := svc.ListByCollection(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestListByCollection_ReturnsMovies(t *testing.T) {
	svc, _ := newTestService(testDeps{
		movieRepo: &mockMovieRepo{
			listByCollectionFn: func(_ context.Context, collectionID string) ([]*model.Movie, error) {
				return []*model.Movie{{ID: "m1"}, {ID: "m2"}}, nil
			},
		},
	})

	got, err := svc.ListByCollection(context.Background(), "c1")
	if err != nil {
		t.Fatalf("ListByCollection() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d movies, want 2", len(got))
	}
}
