package collection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/cinelog/internal/authz"
	"github.com/hitoshi/cinelog/internal/model"
	"github.com/hitoshi/cinelog/internal/repository"
)

// mockCollectionRepo はCollectionRepositoryのテスト用実装。
type mockCollectionRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.Collection, error)
	listFn       func(ctx context.Context) ([]*model.Collection, error)
	createFn     func(ctx context.Context, c *model.Collection) error
	updateNameFn func(ctx context.Context, id, name string) error
	deleteFn     func(ctx context.Context, id string) error

	deleted []string
}

var _ repository.CollectionRepository = (*mockCollectionRepo)(nil)

func (m *mockCollectionRepo) FindByID(ctx context.Context, id string) (*model.Collection, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockCollectionRepo) List(ctx context.Context) ([]*model.Collection, error) {
	return m.listFn(ctx)
}

func (m *mockCollectionRepo) Create(ctx context.Context, c *model.Collection) error {
	if m.createFn != nil {
		return m.createFn(ctx, c)
	}
	return nil
}

func (m *mockCollectionRepo) UpdateName(ctx context.Context, id, name string) error {
	if m.updateNameFn != nil {
		return m.updateNameFn(ctx, id, name)
	}
	return nil
}

func (m *mockCollectionRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockMovieRepo はMovieRepositoryのうちコレクションサービスが使う部分だけを実装する。
type mockMovieRepo struct {
	repository.MovieRepository

	listLocalCoversFn func(ctx context.Context, collectionID string) ([]string, error)
}

func (m *mockMovieRepo) ListLocalCoversByCollection(ctx context.Context, collectionID string) ([]string, error) {
	if m.listLocalCoversFn != nil {
		return m.listLocalCoversFn(ctx, collectionID)
	}
	return nil, nil
}

// mockReclaimer はCoverReclaimerのテスト用実装。
type mockReclaimer struct {
	reclaimed []string
}

var _ CoverReclaimer = (*mockReclaimer)(nil)

func (m *mockReclaimer) Cleanup(source model.CoverSource, reference string) {
	if source == model.CoverSourceLocal {
		m.reclaimed = append(m.reclaimed, reference)
	}
}

func newTestService(collRepo *mockCollectionRepo, movieRepo *mockMovieRepo, reclaimer *mockReclaimer) *Service {
	if movieRepo == nil {
		movieRepo = &mockMovieRepo{}
	}
	if reclaimer == nil {
		reclaimer = &mockReclaimer{}
	}
	return NewService(collRepo, movieRepo, authz.NewGate(), reclaimer)
}

func TestCreate_SetsOwnerFromIdentity(t *testing.T) {
	var created *model.Collection
	collRepo := &mockCollectionRepo{
		createFn: func(_ context.Context, c *model.Collection) error {
			created = c
			return nil
		},
	}
	svc := newTestService(collRepo, nil, nil)

	c, err := svc.Create(context.Background(), &authz.Identity{UserID: "alice"}, "SF名作選")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.OwnerID != "alice" {
		t.Errorf("OwnerID = %q, want %q", c.OwnerID, "alice")
	}
	if c.Name != "SF名作選" {
		t.Errorf("Name = %q", c.Name)
	}
	if c.ID == "" {
		t.Error("ID should be assigned")
	}
	if created == nil || created.ID != c.ID {
		t.Error("repository should receive the created collection")
	}
}

func TestCreate_Anonymous_AuthRequired(t *testing.T) {
	svc := newTestService(&mockCollectionRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), nil, "名前")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAuthRequired {
		t.Errorf("expected AUTH_REQUIRED, got %v", err)
	}
}

func TestCreate_EmptyName_Validation(t *testing.T) {
	svc := newTestService(&mockCollectionRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), &authz.Identity{UserID: "alice"}, "")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Errorf("expected VALIDATION, got %v", err)
	}
}

func TestUpdate_OwnerRenames(t *testing.T) {
	coll := &model.Collection{ID: "c1", Name: "旧名", OwnerID: "alice"}
	var renamedTo string
	collRepo := &mockCollectionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Collection, error) {
			return coll, nil
		},
		updateNameFn: func(_ context.Context, id, name string) error {
			renamedTo = name
			return nil
		},
	}
	svc := newTestService(collRepo, nil, nil)

	c, err := svc.Update(context.Background(), &authz.Identity{UserID: "alice"}, "c1", "新名")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if c.Name != "新名" || renamedTo != "新名" {
		t.Errorf("Name = %q, renamedTo = %q", c.Name, renamedTo)
	}
}

// 空の名前は「変更しない」として扱い、リポジトリ更新を呼ばない。
func TestUpdate_EmptyName_Noop(t *testing.T) {
	coll := &model.Collection{ID: "c1", Name: "旧名", OwnerID: "alice"}
	collRepo := &mockCollectionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Collection, error) {
			return coll, nil
		},
		updateNameFn: func(_ context.Context, id, name string) error {
			t.Error("UpdateName should not be called for empty name")
			return nil
		},
	}
	svc := newTestService(collRepo, nil, nil)

	c, err := svc.Update(context.Background(), &authz.Identity{UserID: "alice"}, "c1", "")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if c.Name != "旧名" {
		t.Errorf("Name = %q, want unchanged", c.Name)
	}
}

func TestUpdate_NonOwner_Forbidden(t *testing.T) {
	collRepo := &mockCollectionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Collection, error) {
			return &model.Collection{ID: "c1", OwnerID: "alice"}, nil
		},
	}
	svc := newTestService(collRepo, nil, nil)

	_, err := svc.Update(context.Background(), &authz.Identity{UserID: "bob"}, "c1", "奪取")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}
}

func TestUpdate_NotFound_Propagates(t *testing.T) {
	collRepo := &mockCollectionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Collection, error) {
			return nil, model.NewNotFoundError("コレクション", id)
		},
	}
	svc := newTestService(collRepo, nil, nil)

	_, err := svc.Update(context.Background(), &authz.Identity{UserID: "alice"}, "missing", "x")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

// 削除は行削除の後にローカルカバーを回収する。
func TestDelete_ReclaimsLocalCovers(t *testing.T) {
	collRepo := &mockCollectionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Collection, error) {
			return &model.Collection{ID: "c1", OwnerID: "alice"}, nil
		},
	}
	movieRepo := &mockMovieRepo{
		listLocalCoversFn: func(_ context.Context, collectionID string) ([]string, error) {
			if collectionID != "c1" {
				t.Errorf("collectionID = %q", collectionID)
			}
			return []string{"a.png", "b.jpg"}, nil
		},
	}
	reclaimer := &mockReclaimer{}
	svc := newTestService(collRepo, movieRepo, reclaimer)

	if err := svc.Delete(context.Background(), &authz.Identity{UserID: "alice"}, "c1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(collRepo.deleted) != 1 || collRepo.deleted[0] != "c1" {
		t.Errorf("deleted rows = %v", collRepo.deleted)
	}
	if len(reclaimer.reclaimed) != 2 {
		t.Errorf("reclaimed covers = %v, want 2 files", reclaimer.reclaimed)
	}
}

func TestDelete_NonOwner_Forbidden_NoRowDeleted(t *testing.T) {
	collRepo := &mockCollectionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Collection, error) {
			return &model.Collection{ID: "c1", OwnerID: "alice"}, nil
		},
	}
	svc := newTestService(collRepo, nil, nil)

	err := svc.Delete(context.Background(), &authz.Identity{UserID: "bob"}, "c1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}
	if len(collRepo.deleted) != 0 {
		t.Errorf("row should not be deleted, got %v", collRepo.deleted)
	}
}

func TestList_PassesThrough(t *testing.T) {
	want := []*model.Collection{
		{ID: "c1", Name: "Action", CreatedAt: time.Now()},
		{ID: "c2", Name: "Drama", CreatedAt: time.Now()},
	}
	collRepo := &mockCollectionRepo{
		listFn: func(context.Context) ([]*model.Collection, error) {
			return want, nil
		},
	}
	svc := newTestService(collRepo, nil, nil)

	got, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "c1" || got[1].ID != "c2" {
		t.Errorf("List() = %v", got)
	}
}
