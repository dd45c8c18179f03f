// Package news manages the announcements shown on the public site.
package news

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
)

var (
	ErrNotFound = core.NewNotFoundError("news")

	nowFunc = time.Now // mockable
)

type (
	News struct {
		ID        int       `json:"id" db:"id"`
		Title     string    `json:"title" db:"title"`
		Content   string    `json:"content" db:"content"`
		IsActive  bool      `json:"is_active" db:"is_active"`
		CreatedBy *int      `json:"created_by" db:"created_by"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
	}

	NewNews struct {
		Title   string `json:"title" validate:"required,max=200"`
		Content string `json:"content" validate:"required,max=10000"`
	}

	Repository interface {
		CreateNews(ctx context.Context, n News) (News, error)
		GetNews(ctx context.Context, id int) (News, error)
		// ListNews returns the news, newest first; inactive ones too unless activeOnly.
		ListNews(ctx context.Context, activeOnly bool, limit int) ([]News, error)
		UpdateNews(ctx context.Context, n News) (News, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func (nn *NewNews) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Content = core.CleanString(nn.Content)
	return validate.Struct(nn)
}

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

// Active returns the latest active news, at most limit (all when limit <= 0).
func (svc *Service) Active(ctx context.Context, limit int) ([]News, error) {
	return svc.repo.ListNews(ctx, true, limit)
}

func (svc *Service) All(ctx context.Context, p admin.Principal) ([]News, error) {
	if err := p.Require(); err != nil {
		return nil, err
	}
	return svc.repo.ListNews(ctx, false, 0)
}

func (svc *Service) Create(ctx context.Context, p admin.Principal, nn NewNews) (News, error) {
	if err := p.Require(admin.RoleSuperAdmin, admin.RoleAdmin); err != nil {
		return News{}, err
	}
	if err := nn.Validate(svc.validate); err != nil {
		return News{}, err
	}
	n, err := svc.repo.CreateNews(ctx, News{
		Title:     nn.Title,
		Content:   nn.Content,
		IsActive:  true,
		CreatedBy: core.IntPtr(p.AdminID),
		CreatedAt: nowFunc().UTC(),
	})
	return n, errors.Wrap(err, "creating news")
}

// Deactivate hides a news item from the public list. News are never deleted.
func (svc *Service) Deactivate(ctx context.Context, p admin.Principal, id int) (News, error) {
	if err := p.Require(admin.RoleSuperAdmin, admin.RoleAdmin); err != nil {
		return News{}, err
	}
	n, err := svc.repo.GetNews(ctx, id)
	if err != nil {
		return News{}, err
	}
	n.IsActive = false
	return svc.repo.UpdateNews(ctx, n)
}
