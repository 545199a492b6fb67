package repo

import (
	"context"
	"errors"
	"fmt"

	"devspace/internal/apperr"
	"devspace/internal/workspace"

	"github.com/go-pg/pg/v10"
)

var _ workspace.TemplateRepository = (*TemplateStore)(nil)

type TemplateStore struct {
	db *pg.DB
}

func NewTemplateStore(db *pg.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

func (s *TemplateStore) GetByID(ctx context.Context, id string) (*workspace.Template, error) {
	m := &TemplateModel{ID: id}
	if err := s.db.ModelContext(ctx, m).WherePK().Select(); err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, apperr.NotFoundf("template %s", id)
		}
		return nil, fmt.Errorf("select template: %w", err)
	}
	return templateFromModel(m), nil
}

func (s *TemplateStore) GetDefault(ctx context.Context) (*workspace.Template, error) {
	m := &TemplateModel{}
	err := s.db.ModelContext(ctx, m).
		Where("is_default = ?", true).
		Limit(1).
		Select()
	if err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, apperr.NotFoundf("default template")
		}
		return nil, fmt.Errorf("select default template: %w", err)
	}
	return templateFromModel(m), nil
}
