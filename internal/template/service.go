package template

import (
	"context"
	"errors"
	"strings"
)

// Repository is the persistence contract for templates.
// Template CRUD lives in the external admin API; this core only reads.
type Repository interface {
	ListAll(ctx context.Context) ([]Template, error)
}

var ErrNotFound = errors.New("template: not found")

// Service answers visibility-scoped template lookups for agents.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListVisible returns the templates usable by the given agent: owned by
// them, owned by their sector, or shared.
func (s *Service) ListVisible(ctx context.Context, userID, sector string) ([]Template, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Template, 0, len(all))
	for _, t := range all {
		if t.VisibleTo(userID, sector) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Resolve finds a visible template by id, or by case-insensitive exact
// name. Resolution never widens visibility: a template the agent cannot
// see resolves to ErrNotFound.
func (s *Service) Resolve(ctx context.Context, userID, sector, nameOrID string) (Template, error) {
	nameOrID = strings.TrimSpace(nameOrID)
	if nameOrID == "" {
		return Template{}, ErrNotFound
	}
	visible, err := s.ListVisible(ctx, userID, sector)
	if err != nil {
		return Template{}, err
	}
	for _, t := range visible {
		if t.ID == nameOrID {
			return t, nil
		}
	}
	for _, t := range visible {
		if strings.EqualFold(t.Name, nameOrID) {
			return t, nil
		}
	}
	return Template{}, ErrNotFound
}
