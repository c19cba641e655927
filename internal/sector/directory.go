package sector

import (
	"context"
	"errors"
	"strings"
)

// Repository is the persistence contract for sectors.
// ListActive must return sectors in creation order; the first entry is
// the routing fallback when classification fails.
type Repository interface {
	ListActive(ctx context.Context) ([]Sector, error)
}

var (
	ErrNotFound        = errors.New("sector: not found")
	ErrNoActiveSectors = errors.New("sector: no active sectors")
)

// Directory answers sector lookups for routing and transfers.
// Sectors are read-mostly; the directory holds no state of its own.
type Directory struct {
	repo Repository
}

func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

// ListActive returns active sectors in creation order.
func (d *Directory) ListActive(ctx context.Context) ([]Sector, error) {
	if d.repo == nil {
		return nil, errors.New("sector: repository not configured")
	}
	return d.repo.ListActive(ctx)
}

// Resolve finds an active sector by case-insensitive exact name.
func (d *Directory) Resolve(ctx context.Context, name string) (Sector, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Sector{}, ErrNotFound
	}
	active, err := d.ListActive(ctx)
	if err != nil {
		return Sector{}, err
	}
	for _, s := range active {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return Sector{}, ErrNotFound
}

// Default returns the routing fallback: the first active sector by
// creation order. This is a deliberate simplification, not load
// balancing.
func (d *Directory) Default(ctx context.Context) (Sector, error) {
	active, err := d.ListActive(ctx)
	if err != nil {
		return Sector{}, err
	}
	if len(active) == 0 {
		return Sector{}, ErrNoActiveSectors
	}
	return active[0], nil
}

// ActiveNames returns the names of active sectors in creation order.
func (d *Directory) ActiveNames(ctx context.Context) ([]string, error) {
	active, err := d.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(active))
	for _, s := range active {
		names = append(names, s.Name)
	}
	return names, nil
}
