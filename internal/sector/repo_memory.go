package sector

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is a simple in-memory repository useful for tests and
// local runs. Insertion order is the creation order.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	sectors []Sector
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

// Add stores a sector, assigning an id and creation time when absent.
func (r *MemoryRepo) Add(s Sector) Sector {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	r.sectors = append(r.sectors, s)
	return s
}

func (r *MemoryRepo) ListActive(ctx context.Context) ([]Sector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sector, 0, len(r.sectors))
	for _, s := range r.sectors {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}
