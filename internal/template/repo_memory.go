package template

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is a simple in-memory repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu        sync.Mutex
	templates []Template
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Add(t Template) Template {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	r.templates = append(r.templates, t)
	return t
}

func (r *MemoryRepo) ListAll(ctx context.Context) ([]Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Template, len(r.templates))
	copy(out, r.templates)
	return out, nil
}
