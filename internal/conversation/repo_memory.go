package conversation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory document store useful for tests and local
// runs. It is not intended for production use.
type MemoryRepo struct {
	mu   sync.Mutex
	docs map[string]Conversation
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{docs: make(map[string]Conversation)}
}

func (r *MemoryRepo) FindOpenByPhone(ctx context.Context, phone string) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.docs {
		if c.Client.Phone == phone && c.Status.Open() {
			return clone(c), nil
		}
	}
	return Conversation{}, ErrNotFound
}

func (r *MemoryRepo) FindLatestResolvedByPhone(ctx context.Context, phone string) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best Conversation
	found := false
	for _, c := range r.docs {
		if c.Client.Phone != phone || c.Status != StatusResolved {
			continue
		}
		if !found || c.UpdatedAt.After(best.UpdatedAt) {
			best = c
			found = true
		}
	}
	if !found {
		return Conversation{}, ErrNotFound
	}
	return clone(best), nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, id string) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.docs[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return clone(c), nil
}

func (r *MemoryRepo) Create(ctx context.Context, c Conversation) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[c.ID] = clone(c)
	return c, nil
}

func (r *MemoryRepo) Save(ctx context.Context, c Conversation) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[c.ID]; !ok {
		return Conversation{}, ErrNotFound
	}
	r.docs[c.ID] = clone(c)
	return c, nil
}

func (r *MemoryRepo) List(ctx context.Context, f ListFilter) ([]Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Conversation
	for _, c := range r.docs {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Sector != "" && c.Sector != f.Sector {
			continue
		}
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) ListOpenInactiveSince(ctx context.Context, cutoff time.Time) ([]Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Conversation
	for _, c := range r.docs {
		if c.Status.Open() && c.UpdatedAt.Before(cutoff) {
			out = append(out, clone(c))
		}
	}
	return out, nil
}

// CountByPhone is a test helper.
func (r *MemoryRepo) CountByPhone(phone string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.docs {
		if c.Client.Phone == phone {
			n++
		}
	}
	return n
}

// clone copies the document so callers never alias stored slices.
func clone(c Conversation) Conversation {
	out := c
	out.Messages = append([]Message(nil), c.Messages...)
	out.Tags = append([]string(nil), c.Tags...)
	if c.Transfer != nil {
		t := *c.Transfer
		out.Transfer = &t
	}
	if c.FinishedAt != nil {
		ts := *c.FinishedAt
		out.FinishedAt = &ts
	}
	if c.HandlingDurationMs != nil {
		d := *c.HandlingDurationMs
		out.HandlingDurationMs = &d
	}
	return out
}
