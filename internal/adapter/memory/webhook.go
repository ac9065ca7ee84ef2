package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gateway/internal/domain"
)

// WebhookRepository is an in-memory registration store.
type WebhookRepository struct {
	mu    sync.RWMutex
	items map[string]domain.WebhookRegistration
}

func NewWebhookRepository() *WebhookRepository {
	return &WebhookRepository{items: make(map[string]domain.WebhookRegistration)}
}

func (r *WebhookRepository) List(_ context.Context, ownerID string) ([]domain.WebhookRegistration, error) {
	r.mu.RLock()
	out := []domain.WebhookRegistration{}
	for _, w := range r.items {
		if ownerID == "" || w.OwnerID == ownerID {
			out = append(out, copyWebhook(w))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *WebhookRepository) Get(_ context.Context, id string) (*domain.WebhookRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := copyWebhook(w)
	return &c, nil
}

func (r *WebhookRepository) Create(_ context.Context, w *domain.WebhookRegistration) (*domain.WebhookRegistration, error) {
	now := time.Now()
	stored := copyWebhook(*w)
	stored.ID = uuid.NewString()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.LastExecutedAt = nil

	r.mu.Lock()
	r.items[stored.ID] = stored
	r.mu.Unlock()

	c := copyWebhook(stored)
	return &c, nil
}

func (r *WebhookRepository) Update(_ context.Context, w *domain.WebhookRegistration) (*domain.WebhookRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[w.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	stored.Name = w.Name
	stored.URL = w.URL
	stored.Events = append([]string{}, w.Events...)
	stored.Active = w.Active
	stored.UpdatedAt = time.Now()
	r.items[w.ID] = stored
	c := copyWebhook(stored)
	return &c, nil
}

func (r *WebhookRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *WebhookRepository) MarkExecuted(_ context.Context, event string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, w := range r.items {
		if !w.Active || !subscribed(w, event) {
			continue
		}
		ts := at
		w.LastExecutedAt = &ts
		w.UpdatedAt = time.Now()
		r.items[id] = w
		n++
	}
	return n, nil
}

func subscribed(w domain.WebhookRegistration, event string) bool {
	for _, ev := range w.Events {
		if ev == event {
			return true
		}
	}
	return false
}

func copyWebhook(w domain.WebhookRegistration) domain.WebhookRegistration {
	w.Events = append([]string{}, w.Events...)
	return w
}

var _ domain.WebhookRepository = (*WebhookRepository)(nil)
