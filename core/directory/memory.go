package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store. It serves tests and local development
// without a database.
type MemoryStore struct {
	mutex      sync.RWMutex
	categories map[string]Category
	prompts    map[uuid.UUID]Prompt
	users      map[string]User
	blogs      map[string]Blog
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: map[string]Category{},
		prompts:    map[uuid.UUID]Prompt{},
		users:      map[string]User{},
		blogs:      map[string]Blog{},
	}
}

func clonePrompt(p Prompt) Prompt {
	p.Tags = append([]string{}, p.Tags...)
	return p
}

// ListCategories implements Store
func (m *MemoryStore) ListCategories(ctx context.Context) ([]Category, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	categories := make([]Category, 0, len(m.categories))
	for _, c := range m.categories {
		categories = append(categories, c)
	}
	return categories, nil
}

// EnsureCategories implements Store
func (m *MemoryStore) EnsureCategories(ctx context.Context, categories []Category) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, c := range categories {
		if _, ok := m.categories[c.CategoryID]; !ok {
			m.categories[c.CategoryID] = c
		}
	}
	return nil
}

// CountApprovedByCategory implements Store
func (m *MemoryStore) CountApprovedByCategory(ctx context.Context) (map[string]int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	counts := map[string]int{}
	for _, p := range m.prompts {
		if p.Status == StatusApproved {
			counts[p.Category]++
		}
	}
	return counts, nil
}

// RecentApproved implements Store
func (m *MemoryStore) RecentApproved(ctx context.Context, n int) ([]Prompt, error) {
	prompts, _, err := m.ListPrompts(ctx, Query{Status: StatusApproved, Sort: SortRecent, Limit: n, Page: 1}, time.Now())
	return prompts, err
}

// ListPrompts implements Store
func (m *MemoryStore) ListPrompts(ctx context.Context, q Query, now time.Time) ([]Prompt, int, error) {
	m.mutex.RLock()
	var matches []Prompt
	for _, p := range m.prompts {
		if len(q.Status) > 0 && p.Status != q.Status {
			continue
		}
		if len(q.Category) > 0 && p.Category != q.Category {
			continue
		}
		if len(q.AuthorID) > 0 && p.AuthorID != q.AuthorID {
			continue
		}
		if !matchesSearch(&p, q.Search) {
			continue
		}
		matches = append(matches, clonePrompt(p))
	}
	m.mutex.RUnlock()

	less := func(a, b *Prompt) bool {
		switch q.Sort {
		case SortUsage:
			if a.UsageCount != b.UsageCount {
				return a.UsageCount > b.UsageCount
			}
		case SortFeatured:
			if a.Featured != b.Featured {
				return a.Featured
			}
		case SortRecent:
		default:
			sa, sb := popularityScore(a, now), popularityScore(b, now)
			if sa != sb {
				return sa > sb
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	}
	sort.Slice(matches, func(i, j int) bool { return less(&matches[i], &matches[j]) })

	total := len(matches)
	offset := (q.Page - 1) * q.Limit
	if offset >= total || q.Limit <= 0 {
		return []Prompt{}, total, nil
	}
	end := offset + q.Limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

// Prompt implements Store
func (m *MemoryStore) Prompt(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	p, ok := m.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = clonePrompt(p)
	return &p, nil
}

// CreatePrompt implements Store
func (m *MemoryStore) CreatePrompt(ctx context.Context, p *Prompt) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.prompts[p.ID]; ok {
		return invalidInput("prompt %s exists", p.ID)
	}
	m.prompts[p.ID] = clonePrompt(*p)
	return nil
}

func (m *MemoryStore) updatePrompt(id uuid.UUID, update func(p *Prompt) bool) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	p, ok := m.prompts[id]
	if !ok || !update(&p) {
		return ErrNotFound
	}
	m.prompts[id] = p
	return nil
}

// SetStatus implements Store
func (m *MemoryStore) SetStatus(ctx context.Context, id uuid.UUID, status Status, now time.Time) error {
	return m.updatePrompt(id, func(p *Prompt) bool {
		p.Status = status
		p.UpdatedAt = now
		return true
	})
}

// SetFeatured implements Store
func (m *MemoryStore) SetFeatured(ctx context.Context, id uuid.UUID, featured bool, now time.Time) error {
	return m.updatePrompt(id, func(p *Prompt) bool {
		p.Featured = featured
		p.UpdatedAt = now
		return true
	})
}

// IncrementCounter implements Store
func (m *MemoryStore) IncrementCounter(ctx context.Context, id uuid.UUID, counter Counter) error {
	return m.updatePrompt(id, func(p *Prompt) bool {
		if p.Status != StatusApproved {
			return false
		}
		switch counter {
		case CounterUsage:
			p.UsageCount++
		case CounterExecution:
			p.ExecutionCount++
		default:
			return false
		}
		return true
	})
}

// DeletePrompt implements Store
func (m *MemoryStore) DeletePrompt(ctx context.Context, id uuid.UUID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.prompts[id]; !ok {
		return ErrNotFound
	}
	delete(m.prompts, id)
	return nil
}

// UserByIdentity implements Store
func (m *MemoryStore) UserByIdentity(ctx context.Context, identity string) (*User, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	u, ok := m.users[identity]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// UpsertUser implements Store
func (m *MemoryStore) UpsertUser(ctx context.Context, u *User) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	existing, ok := m.users[u.Identity]
	if !ok {
		m.users[u.Identity] = *u
		return nil
	}
	if len(u.Email) > 0 {
		existing.Email = u.Email
	}
	if len(u.Name) > 0 {
		existing.Name = u.Name
	}
	existing.UpdatedAt = u.UpdatedAt
	m.users[u.Identity] = existing
	return nil
}

// SetUserRole implements Store
func (m *MemoryStore) SetUserRole(ctx context.Context, identity, role string, now time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	u, ok := m.users[identity]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = now
	m.users[identity] = u
	return nil
}

// ListPublishedBlogs implements Store
func (m *MemoryStore) ListPublishedBlogs(ctx context.Context, limit int) ([]Blog, error) {
	m.mutex.RLock()
	blogs := []Blog{}
	for _, b := range m.blogs {
		if b.Status == BlogPublished && len(b.Slug) > 0 {
			blogs = append(blogs, b)
		}
	}
	m.mutex.RUnlock()
	sort.Slice(blogs, func(i, j int) bool {
		if !blogs[i].CreatedAt.Equal(blogs[j].CreatedAt) {
			return blogs[i].CreatedAt.After(blogs[j].CreatedAt)
		}
		return blogs[i].Slug < blogs[j].Slug
	})
	if limit > 0 && len(blogs) > limit {
		blogs = blogs[:limit]
	}
	return blogs, nil
}

// BlogBySlug implements Store
func (m *MemoryStore) BlogBySlug(ctx context.Context, slug string) (*Blog, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	b, ok := m.blogs[slug]
	if !ok || b.Status != BlogPublished {
		return nil, ErrNotFound
	}
	return &b, nil
}

// PutBlog implements Store
func (m *MemoryStore) PutBlog(ctx context.Context, b *Blog) error {
	if len(b.Slug) == 0 {
		return invalidInput("blog without slug")
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.blogs[b.Slug] = *b
	return nil
}
