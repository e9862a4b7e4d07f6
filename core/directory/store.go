package directory

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence of the directory
type Store interface {
	// ListCategories returns all categories in undefined order
	ListCategories(ctx context.Context) ([]Category, error)
	// EnsureCategories inserts the categories which do not exist yet
	EnsureCategories(ctx context.Context, categories []Category) error
	// CountApprovedByCategory returns the number of approved prompts per category id
	CountApprovedByCategory(ctx context.Context) (map[string]int, error)
	// RecentApproved returns the n most recently created approved prompts
	RecentApproved(ctx context.Context, n int) ([]Prompt, error)
	// ListPrompts returns one page of prompts for a normalized query and the total count.
	// now is the reference time for the default order.
	ListPrompts(ctx context.Context, q Query, now time.Time) ([]Prompt, int, error)

	Prompt(ctx context.Context, id uuid.UUID) (*Prompt, error)
	CreatePrompt(ctx context.Context, p *Prompt) error
	SetStatus(ctx context.Context, id uuid.UUID, status Status, now time.Time) error
	SetFeatured(ctx context.Context, id uuid.UUID, featured bool, now time.Time) error
	DeletePrompt(ctx context.Context, id uuid.UUID) error
	// IncrementCounter increments a counter of an approved prompt
	IncrementCounter(ctx context.Context, id uuid.UUID, counter Counter) error

	UserByIdentity(ctx context.Context, identity string) (*User, error)
	// UpsertUser creates a user or updates email and name. The role of an
	// existing user is kept.
	UpsertUser(ctx context.Context, u *User) error
	SetUserRole(ctx context.Context, identity, role string, now time.Time) error

	// ListPublishedBlogs returns the latest published blog posts which have a slug
	ListPublishedBlogs(ctx context.Context, limit int) ([]Blog, error)
	BlogBySlug(ctx context.Context, slug string) (*Blog, error)
	PutBlog(ctx context.Context, b *Blog) error
}

// popularityScore is the default order: usage and executions decaying with the age in days.
// The postgres store computes the same expression in SQL.
func popularityScore(p *Prompt, now time.Time) float64 {
	ageDays := now.Sub(p.CreatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return float64(p.UsageCount+p.ExecutionCount+1) / math.Pow(ageDays+2, 1.5)
}

// matchesSearch reports whether search is a case-insensitive substring of the prompt's text
func matchesSearch(p *Prompt, search string) bool {
	if len(search) == 0 {
		return true
	}
	search = strings.ToLower(search)
	for _, s := range []string{p.Title, p.Excerpt, p.Content, strings.Join(p.Tags, " ")} {
		if strings.Contains(strings.ToLower(s), search) {
			return true
		}
	}
	return false
}

// likePattern returns an ILIKE pattern matching search as substring
func likePattern(search string) string {
	if len(search) == 0 {
		return ""
	}
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}
