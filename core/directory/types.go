package directory

import (
	"time"

	"github.com/google/uuid"
)

// Status is the moderation status of a prompt
type Status string

// all prompt states
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid returns true for known states
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// SortOrder selects the order of a prompt listing
type SortOrder string

// all sort orders. The empty order is SortDefault.
const (
	SortDefault  SortOrder = "default"
	SortUsage    SortOrder = "usage"
	SortRecent   SortOrder = "recent"
	SortFeatured SortOrder = "featured"
)

// ParseSortOrder parses a sort order. The empty string yields SortDefault.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case "", SortDefault:
		return SortDefault, nil
	case SortUsage, SortRecent, SortFeatured:
		return SortOrder(s), nil
	}
	return "", invalidInput("unknown sort order %q", s)
}

// Counter is one of the prompt counters
type Counter string

// the prompt counters
const (
	CounterUsage     Counter = "usage"
	CounterExecution Counter = "execution"
)

// pagination limits
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Category is a group of prompts
type Category struct {
	CategoryID  string `json:"categoryId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	// PromptCount is the number of approved prompts. Stored values are stale,
	// BootData recomputes it.
	PromptCount int       `json:"promptCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Prompt is a prompt of the library
type Prompt struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Excerpt        string    `json:"excerpt"`
	Category       string    `json:"category"`
	Tags           []string  `json:"tags"`
	AuthorID       string    `json:"authorId"`
	AuthorName     string    `json:"authorName"`
	Status         Status    `json:"status"`
	UsageCount     int       `json:"usageCount"`
	ExecutionCount int       `json:"executionCount"`
	Featured       bool      `json:"featured"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// PromptSummary is the reduced prompt used for boot hydration
type PromptSummary struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Excerpt        string    `json:"excerpt"`
	Category       string    `json:"category"`
	AuthorName     string    `json:"authorName"`
	UsageCount     int       `json:"usageCount"`
	ExecutionCount int       `json:"executionCount"`
	Tags           []string  `json:"tags"`
	CreatedAt      time.Time `json:"createdAt"`
	Featured       bool      `json:"featured"`
}

// Summary returns the summary of the prompt
func (p *Prompt) Summary() PromptSummary {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PromptSummary{
		ID:             p.ID,
		Title:          p.Title,
		Excerpt:        p.Excerpt,
		Category:       p.Category,
		AuthorName:     p.AuthorName,
		UsageCount:     p.UsageCount,
		ExecutionCount: p.ExecutionCount,
		Tags:           tags,
		CreatedAt:      p.CreatedAt,
		Featured:       p.Featured,
	}
}

// BootMeta describes a BootData aggregation
type BootMeta struct {
	CategoryCount int       `json:"categoryCount"`
	RecentCount   int       `json:"recentCount"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// BootData is the aggregated data the directory page boots with
type BootData struct {
	Categories    []Category      `json:"categories"`
	RecentPrompts []PromptSummary `json:"recentPrompts"`
	Meta          BootMeta        `json:"meta"`
}

// Query selects a page of prompts
type Query struct {
	// Status filters by status, empty means any status
	Status Status
	// Category filters by category id, empty means all categories
	Category string
	// Search is a case-insensitive substring of title, excerpt, content or tags
	Search string
	// AuthorID filters by author identity
	AuthorID string
	Sort     SortOrder
	Limit    int
	Page     int
}

// Normalized returns the query with limit, page and sort order defaults applied
func (q Query) Normalized() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Sort == "" {
		q.Sort = SortDefault
	}
	return q
}

// Offset returns the number of prompts before the page
func (q Query) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Page is one page of a prompt listing
type Page struct {
	Prompts    []Prompt `json:"prompts"`
	TotalCount int      `json:"totalCount"`
	TotalPages int      `json:"totalPages"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
}

// TotalPages returns ceil(total/limit)
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// User is a member of the library
type User struct {
	ID        uuid.UUID `json:"id"`
	Identity  string    `json:"identity"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BlogStatus is the publication state of a blog post
type BlogStatus string

// all blog states
const (
	BlogDraft     BlogStatus = "draft"
	BlogPublished BlogStatus = "published"
)

// Blog is a blog post
type Blog struct {
	Slug      string     `json:"slug"`
	Title     string     `json:"title"`
	Excerpt   string     `json:"excerpt"`
	Body      string     `json:"body"`
	Status    BlogStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
