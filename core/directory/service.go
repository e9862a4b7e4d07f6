package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/relabs-tech/promptlib/core"
	"github.com/relabs-tech/promptlib/core/access"
	"github.com/relabs-tech/promptlib/core/logger"
	"github.com/relabs-tech/promptlib/core/notify"
)

// limits of the service
const (
	RecentCount       = 3
	SitemapPromptMax  = 1000
	FeaturedCandidate = 6
	excerptLength     = 160
)

// Service implements the directory operations on top of a Store
type Service struct {
	store    Store
	notifier notify.Notifier
	now      func() time.Time
}

// NewService returns a service for store. A nil notifier logs events only.
func NewService(store Store, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Service{store: store, notifier: notifier, now: func() time.Time { return time.Now().UTC() }}
}

// Store returns the underlying store
func (s *Service) Store() Store {
	return s.store
}

// BootData aggregates the categories, sorted by name, with their number of approved
// prompts and the most recent approved prompts.
func (s *Service) BootData(ctx context.Context) (*BootData, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountApprovedByCategory(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentApproved(ctx, RecentCount)
	if err != nil {
		return nil, err
	}

	c := collate.New(language.English)
	sort.SliceStable(categories, func(i, j int) bool {
		return c.CompareString(categories[i].Name, categories[j].Name) < 0
	})
	for i := range categories {
		categories[i].PromptCount = counts[categories[i].CategoryID]
	}

	summaries := make([]PromptSummary, 0, len(recent))
	for i := range recent {
		summaries = append(summaries, recent[i].Summary())
	}

	return &BootData{
		Categories:    categories,
		RecentPrompts: summaries,
		Meta: BootMeta{
			CategoryCount: len(categories),
			RecentCount:   len(summaries),
			GeneratedAt:   s.now(),
		},
	}, nil
}

// ListApproved returns one page of approved prompts. Limit and page are normalized, a
// page past the end is empty but carries the correct counts.
func (s *Service) ListApproved(ctx context.Context, q Query) (*Page, error) {
	q.Status = StatusApproved
	q.AuthorID = ""
	return s.list(ctx, q)
}

// ListPending returns one page of prompts waiting for moderation, or prompts of another
// status if q.Status is set.
func (s *Service) ListPending(ctx context.Context, q Query) (*Page, error) {
	if q.Status == "" {
		q.Status = StatusPending
	}
	if !q.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, q.Status)
	}
	if q.Sort == "" {
		q.Sort = SortRecent
	}
	return s.list(ctx, q)
}

// ListByAuthor returns the prompts of one author in any status
func (s *Service) ListByAuthor(ctx context.Context, authorID string, q Query) (*Page, error) {
	if len(authorID) == 0 {
		return nil, invalidInput("missing author")
	}
	q.Status = ""
	q.AuthorID = authorID
	if q.Sort == "" {
		q.Sort = SortRecent
	}
	return s.list(ctx, q)
}

func (s *Service) list(ctx context.Context, q Query) (*Page, error) {
	q = q.Normalized()
	if _, err := ParseSortOrder(string(q.Sort)); err != nil {
		return nil, err
	}
	q.Search = strings.TrimSpace(q.Search)
	prompts, total, err := s.store.ListPrompts(ctx, q, s.now())
	if err != nil {
		return nil, err
	}
	return &Page{
		Prompts:    prompts,
		TotalCount: total,
		TotalPages: TotalPages(total, q.Limit),
		Page:       q.Page,
		Limit:      q.Limit,
	}, nil
}

// Prompt returns a prompt. Prompts which are not approved are only visible to
// admins and their author.
func (s *Service) Prompt(ctx context.Context, id uuid.UUID, viewer *access.Authorization) (*Prompt, error) {
	p, err := s.store.Prompt(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusApproved && !viewer.HasRole(access.RoleAdmin) &&
		!(viewer.IsSignedIn() && viewer.Identity == p.AuthorID) {
		return nil, ErrNotFound
	}
	return p, nil
}

// PromptPermits grants every signed-in member the right to submit prompts.
// Everyone may read and list.
var PromptPermits = []access.Permit{
	{Role: "everybody", Operations: []core.Operation{core.OperationCreate, core.OperationRead, core.OperationList}},
	{Role: "public", Operations: []core.Operation{core.OperationRead, core.OperationList}},
}

// Submission is a prompt submitted by a member
type Submission struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Excerpt  string   `json:"excerpt,omitempty"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
}

// Submit stores a new prompt for moderation. The category must exist. Without an
// excerpt, one is derived from the content.
func (s *Service) Submit(ctx context.Context, author *access.Authorization, sub Submission) (*Prompt, error) {
	if !author.IsAuthorized(core.OperationCreate, PromptPermits) {
		return nil, invalidInput("anonymous submission")
	}
	title := strings.TrimSpace(sub.Title)
	content := strings.TrimSpace(sub.Content)
	if len(title) == 0 || len(content) == 0 {
		return nil, invalidInput("title and content are required")
	}
	if err := s.requireCategory(ctx, sub.Category); err != nil {
		return nil, err
	}
	excerpt := strings.TrimSpace(sub.Excerpt)
	if len(excerpt) == 0 {
		excerpt = deriveExcerpt(content, excerptLength)
	}

	now := s.now()
	p := &Prompt{
		ID:         uuid.New(),
		Title:      title,
		Content:    content,
		Excerpt:    excerpt,
		Category:   sub.Category,
		Tags:       normalizeTags(sub.Tags),
		AuthorID:   author.Identity,
		AuthorName: authorName(author),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreatePrompt(ctx, p); err != nil {
		return nil, err
	}
	s.notify(ctx, notify.PromptSubmitted, p, author)
	return p, nil
}

func (s *Service) requireCategory(ctx context.Context, categoryID string) error {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range categories {
		if c.CategoryID == categoryID {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownCategory, categoryID)
}

// Moderate sets the status of a prompt
func (s *Service) Moderate(ctx context.Context, id uuid.UUID, status Status, moderator *access.Authorization) (*Prompt, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := s.store.SetStatus(ctx, id, status, s.now()); err != nil {
		return nil, err
	}
	p, err := s.store.Prompt(ctx, id)
	if err != nil {
		return nil, err
	}
	switch status {
	case StatusApproved:
		s.notify(ctx, notify.PromptApproved, p, moderator)
	case StatusRejected:
		s.notify(ctx, notify.PromptRejected, p, moderator)
	}
	return p, nil
}

// SetFeatured marks or unmarks a prompt as featured
func (s *Service) SetFeatured(ctx context.Context, id uuid.UUID, featured bool) (*Prompt, error) {
	if err := s.store.SetFeatured(ctx, id, featured, s.now()); err != nil {
		return nil, err
	}
	return s.store.Prompt(ctx, id)
}

// Delete deletes a prompt
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor *access.Authorization) error {
	p, err := s.store.Prompt(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePrompt(ctx, id); err != nil {
		return err
	}
	s.notify(ctx, notify.PromptDeleted, p, actor)
	return nil
}

// RecordUsage counts a use of an approved prompt
func (s *Service) RecordUsage(ctx context.Context, id uuid.UUID) error {
	return s.store.IncrementCounter(ctx, id, CounterUsage)
}

// RecordExecution counts an execution of an approved prompt
func (s *Service) RecordExecution(ctx context.Context, id uuid.UUID) error {
	return s.store.IncrementCounter(ctx, id, CounterExecution)
}

// FeaturedPrompts returns the featured prompts among the first approved prompts in default order
func (s *Service) FeaturedPrompts(ctx context.Context) ([]Prompt, error) {
	page, err := s.ListApproved(ctx, Query{Sort: SortDefault, Limit: FeaturedCandidate, Page: 1})
	if err != nil {
		return nil, err
	}
	featured := []Prompt{}
	for _, p := range page.Prompts {
		if p.Featured {
			featured = append(featured, p)
		}
	}
	return featured, nil
}

// SitemapPrompts returns the most recent approved prompts for the sitemap
func (s *Service) SitemapPrompts(ctx context.Context) ([]Prompt, error) {
	prompts, _, err := s.store.ListPrompts(ctx, Query{Status: StatusApproved, Sort: SortRecent, Limit: SitemapPromptMax, Page: 1}, s.now())
	return prompts, err
}

// Blogs returns the published blog posts, newest first
func (s *Service) Blogs(ctx context.Context) ([]Blog, error) {
	return s.store.ListPublishedBlogs(ctx, 0)
}

// Blog returns a published blog post
func (s *Service) Blog(ctx context.Context, slug string) (*Blog, error) {
	return s.store.BlogBySlug(ctx, slug)
}

// RoleOf returns the stored role of identity, or "" if there is no user. It
// implements access.RoleLookup.
func (s *Service) RoleOf(ctx context.Context, identity string) (string, error) {
	u, err := s.store.UserByIdentity(ctx, identity)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

// SyncUser creates the user record of an authenticated identity or refreshes email and name
func (s *Service) SyncUser(ctx context.Context, auth *access.Authorization) error {
	if !auth.IsSignedIn() {
		return nil
	}
	email, _ := auth.Property("email")
	name, _ := auth.Property("name")
	now := s.now()
	return s.store.UpsertUser(ctx, &User{
		ID:        uuid.New(),
		Identity:  auth.Identity,
		Email:     email,
		Name:      name,
		Role:      access.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// User returns the user record of identity
func (s *Service) User(ctx context.Context, identity string) (*User, error) {
	return s.store.UserByIdentity(ctx, identity)
}

// SetUserRole changes the role of a user
func (s *Service) SetUserRole(ctx context.Context, identity, role string) error {
	if !access.IsValidRole(role) {
		return invalidInput("unknown role %q", role)
	}
	return s.store.SetUserRole(ctx, identity, role, s.now())
}

func (s *Service) notify(ctx context.Context, t notify.EventType, p *Prompt, actor *access.Authorization) {
	event := notify.NewEvent(ctx, t, p.ID)
	event.Title = p.Title
	event.Category = p.Category
	event.AuthorID = p.AuthorID
	if actor != nil {
		event.Actor = actor.Identity
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("Error 4310: cannot notify", t)
	}
}

func authorName(auth *access.Authorization) string {
	if name, ok := auth.Property("name"); ok && len(name) > 0 {
		return name
	}
	if email, ok := auth.Property("email"); ok && len(email) > 0 {
		if i := strings.IndexRune(email, '@'); i > 0 {
			return email[:i]
		}
		return email
	}
	return "Anonymous"
}

// deriveExcerpt collapses whitespace and cuts the text at a word boundary
func deriveExcerpt(content string, max int) string {
	text := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:max])
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}

// normalizeTags lowercases, trims and deduplicates tags
func normalizeTags(tags []string) []string {
	result := []string{}
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if len(t) == 0 || seen[t] {
			continue
		}
		seen[t] = true
		result = append(result, t)
	}
	return result
}
