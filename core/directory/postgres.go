package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/relabs-tech/promptlib/core/csql"
)

// PostgresStore is the postgres implementation of Store
type PostgresStore struct {
	db *csql.DB

	categoryTable string
	promptTable   string
	userTable     string
	blogTable     string
}

const promptColumns = "id, title, content, excerpt, category, tags, author_id, author_name, status, usage_count, execution_count, featured, created_at, updated_at"

// orderBy maps sort orders to ORDER BY clauses. The default order references
// the reference time as parameter $7.
var orderBy = map[SortOrder]string{
	SortUsage:    "usage_count DESC, created_at DESC, id",
	SortRecent:   "created_at DESC, id",
	SortFeatured: "featured DESC, created_at DESC, id",
	SortDefault: "(usage_count + execution_count + 1) / " +
		"power(GREATEST(extract(epoch from ($7::timestamp - created_at)) / 86400, 0) + 2, 1.5) DESC, created_at DESC, id",
}

// NewPostgresStore creates the directory relations if they do not exist yet
// and returns the store.
func NewPostgresStore(ctx context.Context, db *csql.DB) (*PostgresStore, error) {
	s := &PostgresStore{
		db:            db,
		categoryTable: db.Table("category"),
		promptTable:   db.Table("prompt"),
		userTable:     db.Table("app_user"),
		blogTable:     db.Table("blog"),
	}
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.categoryTable+`
(category_id varchar NOT NULL,
name varchar NOT NULL,
description varchar NOT NULL DEFAULT '',
icon varchar NOT NULL DEFAULT '',
prompt_count integer NOT NULL DEFAULT 0,
created_at timestamp NOT NULL,
updated_at timestamp NOT NULL,
PRIMARY KEY(category_id)
);
CREATE TABLE IF NOT EXISTS `+s.promptTable+`
(id uuid NOT NULL,
title varchar NOT NULL,
content text NOT NULL,
excerpt varchar NOT NULL DEFAULT '',
category varchar NOT NULL,
tags text[] NOT NULL DEFAULT '{}',
author_id varchar NOT NULL,
author_name varchar NOT NULL DEFAULT '',
status varchar NOT NULL,
usage_count integer NOT NULL DEFAULT 0,
execution_count integer NOT NULL DEFAULT 0,
featured boolean NOT NULL DEFAULT false,
created_at timestamp NOT NULL,
updated_at timestamp NOT NULL,
PRIMARY KEY(id)
);
CREATE INDEX IF NOT EXISTS prompt_status_created_idx ON `+s.promptTable+`(status, created_at DESC);
CREATE INDEX IF NOT EXISTS prompt_author_idx ON `+s.promptTable+`(author_id);
CREATE TABLE IF NOT EXISTS `+s.userTable+`
(id uuid NOT NULL,
identity varchar NOT NULL,
email varchar NOT NULL DEFAULT '',
name varchar NOT NULL DEFAULT '',
role varchar NOT NULL DEFAULT 'user',
created_at timestamp NOT NULL,
updated_at timestamp NOT NULL,
PRIMARY KEY(id),
UNIQUE(identity)
);
CREATE TABLE IF NOT EXISTS `+s.blogTable+`
(slug varchar NOT NULL,
title varchar NOT NULL,
excerpt varchar NOT NULL DEFAULT '',
body text NOT NULL DEFAULT '',
status varchar NOT NULL,
created_at timestamp NOT NULL,
updated_at timestamp NOT NULL,
PRIMARY KEY(slug)
);`)
	if err != nil {
		return nil, fmt.Errorf("cannot create directory relations: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrompt(row rowScanner, extra ...interface{}) (Prompt, error) {
	var p Prompt
	var status string
	dest := []interface{}{&p.ID, &p.Title, &p.Content, &p.Excerpt, &p.Category, pq.Array(&p.Tags),
		&p.AuthorID, &p.AuthorName, &status, &p.UsageCount, &p.ExecutionCount, &p.Featured,
		&p.CreatedAt, &p.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	if err != nil {
		return p, err
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.Status = Status(status)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// ListCategories implements Store
func (s *PostgresStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category_id, name, description, icon, prompt_count, created_at, updated_at FROM `+s.categoryTable+`;`)
	if err != nil {
		return nil, fmt.Errorf("cannot list categories: %w", err)
	}
	defer rows.Close()
	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.CategoryID, &c.Name, &c.Description, &c.Icon, &c.PromptCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// EnsureCategories implements Store
func (s *PostgresStore) EnsureCategories(ctx context.Context, categories []Category) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	insert := `INSERT INTO ` + s.categoryTable + `(category_id, name, description, icon, prompt_count, created_at, updated_at)
VALUES($1,$2,$3,$4,0,$5,$5)
ON CONFLICT (category_id) DO NOTHING;`
	for _, c := range categories {
		created := c.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, insert, c.CategoryID, c.Name, c.Description, c.Icon, created); err != nil {
			return fmt.Errorf("cannot insert category %s: %w", c.CategoryID, err)
		}
	}
	return tx.Commit()
}

// CountApprovedByCategory implements Store
func (s *PostgresStore) CountApprovedByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, count(*) FROM `+s.promptTable+` WHERE status=$1 GROUP BY category;`, string(StatusApproved))
	if err != nil {
		return nil, fmt.Errorf("cannot count prompts: %w", err)
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var (
			category string
			count    int
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		counts[category] = count
	}
	return counts, rows.Err()
}

// RecentApproved implements Store
func (s *PostgresStore) RecentApproved(ctx context.Context, n int) ([]Prompt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+promptColumns+` FROM `+s.promptTable+` WHERE status=$1 ORDER BY `+orderBy[SortRecent]+` LIMIT $2;`,
		string(StatusApproved), n)
	if err != nil {
		return nil, fmt.Errorf("cannot list recent prompts: %w", err)
	}
	defer rows.Close()
	prompts := []Prompt{}
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

const promptFilter = ` WHERE ($1='' OR status=$1) AND ($2='' OR category=$2) AND ($3='' OR author_id=$3)
AND ($4='' OR title ILIKE $4 OR excerpt ILIKE $4 OR content ILIKE $4 OR array_to_string(tags, ' ') ILIKE $4)`

// ListPrompts implements Store
func (s *PostgresStore) ListPrompts(ctx context.Context, q Query, now time.Time) ([]Prompt, int, error) {
	order, ok := orderBy[q.Sort]
	if !ok {
		return nil, 0, invalidInput("unknown sort order %q", q.Sort)
	}
	filterParameters := []interface{}{string(q.Status), q.Category, q.AuthorID, likePattern(q.Search)}
	queryParameters := append(append([]interface{}{}, filterParameters...), q.Limit, q.Offset())
	if q.Sort == SortDefault {
		queryParameters = append(queryParameters, now.UTC())
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+promptColumns+`, count(*) OVER() AS full_count FROM `+
		s.promptTable+promptFilter+` ORDER BY `+order+` LIMIT $5 OFFSET $6;`, queryParameters...)
	if err != nil {
		return nil, 0, fmt.Errorf("cannot list prompts: %w", err)
	}
	defer rows.Close()

	prompts := []Prompt{}
	totalCount := 0
	for rows.Next() {
		p, err := scanPrompt(rows, &totalCount)
		if err != nil {
			return nil, 0, err
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// the window count is missing for pages past the end
	if len(prompts) == 0 && q.Offset() > 0 {
		err = s.db.QueryRowContext(ctx, `SELECT count(*) FROM `+s.promptTable+promptFilter+`;`, filterParameters...).Scan(&totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("cannot count prompts: %w", err)
		}
	}
	return prompts, totalCount, nil
}

// Prompt implements Store
func (s *PostgresStore) Prompt(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	p, err := scanPrompt(s.db.QueryRowContext(ctx,
		`SELECT `+promptColumns+` FROM `+s.promptTable+` WHERE id=$1;`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read prompt %s: %w", id, err)
	}
	return &p, nil
}

// CreatePrompt implements Store
func (s *PostgresStore) CreatePrompt(ctx context.Context, p *Prompt) error {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO `+s.promptTable+`(`+promptColumns+`)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`,
		p.ID, p.Title, p.Content, p.Excerpt, p.Category, pq.Array(tags), p.AuthorID, p.AuthorName,
		string(p.Status), p.UsageCount, p.ExecutionCount, p.Featured, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("cannot create prompt: %w", err)
	}
	return nil
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus implements Store
func (s *PostgresStore) SetStatus(ctx context.Context, id uuid.UUID, status Status, now time.Time) error {
	return expectOne(s.db.ExecContext(ctx,
		`UPDATE `+s.promptTable+` SET status=$2, updated_at=$3 WHERE id=$1;`, id, string(status), now.UTC()))
}

// SetFeatured implements Store
func (s *PostgresStore) SetFeatured(ctx context.Context, id uuid.UUID, featured bool, now time.Time) error {
	return expectOne(s.db.ExecContext(ctx,
		`UPDATE `+s.promptTable+` SET featured=$2, updated_at=$3 WHERE id=$1;`, id, featured, now.UTC()))
}

var counterColumns = map[Counter]string{
	CounterUsage:     "usage_count",
	CounterExecution: "execution_count",
}

// IncrementCounter implements Store
func (s *PostgresStore) IncrementCounter(ctx context.Context, id uuid.UUID, counter Counter) error {
	column, ok := counterColumns[counter]
	if !ok {
		return invalidInput("unknown counter %q", counter)
	}
	return expectOne(s.db.ExecContext(ctx,
		`UPDATE `+s.promptTable+` SET `+column+`=`+column+`+1 WHERE id=$1 AND status=$2;`, id, string(StatusApproved)))
}

// DeletePrompt implements Store
func (s *PostgresStore) DeletePrompt(ctx context.Context, id uuid.UUID) error {
	return expectOne(s.db.ExecContext(ctx, `DELETE FROM `+s.promptTable+` WHERE id=$1;`, id))
}

// UserByIdentity implements Store
func (s *PostgresStore) UserByIdentity(ctx context.Context, identity string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, identity, email, name, role, created_at, updated_at FROM `+s.userTable+` WHERE identity=$1;`,
		identity).Scan(&u.ID, &u.Identity, &u.Email, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// UpsertUser implements Store
func (s *PostgresStore) UpsertUser(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO `+s.userTable+`(id, identity, email, name, role, created_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (identity) DO UPDATE SET
email=COALESCE(NULLIF($3,''), `+s.userTable+`.email),
name=COALESCE(NULLIF($4,''), `+s.userTable+`.name),
updated_at=$7;`,
		u.ID, u.Identity, u.Email, u.Name, u.Role, u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("cannot upsert user: %w", err)
	}
	return nil
}

// SetUserRole implements Store
func (s *PostgresStore) SetUserRole(ctx context.Context, identity, role string, now time.Time) error {
	return expectOne(s.db.ExecContext(ctx,
		`UPDATE `+s.userTable+` SET role=$2, updated_at=$3 WHERE identity=$1;`, identity, role, now.UTC()))
}

const blogColumns = "slug, title, excerpt, body, status, created_at, updated_at"

func scanBlog(row rowScanner) (Blog, error) {
	var (
		b      Blog
		status string
	)
	err := row.Scan(&b.Slug, &b.Title, &b.Excerpt, &b.Body, &status, &b.CreatedAt, &b.UpdatedAt)
	b.Status = BlogStatus(status)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, err
}

// ListPublishedBlogs implements Store
func (s *PostgresStore) ListPublishedBlogs(ctx context.Context, limit int) ([]Blog, error) {
	query := `SELECT ` + blogColumns + ` FROM ` + s.blogTable + ` WHERE status=$1 AND slug<>'' ORDER BY created_at DESC, slug`
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}
	rows, err := s.db.QueryContext(ctx, query+";", string(BlogPublished))
	if err != nil {
		return nil, fmt.Errorf("cannot list blogs: %w", err)
	}
	defer rows.Close()
	blogs := []Blog{}
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, b)
	}
	return blogs, rows.Err()
}

// BlogBySlug implements Store
func (s *PostgresStore) BlogBySlug(ctx context.Context, slug string) (*Blog, error) {
	b, err := scanBlog(s.db.QueryRowContext(ctx,
		`SELECT `+blogColumns+` FROM `+s.blogTable+` WHERE slug=$1 AND status=$2;`, slug, string(BlogPublished)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read blog %s: %w", slug, err)
	}
	return &b, nil
}

// PutBlog implements Store
func (s *PostgresStore) PutBlog(ctx context.Context, b *Blog) error {
	if len(b.Slug) == 0 {
		return invalidInput("blog without slug")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO `+s.blogTable+`(`+blogColumns+`)
VALUES($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (slug) DO UPDATE SET title=$2, excerpt=$3, body=$4, status=$5, updated_at=$7;`,
		b.Slug, b.Title, b.Excerpt, b.Body, string(b.Status), b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("cannot write blog %s: %w", b.Slug, err)
	}
	return nil
}
