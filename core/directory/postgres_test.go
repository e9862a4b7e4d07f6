package directory

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/promptlib/core/csql"
)

var promptRowColumns = []string{"id", "title", "content", "excerpt", "category", "tags", "author_id", "author_name",
	"status", "usage_count", "execution_count", "featured", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "test"."category"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewPostgresStore(context.Background(), csql.New(db, "test"))
	require.NoError(t, err)
	return s, mock
}

func TestPostgresStoreCreateFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS`)).WillReturnError(errors.New("permission denied"))
	_, err = NewPostgresStore(context.Background(), csql.New(db, "test"))
	assert.Error(t, err)
}

func TestPostgresListPrompts(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	created := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, title, content, excerpt, category, tags, author_id, author_name, status, usage_count, execution_count, featured, created_at, updated_at, count(*) OVER() AS full_count FROM "test"."prompt" WHERE`)).
		WithArgs("approved", "worship", "", `%100\%%`, 10, 0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(append(promptRowColumns, "full_count")).
			AddRow(id.String(), "Easter", "content", "excerpt", "worship", []byte("{easter,joy}"), "member-1", "Ruth",
				"approved", 4, 2, true, created, created, 11))

	prompts, total, err := s.ListPrompts(context.Background(),
		Query{Status: StatusApproved, Category: "worship", Search: "100%", Sort: SortDefault, Limit: 10, Page: 1}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, prompts, 1)
	p := prompts[0]
	assert.Equal(t, id, p.ID)
	assert.Equal(t, []string{"easter", "joy"}, p.Tags)
	assert.Equal(t, StatusApproved, p.Status)
	assert.Equal(t, 4, p.UsageCount)
	assert.Equal(t, 2, p.ExecutionCount)
	assert.True(t, p.Featured)
	assert.Equal(t, created, p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListPromptsPastTheEnd(t *testing.T) {
	s, mock := newMockStore(t)

	// recent order does not reference the reference time
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC, id LIMIT $5 OFFSET $6;`)).
		WithArgs("approved", "", "", "", 50, 100).
		WillReturnRows(sqlmock.NewRows(append(promptRowColumns, "full_count")))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "test"."prompt" WHERE`)).
		WithArgs("approved", "", "", "").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	prompts, total, err := s.ListPrompts(context.Background(),
		Query{Status: StatusApproved, Sort: SortRecent, Limit: 50, Page: 3}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, prompts)
	assert.Equal(t, 42, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListPromptsUnknownSort(t *testing.T) {
	s, _ := newMockStore(t)
	_, _, err := s.ListPrompts(context.Background(), Query{Sort: "random", Limit: 1, Page: 1}, time.Now())
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestPostgresCountApprovedByCategory(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT category, count(*) FROM "test"."prompt" WHERE status=$1 GROUP BY category;`)).
		WithArgs("approved").
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).AddRow("worship", 3).AddRow("outreach", 1))
	counts, err := s.CountApprovedByCategory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"worship": 3, "outreach": 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnsureCategories(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	for _, c := range DefaultCategories[:2] {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "test"."category"`)).
			WithArgs(c.CategoryID, c.Name, c.Description, c.Icon, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()
	require.NoError(t, s.EnsureCategories(context.Background(), DefaultCategories[:2]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPromptNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "test"."prompt" WHERE id=$1;`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(promptRowColumns))
	_, err := s.Prompt(context.Background(), id)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIncrementCounter(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "test"."prompt" SET execution_count=execution_count+1 WHERE id=$1 AND status=$2;`)).
		WithArgs(id, "approved").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "test"."prompt" SET usage_count=usage_count+1`)).
		WithArgs(id, "approved").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.IncrementCounter(context.Background(), id, CounterExecution))
	assert.True(t, errors.Is(s.IncrementCounter(context.Background(), id, CounterUsage), ErrNotFound))
	assert.True(t, errors.Is(s.IncrementCounter(context.Background(), id, "likes"), ErrInvalidInput))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsers(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	u := &User{ID: uuid.New(), Identity: "member-1", Email: "ruth@example.com", Role: "user", CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "test"."app_user"`)).
		WithArgs(u.ID, "member-1", "ruth@example.com", "", "user", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, identity, email, name, role, created_at, updated_at FROM "test"."app_user" WHERE identity=$1;`)).
		WithArgs("member-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "identity", "email", "name", "role", "created_at", "updated_at"}).
			AddRow(u.ID.String(), "member-1", "ruth@example.com", "", "admin", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "test"."app_user" WHERE identity=$1;`)).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id", "identity", "email", "name", "role", "created_at", "updated_at"}))

	require.NoError(t, s.UpsertUser(context.Background(), u))
	got, err := s.UserByIdentity(context.Background(), "member-1")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Role)
	_, err = s.UserByIdentity(context.Background(), "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "", likePattern(""))
	assert.Equal(t, "%easter%", likePattern("easter"))
	assert.Equal(t, `%50\% off\_now%`, likePattern("50% off_now"))
}
