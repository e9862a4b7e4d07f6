package browse

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/promptlib/core/csql"
	"github.com/relabs-tech/promptlib/core/directory"
	"github.com/relabs-tech/promptlib/core/registry"
)

func TestRegistryCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE table IF NOT EXISTS "test"."_registry_"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	r, err := registry.New(csql.New(db, "test"))
	require.NoError(t, err)
	cache := NewRegistryCache(r)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value, timestamp FROM "test"."_registry_" WHERE key=$1;`)).
		WithArgs("_browse_:directoryBootData").
		WillReturnRows(sqlmock.NewRows([]string{"value", "timestamp"}))
	boot, storedAt, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, boot)
	assert.True(t, storedAt.IsZero())

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "test"."_registry_"`)).
		WithArgs("_browse_:directoryBootData", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, cache.Save(ctx, &directory.BootData{Meta: directory.BootMeta{CategoryCount: 8}}))

	written := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value, timestamp FROM "test"."_registry_" WHERE key=$1;`)).
		WithArgs("_browse_:directoryBootData").
		WillReturnRows(sqlmock.NewRows([]string{"value", "timestamp"}).
			AddRow([]byte(`{"categories":[],"recentPrompts":[],"meta":{"categoryCount":8,"recentCount":0,"generatedAt":"2024-03-01T12:00:00Z"}}`), written))
	boot, storedAt, err = cache.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, boot)
	assert.Equal(t, 8, boot.Meta.CategoryCount)
	assert.WithinDuration(t, written, storedAt, time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRedisCache requires a running redis on localhost, it is skipped otherwise
func TestRedisCache(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()
	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("Skipping redis test: redis not available")
	}
	cache := NewRedisCache(client, "promptlib-test:")
	defer client.Del(ctx, cache.key)
	client.Del(ctx, cache.key)

	boot, storedAt, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, boot)
	assert.True(t, storedAt.IsZero())

	require.NoError(t, cache.Save(ctx, &directory.BootData{Meta: directory.BootMeta{RecentCount: 3}}))
	boot, storedAt, err = cache.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, boot)
	assert.Equal(t, 3, boot.Meta.RecentCount)
	assert.WithinDuration(t, time.Now(), storedAt, 5*time.Second)

	require.NoError(t, client.Set(ctx, cache.key, "not json", 0).Err())
	boot, _, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, boot)
}
