package kss_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/promptlib/core/kss"
)

func Test_Local_UploadRead(t *testing.T) {
	ctx := context.Background()
	driver, err := kss.New(ctx, kss.Configuration{
		DriverType:         kss.DriverTypeLocal,
		LocalConfiguration: &kss.LocalConfiguration{BasePath: t.TempDir()},
	})
	require.NoError(t, err)

	_, err = driver.Read(ctx, "sitemap.xml")
	assert.True(t, errors.Is(err, kss.ErrNotFound))

	require.NoError(t, driver.Upload(ctx, "sitemap.xml", []byte("<urlset/>"), "application/xml"))
	require.NoError(t, driver.Upload(ctx, "archive/2024/sitemap.xml", []byte("old"), "application/xml"))
	require.NoError(t, driver.Upload(ctx, "sitemap.xml", []byte("<urlset></urlset>"), "application/xml"))

	data, err := driver.Read(ctx, "sitemap.xml")
	require.NoError(t, err)
	assert.Equal(t, "<urlset></urlset>", string(data))

	keys, err := driver.ListAllWithPrefix(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"archive/2024/sitemap.xml", "sitemap.xml"}, keys)
	keys, err = driver.ListAllWithPrefix(ctx, "archive/")
	require.NoError(t, err)
	assert.Equal(t, []string{"archive/2024/sitemap.xml"}, keys)

	require.NoError(t, driver.Delete(ctx, "sitemap.xml"))
	require.NoError(t, driver.Delete(ctx, "sitemap.xml"))
	_, err = driver.Read(ctx, "sitemap.xml")
	assert.True(t, errors.Is(err, kss.ErrNotFound))
}

func Test_Local_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	f, err := kss.NewLocalFilesystem(kss.LocalConfiguration{BasePath: t.TempDir()})
	require.NoError(t, err)
	assert.Error(t, f.Upload(ctx, "../escape", []byte("x"), ""))
	assert.Error(t, f.Upload(ctx, "", []byte("x"), ""))
	_, err = f.Read(ctx, "a/../../b")
	assert.Error(t, err)
}

func Test_New(t *testing.T) {
	d, err := kss.New(context.Background(), kss.Configuration{})
	require.NoError(t, err)
	assert.Nil(t, d)
	_, err = kss.New(context.Background(), kss.Configuration{DriverType: "ftp"})
	assert.Error(t, err)
	_, err = kss.New(context.Background(), kss.Configuration{DriverType: kss.DriverTypeLocal})
	assert.Error(t, err)
	_, err = kss.NewS3(context.Background(), kss.S3Configuration{})
	assert.Error(t, err)
}
