package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/relabs-tech/promptlib/core/csql"
	"github.com/relabs-tech/promptlib/core/directory"
	"github.com/relabs-tech/promptlib/core/kss"
	"github.com/relabs-tech/promptlib/core/logger"
	"github.com/relabs-tech/promptlib/core/sitemap"

	_ "github.com/lib/pq"
)

var (
	postgres  = flag.String("postgres", os.Getenv("POSTGRES"), "the connection string for the Postgres DB without password")
	password  = flag.String("password", os.Getenv("POSTGRES_PASSWORD"), "password to the Postgres DB")
	schema    = flag.String("schema", "promptlib", "the database schema")
	siteURL   = flag.String("site", os.Getenv("PUBLIC_SITE_URL"), "the public url of the site")
	driver    = flag.String("driver", os.Getenv("KSS_DRIVER"), "where to publish the sitemap: local, s3, or empty for stdout")
	localPath = flag.String("path", os.Getenv("KSS_LOCAL_PATH"), "the base directory of the local driver")
	bucket    = flag.String("bucket", os.Getenv("S3_BUCKET"), "the bucket of the s3 driver")
	prefix    = flag.String("prefix", os.Getenv("S3_PREFIX"), "the key prefix of the s3 driver")
	region    = flag.String("region", os.Getenv("AWS_REGION"), "the AWS region of the s3 driver")
	key       = flag.String("key", "sitemap.xml", "the key of the published sitemap")
)

func main() {
	flag.Parse()
	rlog := logger.Default()
	if len(*postgres) == 0 || len(*siteURL) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	ctx := context.Background()

	db, err := csql.Open(*postgres, *password, *schema)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot open database")
	}
	defer db.Close()
	store, err := directory.NewPostgresStore(ctx, db)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot open store")
	}

	data, err := generate(ctx, directory.NewService(store, nil), *siteURL)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot generate sitemap")
	}

	d, err := kss.New(ctx, configuration())
	if err != nil {
		rlog.WithError(err).Fatalln("cannot create storage driver")
	}
	if err := publish(ctx, d, *key, data); err != nil {
		rlog.WithError(err).Fatalln("cannot publish sitemap")
	}
}

func configuration() kss.Configuration {
	switch kss.DriverType(*driver) {
	case kss.DriverTypeLocal:
		return kss.Configuration{
			DriverType:         kss.DriverTypeLocal,
			LocalConfiguration: &kss.LocalConfiguration{BasePath: *localPath},
		}
	case kss.DriverTypeAWSS3:
		return kss.Configuration{
			DriverType: kss.DriverTypeAWSS3,
			S3Configuration: &kss.S3Configuration{
				AWSRegion:     *region,
				AWSBucketName: *bucket,
				KeyPrefix:     *prefix,
			},
		}
	}
	return kss.Configuration{DriverType: kss.DriverType(*driver)}
}

// generate renders the sitemap of all approved prompts and published blogs
func generate(ctx context.Context, service *directory.Service, siteURL string) ([]byte, error) {
	prompts, err := service.SitemapPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot list prompts: %w", err)
	}
	blogs, err := service.Blogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot list blogs: %w", err)
	}
	return sitemap.Render(sitemap.Items(sitemap.SiteURL(siteURL, ""), prompts, blogs))
}

// publish uploads the sitemap, or writes it to stdout without driver
func publish(ctx context.Context, d kss.Driver, key string, data []byte) error {
	if d == nil {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := d.Upload(ctx, key, data, sitemap.ContentType); err != nil {
		return err
	}
	logger.Default().Infoln("published sitemap", key, len(data), "bytes")
	return nil
}
