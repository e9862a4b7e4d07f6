// Package kss is a key storage service for files kept outside of the
// database, like the published sitemap. There are two drivers: a local
// filesystem and AWS S3.
package kss

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("key not found")

// Driver defines the interface for the KSS service
type Driver interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	ListAllWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// DriverType represents the different type of KSS Drivers
type DriverType string

// DriverTypeLocal is the local filesystem implementation of the KSS service
const DriverTypeLocal DriverType = "local"

// DriverTypeAWSS3 is the AWS S3 implementation of the KSS service
const DriverTypeAWSS3 DriverType = "s3"

// None is used when there is no KSS implementation
const None DriverType = ""

// Configuration contains the configuration for the KSS service
type Configuration struct {
	DriverType         DriverType
	LocalConfiguration *LocalConfiguration
	S3Configuration    *S3Configuration
}

// LocalConfiguration contains the configuration for the local filesystem KSS service
type LocalConfiguration struct {
	BasePath string
}

// S3Configuration contains the configuration for the AWS S3 KSS service.
// Without access id the default credential chain is used.
type S3Configuration struct {
	AWSRegion     string
	AWSBucketName string
	KeyPrefix     string
	AccessID      string
	AccessKey     string
}

// New returns the driver for the configuration, or nil for None
func New(ctx context.Context, cfg Configuration) (Driver, error) {
	switch cfg.DriverType {
	case None:
		return nil, nil
	case DriverTypeLocal:
		if cfg.LocalConfiguration == nil {
			return nil, errors.New("missing local configuration")
		}
		return NewLocalFilesystem(*cfg.LocalConfiguration)
	case DriverTypeAWSS3:
		if cfg.S3Configuration == nil {
			return nil, errors.New("missing s3 configuration")
		}
		return NewS3(ctx, *cfg.S3Configuration)
	}
	return nil, fmt.Errorf("unknown kss driver %q", cfg.DriverType)
}
