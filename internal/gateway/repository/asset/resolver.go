package asset

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const s3Scheme = "s3://"

// Resolver turns an asset reference from a reply script into a URL a client
// can load.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// PassThrough returns references unchanged.
type PassThrough struct{}

func (PassThrough) Resolve(_ context.Context, ref string) (string, error) { return ref, nil }

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Expiry    time.Duration
}

// S3Resolver presigns "s3://<key>" references against one bucket. Other
// references pass through.
type S3Resolver struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewS3Resolver(cfg S3Config) (*S3Resolver, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Resolver{client: client, bucket: bucket, expiry: expiry}, nil
}

func (r *S3Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(strings.ToLower(trimmed), s3Scheme) {
		return ref, nil
	}
	key := strings.TrimLeft(trimmed[len(s3Scheme):], "/")
	if key == "" {
		return "", fmt.Errorf("asset reference %q has no object key", ref)
	}
	u, err := r.client.PresignedGetObject(ctx, r.bucket, key, r.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}
