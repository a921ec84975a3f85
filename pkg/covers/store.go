package covers

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/chaskitbooks/chaskit/pkg/config"
	"github.com/pkg/errors"
)

const cacheControl = "max-age=3600"

// Store is an object store that serves stored objects at public URLs.
type Store interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	// URL returns the public URL of key.
	URL(key string) string
	// Key returns the object key behind a public URL, if the URL points into
	// this store.
	Key(publicURL string) (string, bool)
}

// S3Store keeps covers in an S3 compatible bucket.
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3Store builds a store from the storage settings. It returns nil when
// storage isn't configured.
func NewS3Store(ctx context.Context, cfg *config.Config) (*S3Store, error) {
	if !cfg.StorageEnabled() {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.StorageRegion),
	}
	if cfg.StorageAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKeyID,
			cfg.StorageSecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load storage config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true
	})

	publicURL := strings.TrimRight(cfg.StoragePublicURL, "/")
	if publicURL == "" {
		publicURL = strings.TrimRight(cfg.StorageEndpoint, "/") + "/" + cfg.StorageBucket
	}

	return &S3Store{client: client, bucket: cfg.StorageBucket, publicURL: publicURL}, nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	return errors.Wrapf(err, "put object %s", key)
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return errors.Wrapf(err, "delete object %s", key)
}

func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return errors.Wrapf(err, "head bucket %s", s.bucket)
}

func (s *S3Store) URL(key string) string {
	return publicURL(s.publicURL, key)
}

func (s *S3Store) Key(u string) (string, bool) {
	return keyFromURL(s.publicURL, u)
}

func publicURL(base, key string) string {
	return base + "/" + key
}

func keyFromURL(base, u string) (string, bool) {
	rest, ok := strings.CutPrefix(u, base+"/")
	if !ok || rest == "" {
		return "", false
	}
	key, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return key, true
}
