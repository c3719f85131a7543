package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
)

var _ Store = (*S3Store)(nil)

// S3Store writes images to an S3-compatible bucket using path-style addressing.
type S3Store struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

func NewS3Store(cfg config.ImageStore) (*S3Store, error) {
	if cfg.S3Endpoint == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials: %w", ErrNotConfigured)
	}

	endpoint, err := url.Parse(strings.TrimRight(cfg.S3Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse s3 endpoint: %w", err)
	}
	if endpoint.Host == "" {
		return nil, fmt.Errorf("s3 endpoint has no host: %s", cfg.S3Endpoint)
	}

	client, err := minio.New(endpoint.Host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure:       endpoint.Scheme != "http",
		Region:       cfg.S3Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return &S3Store{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: s3PublicBase(cfg, endpoint),
	}, nil
}

func (s *S3Store) Put(ctx context.Context, data []byte, name, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return s.publicBase + "/" + url.PathEscape(name), nil
}

func (s *S3Store) Delete(ctx context.Context, ref string) (bool, error) {
	name, err := objectNameFromRef(ref)
	if err != nil {
		return false, err
	}

	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("remove object: %w", err)
	}
	return true, nil
}

// s3PublicBase returns the URL prefix objects are publicly served from. Without
// an explicit base the Supabase project is derived from the endpoint host.
func s3PublicBase(cfg config.ImageStore, endpoint *url.URL) string {
	if cfg.S3PublicBase != "" {
		return strings.TrimRight(cfg.S3PublicBase, "/")
	}

	project, _, _ := strings.Cut(endpoint.Hostname(), ".")
	base := publicObjectURL("https://"+project+".supabase.co", cfg.Bucket, "")
	return strings.TrimSuffix(base, "/")
}
