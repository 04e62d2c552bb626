// Package blobstore keeps document contents in an S3 compatible bucket.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ifl-de/intake-api/internal/core/domain"
	"github.com/ifl-de/intake-api/internal/core/ports"
	"github.com/ifl-de/intake-api/internal/pkg/metrics"
)

const keyPrefix = "documents/"

// Config holds the object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	// CreateBucket makes the bucket on startup when it does not exist.
	CreateBucket bool
}

// Store implements ports.BlobStore on MinIO or any S3 compatible service.
type Store struct {
	client *minio.Client
	bucket string
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, errors.New("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, errors.New("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	return raw, false, nil
}

// New connects to the object store and checks the bucket.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, errors.New("blobstore: configuration incomplete")
	}
	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("blobstore: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("blobstore: check bucket: %w", err)
	}
	if !exists {
		if !cfg.CreateBucket {
			return nil, fmt.Errorf("blobstore: bucket does not exist: %s", cfg.Bucket)
		}
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("blobstore: create bucket: %w", err)
		}
	}

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Put writes r under a fresh key scoped to the owner and returns the key.
func (s *Store) Put(ctx context.Context, meta ports.BlobMeta, r io.Reader) (string, error) {
	defer observe("put")()

	key := path.Join(strings.TrimSuffix(keyPrefix, "/"), meta.OwnerID, uuid.NewString())
	_, err := s.client.PutObject(ctx, s.bucket, key, r, meta.Size, minio.PutObjectOptions{
		ContentType: meta.ContentType,
		UserMetadata: map[string]string{
			"owner-id": meta.OwnerID,
			"filename": url.PathEscape(meta.Filename),
		},
	})
	if err != nil {
		return "", classify("put object", err)
	}
	return key, nil
}

// Get opens the blob at key. The caller closes the reader.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	defer observe("get")()

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify("get object", err)
	}
	// Force an early error for missing objects.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, classify("stat object", err)
	}
	return obj, nil
}

// Delete removes the blob at key. Removing a missing key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	defer observe("delete")()

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return classify("remove object", err)
	}
	return nil
}

// List returns document blobs last modified before the given instant.
func (s *Store) List(ctx context.Context, before time.Time) ([]ports.BlobInfo, error) {
	defer observe("list")()

	var out []ports.BlobInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: keyPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, classify("list objects", obj.Err)
		}
		if !obj.LastModified.Before(before) {
			continue
		}
		out = append(out, ports.BlobInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return out, nil
}

// Ping checks that the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return classify("bucket exists", err)
	}
	return nil
}

func observe(op string) func() {
	timer := prometheus.NewTimer(metrics.BlobOperationDuration.WithLabelValues(op))
	return func() { timer.ObserveDuration() }
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func classify(op string, err error) error {
	if isNoSuchKey(err) {
		return domain.ErrNotFound
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
