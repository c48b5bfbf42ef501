// Package objectstore wraps a gocloud.dev blob bucket as the raw and
// processed data stores.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	"gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob" // S3 driver
	"gocloud.dev/gcerrors"
)

// Config configures the storage backend.
type Config struct {
	Backend string // "local" | "gcs" | "s3" | "mem"

	// Bucket names the GCS or S3 bucket.
	Bucket string

	// Local filesystem
	LocalDir string

	// S3 (also works for MinIO and LocalStack)
	S3Endpoint string
	S3Region   string

	// Prefix is prepended to every key within the bucket.
	Prefix string
}

// Object describes a stored object.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// PutOptions carries optional object attributes.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Error records a failed storage operation. Stage code uses it to tell
// storage failures apart from everything else.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsStorageError reports whether err came from an object store.
func IsStorageError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}

// Store is a prefixed view of a blob bucket.
type Store struct {
	bucket *blob.Bucket
	prefix string
	base   string // canonical URI of the bucket root, for logs
}

// Open creates a store for the configured backend.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Backend {
	case "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("LocalDir required for local backend")
		}
		if err := os.MkdirAll(cfg.LocalDir, 0755); err != nil {
			return nil, fmt.Errorf("create base directory %s: %w", cfg.LocalDir, err)
		}
		bucket, err := fileblob.OpenBucket(cfg.LocalDir, nil)
		if err != nil {
			return nil, fmt.Errorf("open local bucket %s: %w", cfg.LocalDir, err)
		}
		abs, _ := filepath.Abs(cfg.LocalDir)
		return New(bucket, cfg.Prefix, "file://"+abs), nil
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("Bucket required for gcs backend")
		}
		bucket, err := blob.OpenBucket(ctx, "gs://"+cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("open GCS bucket %s: %w", cfg.Bucket, err)
		}
		return New(bucket, cfg.Prefix, "gs://"+cfg.Bucket), nil
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("Bucket required for s3 backend")
		}
		bucket, err := blob.OpenBucket(ctx, s3URL(cfg))
		if err != nil {
			return nil, fmt.Errorf("open S3 bucket %s: %w", cfg.Bucket, err)
		}
		return New(bucket, cfg.Prefix, "s3://"+cfg.Bucket), nil
	case "mem":
		return New(memblob.OpenBucket(nil), cfg.Prefix, "mem://"), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// s3URL builds the gocloud.dev URL for an S3-compatible bucket.
func s3URL(cfg Config) string {
	bucketURL := "s3://" + cfg.Bucket

	params := url.Values{}
	if cfg.S3Region != "" {
		params.Set("region", cfg.S3Region)
	}
	if cfg.S3Endpoint != "" {
		params.Set("endpoint", cfg.S3Endpoint)
		params.Set("s3ForcePathStyle", "true")
	}
	if len(params) > 0 {
		bucketURL = bucketURL + "?" + params.Encode()
	}
	return bucketURL
}

// New wraps an already opened bucket. The store takes ownership of it.
func New(bucket *blob.Bucket, prefix, base string) *Store {
	return &Store{bucket: bucket, prefix: prefix, base: strings.TrimSuffix(base, "/")}
}

func (s *Store) fullKey(key string) string {
	return s.prefix + key
}

// Put writes data under key, replacing any existing object.
func (s *Store) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	path := s.fullKey(key)

	w, err := s.bucket.NewWriter(ctx, path, &blob.WriterOptions{
		ContentType: opts.ContentType,
		Metadata:    opts.Metadata,
	})
	if err != nil {
		return &Error{Op: "create writer", Key: path, Err: err}
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return &Error{Op: "write", Key: path, Err: err}
	}

	if err := w.Close(); err != nil {
		return &Error{Op: "close writer", Key: path, Err: err}
	}
	return nil
}

// Get reads the whole object at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	path := s.fullKey(key)
	data, err := s.bucket.ReadAll(ctx, path)
	if err != nil {
		return nil, &Error{Op: "read", Key: path, Err: err}
	}
	return data, nil
}

// Metadata returns the user metadata written with the object at key.
// Keys are lower case.
func (s *Store) Metadata(ctx context.Context, key string) (map[string]string, error) {
	path := s.fullKey(key)
	attrs, err := s.bucket.Attributes(ctx, path)
	if err != nil {
		return nil, &Error{Op: "attributes", Key: path, Err: err}
	}
	return attrs.Metadata, nil
}

// Exists checks if an object exists at key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	path := s.fullKey(key)
	ok, err := s.bucket.Exists(ctx, path)
	if err != nil {
		return false, &Error{Op: "exists", Key: path, Err: err}
	}
	return ok, nil
}

// List returns every object whose key starts with prefix, in key order.
// Returned keys are relative to the store prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object

	iter := s.bucket.List(&blob.ListOptions{
		Prefix: s.fullKey(prefix),
	})

	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &Error{Op: "list", Key: s.fullKey(prefix), Err: err}
		}
		if obj.IsDir {
			continue
		}
		objects = append(objects, Object{
			Key:     strings.TrimPrefix(obj.Key, s.prefix),
			Size:    obj.Size,
			ModTime: obj.ModTime,
		})
	}

	return objects, nil
}

// Bucket returns the name-like root of the store, as used in storage
// event records.
func (s *Store) Bucket() string {
	_, name, found := strings.Cut(s.base, "://")
	if !found {
		return s.base
	}
	return name
}

// URI returns the canonical URI for the given key.
// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
func (s *Store) URI(key string) string {
	return s.base + "/" + s.fullKey(key)
}

// Close releases the bucket connection.
func (s *Store) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}
