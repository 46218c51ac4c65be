package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pierrec/lz4/v4"
)

const defaultS3Region = "us-east-1"

// Sentinel errors for S3 configuration.
var (
	ErrS3Endpoint    = errors.New("cache.s3_endpoint is required")
	ErrS3Bucket      = errors.New("cache.s3_bucket is required")
	ErrS3Credentials = errors.New("cache.s3_access_key and cache.s3_secret_key are required")
)

// S3Options configures the S3 backend.
type S3Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3 stores lz4-compressed entries in an S3-compatible bucket using the same
// layout as [Filesystem], below an optional prefix.
type S3 struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

// NewS3 creates the client. No request is made until the first operation.
func NewS3(opts S3Options) (*S3, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, ErrS3Endpoint
	}

	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, ErrS3Bucket
	}

	access, secret := strings.TrimSpace(opts.AccessKey), strings.TrimSpace(opts.SecretKey)
	if access == "" || secret == "" {
		return nil, ErrS3Credentials
	}

	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = defaultS3Region
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

// ObjectName returns the object key of an entry.
func (s *S3) ObjectName(key Key) string {
	if s.prefix == "" {
		return key.Path()
	}

	return path.Join(s.prefix, key.Path())
}

func (s *S3) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err

			return
		}

		if !exists {
			s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		}
	})

	return s.initErr
}

// Load implements Backend.
func (s *S3) Load(ctx context.Context, key Key) ([]byte, bool, error) {
	name := s.ObjectName(key)

	if err := s.ensureBucket(ctx); err != nil {
		return nil, false, &IOError{Op: "ensure bucket", Path: s.bucket, Err: err}
	}

	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, &IOError{Op: "get", Path: name, Err: err}
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "NoSuchKey" || code == "NoSuchBucket" {
			return nil, false, nil
		}

		return nil, false, &IOError{Op: "get", Path: name, Err: err}
	}

	value, err := Decompress(data)
	if err != nil {
		return nil, false, &IOError{Op: "decode", Path: name, Err: err}
	}

	return value, true, nil
}

// Save implements Backend.
func (s *S3) Save(ctx context.Context, key Key, value []byte) error {
	name := s.ObjectName(key)

	if err := s.ensureBucket(ctx); err != nil {
		return &IOError{Op: "ensure bucket", Path: s.bucket, Err: err}
	}

	data, err := Compress(value)
	if err != nil {
		return &IOError{Op: "encode", Path: name, Err: err}
	}

	_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/x-lz4"})
	if err != nil {
		return &IOError{Op: "put", Path: name, Err: err}
	}

	return nil
}

// Compress wraps value in an lz4 frame.
func Compress(value []byte) ([]byte, error) {
	var buf bytes.Buffer

	w := lz4.NewWriter(&buf)

	if _, err := w.Write(value); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress reads an lz4 frame produced by [Compress].
func Decompress(data []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("lz4 read: %w", err)
	}

	return out, nil
}
