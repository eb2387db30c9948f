/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package minio stores state as objects in an S3-compatible bucket.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Seednode/secretsanta/internal/model"
	"github.com/Seednode/secretsanta/internal/storage"
)

// Internal adapter interface to enable mocking without a real MinIO server.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
}

// Wrapper to adapt *minio.Client to minioAPI.
type minioClientWrapper struct{ c *minio.Client }

func (w minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return w.c.BucketExists(ctx, bucketName)
}

func (w minioClientWrapper) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucketName, opts)
}

func (w minioClientWrapper) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (w minioClientWrapper) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := w.c.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Options configures the connection made by Open.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

var _ storage.Backend = (*Store)(nil)

type Store struct {
	api    minioAPI
	bucket string
}

// Open creates a MinIO client and makes sure the bucket exists.
func Open(ctx context.Context, opts Options) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return NewWithAPI(ctx, minioClientWrapper{c: client}, opts.Bucket)
}

// NewWithAPI allows injecting a mockable API (used in tests).
func NewWithAPI(ctx context.Context, api minioAPI, bucket string) (*Store, error) {
	s := &Store{
		api:    api,
		bucket: bucket,
	}

	if err := s.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return s, nil
}

func (s *Store) ensureBucketExists(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

func objectName(key string) string {
	return key + ".json"
}

// Read fetches the object for key. GetObject is lazy, so a missing key only
// surfaces once the body is read.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.api.GetObject(ctx, s.bucket, objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.readError(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.readError(err)
	}

	return data, nil
}

func (s *Store) readError(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return model.ErrNotFound
	}

	return fmt.Errorf("failed to get object: %w", err)
}

func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	_, err := s.api.PutObject(ctx, s.bucket, objectName(key), bytes.NewReader(value), int64(len(value)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return nil
}
