package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
)

// MinioStore keeps displayable image references as objects in one bucket.
// The reference is the object key.
type MinioStore struct {
	client     *minio.Client
	bucketName string
	region     string
}

// NewMinio buat koneksi MinIO
func NewMinio(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*MinioStore, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &MinioStore{client: cli, bucketName: bucket, region: region}, nil
}

// Put implementasi ImageStore
func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (diagnosis.ImageRef, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio put %s: %w", key, err)
	}
	return diagnosis.ImageRef(key), nil
}

func (s *MinioStore) Get(ctx context.Context, ref diagnosis.ImageRef) (diagnosis.Blob, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, string(ref), minio.GetObjectOptions{})
	if err != nil {
		return diagnosis.Blob{}, mapMinioErr(ref, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return diagnosis.Blob{}, mapMinioErr(ref, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return diagnosis.Blob{}, mapMinioErr(ref, err)
	}
	return diagnosis.Blob{Data: data, ContentType: info.ContentType}, nil
}

// Release hapus object; removing a missing key is not an error
func (s *MinioStore) Release(ctx context.Context, ref diagnosis.ImageRef) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, string(ref), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove %s: %w", ref, err)
	}
	return nil
}

// Check implements a health checker: the bucket must be reachable.
func (s *MinioStore) Check(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

// URL publik (jika bucket public)
func (s *MinioStore) URL(ref diagnosis.ImageRef) string {
	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucketName, ref)
}

func mapMinioErr(ref diagnosis.ImageRef, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", diagnosis.ErrBlobNotFound, ref)
	}
	return fmt.Errorf("minio get %s: %w", ref, err)
}
