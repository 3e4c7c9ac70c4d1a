// Package storage provides concrete rag.FileStorage implementations: an
// R2-compatible object store via the S3 protocol (kept from the teacher's
// uploadask/storage/r2.go) and an in-memory store for tests and local dev.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// R2Storage stores documents in Cloudflare R2 via the S3-compatible API.
type R2Storage struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewR2Storage constructs the storage adapter.
func NewR2Storage(endpoint, accessKey, secretKey, bucket, region string, logger *slog.Logger) (*R2Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, rag.ErrStorageConfiguration
	}
	cleanEndpoint := sanitizeEndpoint(endpoint)
	useSSL := strings.HasPrefix(strings.ToLower(endpoint), "https")
	client, err := minio.New(cleanEndpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init r2 client: %w", err)
	}
	return &R2Storage{client: client, bucket: bucket, logger: logger.With("component", "rag.storage.r2")}, nil
}

func (s *R2Storage) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err == nil && exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return classifyMinioErr(err)
	}
	return nil
}

// Upload stores the content under key, creating the bucket if absent.
func (s *R2Storage) Upload(ctx context.Context, key string, content []byte, mimeType string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	reader := bytes.NewReader(content)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, int64(len(content)), minio.PutObjectOptions{
		ContentType:      mimeType,
		DisableMultipart: len(content) < 5*1024*1024,
	})
	if err != nil {
		return classifyMinioErr(err)
	}
	return nil
}

// Download reads the full object into memory.
func (s *R2Storage) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinioErr(err)
	}
	defer obj.Close()
	if _, statErr := obj.Stat(); statErr != nil {
		return nil, classifyMinioErr(statErr)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyMinioErr(err)
	}
	return data, nil
}

// Delete removes the object.
func (s *R2Storage) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return classifyMinioErr(err)
	}
	return nil
}

// Presign returns a time-limited download URL for the object, suggesting a
// download filename via the response-content-disposition query parameter.
func (s *R2Storage) Presign(ctx context.Context, key string, ttl time.Duration, suggestedFileName string) (string, error) {
	reqParams := url.Values{}
	if suggestedFileName != "" {
		reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", suggestedFileName))
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, reqParams)
	if err != nil {
		return "", classifyMinioErr(err)
	}
	return u.String(), nil
}

var _ rag.FileStorage = (*R2Storage)(nil)

func classifyMinioErr(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", rag.ErrStorageNotFound, err)
	case "AccessDenied":
		return fmt.Errorf("%w: %s", rag.ErrStoragePermission, err)
	case "":
		return fmt.Errorf("%w: %s", rag.ErrStorageUnavailable, err)
	default:
		return err
	}
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if strings.Contains(raw, "/") {
		parts := strings.Split(raw, "/")
		raw = parts[0]
	}
	return raw
}
