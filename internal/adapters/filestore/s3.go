// Package filestore keeps receipt files outside the database. Handles are
// opaque to callers.
package filestore

import (
	"bytes"
	"context"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"acp_dues/internal/apperr"
)

const receiptsPrefix = "receipts/"

type S3Client interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// S3 stores files as objects under receipts/ in one bucket. The handle is
// the object key.
type S3 struct {
	client S3Client
	bucket string
	log    zerolog.Logger
}

func NewS3(client S3Client, bucket string, log zerolog.Logger) *S3 {
	return &S3{client: client, bucket: bucket, log: log.With().Str("component", "filestore").Logger()}
}

func (s *S3) Store(ctx context.Context, data []byte, suggestedName string) (string, error) {
	key := receiptsPrefix + uuid.NewString() + "-" + safeName(suggestedName)

	ct := mime.TypeByExtension(path.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: ct})
	if err != nil {
		return "", apperr.Storage(err, "store %s", suggestedName)
	}

	s.log.Debug().Str("key", key).Int("size", len(data)).Msg("stored")
	return key, nil
}

func (s *S3) Read(ctx context.Context, handle string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, handle, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.readErr(err, handle)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.readErr(err, handle)
	}
	return data, nil
}

func (s *S3) readErr(err error, handle string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return apperr.NotFound("file %s", handle)
	}
	return apperr.Storage(err, "read %s", handle)
}

// Delete is idempotent: a missing object is not an error.
func (s *S3) Delete(ctx context.Context, handle string) error {
	err := s.client.RemoveObject(ctx, s.bucket, handle, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return apperr.Storage(err, "delete %s", handle)
	}
	return nil
}

// safeName keeps the base name and replaces anything outside [A-Za-z0-9._-].
func safeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
