package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"acp_dues/internal/apperr"
	"acp_dues/internal/ports"
)

const importsPrefix = "imports/"

// PutSheet uploads an import sheet under imports/ and returns its location.
func (s *S3) PutSheet(ctx context.Context, name string, data []byte, contentType string) (bucket, key string, err error) {
	key = fmt.Sprintf("%s%d-%s", importsPrefix, time.Now().UnixNano(), safeName(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", "", apperr.Storage(err, "upload %s", name)
	}
	s.log.Info().Str("key", key).Int("size", len(data)).Msg("sheet uploaded")
	return s.bucket, key, nil
}

// MemoryBucket is the bucket name reported by Memory.PutSheet.
const MemoryBucket = "memory"

func (m *Memory) PutSheet(_ context.Context, name string, data []byte, _ string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailStore {
		return "", "", apperr.Storage(errInjected, "upload %s", name)
	}
	key := fmt.Sprintf("%s%d-%s", importsPrefix, time.Now().UnixNano(), safeName(name))
	m.files[key] = append([]byte(nil), data...)
	return MemoryBucket, key, nil
}

// Open serves files kept by m to the importer. It accepts s3://memory/key
// and bare keys.
func (m *Memory) Open(_ context.Context, filePath string) (io.ReadCloser, ports.Meta, error) {
	key := strings.TrimPrefix(filePath, "s3://"+MemoryBucket+"/")
	m.mu.Lock()
	data, ok := m.files[key]
	m.mu.Unlock()
	if !ok {
		return nil, ports.Meta{}, apperr.NotFound("file %s", filePath)
	}
	return io.NopCloser(bytes.NewReader(data)), ports.Meta{
		Source: "memory",
		Name:   key[strings.LastIndex(key, "/")+1:],
		Size:   int64(len(data)),
		Bucket: MemoryBucket,
		Key:    key,
	}, nil
}
