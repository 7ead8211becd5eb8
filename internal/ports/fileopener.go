package ports

import (
	"context"
	"io"
)

// Meta describes an opened import source. Name is the base file name when
// the source has one; the importer uses it to pick a format.
type Meta struct {
	Source      string
	Name        string
	ContentType string
	Size        int64
	Bucket      string
	Key         string
}

type FileOpener interface {
	Open(ctx context.Context, filePath string) (io.ReadCloser, Meta, error)
}
