package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"acp_dues/internal/access"
	"acp_dues/internal/apperr"
	"acp_dues/internal/repository/records"
)

// Sheets keeps uploaded import sheets.
type Sheets interface {
	PutSheet(ctx context.Context, name string, data []byte, contentType string) (bucket, key string, err error)
}

type RecordStore interface {
	CreateImportRecord(ctx context.Context, rec records.ImportRecord) (string, error)
}

// Submission is returned as soon as the import record exists.
type Submission struct {
	RecordID string `json:"id"`
	Type     string `json:"type"`
	Path     string `json:"path"`
	Status   string `json:"status"`
}

// Submitter registers an import and runs it in the background.
type Submitter struct {
	svc     *Service
	sheets  Sheets
	records RecordStore
	log     zerolog.Logger
	timeout time.Duration
	spawn   func(func())
}

type SubmitOption func(*Submitter)

// WithTimeout bounds each background run.
func WithTimeout(d time.Duration) SubmitOption {
	return func(s *Submitter) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithForegroundRun makes Submit return only after the import finished.
func WithForegroundRun() SubmitOption {
	return func(s *Submitter) { s.spawn = func(f func()) { f() } }
}

func NewSubmitter(svc *Service, sheets Sheets, rs RecordStore, log zerolog.Logger, opts ...SubmitOption) *Submitter {
	s := &Submitter{
		svc:     svc,
		sheets:  sheets,
		records: rs,
		log:     log.With().Str("component", "importer").Logger(),
		timeout: 15 * time.Minute,
		spawn:   func(f func()) { go f() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Upload stores the sheet under imports/ and starts importing it.
func (s *Submitter) Upload(ctx context.Context, caller access.Identity, typ, name string, data []byte, contentType string) (Submission, error) {
	if err := access.Authorize(caller, access.OpMemberImport); err != nil {
		return Submission{}, err
	}
	if err := s.checkType(typ); err != nil {
		return Submission{}, err
	}
	if len(data) == 0 {
		return Submission{}, apperr.Validation("file is empty")
	}
	if int64(len(data)) > s.svc.maxBytes {
		return Submission{}, apperr.Validation("import file exceeds %d bytes", s.svc.maxBytes)
	}

	bucket, key, err := s.sheets.PutSheet(ctx, name, data, contentType)
	if err != nil {
		return Submission{}, err
	}
	size := int64(len(data))
	return s.start(ctx, caller, typ, fmt.Sprintf("s3://%s/%s", bucket, key), records.ImportRecord{
		Bucket:    &bucket,
		Key:       &key,
		SizeBytes: &size,
	})
}

// Source starts importing a sheet that is already reachable by the opener:
// s3://bucket/key, an http(s) URL, or a key in the default bucket.
func (s *Submitter) Source(ctx context.Context, caller access.Identity, typ, filePath string) (Submission, error) {
	if err := access.Authorize(caller, access.OpMemberImport); err != nil {
		return Submission{}, err
	}
	if err := s.checkType(typ); err != nil {
		return Submission{}, err
	}
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return Submission{}, apperr.Validation("file_path is required")
	}
	return s.start(ctx, caller, typ, filePath, records.ImportRecord{})
}

func (s *Submitter) checkType(typ string) error {
	if _, ok := s.svc.processors[typ]; !ok {
		return apperr.Validation("no processor for import type %q", typ)
	}
	return nil
}

func (s *Submitter) start(ctx context.Context, caller access.Identity, typ, filePath string, rec records.ImportRecord) (Submission, error) {
	rec.UserID = caller.Subject
	rec.Type = typ
	rec.Status = records.StatusUploaded

	id, err := s.records.CreateImportRecord(ctx, rec)
	if err != nil {
		return Submission{}, apperr.Storage(err, "create import record")
	}

	req := Request{Type: typ, FilePath: filePath, ImportRecordID: id}
	runCtx := context.WithoutCancel(ctx)
	s.spawn(func() {
		ctx, cancel := context.WithTimeout(runCtx, s.timeout)
		defer cancel()
		start := time.Now()
		res, err := s.svc.Run(ctx, req)
		if err != nil {
			s.log.Error().Err(err).Str("import_record_id", id).Dur("took", time.Since(start)).Msg("background import failed")
			return
		}
		s.log.Info().Str("import_record_id", id).Int("rows", res.Rows).Int("failed", res.Failed).Dur("took", time.Since(start)).Msg("background import done")
	})

	s.log.Info().Str("import_record_id", id).Str("type", typ).Str("path", filePath).Str("by", caller.Subject).Msg("import submitted")
	return Submission{RecordID: id, Type: typ, Path: filePath, Status: records.StatusUploaded}, nil
}
