// Package importer reads CSV or XLSX sheets from a FileOpener and feeds
// their rows, in batches, to the processor registered for the import type.
package importer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"acp_dues/internal/apperr"
	"acp_dues/internal/metrics"
	"acp_dues/internal/ports"
	"acp_dues/internal/repository/records"
	"acp_dues/internal/utils"
)

const (
	DefaultBatchSize = 500
	DefaultMaxBytes  = 20 << 20
)

type Request struct {
	Type           string
	FilePath       string
	BatchSize      int
	ImportRecordID string
}

type Result struct {
	Source      string
	FilePath    string
	Format      string
	Rows        int
	Failed      int
	SHA256      string
	ContentType string
	Bucket      string
	Key         string
	SizeBytes   int64
}

// Journal tracks the status of an import record.
type Journal interface {
	SetImportStatus(ctx context.Context, id, status string) error
	FinishImportRecord(ctx context.Context, id, status string, count, failed int, errs *string) error
}

type Service struct {
	opener     ports.FileOpener
	processors map[string]ports.Processor
	journal    Journal
	log        zerolog.Logger
	metrics    *metrics.Metrics
	batchSize  int
	maxBytes   int64
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithMaxBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func NewService(opener ports.FileOpener, registry map[string]ports.Processor, journal Journal, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		opener:     opener,
		processors: registry,
		journal:    journal,
		log:        log.With().Str("component", "importer").Logger(),
		batchSize:  DefaultBatchSize,
		maxBytes:   DefaultMaxBytes,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run imports req and keeps the import record status current. It is meant
// to run detached from the request that created the record.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	if req.ImportRecordID != "" && s.journal != nil {
		if err := s.journal.SetImportStatus(ctx, req.ImportRecordID, records.StatusProcessing); err != nil {
			s.log.Warn().Err(err).Str("import_record_id", req.ImportRecordID).Msg("status update failed")
		}
	}

	res, err := s.Import(ctx, req)

	if req.ImportRecordID != "" && s.journal != nil {
		status := records.StatusDone
		var errs *string
		if err != nil {
			status = records.StatusFailed
			msg := err.Error()
			errs = &msg
		}
		if ferr := s.journal.FinishImportRecord(context.WithoutCancel(ctx), req.ImportRecordID, status, res.Rows, res.Failed, errs); ferr != nil {
			s.log.Warn().Err(ferr).Str("import_record_id", req.ImportRecordID).Msg("import record not finished")
		}
	}
	return res, err
}

func (s *Service) Import(ctx context.Context, req Request) (Result, error) {
	defer s.metrics.Observe("import", time.Now())

	log := s.log.With().Str("type", req.Type).Str("path", req.FilePath).Str("import_record_id", req.ImportRecordID).Logger()
	ctx = context.WithValue(ctx, ports.CtxImportRecordID, req.ImportRecordID)

	proc, ok := s.processors[req.Type]
	if !ok {
		return Result{}, apperr.Validation("no processor for import type %q", req.Type)
	}

	rc, meta, err := s.opener.Open(ctx, req.FilePath)
	if err != nil {
		log.Error().Err(err).Msg("open failed")
		return Result{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxBytes+1))
	if err != nil {
		return Result{}, apperr.Storage(err, "read %s", req.FilePath)
	}
	if int64(len(data)) > s.maxBytes {
		return Result{}, apperr.Validation("import file exceeds %d bytes", s.maxBytes)
	}
	sum := sha256.Sum256(data)

	name := meta.Name
	if name == "" {
		name = req.FilePath
	}
	format := detectFormat(name, meta.ContentType, data)
	log.Info().Str("source", meta.Source).Str("content_type", meta.ContentType).Int("size", len(data)).Str("format", format).Msg("import started")

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	var total ports.BatchResult
	if format == "xlsx" {
		total, err = s.readXLSX(ctx, data, proc, batchSize)
	} else {
		total, err = s.readCSV(ctx, data, proc, batchSize)
	}
	// an xlsx name over text content: retry as csv if nothing was applied
	var perr *processError
	if err != nil && format == "xlsx" && total.OK+total.Failed == 0 && !isCtxErr(err) && !errors.As(err, &perr) {
		log.Warn().Err(err).Msg("xlsx read failed, retrying as csv")
		csvTotal, cerr := s.readCSV(ctx, data, proc, batchSize)
		total = csvTotal
		if cerr == nil {
			format, err = "csv", nil
		}
	}

	res := Result{
		Source:      meta.Source,
		FilePath:    req.FilePath,
		Format:      format,
		Rows:        total.OK + total.Failed,
		Failed:      total.Failed,
		SHA256:      hex.EncodeToString(sum[:]),
		ContentType: meta.ContentType,
		Bucket:      meta.Bucket,
		Key:         meta.Key,
		SizeBytes:   int64(len(data)),
	}
	if err != nil {
		log.Error().Err(err).Int("rows", res.Rows).Msg("import failed")
		if !errors.Is(err, apperr.ErrValidation) && !isCtxErr(err) && !errors.As(err, &perr) {
			err = apperr.Validation("unreadable %s sheet: %v", format, err)
		}
		return res, err
	}

	log.Info().Str("format", format).Int("rows", res.Rows).Int("failed", res.Failed).Str("sha256", res.SHA256).Msg("import done")
	return res, nil
}

// processError marks a failure returned by the processor rather than by
// sheet parsing.
type processError struct{ err error }

func (e *processError) Error() string { return "process batch: " + e.err.Error() }
func (e *processError) Unwrap() error { return e.err }

func isCtxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// batcher accumulates rows and flushes them to the processor.
type batcher struct {
	ctx   context.Context
	proc  ports.Processor
	size  int
	rows  []ports.Row
	total ports.BatchResult
}

func (b *batcher) add(r ports.Row) error {
	b.rows = append(b.rows, r)
	if len(b.rows) >= b.size {
		return b.flush()
	}
	return nil
}

func (b *batcher) flush() error {
	if len(b.rows) == 0 {
		return nil
	}
	res, err := b.proc.ProcessBatch(b.ctx, b.rows)
	b.total.OK += res.OK
	b.total.Failed += res.Failed
	b.rows = b.rows[:0]
	if err != nil {
		return &processError{err: err}
	}
	return nil
}

func (s *Service) readCSV(ctx context.Context, data []byte, proc ports.Processor, batchSize int) (ports.BatchResult, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	reader := csv.NewReader(bufio.NewReader(bytes.NewReader(data)))
	reader.FieldsPerRecord = -1
	reader.Comma = sniffDelimiter(data)

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return ports.BatchResult{}, apperr.Validation("empty sheet")
		}
		return ports.BatchResult{}, err
	}
	keys := headerKeys(header)

	b := &batcher{ctx: ctx, proc: proc, size: batchSize}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				s.log.Warn().Err(err).Int("line", line).Msg("csv row skipped")
				continue
			}
			return b.total, err
		}
		if row, ok := toRow(keys, record, line); ok {
			if err := b.add(row); err != nil {
				return b.total, err
			}
		}
	}
	return b.total, b.flush()
}

func (s *Service) readXLSX(ctx context.Context, data []byte, proc ports.Processor, batchSize int) (ports.BatchResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return ports.BatchResult{}, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ports.BatchResult{}, apperr.Validation("xlsx has no sheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return ports.BatchResult{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Error(); err != nil {
			return ports.BatchResult{}, err
		}
		return ports.BatchResult{}, apperr.Validation("empty sheet")
	}
	header, err := rows.Columns()
	if err != nil {
		return ports.BatchResult{}, err
	}
	keys := headerKeys(header)

	b := &batcher{ctx: ctx, proc: proc, size: batchSize}
	line := 1
	for rows.Next() {
		line++
		cols, err := rows.Columns()
		if err != nil {
			s.log.Warn().Err(err).Int("line", line).Msg("xlsx row skipped")
			continue
		}
		if row, ok := toRow(keys, cols, line); ok {
			if err := b.add(row); err != nil {
				return b.total, err
			}
		}
	}
	if err := rows.Error(); err != nil {
		return b.total, err
	}
	return b.total, b.flush()
}

func headerKeys(header []string) []string {
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = utils.HeaderKey(h)
	}
	return keys
}

// toRow maps cells to header keys. Blank rows are dropped.
func toRow(keys, cells []string, line int) (ports.Row, bool) {
	m := make(map[string]string, len(keys))
	blank := true
	for i, key := range keys {
		if key == "" {
			continue
		}
		val := ""
		if i < len(cells) {
			val = strings.TrimSpace(cells[i])
		}
		if val != "" {
			blank = false
		}
		m[key] = val
	}
	return ports.Row{Line: line, Values: m}, !blank
}

// sniffDelimiter picks ';' when the header line has more semicolons than
// commas, as spreadsheet exports in comma-decimal locales do.
func sniffDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

var zipMagic = []byte("PK\x03\x04")

func detectFormat(name, contentType string, data []byte) string {
	if bytes.HasPrefix(data, zipMagic) {
		return "xlsx"
	}
	p := name
	if u, err := url.Parse(name); err == nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")) {
	case "xlsx":
		return "xlsx"
	case "csv", "txt":
		return "csv"
	}
	med, _, _ := mime.ParseMediaType(contentType)
	switch med {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	case "text/csv", "application/csv", "text/plain":
		return "csv"
	}
	return "csv"
}

// String renders r for command line output.
func (r Result) String() string {
	return fmt.Sprintf("%s rows=%d failed=%d format=%s sha256=%s", r.FilePath, r.Rows, r.Failed, r.Format, r.SHA256)
}
