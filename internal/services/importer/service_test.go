package importer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"acp_dues/internal/apperr"
	"acp_dues/internal/ports"
	"acp_dues/internal/repository/records"
)

type fakeOpener struct {
	files map[string][]byte
	meta  ports.Meta
}

func (o fakeOpener) Open(_ context.Context, p string) (io.ReadCloser, ports.Meta, error) {
	data, ok := o.files[p]
	if !ok {
		return nil, ports.Meta{}, apperr.NotFound("file %s", p)
	}
	meta := o.meta
	meta.Source = "fake"
	meta.Size = int64(len(data))
	return io.NopCloser(bytes.NewReader(data)), meta, nil
}

type recorder struct {
	batches  [][]ports.Row
	recordID string
	failAt   int
}

func (r *recorder) Type() string { return "rec" }

func (r *recorder) ProcessBatch(ctx context.Context, batch []ports.Row) (ports.BatchResult, error) {
	r.recordID = ports.ImportRecordID(ctx)
	if r.failAt > 0 && len(r.batches)+1 == r.failAt {
		return ports.BatchResult{}, errors.New("processor down")
	}
	cp := append([]ports.Row(nil), batch...)
	r.batches = append(r.batches, cp)
	var res ports.BatchResult
	for _, row := range batch {
		if row.Values["name"] == "bad" {
			res.Failed++
		} else {
			res.OK++
		}
	}
	return res, nil
}

func (r *recorder) rows() []ports.Row {
	var out []ports.Row
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

type fakeJournal struct {
	statuses []string
	count    int
	failed   int
	errs     *string
}

func (j *fakeJournal) SetImportStatus(_ context.Context, _, status string) error {
	j.statuses = append(j.statuses, status)
	return nil
}

func (j *fakeJournal) FinishImportRecord(_ context.Context, _, status string, count, failed int, errs *string) error {
	j.statuses = append(j.statuses, status)
	j.count, j.failed, j.errs = count, failed, errs
	return nil
}

func newService(files map[string][]byte, proc ports.Processor, j Journal, opts ...Option) *Service {
	reg := map[string]ports.Processor{proc.Type(): proc}
	return NewService(fakeOpener{files: files}, reg, j, zerolog.Nop(), opts...)
}

func xlsxBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImportCSVBatchesAndKeys(t *testing.T) {
	csvData := "\ufeffName,E-mail,Monthly Due\nAna,ana@x.org,100\n,,\nbad,,1\nBruno,,50\n"
	proc := &recorder{}
	svc := newService(map[string][]byte{"m.csv": []byte(csvData)}, proc, nil, WithBatchSize(2))

	res, err := svc.Import(context.Background(), Request{Type: "rec", FilePath: "m.csv", ImportRecordID: "rec-1"})
	require.NoError(t, err)

	assert.Equal(t, "csv", res.Format)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.SHA256, 64)
	assert.Equal(t, "rec-1", proc.recordID)
	require.Len(t, proc.batches, 2)

	rows := proc.rows()
	assert.Equal(t, "Ana", rows[0].Values["name"])
	assert.Equal(t, "ana@x.org", rows[0].Values["e_mail"])
	assert.Equal(t, "100", rows[0].Values["monthly_due"])
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, 5, rows[2].Line)
}

func TestImportCSVSemicolon(t *testing.T) {
	proc := &recorder{}
	svc := newService(map[string][]byte{"m.csv": []byte("name;monthly_due\nAna;1.234,50\n")}, proc, nil)

	_, err := svc.Import(context.Background(), Request{Type: "rec", FilePath: "m.csv"})
	require.NoError(t, err)
	rows := proc.rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "1.234,50", rows[0].Values["monthly_due"])
}

func TestImportXLSX(t *testing.T) {
	data := xlsxBytes(t, [][]any{
		{"Full Name", "Document Number", "Active"},
		{"Ana Pérez", "30111222", "yes"},
		{"Bruno", "", "no"},
	})
	proc := &recorder{}
	svc := newService(map[string][]byte{"s3://b/imports/m.xlsx": data}, proc, nil)

	res, err := svc.Import(context.Background(), Request{Type: "rec", FilePath: "s3://b/imports/m.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, "xlsx", res.Format)
	assert.Equal(t, 2, res.Rows)

	rows := proc.rows()
	assert.Equal(t, "Ana Pérez", rows[0].Values["full_name"])
	assert.Equal(t, "30111222", rows[0].Values["document_number"])
	assert.Equal(t, "", rows[1].Values["document_number"])
}

func TestImportMisnamedXLSXFallsBack(t *testing.T) {
	data := xlsxBytes(t, [][]any{{"name"}, {"Ana"}})
	proc := &recorder{}
	svc := newService(map[string][]byte{"upload.csv": data, "sheet.xlsx": []byte("name\nAna\nBruno\n")}, proc, nil)

	res, err := svc.Import(context.Background(), Request{Type: "rec", FilePath: "upload.csv"})
	require.NoError(t, err)
	assert.Equal(t, "xlsx", res.Format)
	assert.Equal(t, 1, res.Rows)

	res, err = svc.Import(context.Background(), Request{Type: "rec", FilePath: "sheet.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, "csv", res.Format)
	assert.Equal(t, 2, res.Rows)
}

func TestImportErrors(t *testing.T) {
	proc := &recorder{}
	files := map[string][]byte{
		"big.csv":   bytes.Repeat([]byte("a"), 64),
		"empty.csv": nil,
	}
	svc := newService(files, proc, nil, WithMaxBytes(32))
	ctx := context.Background()

	_, err := svc.Import(ctx, Request{Type: "nope", FilePath: "big.csv"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Import(ctx, Request{Type: "rec", FilePath: "missing.csv"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Import(ctx, Request{Type: "rec", FilePath: "big.csv"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Import(ctx, Request{Type: "rec", FilePath: "empty.csv"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRunTracksRecord(t *testing.T) {
	j := &fakeJournal{}
	proc := &recorder{}
	svc := newService(map[string][]byte{"m.csv": []byte("name\nAna\nbad\n")}, proc, j)

	_, err := svc.Run(context.Background(), Request{Type: "rec", FilePath: "m.csv", ImportRecordID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, []string{records.StatusProcessing, records.StatusDone}, j.statuses)
	assert.Equal(t, 2, j.count)
	assert.Equal(t, 1, j.failed)
	assert.Nil(t, j.errs)

	j = &fakeJournal{}
	proc = &recorder{failAt: 1}
	svc = newService(map[string][]byte{"m.csv": []byte("name\nAna\n")}, proc, j)
	_, err = svc.Run(context.Background(), Request{Type: "rec", FilePath: "m.csv", ImportRecordID: "r2"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, []string{records.StatusProcessing, records.StatusFailed}, j.statuses)
	require.NotNil(t, j.errs)
	assert.Contains(t, *j.errs, "processor down")
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, "xlsx", detectFormat("https://h/x/members.XLSX?sig=1", "", nil))
	assert.Equal(t, "xlsx", detectFormat("members.csv", "text/csv", []byte("PK\x03\x04rest")))
	assert.Equal(t, "csv", detectFormat("members", "text/csv; charset=utf-8", nil))
	assert.Equal(t, "xlsx", detectFormat("members", "application/octet-stream", []byte("PK\x03\x04rest")))
	assert.Equal(t, "csv", detectFormat("members", "", []byte("name\n")))
}
