package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"acp_dues/internal/access"
	"acp_dues/internal/adapters/filestore"
	"acp_dues/internal/adapters/notify"
	"acp_dues/internal/apperr"
	"acp_dues/internal/clock"
	"acp_dues/internal/repository/memory"
	"acp_dues/internal/repository/records"
	"acp_dues/internal/services/delinquency"
	"acp_dues/internal/services/dues"
	"acp_dues/internal/services/importer"
	"acp_dues/internal/services/importer/processors"
	"acp_dues/internal/services/ledger"
	"acp_dues/internal/services/members"
	"acp_dues/internal/services/reminders"
	"acp_dues/internal/transport/auth"
)

// recordBook is an in-memory stand-in for the Mongo journal.
type recordBook struct {
	mu        sync.Mutex
	recs      []records.ImportRecord
	reminders []records.ReminderLog
}

func (b *recordBook) LogReminder(_ context.Context, r records.ReminderLog) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reminders = append(b.reminders, r)
	return nil
}

func (b *recordBook) RemindersForMember(_ context.Context, memberID string, limit int64) ([]records.ReminderLog, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []records.ReminderLog
	for i := len(b.reminders) - 1; i >= 0 && (limit <= 0 || int64(len(out)) < limit); i-- {
		if b.reminders[i].MemberID == memberID {
			out = append(out, b.reminders[i])
		}
	}
	return out, nil
}

func (b *recordBook) CreateImportRecord(_ context.Context, rec records.ImportRecord) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec.ID = primitive.NewObjectID()
	b.recs = append(b.recs, rec)
	return rec.ID.Hex(), nil
}

func (b *recordBook) update(id string, fn func(*records.ImportRecord)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.recs {
		if b.recs[i].ID.Hex() == id {
			fn(&b.recs[i])
			return nil
		}
	}
	return apperr.NotFound("import record %s", id)
}

func (b *recordBook) SetImportStatus(_ context.Context, id, status string) error {
	return b.update(id, func(r *records.ImportRecord) { r.Status = status })
}

func (b *recordBook) FinishImportRecord(_ context.Context, id, status string, count, failed int, errs *string) error {
	return b.update(id, func(r *records.ImportRecord) {
		r.Status, r.Count, r.Failed, r.Errors = status, count, failed, errs
	})
}

func (b *recordBook) FindImportRecord(_ context.Context, id string) (records.ImportRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.recs {
		if r.ID.Hex() == id {
			return r, nil
		}
	}
	return records.ImportRecord{}, apperr.NotFound("import record %s", id)
}

func (b *recordBook) ListImportRecords(_ context.Context, limit, skip int64) ([]records.ImportRecord, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]records.ImportRecord(nil), b.recs...), int64(len(b.recs)), nil
}

type env struct {
	router http.Handler
	files  *filestore.Memory
	as     access.Identity
}

var today = civil.Date{Year: 2024, Month: 3, Day: 15}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	files := filestore.NewMemory()
	clk := clock.Fixed(today)
	log := zerolog.Nop()
	book := &recordBook{}

	agg := delinquency.NewAggregator(store)
	imp := importer.NewService(files, processors.Registry(processors.NewMembersProcessor(store, nil, log)), book, log)

	h := &Handlers{
		Members:     members.NewService(store, files, log),
		Dues:        dues.NewService(store, files, clk, log, dues.WithMaxReceiptBytes(1024)),
		Ledger:      ledger.NewService(store, files, clk, log),
		Delinquency: agg,
		Reminders:   reminders.NewDispatcher(agg, notify.New(nil, nil, log), book, log, nil, reminders.Config{Association: "ACP"}),
		Imports:     importer.NewSubmitter(imp, files, book, log, importer.WithForegroundRun()),
		Records:     book,
		Clock:       clk,
		Logger:      log,
	}

	e := &env{files: files, as: access.Identity{Subject: "tester", Role: access.RoleAdmin}}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), e.as)))
		})
	})
	r.Get("/health", h.Health)
	h.Routes(r)
	e.router = r
	return e
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *env) upload(t *testing.T, path, field, name string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeInto[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (e *env) createMember(t *testing.T, body map[string]any) memberDTO {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/members", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeInto[memberDTO](t, rr)
}

func TestDuesLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	ana := e.createMember(t, map[string]any{"name": "Ana", "monthly_due": "100", "email": "ana@example.org"})
	assert.Equal(t, "100.00", ana.MonthlyDue)

	rr := e.do(t, http.MethodPost, "/dues/generate", map[string]string{"period": "2024-03"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), decodeInto[map[string]any](t, rr)["created"])

	rr = e.do(t, http.MethodPost, "/dues/generate", map[string]string{"period": "2024-03"})
	assert.Equal(t, float64(0), decodeInto[map[string]any](t, rr)["created"])

	rr = e.do(t, http.MethodGet, "/dues?period=2024-03", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	period := decodeInto[periodDTO](t, rr)
	require.Len(t, period.Dues, 1)
	due := period.Dues[0]
	assert.Equal(t, "2024-03-10", due.DueDate)
	assert.Equal(t, "overdue", due.Status)
	assert.Equal(t, "Ana", due.MemberName)
	assert.Equal(t, "100.00", period.Outstanding)

	rr = e.upload(t, "/dues/"+due.ID+"/pay", "receipt", "voucher.pdf", []byte("%PDF"), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	pay := decodeInto[paymentDTO](t, rr)
	assert.True(t, pay.Due.Paid)
	assert.Equal(t, "2024-03-15", *pay.Due.PaidOn)
	assert.Equal(t, "due-payment", pay.LedgerEntry.Origin)
	assert.Equal(t, "100.00", pay.LedgerEntry.Amount)
	require.NotNil(t, pay.Attachment)

	rr = e.do(t, http.MethodGet, "/attachments/"+pay.Attachment.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", rr.Body.String())

	rr = e.do(t, http.MethodPost, "/dues/"+due.ID+"/pay", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = e.do(t, http.MethodGet, "/ledger", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	book := decodeInto[struct {
		Entries []entryDTO        `json:"entries"`
		Totals  map[string]string `json:"totals"`
	}](t, rr)
	require.Len(t, book.Entries, 1)
	assert.Equal(t, "100.00", book.Totals["balance"])

	rr = e.do(t, http.MethodPost, "/dues/"+due.ID+"/reverse", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rev := decodeInto[reversalDTO](t, rr)
	assert.True(t, rev.WasPaid)
	assert.False(t, rev.Due.Paid)
	assert.Equal(t, pay.LedgerEntry.ID, rev.RemovedEntryID)
	assert.Equal(t, 1, rev.RemovedAttachments)
	assert.Zero(t, e.files.Len())

	rr = e.do(t, http.MethodGet, "/members/"+ana.ID+"/dues", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeInto[[]dueDTO](t, rr), 1)
}

func TestPayWithRejectedReceipt(t *testing.T) {
	e := newEnv(t)
	e.createMember(t, map[string]any{"name": "Ana", "monthly_due": 100})
	e.do(t, http.MethodPost, "/dues/generate", map[string]string{"period": "2024-03"})
	period := decodeInto[periodDTO](t, e.do(t, http.MethodGet, "/dues?period=2024-03", nil))

	rr := e.upload(t, "/dues/"+period.Dues[0].ID+"/pay", "receipt", "voucher.exe", []byte("MZ"), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	pay := decodeInto[paymentDTO](t, rr)
	assert.True(t, pay.ReceiptRejected)
	assert.NotEmpty(t, pay.Warning)
	assert.Nil(t, pay.Attachment)
}

func TestReports(t *testing.T) {
	e := newEnv(t)
	e.createMember(t, map[string]any{"name": "Ana", "monthly_due": 100})
	e.do(t, http.MethodPost, "/dues/generate", map[string]string{"period": "2024-01"})
	e.do(t, http.MethodPost, "/dues/generate", map[string]string{"period": "2024-02"})

	rr := e.do(t, http.MethodGet, "/reports/overdue?as_of=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	over := decodeInto[struct {
		Members []overdueDTO `json:"members"`
	}](t, rr)
	require.Len(t, over.Members, 1)
	assert.Equal(t, "200.00", over.Members[0].TotalOwed)
	assert.Equal(t, 2, over.Members[0].OverdueDues)

	rr = e.do(t, http.MethodGet, "/reports/overdue/periods?as_of=2024-03-01", nil)
	byPeriod := decodeInto[struct {
		Periods []periodOwedDTO `json:"periods"`
	}](t, rr)
	assert.Equal(t, []periodOwedDTO{{Period: "2024-01", TotalOwed: "100.00"}, {Period: "2024-02", TotalOwed: "100.00"}}, byPeriod.Periods)

	rr = e.do(t, http.MethodGet, "/reports/overdue?as_of=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRemindersReportFailures(t *testing.T) {
	e := newEnv(t)
	ana := e.createMember(t, map[string]any{"name": "Ana", "monthly_due": 100, "email": "ana@example.org"})
	e.createMember(t, map[string]any{"name": "Bruno", "monthly_due": 100})
	e.do(t, http.MethodPost, "/dues/generate", map[string]string{"period": "2024-02"})

	rr := e.do(t, http.MethodGet, "/members/"+ana.ID+"/reminders", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeInto[[]records.ReminderLog](t, rr))

	rr = e.do(t, http.MethodPost, "/reminders", map[string]string{"channel": "email", "as_of": "2024-03-01"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	sum := decodeInto[reminders.Summary](t, rr)
	assert.Equal(t, 0, sum.Sent)
	assert.Equal(t, 2, sum.Failed)
	require.Len(t, sum.Failures, 2)
	assert.Equal(t, "Ana", sum.Failures[0].Member)
	assert.Contains(t, sum.Failures[0].Info, "not available")
	assert.Equal(t, "no contact", sum.Failures[1].Info)

	rr = e.do(t, http.MethodGet, "/members/"+ana.ID+"/reminders", nil)
	logs := decodeInto[[]records.ReminderLog](t, rr)
	require.Len(t, logs, 1)
	assert.Equal(t, "email", logs[0].Channel)
	assert.False(t, logs[0].OK)

	rr = e.do(t, http.MethodPost, "/reminders", map[string]string{"channel": "pigeon"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMembersCRUD(t *testing.T) {
	e := newEnv(t)
	m := e.createMember(t, map[string]any{"name": " Ana ", "monthly_due": "50.5", "phone": "+54 9 341 555 0000"})
	assert.Equal(t, "Ana", m.Name)
	assert.Equal(t, "+5493415550000", *m.Phone)

	rr := e.do(t, http.MethodPost, "/members", map[string]any{"name": "", "monthly_due": 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = e.do(t, http.MethodPost, "/members", map[string]any{"name": "x", "unknown": 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPut, "/members/"+m.ID, map[string]any{"name": "Ana P.", "monthly_due": 60, "active": false})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decodeInto[memberDTO](t, rr).Active)

	rr = e.do(t, http.MethodGet, "/members?q=ana&active=false", nil)
	assert.Len(t, decodeInto[[]memberDTO](t, rr), 1)
	rr = e.do(t, http.MethodGet, "/members?active=true", nil)
	assert.Empty(t, decodeInto[[]memberDTO](t, rr))

	rr = e.do(t, http.MethodDelete, "/members/"+m.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = e.do(t, http.MethodGet, "/members/"+m.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestViewerIsReadOnly(t *testing.T) {
	e := newEnv(t)
	e.createMember(t, map[string]any{"name": "Ana", "monthly_due": 100})
	e.as = access.Identity{Subject: "v", Role: access.RoleViewer}

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/members", nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, "/dues/generate", map[string]string{"period": "2024-03"}).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, "/ledger", map[string]any{"direction": "income", "amount": 1}).Code)
}

func TestLedgerEntries(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/ledger", map[string]any{
		"direction": "expense", "category": "Cleaning", "amount": "40", "date": "2024-03-02",
		"receipt_type": "B", "receipt_number": "0001-22",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	first := decodeInto[entryDTO](t, rr)
	assert.Equal(t, "manual", first.Origin)
	assert.Equal(t, "0001-22", first.Receipt.Number)

	rr = e.upload(t, "/ledger", "file", "invoice.png", []byte("png"), map[string]string{
		"direction": "income", "category_ref": "cat-1", "amount": "100",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	second := decodeInto[entryDTO](t, rr)
	assert.Equal(t, "ref", second.Category.Kind)
	assert.Equal(t, "2024-03-15", second.Date)
	assert.Equal(t, 1, e.files.Len())

	rr = e.do(t, http.MethodGet, "/ledger?direction=expense", nil)
	book := decodeInto[struct {
		Entries []entryDTO        `json:"entries"`
		Totals  map[string]string `json:"totals"`
	}](t, rr)
	require.Len(t, book.Entries, 1)
	assert.Equal(t, "-40.00", book.Totals["balance"])

	rr = e.do(t, http.MethodDelete, "/ledger/"+second.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Zero(t, e.files.Len())

	rr = e.do(t, http.MethodGet, "/ledger?from=bad", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestImportMembersUpload(t *testing.T) {
	e := newEnv(t)
	sheet := "Name;Document Number;Monthly Due;Active\nAna;30111222;1.500,00;si\nBruno;;abc;\n"

	rr := e.upload(t, "/members/import", "file", "socios.csv", []byte(sheet), nil)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	sub := decodeInto[importer.Submission](t, rr)
	assert.NotEmpty(t, sub.RecordID)

	rr = e.do(t, http.MethodGet, "/imports/"+sub.RecordID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rec := decodeInto[records.ImportRecord](t, rr)
	assert.Equal(t, records.StatusDone, rec.Status)
	assert.Equal(t, 2, rec.Count)
	assert.Equal(t, 1, rec.Failed)

	list := decodeInto[[]memberDTO](t, e.do(t, http.MethodGet, "/members", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "1500.00", list[0].MonthlyDue)

	rr = e.do(t, http.MethodGet, "/imports", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), sub.RecordID)

	rr = e.do(t, http.MethodPost, "/members/import", map[string]string{"file_path": "s3://memory/imports/missing.csv"})
	require.Equal(t, http.StatusAccepted, rr.Code)
	sub = decodeInto[importer.Submission](t, rr)
	rec = decodeInto[records.ImportRecord](t, e.do(t, http.MethodGet, "/imports/"+sub.RecordID, nil))
	assert.Equal(t, records.StatusFailed, rec.Status)

	rr = e.do(t, http.MethodGet, "/imports/"+primitive.NewObjectID().Hex(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	h := &Handlers{Check: func(context.Context) error {
		return errors.Join(errors.New("postgres down"), fmt.Errorf("mongo down"))
	}}
	rr = httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	resp := decodeInto[healthResp](t, rr)
	assert.Equal(t, []string{"postgres down", "mongo down"}, resp.Errors)
	assert.False(t, strings.Contains(rr.Body.String(), "\\n"))
}
