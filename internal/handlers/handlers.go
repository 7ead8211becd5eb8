package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"acp_dues/internal/access"
	"acp_dues/internal/apperr"
	"acp_dues/internal/clock"
	"acp_dues/internal/logger"
	"acp_dues/internal/repository/records"
	"acp_dues/internal/services/delinquency"
	"acp_dues/internal/services/dues"
	"acp_dues/internal/services/importer"
	"acp_dues/internal/services/ledger"
	"acp_dues/internal/services/members"
	"acp_dues/internal/services/reminders"
	"acp_dues/internal/transport/auth"
)

// Journal reads import run status and reminder history.
type Journal interface {
	FindImportRecord(ctx context.Context, id string) (records.ImportRecord, error)
	ListImportRecords(ctx context.Context, limit, skip int64) ([]records.ImportRecord, int64, error)
	RemindersForMember(ctx context.Context, memberID string, limit int64) ([]records.ReminderLog, error)
}

type Handlers struct {
	Members     *members.Service
	Dues        *dues.Service
	Ledger      *ledger.Service
	Delinquency *delinquency.Aggregator
	Reminders   *reminders.Dispatcher
	Imports     *importer.Submitter
	Records     Journal

	Clock clock.Clock
	// Check reports the state of backing connections for /health.
	Check func(ctx context.Context) error
	// MaxUpload bounds multipart request bodies.
	MaxUpload int64

	Logger zerolog.Logger
}

const defaultMaxUpload = 32 << 20

// Routes mounts the authenticated API on r.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/members", func(r chi.Router) {
		r.Get("/", h.ListMembers)
		r.Post("/", h.CreateMember)
		r.Post("/import", h.ImportMembers)
		r.Get("/{id}", h.GetMember)
		r.Put("/{id}", h.UpdateMember)
		r.Delete("/{id}", h.DeleteMember)
		r.Get("/{id}/dues", h.MemberDues)
		r.Get("/{id}/reminders", h.MemberReminders)
	})
	r.Route("/dues", func(r chi.Router) {
		r.Get("/", h.ListPeriod)
		r.Post("/generate", h.GenerateDues)
		r.Get("/{id}", h.GetDue)
		r.Post("/{id}/pay", h.PayDue)
		r.Post("/{id}/reverse", h.ReverseDue)
	})
	r.Get("/reports/overdue", h.Overdue)
	r.Get("/reports/overdue/periods", h.OverdueByPeriod)
	r.Post("/reminders", h.SendReminders)
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/", h.ListLedger)
		r.Post("/", h.CreateLedgerEntry)
		r.Delete("/{id}", h.DeleteLedgerEntry)
	})
	r.Get("/attachments/{id}", h.GetAttachment)
	r.Get("/imports", h.ListImports)
	r.Get("/imports/{id}", h.GetImport)
}

func (h *Handlers) JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) Error(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		log := logger.FromContext(r.Context(), h.Logger)
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	h.JSON(w, code, map[string]string{"error": msg})
}

func (h *Handlers) badRequest(w http.ResponseWriter, format string, args ...any) {
	h.JSON(w, http.StatusBadRequest, map[string]string{"error": apperr.Validation(format, args...).Error()})
}

func caller(r *http.Request) access.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.badRequest(w, "bad JSON: %v", err)
		return false
	}
	return true
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func (h *Handlers) maxUpload() int64 {
	if h.MaxUpload > 0 {
		return h.MaxUpload
	}
	return defaultMaxUpload
}

func (h *Handlers) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload())
	if err := r.ParseMultipartForm(h.maxUpload()); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.JSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
			return false
		}
		h.badRequest(w, "bad multipart: %v", err)
		return false
	}
	return true
}

// dateParam reads an ISO date query parameter; absent means today.
func (h *Handlers) dateParam(r *http.Request, name string) (civil.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return h.Clock.Today(), nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return civil.Date{}, apperr.Validation("%s must be YYYY-MM-DD", name)
	}
	return d, nil
}

func optDate(raw, name string) (*civil.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return nil, apperr.Validation("%s must be YYYY-MM-DD", name)
	}
	return &d, nil
}

func intParam(r *http.Request, name string, def int64) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}
