package handlers

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"acp_dues/internal/apperr"
	"acp_dues/internal/models"
	"acp_dues/internal/repository/records"
	"acp_dues/internal/services/members"
	"acp_dues/internal/utils"
)

type memberBody struct {
	Name           string          `json:"name"`
	Email          *string         `json:"email"`
	Phone          *string         `json:"phone"`
	DocumentNumber *string         `json:"document_number"`
	Active         *bool           `json:"active"`
	MonthlyDue     decimal.Decimal `json:"monthly_due"`
}

func (b memberBody) input() members.Input {
	return members.Input{
		Name:           b.Name,
		Email:          b.Email,
		Phone:          b.Phone,
		DocumentNumber: b.DocumentNumber,
		Active:         b.Active,
		MonthlyDue:     b.MonthlyDue,
	}
}

func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	f := models.MemberFilter{Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, ok := utils.ParseBoolLoose(raw)
		if !ok {
			h.badRequest(w, "active must be true or false")
			return
		}
		f.Active = &v
	}

	list, err := h.Members.List(r.Context(), caller(r), f)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	out := make([]memberDTO, 0, len(list))
	for _, m := range list {
		out = append(out, toMember(m))
	}
	h.JSON(w, http.StatusOK, out)
}

func (h *Handlers) CreateMember(w http.ResponseWriter, r *http.Request) {
	var body memberBody
	if !h.decode(w, r, &body) {
		return
	}
	m, err := h.Members.Create(r.Context(), caller(r), body.input())
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusCreated, toMember(m))
}

func (h *Handlers) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.Members.Get(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, toMember(m))
}

func (h *Handlers) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var body memberBody
	if !h.decode(w, r, &body) {
		return
	}
	m, err := h.Members.Update(r.Context(), caller(r), chi.URLParam(r, "id"), body.input())
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, toMember(m))
}

func (h *Handlers) DeleteMember(w http.ResponseWriter, r *http.Request) {
	if err := h.Members.Delete(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		h.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) MemberDues(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Members.Get(r.Context(), caller(r), id); err != nil {
		h.Error(w, r, err)
		return
	}
	list, err := h.Dues.ForMember(r.Context(), caller(r), id)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	today := h.Clock.Today()
	out := make([]dueDTO, 0, len(list))
	for _, d := range list {
		dto := toDue(d)
		dto.Status = string(d.Status(today))
		out = append(out, dto)
	}
	h.JSON(w, http.StatusOK, out)
}

func (h *Handlers) MemberReminders(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Members.Get(r.Context(), caller(r), id); err != nil {
		h.Error(w, r, err)
		return
	}
	logs, err := h.Records.RemindersForMember(r.Context(), id, intParam(r, "limit", 20))
	if err != nil {
		h.Error(w, r, apperr.Storage(err, "reminder history"))
		return
	}
	if logs == nil {
		logs = []records.ReminderLog{}
	}
	h.JSON(w, http.StatusOK, logs)
}

type importBody struct {
	Type     string `json:"type"`
	FilePath string `json:"file_path"`
}

// ImportMembers accepts a multipart `file` (stored under imports/) or a JSON
// body naming a source already in storage. The import runs in the background;
// poll GET /imports/{id}.
func (h *Handlers) ImportMembers(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		var body importBody
		if !h.decode(w, r, &body) {
			return
		}
		if body.Type == "" {
			body.Type = "members"
		}
		sub, err := h.Imports.Source(r.Context(), caller(r), body.Type, body.FilePath)
		if err != nil {
			h.Error(w, r, err)
			return
		}
		h.JSON(w, http.StatusAccepted, sub)
		return
	}

	if !h.parseMultipart(w, r) {
		return
	}
	typ := r.FormValue("type")
	if typ == "" {
		typ = "members"
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		h.badRequest(w, "file is required")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.badRequest(w, "read upload: %v", err)
		return
	}

	sub, err := h.Imports.Upload(r.Context(), caller(r), typ, path.Base(fh.Filename), data, fh.Header.Get("Content-Type"))
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusAccepted, sub)
}
